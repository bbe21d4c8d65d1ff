package heavy

import (
	"bytes"
	"encoding/json"
	"text/template"

	"wikisqleval/internal/dataset"
)

// TableInfo is the table summary handed to every critique.
type TableInfo struct {
	TableID     string   `json:"table_id"`
	Headers     []string `json:"headers"`
	Types       []string `json:"types"`
	SampleRows  [][]any  `json:"sample_rows"`
	TotalRows   int      `json:"total_rows"`
	DBTableName string   `json:"db_table_name"`
}

const sampleRows = 3

// NewTableInfo summarizes t; physical is its materialized name.
func NewTableInfo(t *dataset.Table, physical string) TableInfo {
	if physical == "" {
		physical = "unknown"
	}
	info := TableInfo{
		TableID:     t.ID,
		Headers:     t.Header,
		Types:       t.Types,
		SampleRows:  [][]any{},
		TotalRows:   len(t.Rows),
		DBTableName: physical,
	}
	if len(t.Rows) > 0 {
		info.SampleRows = t.Rows[:min(sampleRows, len(t.Rows))]
	}
	return info
}

func (t TableInfo) json(indent bool) string {
	var (
		b   []byte
		err error
	)
	if indent {
		b, err = json.MarshalIndent(t, "", "  ")
	} else {
		b, err = json.Marshal(t)
	}
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Role is one critique perspective.
type Role struct {
	Name  string
	Focus string
}

// Roles are assigned to subquestions by position.
var Roles = []Role{
	{"SQL Research Agent", "Deep SQL query analysis and data exploration"},
	{"SQL Logic Agent", "Query logic validation and reasoning analysis"},
	{"SQL Alternatives Agent", "Alternative query approaches and optimization"},
	{"SQL Verification Agent", "Query result verification and accuracy assessment"},
}

func (r Role) String() string { return r.Name + " - " + r.Focus }

var prompts = template.Must(template.New("heavy").Parse(`
{{define "subquestions"}}You are a question generation expert. Create 4 natural language questions based on the original question, using a 1+3 structure: 1 original question + 3 transformed questions from different perspectives.

Original Question: {{.Question}}
Table Information: {{.Table}}

Requirements:
1. First question: Keep the EXACT original question unchanged
2. Questions 2-4: Transform the original question from different angles while maintaining the same core intent
3. All questions must be natural language questions (NO SQL syntax allowed)
4. All questions must be in English
5. Focus on different aspects: specificity, context, verification

Example transformation patterns:
- Original: "What school did player number 21 play for?"
- Angle 1: "Which educational institution was attended by the athlete wearing jersey number 21?"
- Angle 2: "What is the academic background of the player identified as number 21?"
- Angle 3: "Can you identify the college or university associated with player 21?"

Please output in the following format:
ORIGINAL: {{.Question}}
SPECIFIC: [More specific version focusing on details and context]
ALTERNATIVE: [Alternative phrasing with different terminology]
VERIFICATION: [Verification-focused version asking for confirmation]
{{end}}

{{define "critique"}}System: You are a {{.Role}}.

User: Your task is to help better answer the user's question: "{{.Question}}"

Specialized Research Question: {{.Subquestion}}

Background Information:
- User Original Question: {{.Question}}
- Current Generated SQL: {{.SQL}}

Table Structure:
{{.Table}}

As {{.Role}}, please:

1. **Execute the SQL Query**: Analyze what the SQL query ` + "`{{.SQL}}`" + ` would return
2. **Explain the Query Logic**: Why this SQL approach was chosen for the user's question
3. **Check Multi-Condition Requirements**: Does the user question require multiple WHERE conditions?
4. **Interpret Results**: What the query results mean in context of the user's question
5. **Evaluate Correctness**: Does this SQL correctly answer "{{.Question}}"?
6. **Suggest Improvements**: If needed, propose better SQL queries or approaches

Please structure your response as:
- **SQL Analysis**: [What the query does step by step]
- **Query Reasoning**: [Why this approach was chosen]
- **Multi-Condition Check**: [Does the question require multiple conditions? Are they all present?]
- **Expected Results**: [What results this query would produce]
- **Correctness Assessment**: [Does it answer the user's question correctly?]
- **Recommendations**: [Any improvements, especially missing conditions or alternative approaches]

Special attention to multi-condition queries:
- Questions like "What player played guard for toronto in 1996-97?" need multiple conditions
- Check if all conditions from the user question are captured in the SQL
- Look for missing AND clauses that might be needed

IMPORTANT: Only suggest SQL improvements if there are CLEAR missing conditions or obvious errors.
- Don't suggest LIKE instead of = unless absolutely necessary
- Don't add LOWER(), UPPER(), or other functions unless required
- Keep suggestions simple and compatible with WikiSQL format
- Focus on missing WHERE conditions, not style improvements

Focus on helping answer "{{.Question}}" accurately and completely.
{{end}}

{{define "synthesis"}}As Synthesis Agent, your task is to synthesize the analysis from 4 professional agents, with the ultimate goal of ensuring we correctly answer the user's question.

User Question: {{.Question}}
Current SQL Solution: {{.SQL}}

Analysis Results from 4 Professional Agents:
{{range .Critiques}}
{{.Role}}:
Specialized Question: {{.Subquestion}}
Analysis Answer: {{.Answer}}

---
{{end}}
As Synthesis Agent, analyze the SQL query results and recommendations from all 4 agents to provide a comprehensive answer to: "{{.Question}}"

Please synthesize their findings by:

1. **SQL Query Evaluation**: Compare how each agent analyzed the SQL query ` + "`{{.SQL}}`" + `
2. **Results Analysis**: Synthesize what each agent found about the query results and their correctness
3. **Consensus Assessment**: Where do the agents agree/disagree about the SQL approach?
4. **Improved SQL**: If agents suggest improvements, provide the corrected SQL query
5. **Final Answer**: Based on all agent analyses, what is the best answer to "{{.Question}}"?
6. **Confidence Score**: Overall confidence in the final answer (0-1)

Structure your response as:
- **Query Assessment**: [Combined evaluation of the SQL query]
- **Agent Consensus**: [Where agents agree and disagree]
- **Improved SQL**: [If needed, provide corrected SQL query in a sql code block]
- **Final Answer**: [Definitive answer to the user's question]
- **Confidence**: [Number between 0-1]

IMPORTANT: If the agents identified missing conditions or SQL errors, provide the corrected SQL query in a code block like this:
` + "```sql\nSELECT col0 FROM table_name WHERE col1='condition1' AND col2='condition2';\n```" + `

CRITICAL GUIDELINES for SQL improvements:
1. Keep SQL simple and compatible with WikiSQL format
2. Use exact matches (=) instead of LIKE unless absolutely necessary
3. Don't add unnecessary functions like LOWER(), UPPER(), etc.
4. Stick to basic SELECT, FROM, WHERE, AND structure
5. Only suggest improvements if there are clear missing conditions or obvious errors

Focus on providing the most accurate answer to "{{.Question}}" based on all agent insights.
{{end}}
`))

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func subquestionPrompt(question string, table TableInfo) (string, error) {
	return render("subquestions", struct{ Question, Table string }{question, table.json(false)})
}

func critiquePrompt(role Role, question, subquestion, sql string, table TableInfo) (string, error) {
	return render("critique", struct {
		Role                               string
		Question, Subquestion, SQL, Table string
	}{role.String(), question, subquestion, sql, table.json(true)})
}

func synthesisPrompt(question, sql string, critiques []Critique) (string, error) {
	return render("synthesis", struct {
		Question, SQL string
		Critiques     []Critique
	}{question, sql, critiques})
}
