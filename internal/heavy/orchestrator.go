// Package heavy runs the critique-revise loop over a candidate SQL statement:
// reformulate the question, critique the SQL from four angles concurrently,
// synthesize the critiques and accept a revision only when it adds
// conditions.
package heavy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alitto/pond/v2"

	"wikisqleval/internal/llm"
	"wikisqleval/internal/sqlparse"
)

const (
	DefaultWorkers = 4
	DefaultTimeout = 120 * time.Second
)

// Config configures an Orchestrator.
type Config struct {
	// Workers bounds concurrent critique calls.
	Workers int
	// Timeout bounds the whole critique stage.
	Timeout time.Duration
	// Scorer estimates per-critique confidence; KeywordScorer by default.
	Scorer Scorer
	// Parser gates revisions: a proposal it cannot read is never accepted.
	Parser sqlparse.Parser
	Logger *slog.Logger
}

// Critique is one critique slot. Err is set when the call failed or did not
// finish before the stage timeout.
type Critique struct {
	AgentID         int      `json:"agent_id"`
	Role            string   `json:"role"`
	Subquestion     string   `json:"specialized_question"`
	Answer          string   `json:"answer,omitempty"`
	Confidence      float64  `json:"confidence"`
	Recommendations []string `json:"recommendations,omitempty"`
	Err             string   `json:"error,omitempty"`
}

func (c Critique) OK() bool { return c.Err == "" }

// Synthesis is the combined judgement over the successful critiques.
type Synthesis struct {
	Content    string  `json:"content,omitempty"`
	Confidence float64 `json:"confidence"`
	Successful int     `json:"successful_agents"`
	Total      int     `json:"total_agents"`
	Err        string  `json:"error,omitempty"`
}

// Analysis is the outcome of one run.
type Analysis struct {
	Question        string     `json:"question"`
	OriginalSQL     string     `json:"generated_sql"`
	FinalSQL        string     `json:"improved_sql"`
	Revised         bool       `json:"revised"`
	RevisionReason  string     `json:"revision_reason"`
	Subquestions    []string   `json:"specialized_questions"`
	Critiques       []Critique `json:"agent_analyses"`
	Synthesis       Synthesis  `json:"synthesis"`
	Confidence      float64    `json:"overall_confidence"`
	Recommendations []string   `json:"final_recommendations,omitempty"`
}

// Orchestrator drives the staged loop. It is safe for concurrent use.
type Orchestrator struct {
	llm    llm.Completer
	scorer Scorer
	cfg    Config
	log    *slog.Logger
	pool   pond.Pool
}

// New returns an Orchestrator calling completer. Close releases its pool.
func New(completer llm.Completer, cfg Config) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Scorer == nil {
		cfg.Scorer = KeywordScorer{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Parser == nil {
		cfg.Parser = sqlparse.New(cfg.Logger)
	}
	return &Orchestrator{
		llm:    completer,
		scorer: cfg.Scorer,
		cfg:    cfg,
		log:    cfg.Logger,
		pool:   pond.NewPool(cfg.Workers),
	}
}

func (o *Orchestrator) Close() {
	o.pool.StopAndWait()
}

// Analyze critiques sql as an answer to question. It fails only when there is
// nothing to analyze or ctx is done; every stage failure below that is
// recorded in the Analysis and leaves FinalSQL equal to sql.
func (o *Orchestrator) Analyze(ctx context.Context, question string, table TableInfo, sql string) (*Analysis, error) {
	if sql == "" {
		return nil, errors.New("no sql to analyze")
	}
	a := &Analysis{Question: question, OriginalSQL: sql, FinalSQL: sql}

	a.Subquestions = o.subquestions(ctx, question, table)
	a.Critiques = o.critique(ctx, question, a.Subquestions, table, sql)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.Synthesis = o.synthesize(ctx, question, sql, a.Critiques)
	a.Confidence = a.Synthesis.Confidence
	a.Recommendations = mergeRecommendations(a.Critiques)

	if a.Synthesis.Err != "" {
		a.RevisionReason = "synthesis failed"
		return a, nil
	}
	revised, reason, ok := ExtractRevision(a.Synthesis.Content, sql, o.cfg.Parser)
	a.RevisionReason = reason
	if ok {
		a.FinalSQL, a.Revised = revised, true
		o.log.Info("accepted revised sql", "original", sql, "revised", revised, "reason", reason)
	} else {
		o.log.Debug("keeping original sql", "reason", reason)
	}
	return a, nil
}

func (o *Orchestrator) subquestions(ctx context.Context, question string, table TableInfo) []string {
	prompt, err := subquestionPrompt(question, table)
	if err != nil {
		o.log.Error("failed to build subquestion prompt", "error", err)
		return FallbackSubquestions(question)
	}
	resp, err := o.llm.Complete(ctx, prompt)
	if err != nil {
		o.log.Warn("subquestion generation failed, using templates", "error", err)
		return FallbackSubquestions(question)
	}
	qs, ok := ParseSubquestions(resp)
	if !ok {
		o.log.Warn("unexpected subquestion format, using templates", "parsed", len(qs))
		return FallbackSubquestions(question)
	}
	return qs
}

// critique fans the subquestions out over the pool. Slots are pre-filled with
// a timeout error and only overwritten while the stage is open, so a task
// finishing after the deadline cannot change the returned results.
func (o *Orchestrator) critique(ctx context.Context, question string, subquestions []string, table TableInfo, sql string) []Critique {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	n := min(len(subquestions), len(Roles))
	var (
		mu     sync.Mutex
		closed bool
		slots  = make([]Critique, n)
	)
	for i := range slots {
		slots[i] = Critique{AgentID: i, Role: Roles[i].String(), Subquestion: subquestions[i],
			Err: fmt.Sprintf("critique did not finish within %s", o.cfg.Timeout)}
	}

	group := o.pool.NewGroupContext(ctx)
	for i := 0; i < n; i++ {
		group.Submit(func() {
			c := o.runCritique(ctx, i, question, subquestions[i], table, sql)
			mu.Lock()
			defer mu.Unlock()
			if !closed {
				slots[i] = c
			}
		})
	}

	done := make(chan struct{})
	go func() {
		group.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		o.log.Warn("critique stage timed out", "timeout", o.cfg.Timeout)
	}

	mu.Lock()
	closed = true
	out := append([]Critique(nil), slots...)
	mu.Unlock()
	return out
}

func (o *Orchestrator) runCritique(ctx context.Context, id int, question, subquestion string, table TableInfo, sql string) (c Critique) {
	role := Roles[id]
	c = Critique{AgentID: id, Role: role.String(), Subquestion: subquestion}
	defer func() {
		if r := recover(); r != nil {
			c.Answer, c.Err = "", fmt.Sprintf("panic: %v", r)
		}
	}()

	prompt, err := critiquePrompt(role, question, subquestion, sql, table)
	if err != nil {
		c.Err = err.Error()
		return c
	}
	start := time.Now()
	answer, err := o.llm.Complete(ctx, prompt)
	if err != nil {
		o.log.Warn("critique failed", "agent", id, "role", role.Name, "error", err)
		c.Err = err.Error()
		return c
	}
	c.Answer = answer
	c.Confidence = o.scorer.Score(answer)
	c.Recommendations = Recommendations(answer)
	o.log.Debug("critique done", "agent", id, "confidence", c.Confidence, "elapsed", time.Since(start))
	return c
}

func (o *Orchestrator) synthesize(ctx context.Context, question, sql string, critiques []Critique) Synthesis {
	var ok []Critique
	var confs []float64
	for _, c := range critiques {
		if c.OK() {
			ok = append(ok, c)
			confs = append(confs, c.Confidence)
		}
	}
	s := Synthesis{Successful: len(ok), Total: len(critiques)}
	if len(ok) == 0 {
		s.Err = "no critique succeeded"
		return s
	}

	prompt, err := synthesisPrompt(question, sql, ok)
	if err != nil {
		s.Err = err.Error()
		return s
	}
	content, err := o.llm.Complete(ctx, prompt)
	if err != nil {
		o.log.Warn("synthesis failed", "error", err)
		s.Err = fmt.Sprintf("synthesis failed: %v", err)
		return s
	}
	s.Content = content
	s.Confidence = SynthesisConfidence(content, confs, len(critiques))
	return s
}

const maxMergedRecommendations = 10

func mergeRecommendations(critiques []Critique) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range critiques {
		for _, r := range c.Recommendations {
			if seen[r] || len(out) == maxMergedRecommendations {
				continue
			}
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
