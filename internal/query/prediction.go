package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Prediction is one record of a prediction stream: exactly one of Query or
// Error is set.
type Prediction struct {
	Query *Query
	Error string

	// Heavy-mode metadata, only present on successful records.
	HeavyConfidence *float64
	HeavyAgents     *int
}

// Success wraps a parsed query.
func Success(q Query) Prediction {
	return Prediction{Query: &q}
}

// Failure records why no query could be produced.
func Failure(reason string) Prediction {
	if reason == "" {
		reason = "unknown error"
	}
	return Prediction{Error: reason}
}

// OK reports whether the prediction carries a query.
func (p Prediction) OK() bool {
	return p.Query != nil
}

// WithHeavy attaches Heavy-mode confidence and the number of critiques that
// succeeded.
func (p Prediction) WithHeavy(confidence float64, agents int) Prediction {
	p.HeavyConfidence = &confidence
	p.HeavyAgents = &agents
	return p
}

type predictionWire struct {
	Query           *Query   `json:"query,omitempty"`
	Error           *string  `json:"error,omitempty"`
	HeavyConfidence *float64 `json:"heavy_confidence,omitempty"`
	HeavyAgents     *int     `json:"heavy_agents,omitempty"`
}

func (p Prediction) MarshalJSON() ([]byte, error) {
	var w predictionWire
	if p.Query != nil {
		w.Query = p.Query
		w.HeavyConfidence = p.HeavyConfidence
		w.HeavyAgents = p.HeavyAgents
	} else {
		reason := p.Error
		if reason == "" {
			reason = "unknown error"
		}
		w.Error = &reason
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(w); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

var errAmbiguousPrediction = errors.New("prediction must carry exactly one of query or error")

func (p *Prediction) UnmarshalJSON(data []byte) error {
	var w predictionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	hasErr := w.Error != nil && *w.Error != ""
	switch {
	case w.Query != nil && hasErr, w.Query == nil && !hasErr:
		return errAmbiguousPrediction
	case w.Query != nil:
		*p = Prediction{Query: w.Query, HeavyConfidence: w.HeavyConfidence, HeavyAgents: w.HeavyAgents}
	default:
		*p = Prediction{Error: *w.Error}
	}
	return nil
}

func (p Prediction) String() string {
	if p.Query != nil {
		return p.Query.String()
	}
	return fmt.Sprintf("error: %s", p.Error)
}
