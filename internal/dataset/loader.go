package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"wikisqleval/internal/query"
)

// maxLineSize bounds a single JSONL record. Table records with many rows can
// be large.
const maxLineSize = 64 << 20

func scanLines(r io.Reader, fn func(lineNo int, line []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), maxLineSize)
	lineNo := 0
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
		lineNo++
	}
	return sc.Err()
}

func decodeLine(line []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	return dec.Decode(v)
}

// ReadTables decodes a tables JSONL stream keyed by table id. Malformed lines
// are logged and skipped; shape problems are logged but the table is kept.
func ReadTables(r io.Reader, log *slog.Logger) (map[string]*Table, error) {
	if log == nil {
		log = slog.Default()
	}
	tables := make(map[string]*Table)
	err := scanLines(r, func(lineNo int, line []byte) error {
		var t Table
		if err := decodeLine(line, &t); err != nil {
			log.Warn("skipping malformed table record", "line", lineNo+1, "error", err)
			return nil
		}
		if t.ID == "" {
			log.Warn("skipping table record without id", "line", lineNo+1)
			return nil
		}
		for _, w := range t.Validate() {
			log.Debug("table shape warning", "table_id", t.ID, "warning", w)
		}
		tables[t.ID] = &t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read tables: %w", err)
	}
	return tables, nil
}

// ReadQuestions decodes a gold JSONL stream. limit <= 0 reads everything.
// Undecodable lines become Invalid questions so positions are preserved.
func ReadQuestions(r io.Reader, limit int, log *slog.Logger) ([]Question, error) {
	if log == nil {
		log = slog.Default()
	}
	var questions []Question
	errStop := fmt.Errorf("limit reached")
	err := scanLines(r, func(lineNo int, line []byte) error {
		if limit > 0 && len(questions) >= limit {
			return errStop
		}
		var q Question
		if err := decodeLine(line, &q); err != nil {
			log.Warn("malformed question record", "line", lineNo+1, "error", err)
			q = Question{Invalid: err.Error()}
		}
		q.ID = lineNo
		questions = append(questions, q)
		return nil
	})
	if err != nil && err != errStop {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}
	return questions, nil
}

// ReadPredictions decodes a prediction JSONL stream. A line that is not a
// valid prediction becomes an error record in place.
func ReadPredictions(r io.Reader, log *slog.Logger) ([]query.Prediction, error) {
	if log == nil {
		log = slog.Default()
	}
	var preds []query.Prediction
	err := scanLines(r, func(lineNo int, line []byte) error {
		var p query.Prediction
		if err := decodeLine(line, &p); err != nil {
			log.Warn("malformed prediction record", "line", lineNo+1, "error", err)
			p = query.Failure(fmt.Sprintf("malformed prediction: %v", err))
		}
		preds = append(preds, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read predictions: %w", err)
	}
	return preds, nil
}

// WritePredictions writes one JSON record per line.
func WritePredictions(w io.Writer, preds []query.Prediction) error {
	bw := bufio.NewWriter(w)
	for i, p := range preds {
		if err := WritePrediction(bw, p); err != nil {
			return fmt.Errorf("prediction %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// WritePrediction writes a single JSONL record.
func WritePrediction(w io.Writer, p query.Prediction) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
