package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// DefaultOfficialTimeout bounds one run of the official script.
const DefaultOfficialTimeout = 300 * time.Second

// Runner executes an external command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("%s: %w: %s", name, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return out, nil
}

// OfficialConfig locates the WikiSQL evaluation script.
type OfficialConfig struct {
	Python  string // interpreter, default "python"
	Script  string // path to WikiSQL/evaluate.py
	Timeout time.Duration

	// Run replaces command execution, for tests.
	Run Runner
	// LookPath replaces interpreter lookup, for tests.
	LookPath func(string) (string, error)
}

// Official shells out to the reference evaluate.py.
type Official struct {
	cfg OfficialConfig
	log *slog.Logger
}

func NewOfficial(cfg OfficialConfig, log *slog.Logger) *Official {
	if cfg.Python == "" {
		cfg.Python = "python"
	}
	if cfg.Script == "" {
		cfg.Script = filepath.Join("WikiSQL", "evaluate.py")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultOfficialTimeout
	}
	if cfg.Run == nil {
		cfg.Run = execRunner
	}
	if cfg.LookPath == nil {
		cfg.LookPath = exec.LookPath
	}
	if log == nil {
		log = slog.Default()
	}
	return &Official{cfg: cfg, log: log}
}

func (o *Official) Name() string { return TierOfficial }

func (o *Official) Available(_ context.Context, in Input) error {
	if _, err := o.cfg.LookPath(o.cfg.Python); err != nil {
		return fmt.Errorf("%w: interpreter %q: %v", ErrUnavailable, o.cfg.Python, err)
	}
	lib := filepath.Join(filepath.Dir(o.cfg.Script), "lib")
	if fi, err := os.Stat(lib); err != nil || !fi.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrUnavailable, lib)
	}
	return requireFiles(o.cfg.Script, in.GoldPath, in.DBPath, in.PredPath)
}

type officialOutput struct {
	ExAccuracy *float64 `json:"ex_accuracy"`
	LfAccuracy *float64 `json:"lf_accuracy"`
}

func (o *Official) Evaluate(ctx context.Context, in Input) (*Report, error) {
	if err := o.Available(ctx, in); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	args := []string{o.cfg.Script, in.GoldPath, in.DBPath, in.PredPath}
	if in.Ordered {
		args = append(args, "--ordered")
	}
	o.log.Info("running official evaluation", "python", o.cfg.Python, "script", o.cfg.Script)
	out, err := o.cfg.Run(ctx, o.cfg.Python, args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("official evaluation timed out after %s", o.cfg.Timeout)
		}
		return nil, fmt.Errorf("official evaluation failed: %w", err)
	}

	res, err := parseOfficialOutput(out)
	if err != nil {
		return nil, err
	}
	rep := &Report{Tier: TierOfficial, ExAccuracy: *res.ExAccuracy, LfAccuracy: *res.LfAccuracy}

	// The script reports only ratios; counts come from the input files.
	gold, preds, err := readStreams(in, o.log)
	if err == nil {
		rep.GoldCount, rep.PredCount = len(gold), len(preds)
		rep.Total = min(len(gold), len(preds))
		rep.ExCorrect = int(rep.ExAccuracy*float64(rep.Total) + 0.5)
		rep.LfCorrect = int(rep.LfAccuracy*float64(rep.Total) + 0.5)
	}
	return rep, nil
}

// parseOfficialOutput extracts the JSON object printed by evaluate.py. The
// script may print progress before it, and the object may span lines.
func parseOfficialOutput(out []byte) (*officialOutput, error) {
	start := bytes.IndexByte(out, '{')
	end := bytes.LastIndexByte(out, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON result in official output: %q", truncate(out, 200))
	}
	var res officialOutput
	if err := json.Unmarshal(out[start:end+1], &res); err != nil {
		return nil, fmt.Errorf("failed to parse official output: %w", err)
	}
	if res.ExAccuracy == nil || res.LfAccuracy == nil {
		return nil, fmt.Errorf("official output is missing accuracies")
	}
	return &res, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
