package logger

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// TaskStatus is the lifecycle state of one tracked task.
type TaskStatus string

const (
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// TaskProgress is one tracked task.
type TaskProgress struct {
	Name      string
	Status    TaskStatus
	StartTime time.Time
	EndTime   time.Time
	Error     string
}

// Progress tracks a fixed number of tasks and logs completion rate and ETA.
type Progress struct {
	mu        sync.Mutex
	log       *slog.Logger
	total     int
	finished  int
	startTime time.Time
	phase     string
	tasks     map[string]*TaskProgress
	now       func() time.Time
}

// NewProgress tracks total tasks, logging through log.
func NewProgress(total int, log *slog.Logger) *Progress {
	if log == nil {
		log = slog.Default()
	}
	return &Progress{
		log:       log,
		total:     total,
		startTime: time.Now(),
		tasks:     make(map[string]*TaskProgress),
		now:       time.Now,
	}
}

// SetPhase names the current stage of the run.
func (p *Progress) SetPhase(phase string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phase = phase
	p.log.Info("phase", "name", phase)
}

func (p *Progress) StartTask(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks[name] = &TaskProgress{Name: name, Status: TaskRunning, StartTime: p.now()}
	p.log.Debug("task started", "task", name, "phase", p.phase)
}

func (p *Progress) CompleteTask(name string) {
	p.finish(name, TaskCompleted, nil)
}

func (p *Progress) FailTask(name string, err error) {
	p.finish(name, TaskFailed, err)
}

func (p *Progress) finish(name string, status TaskStatus, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.tasks[name]
	if !ok || t.Status != TaskRunning {
		return
	}
	t.Status = status
	t.EndTime = p.now()
	p.finished++

	attrs := []any{"task", name, "duration", formatDuration(t.EndTime.Sub(t.StartTime))}
	if err != nil {
		t.Error = err.Error()
		p.log.Warn("task failed", append(attrs, "error", err)...)
	} else {
		p.log.Debug("task completed", attrs...)
	}
	p.logProgress()
}

// logProgress reports done/total and an ETA from the mean task time.
// Callers hold mu.
func (p *Progress) logProgress() {
	if p.total == 0 {
		return
	}
	elapsed := p.now().Sub(p.startTime)
	var eta time.Duration
	if p.finished > 0 {
		eta = elapsed / time.Duration(p.finished) * time.Duration(p.total-p.finished)
	}
	p.log.Info("progress",
		"done", p.finished,
		"total", p.total,
		"percent", fmt.Sprintf("%.1f", float64(p.finished)/float64(p.total)*100),
		"elapsed", formatDuration(elapsed),
		"eta", formatDuration(eta))
}

// Summary counts tasks by final status.
type Summary struct {
	Total     int
	Completed int
	Failed    int
	Elapsed   time.Duration
	Failures  []TaskProgress
}

func (p *Progress) Summary() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Summary{Total: p.total, Elapsed: p.now().Sub(p.startTime)}
	for _, t := range p.tasks {
		switch t.Status {
		case TaskCompleted:
			s.Completed++
		case TaskFailed:
			s.Failed++
			s.Failures = append(s.Failures, *t)
		}
	}
	sort.Slice(s.Failures, func(i, j int) bool { return s.Failures[i].Name < s.Failures[j].Name })
	return s
}

// LogSummary writes the final summary.
func (p *Progress) LogSummary() {
	s := p.Summary()
	attrs := []any{"total", s.Total, "completed", s.Completed, "failed", s.Failed, "elapsed", formatDuration(s.Elapsed)}
	if s.Completed > 0 {
		attrs = append(attrs, "avg", formatDuration(s.Elapsed/time.Duration(s.Completed)))
	}
	p.log.Info("summary", attrs...)
	for _, f := range s.Failures {
		p.log.Warn("failed task", "task", f.Name, "error", f.Error)
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "N/A"
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
