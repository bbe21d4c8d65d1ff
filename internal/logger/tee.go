package logger

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"sync"
)

var ansiRe = regexp.MustCompile("\x1b\\[[0-9;]*m")

// Tee writes to a console writer and, once SetFile is called, to a log file
// as well. Color escapes are stripped from the file copy.
type Tee struct {
	mu      sync.Mutex
	console io.Writer
	file    *os.File
}

func NewTee(console io.Writer) *Tee {
	return &Tee{console: console}
}

func (t *Tee) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.console.Write(p)
	if t.file != nil {
		// A failing log file must not break console logging.
		_, _ = t.file.Write(ansiRe.ReplaceAll(p, nil))
	}
	return n, err
}

// SetFile starts copying output to path, closing any previous file.
func (t *Tee) SetFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file != nil {
		t.file.Close()
	}
	t.file = f
	return nil
}

// CloseFile syncs and closes the log file and reverts to console only.
func (t *Tee) CloseFile() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	_ = t.file.Sync()
	err := t.file.Close()
	t.file = nil
	return err
}
