package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// FileKind identifies one of the files that make up a split.
type FileKind int

const (
	Questions FileKind = iota
	Tables
	Database
)

// FileName returns the conventional WikiSQL file name for a split.
func (k FileKind) FileName(split string) string {
	switch k {
	case Tables:
		return split + ".tables.jsonl"
	case Database:
		return split + ".db"
	default:
		return split + ".jsonl"
	}
}

func (k FileKind) String() string {
	switch k {
	case Tables:
		return "tables"
	case Database:
		return "database"
	default:
		return "questions"
	}
}

// ErrFileNotFound is matched by every MissingFileError.
var ErrFileNotFound = errors.New("dataset file not found")

// MissingFileError names the artifact a run needed and could not find.
type MissingFileError struct {
	Split string
	Kind  FileKind
	Tried []string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("%s file for split %q not found (tried %s)", e.Kind, e.Split, strings.Join(e.Tried, ", "))
}

func (e *MissingFileError) Is(target error) bool {
	return target == ErrFileNotFound
}

// Source resolves dataset files to local paths.
type Source interface {
	Locate(ctx context.Context, split string, kind FileKind) (string, error)
}

// LocalSource looks for files inside a WikiSQL checkout.
type LocalSource struct {
	Root string
}

func (s LocalSource) candidates(split string, kind FileKind) []string {
	name := kind.FileName(split)
	return []string{
		filepath.Join(s.Root, "data", name),
		filepath.Join(s.Root, name),
	}
}

func (s LocalSource) Locate(_ context.Context, split string, kind FileKind) (string, error) {
	tried := s.candidates(split, kind)
	for _, p := range tried {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", &MissingFileError{Split: split, Kind: kind, Tried: tried}
}

// DefaultRemoteBases are tried in order by HTTPSource.
var DefaultRemoteBases = []string{
	"https://github.com/salesforce/WikiSQL/raw/main/data",
	"https://github.com/salesforce/WikiSQL/raw/master/data",
}

// HTTPSource downloads split files into CacheDir and reuses cached copies.
type HTTPSource struct {
	Bases      []string
	CacheDir   string
	Client     *http.Client
	MaxRetries uint64
	Logger     *slog.Logger
}

// NewHTTPSource returns a source over the public WikiSQL repository.
func NewHTTPSource(cacheDir string, log *slog.Logger) *HTTPSource {
	if log == nil {
		log = slog.Default()
	}
	return &HTTPSource{
		Bases:      DefaultRemoteBases,
		CacheDir:   cacheDir,
		Client:     &http.Client{Timeout: 5 * time.Minute},
		MaxRetries: 3,
		Logger:     log,
	}
}

func (s *HTTPSource) Locate(ctx context.Context, split string, kind FileKind) (string, error) {
	name := kind.FileName(split)
	dest := filepath.Join(s.CacheDir, name)
	if fi, err := os.Stat(dest); err == nil && fi.Size() > 0 {
		return dest, nil
	}
	if kind == Database {
		// The .db files ship inside data.tar.bz2, not as individual files.
		return "", &MissingFileError{Split: split, Kind: kind, Tried: []string{dest}}
	}
	if err := os.MkdirAll(s.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}

	tried := []string{dest}
	for _, base := range s.Bases {
		url := strings.TrimRight(base, "/") + "/" + name
		tried = append(tried, url)
		err := s.download(ctx, url, dest)
		if err == nil {
			s.Logger.Info("downloaded dataset file", "url", url, "path", dest)
			return dest, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.Logger.Warn("download failed", "url", url, "error", err)
	}
	return "", &MissingFileError{Split: split, Kind: kind, Tried: tried}
}

type statusError struct {
	url  string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.url, e.code)
}

func (s *HTTPSource) download(ctx context.Context, url, dest string) error {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			err := &statusError{url: url, code: resp.StatusCode}
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		return writeAtomic(dest, resp.Body)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.MaxRetries), ctx)
	return backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		s.Logger.Debug("retrying download", "url", url, "error", err, "wait", wait)
	})
}

func writeAtomic(dest string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

// ChainSource tries each source in order and returns the first hit.
type ChainSource []Source

func (c ChainSource) Locate(ctx context.Context, split string, kind FileKind) (string, error) {
	var tried []string
	for _, src := range c {
		p, err := src.Locate(ctx, split, kind)
		if err == nil {
			return p, nil
		}
		var missing *MissingFileError
		if !errors.As(err, &missing) {
			return "", err
		}
		tried = append(tried, missing.Tried...)
	}
	return "", &MissingFileError{Split: split, Kind: kind, Tried: tried}
}
