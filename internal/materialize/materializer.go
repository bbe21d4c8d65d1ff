package materialize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"wikisqleval/internal/adapter"
	"wikisqleval/internal/dataset"
)

// Mapping describes one materialized table.
type Mapping struct {
	TableID  string
	Physical string
	Columns  []string
	Headers  []string
	Types    []ColumnType
	Inserted int
	Skipped  int
}

// Column returns the physical name of column i and whether it exists.
func (m *Mapping) Column(i int) (string, bool) {
	if i < 0 || i >= len(m.Columns) {
		return "", false
	}
	return m.Columns[i], true
}

// Materializer builds physical tables and keeps the table_id registry.
type Materializer struct {
	db  adapter.DBAdapter
	log *slog.Logger

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	mappings map[string]*Mapping
	owners   map[string]string // physical name -> table id
	names    nameSet
}

// New returns a Materializer writing through db.
func New(db adapter.DBAdapter, log *slog.Logger) *Materializer {
	if log == nil {
		log = slog.Default()
	}
	return &Materializer{
		db:       db,
		log:      log,
		locks:    make(map[string]*sync.Mutex),
		mappings: make(map[string]*Mapping),
		owners:   make(map[string]string),
		names:    make(nameSet),
	}
}

// Lookup returns the mapping of a materialized table.
func (m *Materializer) Lookup(tableID string) (*Mapping, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mp, ok := m.mappings[tableID]
	return mp, ok
}

// Mappings returns every registered mapping in no particular order.
func (m *Materializer) Mappings() []*Mapping {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Mapping, 0, len(m.mappings))
	for _, mp := range m.mappings {
		out = append(out, mp)
	}
	return out
}

// PhysicalName returns the stable physical name for a table id, reserving it
// on first use.
func (m *Materializer) PhysicalName(tableID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.physicalNameLocked(tableID)
}

func (m *Materializer) physicalNameLocked(tableID string) string {
	if mp, ok := m.mappings[tableID]; ok {
		return mp.Physical
	}
	for name, owner := range m.owners {
		if owner == tableID {
			return name
		}
	}
	name := m.names.unique(Sanitize(tableID, TableIdent))
	m.owners[name] = tableID
	return name
}

func (m *Materializer) lockFor(physical string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[physical]
	if !ok {
		l = &sync.Mutex{}
		m.locks[physical] = l
	}
	return l
}

// Materialize drops and recreates the physical table for t and loads its
// rows. A row that fails to insert is logged and skipped; only a failing
// DROP or CREATE is returned as an error.
func (m *Materializer) Materialize(ctx context.Context, t *dataset.Table) (*Mapping, error) {
	if t == nil {
		return nil, errors.New("nil table")
	}
	width := t.Width()
	if width == 0 {
		return nil, fmt.Errorf("table %s has no columns", t.ID)
	}

	physical := m.PhysicalName(t.ID)
	lock := m.lockFor(physical)
	lock.Lock()
	defer lock.Unlock()

	mp := &Mapping{
		TableID:  t.ID,
		Physical: physical,
		Columns:  make([]string, width),
		Headers:  append([]string(nil), t.Header...),
		Types:    make([]ColumnType, width),
	}
	cols := make(nameSet)
	for i := 0; i < width; i++ {
		mp.Columns[i] = cols.unique(Sanitize(ColumnName(i), ColumnIdent))
		mp.Types[i] = InferType(t.Column(i))
	}

	if err := m.db.Exec(ctx, "DROP TABLE IF EXISTS "+m.db.QuoteIdent(physical)); err != nil {
		return nil, fmt.Errorf("failed to drop %s: %w", physical, err)
	}
	if err := m.db.Exec(ctx, m.createStatement(mp)); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", physical, err)
	}

	insert := m.insertStatement(mp)
	var short, long int
	for r, row := range t.Rows {
		switch {
		case len(row) < width:
			short++
		case len(row) > width:
			long++
		}
		args := make([]any, width)
		for i := 0; i < width; i++ {
			if i < len(row) {
				args[i] = convertCell(row[i], mp.Types[i])
			}
		}
		if err := m.db.Exec(ctx, insert, args...); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			mp.Skipped++
			m.log.Warn("skipping row", "table_id", t.ID, "row", r, "error", err)
			continue
		}
		mp.Inserted++
	}
	if short > 0 || long > 0 {
		m.log.Warn("row width mismatch", "table_id", t.ID, "columns", width, "short_rows", short, "long_rows", long)
	}

	m.mu.Lock()
	m.mappings[t.ID] = mp
	m.mu.Unlock()

	m.log.Debug("materialized table", "table_id", t.ID, "physical", physical, "rows", mp.Inserted, "skipped", mp.Skipped)
	return mp, nil
}

// MaterializeAll builds every table in id order, continuing past failures.
func (m *Materializer) MaterializeAll(ctx context.Context, tables map[string]*dataset.Table) error {
	ids := make([]string, 0, len(tables))
	for id := range tables {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := m.Materialize(ctx, tables[id]); err != nil {
			m.log.Error("failed to materialize table", "table_id", id, "error", err)
			errs = append(errs, fmt.Errorf("table %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Materializer) sqlType(t ColumnType) string {
	if m.db.GetDatabaseType() == "SQLite" {
		if t == TypeText {
			// Text equality follows the case-insensitive benchmark convention.
			return "TEXT COLLATE NOCASE"
		}
		return string(t)
	}
	switch t {
	case TypeInteger:
		return "BIGINT"
	case TypeReal:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

func (m *Materializer) createStatement(mp *Mapping) string {
	defs := make([]string, len(mp.Columns))
	for i, c := range mp.Columns {
		defs[i] = m.db.QuoteIdent(c) + " " + m.sqlType(mp.Types[i])
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", m.db.QuoteIdent(mp.Physical), strings.Join(defs, ", "))
}

func (m *Materializer) insertStatement(mp *Mapping) string {
	cols := make([]string, len(mp.Columns))
	marks := make([]string, len(mp.Columns))
	for i, c := range mp.Columns {
		cols[i] = m.db.QuoteIdent(c)
		marks[i] = m.db.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		m.db.QuoteIdent(mp.Physical), strings.Join(cols, ", "), strings.Join(marks, ", "))
}
