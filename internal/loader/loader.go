package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/franz/music-journeys/internal/report"
	"github.com/franz/music-journeys/internal/store"
	"github.com/franz/music-journeys/internal/util"
)

// Outcome is what happened to one table during a rebuild
type Outcome string

const (
	OutcomeLoaded    Outcome = "loaded"
	OutcomeUnchanged Outcome = "unchanged" // append-if-nonempty table with an empty source
	OutcomeSkipped   Outcome = "skipped"   // source file missing
	OutcomeFailed    Outcome = "failed"
)

// TableResult is the outcome of loading one table
type TableResult struct {
	Table    string
	Path     string
	Rows     int
	Outcome  Outcome
	Duration time.Duration
	Err      error
}

// Result summarizes a rebuild
type Result struct {
	Tables   []TableResult
	Duration time.Duration
}

// Count returns the number of tables with the given outcome
func (r *Result) Count(o Outcome) int {
	n := 0
	for _, t := range r.Tables {
		if t.Outcome == o {
			n++
		}
	}
	return n
}

// Rows returns the total number of rows written
func (r *Result) Rows() int {
	n := 0
	for _, t := range r.Tables {
		if t.Outcome == OutcomeLoaded {
			n += t.Rows
		}
	}
	return n
}

// Config holds loader configuration
type Config struct {
	Store    *store.Store
	DataDir  string
	Logger   zerolog.Logger
	Events   *report.EventLogger
	Progress bool // render a progress bar on stderr
}

// Loader rebuilds the warehouse from its flat-file sources and exports it back
type Loader struct {
	store    *store.Store
	dataDir  string
	log      zerolog.Logger
	events   *report.EventLogger
	progress bool
}

// New creates a Loader
func New(cfg *Config) *Loader {
	return &Loader{
		store:    cfg.Store,
		dataDir:  cfg.DataDir,
		log:      cfg.Logger,
		events:   cfg.Events,
		progress: cfg.Progress,
	}
}

// Rebuild loads every table in order. A failing table is reported and
// skipped; only context cancellation stops the run.
func (l *Loader) Rebuild(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{Tables: make([]TableResult, 0, len(store.Tables))}

	l.log.Info().Str("data_dir", l.dataDir).Str("db", l.store.Path()).Msg("rebuilding warehouse")

	var bar *progressbar.ProgressBar
	if l.progress {
		bar = progressbar.NewOptions(len(store.Tables),
			progressbar.OptionSetDescription("Loading"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	for _, t := range store.Tables {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if bar != nil {
			bar.Describe(fmt.Sprintf("Loading %-20s", t.Name))
		}

		tr := l.loadTable(ctx, t)
		result.Tables = append(result.Tables, tr)
		l.report(tr)

		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	result.Duration = time.Since(start)
	l.log.Info().
		Int("loaded", result.Count(OutcomeLoaded)).
		Int("skipped", result.Count(OutcomeSkipped)).
		Int("failed", result.Count(OutcomeFailed)).
		Int("rows", result.Rows()).
		Dur("duration", result.Duration).
		Msg("rebuild complete")
	return result, nil
}

func (l *Loader) report(tr TableResult) {
	ev := l.log.Info()
	switch tr.Outcome {
	case OutcomeFailed:
		ev = l.log.Error().Err(tr.Err)
	case OutcomeSkipped:
		ev = l.log.Warn().Err(tr.Err)
	}
	ev.Str("table", tr.Table).
		Str("file", tr.Path).
		Int("rows", tr.Rows).
		Str("outcome", string(tr.Outcome)).
		Msg("table processed")

	if err := l.events.LogRebuild(tr.Table, tr.Path, string(tr.Outcome), tr.Rows, tr.Duration, tr.Err); err != nil {
		l.log.Debug().Err(err).Msg("failed to write audit event")
	}
}

func (l *Loader) loadTable(ctx context.Context, t store.Table) TableResult {
	start := time.Now()
	path := filepath.Join(l.dataDir, t.FileName())
	tr := TableResult{Table: t.Name, Path: path}

	rows, err := l.readSource(path, t)
	if err != nil {
		tr.Err = err
		tr.Outcome = OutcomeFailed
		if errors.Is(err, util.ErrSourceMissing) {
			tr.Outcome = OutcomeSkipped
		}
		return tr
	}

	if t.Policy == store.PolicyAppendIfNonEmpty && len(rows) == 0 {
		tr.Outcome = OutcomeUnchanged
		return tr
	}

	err = l.store.Transaction(ctx, func(q *store.Queries) error {
		var err error
		switch t.Policy {
		case store.PolicyAppendIfNonEmpty:
			tr.Rows, err = q.UpsertRows(ctx, t, rows)
		default:
			tr.Rows, err = q.ReplaceRows(ctx, t, rows)
		}
		return err
	})
	tr.Duration = time.Since(start)
	if err != nil {
		tr.Rows = 0
		tr.Err = err
		tr.Outcome = OutcomeFailed
		return tr
	}
	tr.Outcome = OutcomeLoaded
	return tr
}

// readSource parses a table's source file into rows in canonical column order
func (l *Loader) readSource(path string, t store.Table) ([][]any, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", util.ErrSourceMissing, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: %s is empty", util.ErrMalformedHeader, path)
		}
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	index, err := l.mapHeader(header, t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var rows [][]any
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		row := make([]any, len(t.Columns))
		empty := true
		for i, col := range t.Columns {
			pos := index[i]
			if pos < 0 || pos >= len(record) {
				continue
			}
			v, err := cleanValue(record[pos], col.Kind)
			if err != nil {
				l.log.Warn().Err(err).
					Str("table", t.Name).
					Int("line", line).
					Str("column", col.Name).
					Msg("unparseable value stored as NULL")
				continue
			}
			if v != nil {
				empty = false
			}
			row[i] = v
		}
		if empty {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// mapHeader returns, for each table column, the position of its source
// header or -1 when an optional column is absent.
func (l *Loader) mapHeader(header []string, t store.Table) ([]int, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		key := strings.ToLower(h)
		if _, dup := positions[key]; !dup {
			positions[key] = i
		}
	}

	index := make([]int, len(t.Columns))
	used := make(map[int]bool, len(header))
	var missing []string
	for i, col := range t.Columns {
		index[i] = -1
		for _, name := range append([]string{col.Name}, col.Aliases...) {
			if pos, ok := positions[strings.ToLower(name)]; ok {
				index[i] = pos
				used[pos] = true
				break
			}
		}
		if index[i] < 0 && !col.Optional {
			missing = append(missing, col.Name)
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required column(s) %s", util.ErrMalformedHeader, strings.Join(missing, ", "))
	}

	for i, h := range header {
		if !used[i] {
			l.log.Debug().Str("table", t.Name).Str("column", h).Msg("ignoring unknown column")
		}
	}
	return index, nil
}
