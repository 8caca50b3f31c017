package loader

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/franz/music-journeys/internal/store"
)

// BackupResult is the number of rows exported per table, in load order
type BackupResult struct {
	Tables []TableResult
}

// Backup exports every warehouse table to its source file in the data
// directory. Each file is written beside the target and renamed into place.
func (l *Loader) Backup(ctx context.Context) (*BackupResult, error) {
	if err := os.MkdirAll(l.dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	result := &BackupResult{}
	q := l.store.Queries()
	for _, t := range store.Tables {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		path := filepath.Join(l.dataDir, t.FileName())
		rows, err := exportTable(ctx, q, t, path)
		tr := TableResult{Table: t.Name, Path: path, Rows: rows, Outcome: OutcomeLoaded}
		if err != nil {
			tr.Outcome, tr.Err, tr.Rows = OutcomeFailed, err, 0
			l.log.Error().Err(err).Str("table", t.Name).Str("file", path).Msg("backup failed")
		} else {
			l.log.Info().Str("table", t.Name).Str("file", path).Int("rows", rows).Msg("table exported")
		}
		if err := l.events.LogBackup(t.Name, path, tr.Rows, tr.Err); err != nil {
			l.log.Debug().Err(err).Msg("failed to write audit event")
		}
		result.Tables = append(result.Tables, tr)
	}
	return result, nil
}

func exportTable(ctx context.Context, q *store.Queries, t store.Table, path string) (int, error) {
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	defer os.Remove(tmp)

	w := csv.NewWriter(f)
	if err := w.Write(t.ColumnNames()); err != nil {
		f.Close()
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(t.Columns))
	n, err := q.ExportRows(ctx, t, func(row []sql.NullString) error {
		for i, v := range row {
			record[i] = v.String
		}
		return w.Write(record)
	})
	if err != nil {
		f.Close()
		return 0, err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return 0, fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return n, nil
}
