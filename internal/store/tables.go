package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// ColumnKind selects how a source value is cleaned and stored
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindInteger
	KindBool
	KindURL
	KindGranularity
	KindTimestamp
	KindPlaylistRef // playlist URL, URI or id, stored as the bare id
)

// LoadPolicy selects how a rebuild materializes a table
type LoadPolicy string

const (
	// PolicyReplace deletes every row and inserts the full source
	PolicyReplace LoadPolicy = "replace"
	// PolicyAppendIfNonEmpty leaves the table alone for an empty source and
	// otherwise upserts on the primary key, keeping the newer row
	PolicyAppendIfNonEmpty LoadPolicy = "append-if-nonempty"
)

// Column describes one warehouse column as it appears in source files
type Column struct {
	Name     string
	Kind     ColumnKind
	Optional bool     // added after v1; older source files may omit it
	Aliases  []string // historical header names
}

// Table describes one warehouse table and its flat-file source
type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  []string
	Policy      LoadPolicy
	NewerColumn string // timestamp column deciding upsert conflicts
}

// FileName returns the source file name for the table
func (t Table) FileName() string {
	return t.Name + ".csv"
}

// ColumnNames returns the canonical column order
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Tables lists the warehouse tables in load order
var Tables = []Table{
	{
		Name: "DimMusicalWork",
		Columns: []Column{
			{Name: "WorkID"},
			{Name: "WorkType"},
			{Name: "Genre"},
			{Name: "WorkTitle"},
			{Name: "WorkDescription"},
		},
		PrimaryKey: []string{"WorkID"},
		Policy:     PolicyReplace,
	},
	{
		Name: "DimPerformer",
		Columns: []Column{
			{Name: "PerformerID"},
			{Name: "PerformerName"},
			{Name: "InstrumentOrRole"},
		},
		PrimaryKey: []string{"PerformerID"},
		Policy:     PolicyReplace,
	},
	{
		Name: "DimMovement",
		Columns: []Column{
			{Name: "MovementID"},
			{Name: "WorkID"},
			{Name: "MovementNumber", Kind: KindInteger},
			{Name: "MovementTitle"},
			{Name: "MovementDescription"},
		},
		PrimaryKey: []string{"MovementID"},
		Policy:     PolicyReplace,
	},
	{
		Name: "DimAlbum",
		Columns: []Column{
			{Name: "AlbumID"},
			{Name: "AlbumTitle"},
			{Name: "PerformerID"},
			{Name: "SpotifyURL", Kind: KindURL, Aliases: []string{"SpotifyURI"}},
			{Name: "SpotifyTitle", Optional: true},
			{Name: "TitleMatch", Kind: KindBool, Optional: true},
			{Name: "RecordingLabel", Optional: true},
			{Name: "SpotifyReleaseDate", Kind: KindInteger, Optional: true},
			{Name: "SpotifyGenre", Optional: true},
		},
		PrimaryKey: []string{"AlbumID"},
		Policy:     PolicyReplace,
	},
	{
		Name: "DimRecording",
		Columns: []Column{
			{Name: "RecordingID"},
			{Name: "AlbumID", Optional: true},
			{Name: "MovementID", Optional: true},
			{Name: "WorkID"},
			{Name: "PerformerID"},
			{Name: "SpotifyURL", Kind: KindURL, Aliases: []string{"SpotifyURI"}},
			{Name: "SpotifyTitle", Optional: true},
			{Name: "TitleMatch", Kind: KindBool, Optional: true},
		},
		PrimaryKey: []string{"RecordingID"},
		Policy:     PolicyReplace,
	},
	{
		Name: "DimJourney",
		Columns: []Column{
			{Name: "JourneyID"},
			{Name: "JourneyName"},
			{Name: "JourneyDescription"},
			{Name: "CreatorName"},
			{Name: "Granularity", Kind: KindGranularity, Optional: true},
			{Name: "Theme", Optional: true},
		},
		PrimaryKey: []string{"JourneyID"},
		Policy:     PolicyReplace,
	},
	{
		Name: "FactJourneyStep",
		Columns: []Column{
			{Name: "StepID"},
			{Name: "JourneyID"},
			{Name: "RecordingID"},
			{Name: "AlbumID", Optional: true},
			{Name: "StepOrder", Kind: KindInteger},
			{Name: "ActTitle", Optional: true},
			{Name: "CurationNotes", Optional: true},
		},
		PrimaryKey: []string{"StepID"},
		Policy:     PolicyReplace,
	},
	{
		Name: "BridgeAlbumMovement",
		Columns: []Column{
			{Name: "AlbumID", Aliases: []string{"album_id"}},
			{Name: "MovementID", Aliases: []string{"movement_id"}},
			{Name: "RecordingID", Aliases: []string{"recording_id"}},
			{Name: "TrackNumber", Kind: KindInteger, Aliases: []string{"track_number"}},
		},
		PrimaryKey: []string{"AlbumID", "MovementID", "RecordingID"},
		Policy:     PolicyReplace,
	},
	{
		Name: "DimPlaylist",
		Columns: []Column{
			{Name: "JourneyID"},
			{Name: "ServiceID"},
			{Name: "PlaylistID", Kind: KindPlaylistRef, Aliases: []string{"SpotifyPlaylistURL", "SpotifyPlaylistID"}},
			{Name: "PlaylistTitle", Optional: true, Aliases: []string{"SpotifyPlaylistTitle"}},
			{Name: "LastUpdatedUTC", Kind: KindTimestamp, Aliases: []string{"LastUpdated"}},
		},
		PrimaryKey:  []string{"JourneyID", "ServiceID"},
		Policy:      PolicyAppendIfNonEmpty,
		NewerColumn: "LastUpdatedUTC",
	},
}

// LookupTable returns the table definition by name
func LookupTable(name string) (Table, bool) {
	for _, t := range Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Table{}, false
}

func (t Table) insertSQL() string {
	cols := t.ColumnNames()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.Name, strings.Join(cols, ", "), placeholders)
}

// upsertSQL keeps the existing row unless the incoming one is newer.
func (t Table) upsertSQL() string {
	isKey := make(map[string]bool, len(t.PrimaryKey))
	for _, k := range t.PrimaryKey {
		isKey[k] = true
	}
	var sets []string
	for _, c := range t.ColumnNames() {
		if !isKey[c] {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}
	q := fmt.Sprintf("%s ON CONFLICT(%s) DO UPDATE SET %s",
		t.insertSQL(), strings.Join(t.PrimaryKey, ", "), strings.Join(sets, ", "))
	if t.NewerColumn != "" {
		q += fmt.Sprintf(" WHERE COALESCE(julianday(excluded.%[1]s), 0) > COALESCE(julianday(%[2]s.%[1]s), 0)",
			t.NewerColumn, t.Name)
	}
	return q
}

// ReplaceRows deletes every row of t and inserts rows in column order
func (q *Queries) ReplaceRows(ctx context.Context, t Table, rows [][]any) (int, error) {
	if _, err := q.ext.ExecContext(ctx, "DELETE FROM "+t.Name); err != nil {
		return 0, fmt.Errorf("failed to clear %s: %w", t.Name, err)
	}
	return q.execRows(ctx, t, t.insertSQL(), rows)
}

// UpsertRows inserts rows, resolving primary key conflicts per the table's policy
func (q *Queries) UpsertRows(ctx context.Context, t Table, rows [][]any) (int, error) {
	return q.execRows(ctx, t, t.upsertSQL(), rows)
}

func (q *Queries) execRows(ctx context.Context, t Table, query string, rows [][]any) (int, error) {
	for i, row := range rows {
		if _, err := q.ext.ExecContext(ctx, query, row...); err != nil {
			return i, fmt.Errorf("failed to insert row %d into %s: %w", i+1, t.Name, err)
		}
	}
	return len(rows), nil
}

// ExportRows streams every row of t in canonical column order, NULL as invalid
func (q *Queries) ExportRows(ctx context.Context, t Table, fn func(row []sql.NullString) error) (int, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(t.ColumnNames(), ", "), t.Name, strings.Join(t.PrimaryKey, ", "))
	rows, err := q.ext.QueryxContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to query %s: %w", t.Name, err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		values := make([]sql.NullString, len(t.Columns))
		dest := make([]any, len(values))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return count, fmt.Errorf("failed to scan %s row: %w", t.Name, err)
		}
		if err := fn(values); err != nil {
			return count, err
		}
		count++
	}
	return count, rows.Err()
}

// CountRows returns the number of rows in a warehouse table
func (q *Queries) CountRows(ctx context.Context, table string) (int, error) {
	t, ok := LookupTable(table)
	if !ok {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var count int
	if err := sqlx.GetContext(ctx, q.ext, &count, "SELECT COUNT(*) FROM "+t.Name); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", t.Name, err)
	}
	return count, nil
}

// TableCounts returns row counts for every warehouse table in load order
func (q *Queries) TableCounts(ctx context.Context) ([]TableCount, error) {
	counts := make([]TableCount, 0, len(Tables))
	for _, t := range Tables {
		n, err := q.CountRows(ctx, t.Name)
		if err != nil {
			return nil, err
		}
		counts = append(counts, TableCount{Table: t.Name, Rows: n})
	}
	return counts, nil
}
