package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/franz/music-journeys/internal/store"
	"github.com/franz/music-journeys/internal/util"
)

const albumRef = "https://open.spotify.com/album/4uLU6hMCjMI75M1A2tKUQC"

func setupLoader(t *testing.T) (*Loader, *store.Store, string) {
	t.Helper()
	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, "data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	st, err := store.Open(filepath.Join(tmpDir, "dwh.db"))
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	l := New(&Config{Store: st, DataDir: dataDir, Logger: util.NopLogger()})
	return l, st, dataDir
}

func writeSource(t *testing.T, dataDir, table, content string) {
	t.Helper()
	path := filepath.Join(dataDir, table+".csv")
	if err := os.WriteFile(path, []byte(strings.TrimLeft(content, "\n")), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func countRows(t *testing.T, st *store.Store, table string) int {
	t.Helper()
	n, err := st.Queries().CountRows(context.Background(), table)
	if err != nil {
		t.Fatalf("CountRows(%s) failed: %v", table, err)
	}
	return n
}

func outcomeOf(r *Result, table string) TableResult {
	for _, tr := range r.Tables {
		if tr.Table == table {
			return tr
		}
	}
	return TableResult{}
}

func TestRebuildLoadsAndSkips(t *testing.T) {
	l, st, dataDir := setupLoader(t)
	ctx := context.Background()

	writeSource(t, dataDir, "DimPerformer", `
PerformerID,PerformerName,InstrumentOrRole
P1,Alban Berg Quartett,Ensemble
P2,Maurizio Pollini,Piano
`)
	writeSource(t, dataDir, "DimAlbum", `
AlbumID,AlbumTitle,PerformerID,SpotifyURI,Extra
A1,Late Quartets,P1, `+albumRef+"\u200b"+` ,ignored
A2,Nocturnes,P2,,ignored
`)

	result, err := l.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	if got := outcomeOf(result, "DimPerformer"); got.Outcome != OutcomeLoaded || got.Rows != 2 {
		t.Errorf("DimPerformer = %+v, want loaded with 2 rows", got)
	}
	if got := outcomeOf(result, "DimAlbum"); got.Outcome != OutcomeLoaded || got.Rows != 2 {
		t.Errorf("DimAlbum = %+v, want loaded with 2 rows", got)
	}
	missing := outcomeOf(result, "DimMusicalWork")
	if missing.Outcome != OutcomeSkipped || !errors.Is(missing.Err, util.ErrSourceMissing) {
		t.Errorf("DimMusicalWork = %+v, want skipped with ErrSourceMissing", missing)
	}
	if got := result.Count(OutcomeLoaded); got != 2 {
		t.Errorf("loaded tables = %d, want 2", got)
	}

	a1, err := st.Queries().AlbumByID(ctx, "A1")
	if err != nil || a1 == nil {
		t.Fatalf("AlbumByID(A1) = %v, %v", a1, err)
	}
	if a1.SpotifyURL != albumRef {
		t.Errorf("SpotifyURL = %q, want cleaned %q", a1.SpotifyURL, albumRef)
	}
	a2, _ := st.Queries().AlbumByID(ctx, "A2")
	if a2 == nil || a2.SpotifyURL != "" {
		t.Errorf("A2 = %+v, want empty SpotifyURL", a2)
	}
}

func TestRebuildMalformedHeaderFailsOnlyThatTable(t *testing.T) {
	l, st, dataDir := setupLoader(t)

	writeSource(t, dataDir, "DimPerformer", `
PerformerID,PerformerName,InstrumentOrRole
P1,Alban Berg Quartett,Ensemble
`)
	writeSource(t, dataDir, "DimAlbum", `
AlbumID,PerformerID
A1,P1
`)

	result, err := l.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	album := outcomeOf(result, "DimAlbum")
	if album.Outcome != OutcomeFailed || !errors.Is(album.Err, util.ErrMalformedHeader) {
		t.Errorf("DimAlbum = %+v, want failed with ErrMalformedHeader", album)
	}
	if !strings.Contains(album.Err.Error(), "AlbumTitle") {
		t.Errorf("error %q does not name the missing column", album.Err)
	}
	if got := countRows(t, st, "DimPerformer"); got != 1 {
		t.Errorf("DimPerformer rows = %d, want 1", got)
	}
}

func TestRebuildReplacesRows(t *testing.T) {
	l, st, dataDir := setupLoader(t)
	ctx := context.Background()

	writeSource(t, dataDir, "DimMusicalWork", `
WorkID,WorkType,Genre,WorkTitle,WorkDescription
W1,Quartet,Chamber,String Quartet No. 13,
W2,Sonata,Piano,Piano Sonata No. 32,
`)
	if _, err := l.Rebuild(ctx); err != nil {
		t.Fatalf("first Rebuild failed: %v", err)
	}

	writeSource(t, dataDir, "DimMusicalWork", `
WorkID,WorkType,Genre,WorkTitle,WorkDescription
W3,Symphony,Orchestral,Symphony No. 9,
`)
	if _, err := l.Rebuild(ctx); err != nil {
		t.Fatalf("second Rebuild failed: %v", err)
	}

	if got := countRows(t, st, "DimMusicalWork"); got != 1 {
		t.Errorf("DimMusicalWork rows = %d, want 1 after replace", got)
	}
}

func TestRebuildFailedTransactionRollsBack(t *testing.T) {
	l, st, dataDir := setupLoader(t)
	ctx := context.Background()

	writeSource(t, dataDir, "DimPerformer", `
PerformerID,PerformerName,InstrumentOrRole
P1,Alban Berg Quartett,Ensemble
`)
	if _, err := l.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	// duplicate names violate the UNIQUE constraint halfway through the load
	writeSource(t, dataDir, "DimPerformer", `
PerformerID,PerformerName,InstrumentOrRole
P2,Emerson String Quartet,Ensemble
P3,Emerson String Quartet,Ensemble
`)
	result, err := l.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	got := outcomeOf(result, "DimPerformer")
	if got.Outcome != OutcomeFailed || !errors.Is(got.Err, util.ErrTransaction) {
		t.Errorf("DimPerformer = %+v, want failed with ErrTransaction", got)
	}
	p, _ := st.Queries().PerformerByID(ctx, "P1")
	if p == nil {
		t.Error("P1 lost; the failed load was not rolled back")
	}
}

func TestRebuildPlaylistKeepsNewerRows(t *testing.T) {
	l, st, dataDir := setupLoader(t)
	ctx := context.Background()
	q := st.Queries()

	synced := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for _, x := range []store.PlaylistXRef{
		{JourneyID: "J1", ServiceID: store.ServiceSpotify, PlaylistID: "PL-new", LastUpdated: synced},
		{JourneyID: "J2", ServiceID: store.ServiceSpotify, PlaylistID: "PL-old", LastUpdated: synced},
	} {
		if err := q.UpsertXRef(ctx, &x); err != nil {
			t.Fatalf("UpsertXRef failed: %v", err)
		}
	}

	writeSource(t, dataDir, "DimPlaylist", `
JourneyID,ServiceID,SpotifyPlaylistURL,LastUpdated
J1,Spotify,PL-stale,2024-01-01 08:00:00
J2,Spotify,PL-newer,2025-07-01T00:00:00Z
J3,Spotify,PL-3,2025-01-01T00:00:00Z
`)
	result, err := l.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if got := outcomeOf(result, "DimPlaylist"); got.Outcome != OutcomeLoaded {
		t.Fatalf("DimPlaylist = %+v, want loaded", got)
	}

	want := map[string]string{"J1": "PL-new", "J2": "PL-newer", "J3": "PL-3"}
	for journey, playlist := range want {
		x, err := q.GetXRef(ctx, journey, store.ServiceSpotify)
		if err != nil || x == nil {
			t.Fatalf("GetXRef(%s) = %v, %v", journey, x, err)
		}
		if x.PlaylistID != playlist {
			t.Errorf("%s PlaylistID = %q, want %q", journey, x.PlaylistID, playlist)
		}
	}

	// header-only source leaves the table untouched
	writeSource(t, dataDir, "DimPlaylist", "JourneyID,ServiceID,PlaylistID,LastUpdatedUTC\n")
	result, err = l.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if got := outcomeOf(result, "DimPlaylist"); got.Outcome != OutcomeUnchanged {
		t.Errorf("DimPlaylist = %+v, want unchanged", got)
	}
	if got := countRows(t, st, "DimPlaylist"); got != 3 {
		t.Errorf("DimPlaylist rows = %d, want 3", got)
	}
}

func TestRebuildParsesLegacyNumbers(t *testing.T) {
	l, st, dataDir := setupLoader(t)
	ctx := context.Background()

	writeSource(t, dataDir, "DimJourney", `
JourneyID,JourneyName,JourneyDescription,CreatorName,Granularity
J1,Late Beethoven,,Franz,track
`)
	writeSource(t, dataDir, "FactJourneyStep", `
StepID,JourneyID,RecordingID,StepOrder
J1-001,J1,R1,1.0
J1-002,J1,R2,2
J1-003,J1,R3,two
`)
	if _, err := l.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	j, err := st.Queries().GetJourney(ctx, "J1")
	if err != nil || j == nil {
		t.Fatalf("GetJourney = %v, %v", j, err)
	}
	if j.Granularity != store.GranularityTrack {
		t.Errorf("Granularity = %q, want Track", j.Granularity)
	}

	// the unparseable order becomes NULL and violates NOT NULL, failing the table
	result, _ := l.Rebuild(ctx)
	if got := outcomeOf(result, "FactJourneyStep"); got.Outcome != OutcomeFailed {
		t.Errorf("FactJourneyStep = %+v, want failed", got)
	}

	writeSource(t, dataDir, "FactJourneyStep", `
StepID,JourneyID,RecordingID,StepOrder
J1-001,J1,R1,1.0
J1-002,J1,R2,2
`)
	if _, err := l.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	steps, err := st.Queries().ListSteps(ctx, "J1")
	if err != nil {
		t.Fatalf("ListSteps failed: %v", err)
	}
	if len(steps) != 2 || steps[0].Order != 1 || steps[1].Order != 2 {
		t.Errorf("steps = %+v, want orders 1, 2", steps)
	}
}

func TestBackupRoundTrip(t *testing.T) {
	l, st, dataDir := setupLoader(t)
	ctx := context.Background()

	writeSource(t, dataDir, "DimPerformer", `
PerformerID,PerformerName,InstrumentOrRole
P1,"Quartetto Italiano, The",Ensemble
`)
	writeSource(t, dataDir, "DimAlbum", `
AlbumID,AlbumTitle,PerformerID,SpotifyURL,TitleMatch,SpotifyReleaseDate
A1,Late Quartets,P1,`+albumRef+`,yes,1968.0
`)
	writeSource(t, dataDir, "DimPlaylist", `
JourneyID,ServiceID,PlaylistID,LastUpdatedUTC
J1,Spotify,PL1,2025-06-01T12:00:00Z
`)
	first, err := l.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	backup, err := l.Backup(ctx)
	if err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	if len(backup.Tables) != len(store.Tables) {
		t.Fatalf("backup tables = %d, want %d", len(backup.Tables), len(store.Tables))
	}

	f, err := os.Open(filepath.Join(dataDir, "DimAlbum.csv"))
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	records, err := csv.NewReader(f).ReadAll()
	f.Close()
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	album, _ := store.LookupTable("DimAlbum")
	if strings.Join(records[0], ",") != strings.Join(album.ColumnNames(), ",") {
		t.Errorf("header = %v, want canonical order", records[0])
	}
	row := strings.Join(records[1], ",")
	if row != "A1,Late Quartets,P1,"+albumRef+",,1,,1968," {
		t.Errorf("row = %q", row)
	}

	second, err := l.Rebuild(ctx)
	if err != nil {
		t.Fatalf("second Rebuild failed: %v", err)
	}
	for i := range first.Tables {
		if first.Tables[i].Rows != second.Tables[i].Rows {
			t.Errorf("%s rows %d -> %d after round trip",
				first.Tables[i].Table, first.Tables[i].Rows, second.Tables[i].Rows)
		}
	}
	if got := countRows(t, st, "DimPerformer"); got != 1 {
		t.Errorf("DimPerformer rows = %d, want 1", got)
	}
}
