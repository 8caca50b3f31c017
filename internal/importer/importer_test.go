package importer

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/franz/music-journeys/internal/report"
	"github.com/franz/music-journeys/internal/spotify"
	"github.com/franz/music-journeys/internal/spotify/spotifytest"
	"github.com/franz/music-journeys/internal/store"
	"github.com/franz/music-journeys/internal/util"
)

const owner = "curator"

var quartet = spotify.Artist{ID: spotifytest.ID("alban"), Name: "Alban Berg Quartett", Type: "artist"}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "warehouse.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fixture registers two albums and a playlist of three tracks, two from the
// first album, then returns the fake.
func fixture(t *testing.T) (*spotifytest.Fake, []spotify.Track) {
	t.Helper()
	fake := spotifytest.New(owner)

	late := spotifytest.NewAlbum("late", "Late Quartets", quartet)
	late.Label = "EMI"
	late.ReleaseDate = "1983-05-01"
	late.Genres = []string{"classical", "chamber"}
	early := spotifytest.NewAlbum("early", "Early Quartets", quartet)

	t1 := spotifytest.NewTrack("op131", "String Quartet No. 14: I. Adagio", 1, late.SimpleAlbum, quartet)
	t2 := spotifytest.NewTrack("op132", "String Quartet No. 15: III. Molto adagio", 2, late.SimpleAlbum, quartet)
	t3 := spotifytest.NewTrack("op18", "String Quartet No. 1: I. Allegro", 1, early.SimpleAlbum, quartet)
	fake.AddAlbum(late, t1, t2)
	fake.AddAlbum(early, t3)

	tracks := []spotify.Track{t1, t2, t3}
	fake.AddPlaylist(spotifytest.ID("pl1"), "Late Beethoven", "A walk through the quartets", owner, tracks...)
	return fake, tracks
}

func newImporter(st *store.Store, fake *spotifytest.Fake) *Importer {
	return New(&Config{
		Store:  st,
		Remote: fake,
		User:   fake.User,
		Events: report.NullLogger(),
	})
}

func TestImportTrackGranularity(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	fake, tracks := fixture(t)

	res, err := newImporter(st, fake).Import(ctx, spotify.Ref{Kind: spotify.KindPlaylist, ID: spotifytest.ID("pl1")}.URL(), Options{JourneyID: "J1"})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Steps != 3 || res.Skipped != 0 {
		t.Errorf("steps = %d, skipped = %d, want 3, 0", res.Steps, res.Skipped)
	}
	if !res.Verification.Passed {
		t.Errorf("verification failed: %+v", res.Verification)
	}

	q := st.Queries()
	j, err := q.GetJourney(ctx, "J1")
	if err != nil || j == nil {
		t.Fatalf("GetJourney() = %v, %v", j, err)
	}
	if j.Name != "Late Beethoven" || j.CreatorName != owner || j.Granularity != store.GranularityTrack {
		t.Errorf("journey = %+v", j)
	}

	steps, err := q.ListSteps(ctx, "J1")
	if err != nil {
		t.Fatalf("ListSteps() error = %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("got %d steps, want 3", len(steps))
	}
	for i, s := range steps {
		if s.Order != i+1 || s.ID != store.StepID("J1", i+1) {
			t.Errorf("step %d = %+v", i, s)
		}
		want := util.DeriveKey(util.RecordingKeyPrefix, tracks[i].ID)
		if s.RecordingID != want || s.AlbumID != "" {
			t.Errorf("step %d refs = %q/%q, want recording %q", i, s.RecordingID, s.AlbumID, want)
		}
	}

	perf, err := q.PerformerByName(ctx, "Alban Berg Quartett")
	if err != nil || perf == nil {
		t.Fatalf("PerformerByName() = %v, %v", perf, err)
	}
	albumID := util.DeriveKey(util.AlbumKeyPrefix, "Late Quartets", perf.ID)
	album, err := q.AlbumByID(ctx, albumID)
	if err != nil || album == nil {
		t.Fatalf("AlbumByID() = %v, %v", album, err)
	}
	if album.RecordingLabel != "EMI" || album.ReleaseYear != 1983 || album.Genre == "" {
		t.Errorf("album = %+v", album)
	}
	if album.TitleMatch != (sql.NullBool{Bool: true, Valid: true}) {
		t.Errorf("album TitleMatch = %+v, want true", album.TitleMatch)
	}

	rec, err := q.RecordingByID(ctx, steps[0].RecordingID)
	if err != nil || rec == nil {
		t.Fatalf("RecordingByID() = %v, %v", rec, err)
	}
	if rec.AlbumID != albumID || rec.PerformerID != perf.ID || rec.SpotifyURL != tracks[0].URL() {
		t.Errorf("recording = %+v", rec)
	}
}

func TestImportAlbumGranularityDeduplicates(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	fake, _ := fixture(t)

	res, err := newImporter(st, fake).Import(ctx, spotifytest.ID("pl1"), Options{JourneyID: "J2", Granularity: store.GranularityAlbum})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Steps != 2 {
		t.Fatalf("steps = %d, want 2 (one per album)", res.Steps)
	}

	steps, err := st.Queries().ListSteps(ctx, "J2")
	if err != nil {
		t.Fatalf("ListSteps() error = %v", err)
	}
	for _, s := range steps {
		if s.AlbumID == "" || s.RecordingID != "" {
			t.Errorf("album step = %+v", s)
		}
	}
	if steps[0].AlbumID == steps[1].AlbumID {
		t.Errorf("duplicate album step %s", steps[0].AlbumID)
	}
}

func TestImportIsRepeatable(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	fake, _ := fixture(t)
	im := newImporter(st, fake)

	first, err := im.Import(ctx, spotifytest.ID("pl1"), Options{JourneyID: "J1"})
	if err != nil {
		t.Fatalf("first Import() error = %v", err)
	}
	second, err := im.Import(ctx, spotifytest.ID("pl1"), Options{JourneyID: "J1"})
	if err != nil {
		t.Fatalf("second Import() error = %v", err)
	}
	if first.Steps != second.Steps || !second.Verification.Passed {
		t.Errorf("second import = %+v", second)
	}

	counts := map[string]int{}
	for _, table := range []string{"DimPerformer", "DimAlbum", "DimRecording", "FactJourneyStep"} {
		n, err := st.Queries().CountRows(ctx, table)
		if err != nil {
			t.Fatalf("CountRows(%s) error = %v", table, err)
		}
		counts[table] = n
	}
	want := map[string]int{"DimPerformer": 1, "DimAlbum": 2, "DimRecording": 3, "FactJourneyStep": 3}
	for table, n := range want {
		if counts[table] != n {
			t.Errorf("%s rows = %d, want %d", table, counts[table], n)
		}
	}
}

func TestImportSkipsLocalAndMissingItems(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	fake, _ := fixture(t)

	p := fake.Playlists[spotifytest.ID("pl1")]
	p.Items = append(p.Items,
		spotify.PlaylistItem{Track: nil},
		spotify.PlaylistItem{Track: &spotify.Track{Name: "bootleg.mp3", IsLocal: true, URI: "spotify:local:::bootleg.mp3"}},
	)

	res, err := newImporter(st, fake).Import(ctx, spotifytest.ID("pl1"), Options{JourneyID: "J1"})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Steps != 3 || res.Skipped != 2 {
		t.Errorf("steps = %d, skipped = %d, want 3, 2", res.Steps, res.Skipped)
	}
}

func TestImportRollsBackOnRemoteFailure(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	fake, _ := fixture(t)
	im := newImporter(st, fake)

	if _, err := im.Import(ctx, spotifytest.ID("pl1"), Options{JourneyID: "J1"}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	fake.Errors["GetAlbum "+spotifytest.ID("early")] = spotifytest.ServerError("GetAlbum", spotifytest.ID("early"))
	fake.Playlists[spotifytest.ID("pl1")].Name = "Renamed"

	_, err := im.Import(ctx, spotifytest.ID("pl1"), Options{JourneyID: "J1"})
	if !errors.Is(err, util.ErrTransaction) || !errors.Is(err, util.ErrRemoteRequest) {
		t.Fatalf("Import() error = %v, want transaction and remote errors", err)
	}

	j, err := st.Queries().GetJourney(ctx, "J1")
	if err != nil {
		t.Fatalf("GetJourney() error = %v", err)
	}
	if j.Name != "Late Beethoven" {
		t.Errorf("journey name = %q, want the pre-failure value", j.Name)
	}
	n, err := st.Queries().CountRows(ctx, "FactJourneyStep")
	if err != nil || n != 3 {
		t.Errorf("steps after rollback = %d, %v, want 3", n, err)
	}
}

// flakyAlbums serves the first n album lookups and fails the rest
type flakyAlbums struct {
	*spotifytest.Fake
	n     int
	calls int
}

func (f *flakyAlbums) GetAlbum(ctx context.Context, id string) (*spotify.Album, error) {
	f.calls++
	if f.calls > f.n {
		return nil, spotifytest.ServerError("GetAlbum", id)
	}
	return f.Fake.GetAlbum(ctx, id)
}

func TestImportCommitsWhenVerificationLookupFails(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	fake, tracks := fixture(t)
	remote := &flakyAlbums{Fake: fake, n: len(tracks)}

	var buf bytes.Buffer
	im := New(&Config{
		Store:  st,
		Remote: remote,
		User:   fake.User,
		Logger: zerolog.New(&buf),
		Events: report.NullLogger(),
	})

	res, err := im.Import(ctx, spotifytest.ID("pl1"), Options{JourneyID: "J1"})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Steps != 3 || res.Verification.Passed {
		t.Errorf("result = %+v, want 3 steps and an unverified journey", res)
	}
	if remote.calls <= len(tracks) {
		t.Errorf("GetAlbum calls = %d, want a second round", remote.calls)
	}
	n, err := st.Queries().CountRows(ctx, "FactJourneyStep")
	if err != nil || n != 3 {
		t.Errorf("persisted steps = %d, %v, want 3", n, err)
	}
	if !strings.Contains(buf.String(), util.ErrIntegrityMismatch.Error()) {
		t.Errorf("expected an integrity warning, got:\n%s", buf.String())
	}
}

func TestVerifyLogsEachMismatch(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	fake, tracks := fixture(t)
	im := newImporter(st, fake)

	if _, err := im.Import(ctx, spotifytest.ID("pl1"), Options{JourneyID: "J1"}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	var buf bytes.Buffer
	v, err := im.verify(ctx, st.Queries(), "J1", tracks[:2], store.GranularityTrack, zerolog.New(&buf))
	if err != nil {
		t.Fatalf("verify() error = %v", err)
	}
	if v.Passed || len(v.Mismatches) != 1 || v.Mismatches[0].Position != 3 {
		t.Fatalf("verification = %+v, want one mismatch at position 3", v)
	}
	out := buf.String()
	for _, want := range []string{`"position":3`, `"stored":"` + v.Mismatches[0].Stored + `"`, `"expected":""`} {
		if !strings.Contains(out, want) {
			t.Errorf("log lacks %s:\n%s", want, out)
		}
	}
}

func TestImportRejectsBadReference(t *testing.T) {
	st := openTestStore(t)
	fake, _ := fixture(t)
	_, err := newImporter(st, fake).Import(context.Background(), "https://example.com/playlist/x", Options{})
	if !errors.Is(err, util.ErrInvalidReference) {
		t.Errorf("Import() error = %v, want ErrInvalidReference", err)
	}
}

func TestImportLinkRequiresOwnership(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	fake, tracks := fixture(t)
	fake.AddPlaylist(spotifytest.ID("foreign"), "Someone Else's", "", "stranger", tracks...)
	im := newImporter(st, fake)

	res, err := im.Import(ctx, spotifytest.ID("pl1"), Options{JourneyID: "J1", Link: true})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if !res.Linked {
		t.Error("owned playlist was not linked")
	}
	x, err := st.Queries().GetXRef(ctx, "J1", store.ServiceSpotify)
	if err != nil || x == nil || x.PlaylistID != spotifytest.ID("pl1") {
		t.Errorf("GetXRef() = %+v, %v", x, err)
	}

	res, err = im.Import(ctx, spotifytest.ID("foreign"), Options{JourneyID: "J9", Link: true})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Linked {
		t.Error("foreign playlist was linked")
	}
	if x, _ := st.Queries().GetXRef(ctx, "J9", store.ServiceSpotify); x != nil {
		t.Errorf("unexpected xref %+v", x)
	}
}

func TestImportAlbumTitleCollision(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	fake := spotifytest.New(owner)

	// two remote albums with the same title and performer
	a := spotifytest.NewAlbum("complete1", "Complete Quartets", quartet)
	b := spotifytest.NewAlbum("complete2", "Complete Quartets", quartet)
	ta := spotifytest.NewTrack("ta", "Quartet No. 1", 1, a.SimpleAlbum, quartet)
	tb := spotifytest.NewTrack("tb", "Quartet No. 9", 1, b.SimpleAlbum, quartet)
	fake.AddAlbum(a, ta)
	fake.AddAlbum(b, tb)
	fake.AddPlaylist(spotifytest.ID("box"), "Box", "", owner, ta, tb)

	res, err := newImporter(st, fake).Import(ctx, spotifytest.ID("box"), Options{JourneyID: "J3", Granularity: store.GranularityAlbum})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Steps != 2 || !res.Verification.Passed {
		t.Errorf("result = %+v", res)
	}
	n, err := st.Queries().CountRows(ctx, "DimAlbum")
	if err != nil || n != 2 {
		t.Errorf("DimAlbum rows = %d, %v, want 2", n, err)
	}
}

func TestCompareSteps(t *testing.T) {
	steps := []store.JourneyStep{{RecordingID: "R1"}, {AlbumID: "A2"}, {RecordingID: "R3"}}

	if v := compareSteps(steps, []string{"R1", "A2", "R3"}); !v.Passed || len(v.Mismatches) != 0 {
		t.Errorf("identical = %+v", v)
	}

	v := compareSteps(steps, []string{"R1", "R9"})
	if v.Passed {
		t.Fatal("expected mismatch")
	}
	want := []Mismatch{{2, "A2", "R9"}, {3, "R3", ""}}
	if len(v.Mismatches) != len(want) {
		t.Fatalf("mismatches = %+v, want %+v", v.Mismatches, want)
	}
	for i := range want {
		if v.Mismatches[i] != want[i] {
			t.Errorf("mismatch %d = %+v, want %+v", i, v.Mismatches[i], want[i])
		}
	}
}
