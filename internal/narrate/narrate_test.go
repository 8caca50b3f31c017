package narrate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franz/music-journeys/internal/report"
	"github.com/franz/music-journeys/internal/store"
	"github.com/franz/music-journeys/internal/util"
)

type fakeGenerator struct {
	prompt string
	reply  string
	err    error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func setup(t *testing.T, granularity store.Granularity) (*store.Store, string) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "warehouse.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	q := st.Queries()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(q.UpsertPerformer(ctx, &store.Performer{ID: "P1", Name: "Alban Berg Quartett"}))
	must(q.UpsertAlbum(ctx, &store.Album{ID: "A1", Title: "Late Quartets", PerformerID: "P1", RecordingLabel: "EMI", ReleaseYear: 1983,
		SpotifyURL: "https://open.spotify.com/album/4uLU6hMCjMI75M1A2tKUQC"}))
	must(q.UpsertRecording(ctx, &store.Recording{ID: "R1", AlbumID: "A1", PerformerID: "P1", SpotifyTitle: "Cavatina",
		SpotifyURL: "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC"}))
	must(q.UpsertJourney(ctx, &store.Journey{ID: "J1", Name: "Late Beethoven", Description: "Quartets", Granularity: granularity}))

	step := &store.JourneyStep{ID: store.StepID("J1", 1), JourneyID: "J1", Order: 1, CurationNotes: "Listen for the sotto voce"}
	if granularity == store.GranularityAlbum {
		step.AlbumID = "A1"
	} else {
		step.RecordingID = "R1"
	}
	must(q.InsertStep(ctx, step))
	return st, t.TempDir()
}

func TestGenerateTrackJourney(t *testing.T) {
	st, dir := setup(t, store.GranularityTrack)
	gen := &fakeGenerator{reply: "  A quiet opening.\n"}
	n := New(&Config{Store: st, Generator: gen, JourneysDir: dir, Events: report.NullLogger()})

	path, err := n.Generate(context.Background(), "J1")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if path != filepath.Join(dir, "J1.md") {
		t.Errorf("path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), "# Late Beethoven\n\nA quiet opening.\n"; got != want {
		t.Errorf("markdown = %q, want %q", got, want)
	}
	if _, err := os.Stat(path + ".part"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	for _, want := range []string{"Journey: Late Beethoven", "1. Cavatina", "Performer: Alban Berg Quartett",
		"Label: EMI", "Released: 1983", "Curator notes: Listen for the sotto voce", "open.spotify.com/track/"} {
		if !strings.Contains(gen.prompt, want) {
			t.Errorf("prompt lacks %q:\n%s", want, gen.prompt)
		}
	}
}

func TestGenerateAlbumJourney(t *testing.T) {
	st, dir := setup(t, store.GranularityAlbum)
	gen := &fakeGenerator{reply: "Albums."}
	n := New(&Config{Store: st, Generator: gen, JourneysDir: dir})

	if _, err := n.Generate(context.Background(), "J1"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.Contains(gen.prompt, "1. Late Quartets") || !strings.Contains(gen.prompt, "open.spotify.com/album/") {
		t.Errorf("prompt = %s", gen.prompt)
	}
}

func TestGenerateCustomTemplate(t *testing.T) {
	st, dir := setup(t, store.GranularityTrack)
	tmpl := filepath.Join(t.TempDir(), "prompt.md")
	if err := os.WriteFile(tmpl, []byte("{{.Journey.ID}}:{{len .Steps}}"), 0644); err != nil {
		t.Fatal(err)
	}
	gen := &fakeGenerator{reply: "ok"}
	n := New(&Config{Store: st, Generator: gen, JourneysDir: dir, TemplatePath: tmpl})

	if _, err := n.Generate(context.Background(), "J1"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if gen.prompt != "J1:1" {
		t.Errorf("prompt = %q", gen.prompt)
	}
}

func TestGenerateErrors(t *testing.T) {
	st, dir := setup(t, store.GranularityTrack)

	n := New(&Config{Store: st, Generator: &fakeGenerator{reply: "x"}, JourneysDir: dir})
	if _, err := n.Generate(context.Background(), "missing"); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("unknown journey error = %v, want ErrNotFound", err)
	}

	failing := &fakeGenerator{err: util.ErrRemoteRequest}
	n = New(&Config{Store: st, Generator: failing, JourneysDir: dir})
	if _, err := n.Generate(context.Background(), "J1"); !errors.Is(err, util.ErrRemoteRequest) {
		t.Errorf("generator failure error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "J1.md")); !os.IsNotExist(err) {
		t.Error("narrative written despite failure")
	}

	n = New(&Config{Store: st, Generator: &fakeGenerator{reply: "   "}, JourneysDir: dir})
	if _, err := n.Generate(context.Background(), "J1"); err == nil {
		t.Error("empty narrative accepted")
	}
}
