package playlist

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/franz/music-journeys/internal/spotify"
	"github.com/franz/music-journeys/internal/spotify/spotifytest"
)

func uris(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = trackRef(fmt.Sprintf("t%dx", i)).URI()
	}
	return out
}

func TestPages(t *testing.T) {
	tests := []struct {
		n     int
		sizes []int
	}{
		{0, []int{}},
		{1, []int{1}},
		{100, []int{100}},
		{101, []int{100, 1}},
		{250, []int{100, 100, 50}},
	}
	for _, tt := range tests {
		var sizes []int
		for _, p := range Pages(uris(tt.n), 100) {
			sizes = append(sizes, len(p))
		}
		if len(sizes) != len(tt.sizes) || (len(sizes) > 0 && !reflect.DeepEqual(sizes, tt.sizes)) {
			t.Errorf("Pages(%d) sizes = %v, want %v", tt.n, sizes, tt.sizes)
		}
	}
}

func TestApplyReplaceBatchBoundary(t *testing.T) {
	ctx := context.Background()
	fake := spotifytest.New(owner)
	id := spotifytest.ID("existing")
	fake.AddPlaylist(id, "Existing", "", owner, spotifytest.NewTrack("stale", "Stale", 1, spotify.SimpleAlbum{}))

	want := uris(250)
	calls, err := Apply(ctx, fake, id, want, true)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}

	replaced := fake.CallsTo("ReplaceItems")
	added := fake.CallsTo("AddItems")
	if len(replaced) != 1 || len(replaced[0].URIs) != 100 {
		t.Fatalf("replace calls = %d", len(replaced))
	}
	if len(added) != 2 || len(added[0].URIs) != 100 || len(added[1].URIs) != 50 {
		t.Fatalf("add calls = %d", len(added))
	}
	if !reflect.DeepEqual(replaced[0].URIs, want[:100]) {
		t.Error("first page is not the prefix of the desired list")
	}
	if got := fake.Content(id); !reflect.DeepEqual(got, want) {
		t.Errorf("final content differs from desired list (%d items)", len(got))
	}
}

func TestApplyCreateAppendsOnly(t *testing.T) {
	fake := spotifytest.New(owner)
	id := spotifytest.ID("fresh")
	fake.AddPlaylist(id, "Fresh", "", owner)

	if _, err := Apply(context.Background(), fake, id, uris(250), false); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if n := len(fake.CallsTo("ReplaceItems")); n != 0 {
		t.Errorf("replace calls = %d, want 0", n)
	}
	var sizes []int
	for _, c := range fake.CallsTo("AddItems") {
		sizes = append(sizes, len(c.URIs))
	}
	if !reflect.DeepEqual(sizes, []int{100, 100, 50}) {
		t.Errorf("add sizes = %v", sizes)
	}
}

func TestApplyStopsAtFirstFailure(t *testing.T) {
	fake := spotifytest.New(owner)
	id := spotifytest.ID("flaky")
	fake.AddPlaylist(id, "Flaky", "", owner)
	fake.Errors["AddItems "+id] = spotifytest.ServerError("AddItems", id)

	calls, err := Apply(context.Background(), fake, id, uris(150), true)
	if err == nil {
		t.Fatal("Apply() error = nil")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	// the playlist holds exactly the first page
	if got := fake.Content(id); len(got) != 100 {
		t.Errorf("content = %d items, want 100", len(got))
	}
}
