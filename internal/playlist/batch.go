package playlist

import (
	"context"
	"fmt"

	"github.com/franz/music-journeys/internal/spotify"
)

// ItemWriter is the part of the Web API that changes playlist contents
type ItemWriter interface {
	ReplaceItems(ctx context.Context, playlistID string, uris []string) error
	AddItems(ctx context.Context, playlistID string, uris []string) error
}

// Pages splits uris into consecutive pages of at most size items
func Pages(uris []string, size int) [][]string {
	if size <= 0 {
		size = spotify.MaxItemsPerRequest
	}
	pages := make([][]string, 0, (len(uris)+size-1)/size)
	for start := 0; start < len(uris); start += size {
		end := min(start+size, len(uris))
		pages = append(pages, uris[start:end])
	}
	return pages
}

// Apply writes uris to a playlist a page at a time. With replace set the
// first page overwrites the current content, so after the first call the
// playlist holds a prefix of uris and each later call extends that prefix
// by one page. Without replace every page is appended to an empty playlist.
// It returns the number of calls that succeeded.
func Apply(ctx context.Context, w ItemWriter, playlistID string, uris []string, replace bool) (int, error) {
	calls := 0
	for i, page := range Pages(uris, spotify.MaxItemsPerRequest) {
		if err := ctx.Err(); err != nil {
			return calls, err
		}
		if i == 0 && replace {
			if err := w.ReplaceItems(ctx, playlistID, page); err != nil {
				return calls, fmt.Errorf("failed to replace items of %s: %w", playlistID, err)
			}
		} else if err := w.AddItems(ctx, playlistID, page); err != nil {
			return calls, fmt.Errorf("failed to add items %d-%d to %s: %w",
				i*spotify.MaxItemsPerRequest+1, i*spotify.MaxItemsPerRequest+len(page), playlistID, err)
		}
		calls++
	}
	return calls, nil
}
