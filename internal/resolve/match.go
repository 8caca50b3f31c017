package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/franz/music-journeys/internal/meta"
	"github.com/franz/music-journeys/internal/spotify"
	"github.com/franz/music-journeys/internal/store"
)

const searchLimit = 5

// query is one search attempt; firstHit accepts the top result when no
// title reaches the cutoff
type query struct {
	text     string
	reason   string
	firstHit bool
}

// quote strips characters that would break a field filter
func quote(field, value string) string {
	value = strings.Join(strings.Fields(strings.ReplaceAll(value, `"`, " ")), " ")
	return fmt.Sprintf(`%s:"%s"`, field, value)
}

// trackQueries returns the search fallbacks for a recording, most specific first
func trackQueries(rc store.RecordingContext) []query {
	title := rc.CatalogTitle()
	var qs []query
	if title != "" {
		parts := []string{quote("track", title)}
		if rc.AlbumTitle != "" {
			parts = append(parts, quote("album", rc.AlbumTitle))
		}
		if rc.PerformerName != "" {
			parts = append(parts, quote("artist", rc.PerformerName))
		}
		qs = append(qs, query{text: strings.Join(parts, " "), reason: "search:track", firstHit: true})
	}
	if rc.AlbumTitle != "" && rc.PerformerName != "" {
		qs = append(qs, query{
			text:   quote("album", rc.AlbumTitle) + " " + quote("artist", rc.PerformerName),
			reason: "search:album-artist",
		})
	}
	if rc.AlbumTitle != "" {
		qs = append(qs, query{text: quote("album", rc.AlbumTitle), reason: "search:album"})
	}
	return qs
}

// fromAlbum picks the recording's track from its album's listing, by title
// and then by track number
func (r *Resolver) fromAlbum(ctx context.Context, rc store.RecordingContext, albumURL string, log zerolog.Logger) *match {
	ref, err := spotify.ParseKind(albumURL, spotify.KindAlbum)
	if err != nil {
		return nil
	}
	tracks, err := r.remote.GetAlbumTracks(ctx, ref.ID)
	if err != nil {
		log.Warn().Err(err).Str("album_id", rc.AlbumID).Str("op", "album tracks").Msg("album lookup failed")
		return nil
	}

	title := rc.CatalogTitle()
	if title != "" {
		names := make([]string, len(tracks))
		for i, t := range tracks {
			names[i] = t.Name
		}
		if i, score := meta.BestMatch(title, names, r.minSim); i >= 0 {
			log.Debug().Float64("score", score).Msg("matched album track by title")
			return r.newMatch(rc, tracks[i], "album:title")
		}
	}
	if rc.TrackNumber > 0 {
		for _, t := range tracks {
			if t.TrackNumber == rc.TrackNumber && t.DiscNumber <= 1 {
				return r.newMatch(rc, t, "album:track-number")
			}
		}
	}
	return nil
}

// fromSearch runs the search fallbacks until one yields a match
func (r *Resolver) fromSearch(ctx context.Context, rc store.RecordingContext, log zerolog.Logger) *match {
	title := rc.CatalogTitle()
	for _, q := range trackQueries(rc) {
		tracks, err := r.remote.SearchTracks(ctx, q.text, searchLimit)
		if err != nil {
			log.Warn().Err(err).Str("query", q.text).Str("op", "search").Msg("track search failed")
			continue
		}
		if len(tracks) == 0 {
			continue
		}

		if title != "" {
			names := make([]string, len(tracks))
			for i, t := range tracks {
				names[i] = t.Name
			}
			if i, _ := meta.BestMatch(title, names, r.minSim); i >= 0 {
				return r.newMatch(rc, tracks[i], q.reason)
			}
		}
		if q.firstHit {
			return r.newMatch(rc, tracks[0], q.reason+":first")
		}
		log.Debug().Str("query", q.text).Int("hits", len(tracks)).Msg("no hit close enough to the catalog title")
	}
	return nil
}

// findAlbum searches for the remote counterpart of the recording's album
func (r *Resolver) findAlbum(ctx context.Context, rc store.RecordingContext, log zerolog.Logger) *albumMatch {
	qs := []string{quote("album", rc.AlbumTitle)}
	if rc.PerformerName != "" {
		qs = append([]string{qs[0] + " " + quote("artist", rc.PerformerName)}, qs...)
	}
	for _, q := range qs {
		albums, err := r.remote.SearchAlbums(ctx, q, searchLimit)
		if err != nil {
			log.Warn().Err(err).Str("query", q).Str("op", "album search").Msg("album search failed")
			continue
		}
		names := make([]string, len(albums))
		for i, a := range albums {
			names[i] = a.Name
		}
		if i, score := meta.BestMatch(rc.AlbumTitle, names, r.minSim); i >= 0 {
			log.Info().
				Str("album_id", rc.AlbumID).
				Str("remote_album", albums[i].Name).
				Float64("score", score).
				Msg("found album reference")
			return &albumMatch{albumID: rc.AlbumID, album: albums[i], title: rc.AlbumTitle}
		}
	}
	return nil
}

func (r *Resolver) newMatch(rc store.RecordingContext, t spotify.Track, reason string) *match {
	return &match{
		recordingID: rc.RecordingID,
		track:       t,
		titleMatch:  meta.TitlesMatch(rc.CatalogTitle(), t.Name),
		reason:      reason,
	}
}
