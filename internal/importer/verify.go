package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/franz/music-journeys/internal/spotify"
	"github.com/franz/music-journeys/internal/store"
	"github.com/franz/music-journeys/internal/util"
)

// Mismatch is a step position where the stored reference differs from the
// one the playlist resolves to
type Mismatch struct {
	Position int
	Stored   string
	Expected string
}

// Verification compares the stored steps of a journey with a fresh,
// read-only resolution of the playlist items
type Verification struct {
	Passed     bool
	Stored     int
	Expected   int
	Mismatches []Mismatch
}

func (im *Importer) verify(ctx context.Context, q *store.Queries, journeyID string, tracks []spotify.Track, granularity store.Granularity, log zerolog.Logger) (Verification, error) {
	steps, err := q.ListSteps(ctx, journeyID)
	if err != nil {
		return Verification{}, err
	}

	r := &resolver{q: q, remote: im.remote, log: log}
	expected, err := r.stepRefs(ctx, tracks, granularity)
	var lookupErr *lookupError
	if errors.As(err, &lookupErr) {
		log.Warn().
			Err(fmt.Errorf("%w: %w", util.ErrIntegrityMismatch, err)).
			Int("stored", len(steps)).
			Msg("cannot re-resolve playlist; journey left unverified")
		im.logVerify(journeyID, false, 0, log)
		return Verification{Stored: len(steps)}, nil
	}
	if err != nil {
		return Verification{}, err
	}

	v := compareSteps(steps, expected)
	if !v.Passed {
		log.Warn().
			Err(fmt.Errorf("%w: %d of %d steps differ", util.ErrIntegrityMismatch, len(v.Mismatches), v.Expected)).
			Int("stored", v.Stored).
			Int("expected", v.Expected).
			Msg("journey does not match playlist")
		for _, m := range v.Mismatches {
			log.Warn().
				Int("position", m.Position).
				Str("stored", m.Stored).
				Str("expected", m.Expected).
				Msg("step mismatch")
		}
	}
	im.logVerify(journeyID, v.Passed, len(v.Mismatches), log)
	return v, nil
}

func (im *Importer) logVerify(journeyID string, passed bool, mismatches int, log zerolog.Logger) {
	if err := im.events.LogVerify(journeyID, passed, mismatches); err != nil {
		log.Debug().Err(err).Msg("failed to write audit event")
	}
}

func compareSteps(steps []store.JourneyStep, expected []string) Verification {
	v := Verification{Stored: len(steps), Expected: len(expected)}
	n := max(len(steps), len(expected))
	for i := 0; i < n; i++ {
		var stored, want string
		if i < len(steps) {
			stored = steps[i].Ref()
		}
		if i < len(expected) {
			want = expected[i]
		}
		if stored != want {
			v.Mismatches = append(v.Mismatches, Mismatch{Position: i + 1, Stored: stored, Expected: want})
		}
	}
	v.Passed = len(v.Mismatches) == 0
	return v
}
