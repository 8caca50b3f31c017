// Package narrate writes a Markdown narrative for a journey with a
// generative text model.
package narrate

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/rs/zerolog"

	"github.com/franz/music-journeys/internal/report"
	"github.com/franz/music-journeys/internal/store"
	"github.com/franz/music-journeys/internal/util"
)

//go:embed prompt.tmpl
var defaultTemplate string

// Generator turns a prompt into free text
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Step is one journey step as presented to the template
type Step struct {
	Order     int
	Title     string
	Work      string
	Performer string
	Album     string
	Label     string
	Year      int
	URL       string
	Act       string
	Notes     string
}

// PromptData is the template input
type PromptData struct {
	Journey store.Journey
	Steps   []Step
}

// Config holds narrator configuration
type Config struct {
	Store        *store.Store
	Generator    Generator
	JourneysDir  string
	TemplatePath string // empty uses the embedded template
	Logger       zerolog.Logger
	Events       *report.EventLogger
}

// Narrator generates journey narratives
type Narrator struct {
	store        *store.Store
	gen          Generator
	journeysDir  string
	templatePath string
	log          zerolog.Logger
	events       *report.EventLogger
}

// New creates a Narrator
func New(cfg *Config) *Narrator {
	return &Narrator{
		store:        cfg.Store,
		gen:          cfg.Generator,
		journeysDir:  cfg.JourneysDir,
		templatePath: cfg.TemplatePath,
		log:          cfg.Logger,
		events:       cfg.Events,
	}
}

// Generate renders the prompt for a journey, asks the model for a narrative
// and writes it to <journeys dir>/<journey id>.md. It returns the file path.
func (n *Narrator) Generate(ctx context.Context, journeyID string) (string, error) {
	path, err := n.generate(ctx, journeyID)
	if logErr := n.events.LogNarrate(journeyID, path, err); logErr != nil {
		n.log.Debug().Err(logErr).Msg("failed to write audit event")
	}
	return path, err
}

func (n *Narrator) generate(ctx context.Context, journeyID string) (string, error) {
	tmpl, err := n.template()
	if err != nil {
		return "", err
	}

	q := n.store.Queries()
	j, err := q.GetJourney(ctx, journeyID)
	if err != nil {
		return "", err
	}
	if j == nil {
		return "", fmt.Errorf("journey %s: %w", journeyID, util.ErrNotFound)
	}

	steps, err := journeySteps(ctx, q, j)
	if err != nil {
		return "", err
	}
	if len(steps) == 0 {
		return "", fmt.Errorf("journey %s has no steps", journeyID)
	}

	var prompt bytes.Buffer
	if err := tmpl.Execute(&prompt, PromptData{Journey: *j, Steps: steps}); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}

	log := n.log.With().Str("journey_id", journeyID).Logger()
	log.Info().Int("steps", len(steps)).Int("prompt_length", prompt.Len()).Msg("requesting narrative")
	start := time.Now()
	text, err := n.gen.Generate(ctx, prompt.String())
	if err != nil {
		return "", fmt.Errorf("failed to generate narrative: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("model returned an empty narrative")
	}
	log.Debug().Int("response_length", len(text)).Dur("duration", time.Since(start)).Msg("narrative received")

	markdown := fmt.Sprintf("# %s\n\n%s\n", j.DisplayName(), text)
	path := filepath.Join(n.journeysDir, journeyID+".md")
	if err := writeFileAtomic(path, []byte(markdown)); err != nil {
		return "", err
	}
	log.Info().Str("file", path).Msg("narrative written")
	return path, nil
}

func (n *Narrator) template() (*template.Template, error) {
	text := defaultTemplate
	if n.templatePath != "" {
		b, err := os.ReadFile(n.templatePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt template: %w", err)
		}
		text = string(b)
	}
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}
	return tmpl, nil
}

// journeySteps loads the steps in the shape of the journey's granularity
func journeySteps(ctx context.Context, q *store.Queries, j *store.Journey) ([]Step, error) {
	if j.Granularity == store.GranularityAlbum {
		rows, err := q.AlbumSteps(ctx, j.ID)
		if err != nil {
			return nil, err
		}
		steps := make([]Step, len(rows))
		for i, r := range rows {
			steps[i] = Step{
				Order:     r.Order,
				Title:     r.AlbumTitle,
				Performer: r.PerformerName,
				Album:     r.AlbumTitle,
				Label:     r.RecordingLabel,
				Year:      r.ReleaseYear,
				URL:       r.SpotifyURL,
				Act:       r.ActTitle,
				Notes:     r.CurationNotes,
			}
		}
		return steps, nil
	}

	rows, err := q.TrackSteps(ctx, j.ID)
	if err != nil {
		return nil, err
	}
	steps := make([]Step, len(rows))
	for i, r := range rows {
		title := r.MovementTitle
		if title == "" {
			title = r.SpotifyTitle
		}
		steps[i] = Step{
			Order:     r.Order,
			Title:     title,
			Work:      r.WorkTitle,
			Performer: r.PerformerName,
			Album:     r.AlbumTitle,
			Label:     r.RecordingLabel,
			Year:      r.ReleaseYear,
			URL:       r.SpotifyURL,
			Act:       r.ActTitle,
			Notes:     r.CurationNotes,
		}
	}
	return steps, nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
