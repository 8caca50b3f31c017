package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/franz/music-journeys/internal/spotify"
	"github.com/franz/music-journeys/internal/store"
)

// maxListed caps the rows shown in the per-item sections
const maxListed = 50

// SummaryReport is a snapshot of the warehouse
type SummaryReport struct {
	GeneratedAt time.Time

	Tables          []store.TableCount
	Journeys        []store.JourneySummary
	XRefs           []store.PlaylistXRef
	TitleMismatches []store.TitleMismatch

	// recordings without a well-formed remote track reference
	MissingRefs      []store.RecordingContext
	MissingRefsTotal int

	DatabasePath string
	DatabaseSize int64
	EventLogPath string
}

// GenerateSummaryReport collects the report data from the warehouse
func GenerateSummaryReport(ctx context.Context, db *store.Store, eventLogPath string) (*SummaryReport, error) {
	report := &SummaryReport{
		GeneratedAt:  time.Now(),
		DatabasePath: db.Path(),
		EventLogPath: eventLogPath,
	}
	if info, err := os.Stat(db.Path()); err == nil {
		report.DatabaseSize = info.Size()
	}

	q := db.Queries()
	var err error
	if report.Tables, err = q.TableCounts(ctx); err != nil {
		return nil, err
	}
	if report.Journeys, err = q.JourneySummaries(ctx, store.ServiceSpotify); err != nil {
		return nil, err
	}
	if report.XRefs, err = q.ListXRefs(ctx); err != nil {
		return nil, err
	}
	if report.TitleMismatches, err = q.TitleMismatches(ctx); err != nil {
		return nil, err
	}

	recordings, err := q.RecordingContexts(ctx)
	if err != nil {
		return nil, err
	}
	for _, rc := range recordings {
		if spotify.IsTrackRef(rc.SpotifyURL) {
			continue
		}
		report.MissingRefsTotal++
		if len(report.MissingRefs) < maxListed {
			report.MissingRefs = append(report.MissingRefs, rc)
		}
	}

	return report, nil
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var md strings.Builder

	md.WriteString("# Music Journey Warehouse - Summary Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))
	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`", report.DatabasePath))
		if report.DatabaseSize > 0 {
			md.WriteString(fmt.Sprintf(" (%s)", humanize.Bytes(uint64(report.DatabaseSize))))
		}
		md.WriteString("\n\n")
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}
	md.WriteString("---\n\n")

	md.WriteString("## Tables\n\n")
	md.WriteString("| Table | Rows |\n")
	md.WriteString("|-------|------|\n")
	for _, t := range report.Tables {
		md.WriteString(fmt.Sprintf("| %s | %s |\n", t.Table, humanize.Comma(int64(t.Rows))))
	}
	md.WriteString("\n")

	if len(report.Journeys) > 0 {
		md.WriteString("## Journeys\n\n")
		md.WriteString("| Journey | Name | Granularity | Steps | Playlist | Last Synced |\n")
		md.WriteString("|---------|------|-------------|-------|----------|-------------|\n")
		for _, j := range report.Journeys {
			synced := "never"
			if t := j.LastUpdated(); !t.IsZero() {
				synced = humanize.RelTime(t, report.GeneratedAt, "ago", "from now")
			}
			playlist := "-"
			if j.PlaylistID != "" {
				playlist = fmt.Sprintf("[%s](%s)", j.PlaylistID, spotify.Ref{Kind: spotify.KindPlaylist, ID: j.PlaylistID}.URL())
			}
			md.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %s | %s |\n",
				j.JourneyID, escapeCell(j.Name), j.Granularity, j.Steps, playlist, synced))
		}
		md.WriteString("\n")
	}

	if len(report.XRefs) > 0 {
		md.WriteString("## Playlist Cross-References\n\n")
		md.WriteString("| Journey | Service | Playlist | Title | Updated (UTC) |\n")
		md.WriteString("|---------|---------|----------|-------|---------------|\n")
		for _, x := range report.XRefs {
			md.WriteString(fmt.Sprintf("| %s | %s | `%s` | %s | %s |\n",
				x.JourneyID, x.ServiceID, x.PlaylistID, escapeCell(x.PlaylistTitle),
				x.LastUpdated.UTC().Format("2006-01-02 15:04:05")))
		}
		md.WriteString("\n")
	}

	if len(report.TitleMismatches) > 0 {
		md.WriteString("## Title Mismatches\n\n")
		md.WriteString("*Catalog titles that differ from the title on the streaming service*\n\n")
		md.WriteString("| Kind | ID | Catalog | Remote |\n")
		md.WriteString("|------|----|---------|--------|\n")
		for _, m := range report.TitleMismatches {
			md.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				m.Kind, m.ID, escapeCell(m.CatalogTitle), escapeCell(m.RemoteTitle)))
		}
		md.WriteString("\n")
	}

	if report.MissingRefsTotal > 0 {
		md.WriteString(fmt.Sprintf("## Recordings Without Track Reference (%d)\n\n", report.MissingRefsTotal))
		if report.MissingRefsTotal > len(report.MissingRefs) {
			md.WriteString(fmt.Sprintf("*Showing the first %d; run `mjw resolve` to look them up*\n\n", len(report.MissingRefs)))
		}
		md.WriteString("| Recording | Title | Album | Performer |\n")
		md.WriteString("|-----------|-------|-------|-----------|\n")
		for _, rc := range report.MissingRefs {
			md.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				rc.RecordingID, escapeCell(rc.CatalogTitle()), escapeCell(rc.AlbumTitle), escapeCell(rc.PerformerName)))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by mjw - Music Journey Warehouse*\n")

	if err := os.WriteFile(outputPath, []byte(md.String()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

// escapeCell keeps a value from breaking a Markdown table row
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
