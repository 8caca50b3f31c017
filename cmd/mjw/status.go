package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/music-journeys/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show journeys, their playlists and warehouse row counts",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	db, err := openWarehouse()
	if err != nil {
		return err
	}
	defer db.Close()

	q := db.Queries()
	journeys, err := q.JourneySummaries(ctx, store.ServiceSpotify)
	if err != nil {
		return err
	}
	counts, err := q.TableCounts(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderStatus(journeys, counts, time.Now()))
	return nil
}

func renderStatus(journeys []store.JourneySummary, counts []store.TableCount, now time.Time) string {
	var b strings.Builder

	if len(journeys) == 0 {
		b.WriteString("No journeys in the warehouse.\n")
	} else {
		rows := make([][]string, 0, len(journeys))
		for _, j := range journeys {
			synced := "never"
			if t := j.LastUpdated(); !t.IsZero() {
				synced = humanize.RelTime(t, now, "ago", "from now")
			}
			playlist := j.PlaylistID
			if playlist == "" {
				playlist = "-"
			}
			rows = append(rows, []string{j.JourneyID, j.Name, string(j.Granularity), strconv.Itoa(j.Steps), playlist, synced})
		}
		b.WriteString(renderTable(
			[]string{"Journey", "Name", "Granularity", "Steps", "Playlist", "Last Synced"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
		))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, []string{c.Table, humanize.Comma(int64(c.Rows))})
	}
	b.WriteString(renderTable([]string{"Table", "Rows"}, rows, []columnAlignment{alignLeft, alignRight}))
	return b.String()
}
