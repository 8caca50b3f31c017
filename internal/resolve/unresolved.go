package resolve

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/franz/music-journeys/internal/store"
)

var unresolvedHeader = []string{"RecordingID", "WorkTitle", "MovementTitle", "AlbumTitle", "PerformerName"}

// writeUnresolved writes the recordings no lookup could match, for manual review
func writeUnresolved(path string, rows []store.RecordingContext) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	defer os.Remove(tmp)

	w := csv.NewWriter(f)
	_ = w.Write(unresolvedHeader)
	for _, rc := range rows {
		_ = w.Write([]string{rc.RecordingID, rc.WorkTitle, rc.MovementTitle, rc.AlbumTitle, rc.PerformerName})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}
