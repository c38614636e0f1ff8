// Package report renders run summaries as JSON and HTML files
// for archiving and sharing outside the live monitor.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"digital.vasic.automation/pkg/challenge"
	"digital.vasic.automation/pkg/registry"
)

// Summary is the reportable view of one run: where the catalog
// stands after the run finished.
type Summary struct {
	// GeneratedAt is when the report was produced.
	GeneratedAt time.Time `json:"generated_at"`

	// RunID identifies the run the report describes.
	RunID string `json:"run_id,omitempty"`

	// Progress aggregates completion across the catalog.
	Progress registry.Progress `json:"progress"`

	// Challenges holds per-level state in ascending level
	// order.
	Challenges []challenge.Snapshot `json:"challenges"`
}

// NewSummary assembles a Summary from run state.
func NewSummary(
	runID string,
	progress registry.Progress,
	challenges []challenge.Snapshot,
) Summary {
	return Summary{
		GeneratedAt: time.Now(),
		RunID:       runID,
		Progress:    progress,
		Challenges:  challenges,
	}
}

// WriteFiles writes the summary as report.json and report.html
// into dir, creating it if needed.
func WriteFiles(dir string, s Summary) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf(
			"create report directory: %w", err,
		)
	}

	jsonPath := filepath.Join(dir, "report.json")
	jf, err := os.Create(jsonPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", jsonPath, err)
	}
	defer jf.Close()
	if err := NewJSONReporter(true).Write(jf, s); err != nil {
		return fmt.Errorf("write %s: %w", jsonPath, err)
	}

	htmlPath := filepath.Join(dir, "report.html")
	hf, err := os.Create(htmlPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", htmlPath, err)
	}
	defer hf.Close()
	if err := NewHTMLReporter().Write(hf, s); err != nil {
		return fmt.Errorf("write %s: %w", htmlPath, err)
	}
	return nil
}
