// Package report assembles sweep results into a report document and
// flattens reports to CSV.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"mnstat/internal/model"
)

// New assembles a report from sweep results.
func New(cnBaseURL string, tests []string, nodes []model.NodeStatus) model.Report {
	return model.Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		CNBaseURL:   cnBaseURL,
		Tests:       append([]string(nil), tests...),
		Nodes:       nodes,
	}
}

// WriteJSON writes an indented JSON rendering of the report.
func WriteJSON(w io.Writer, rep model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// SnapshotName returns the dated snapshot filename for a sweep, e.g.
// nodes-2024-03-01.json.
func SnapshotName(ts time.Time) string {
	return fmt.Sprintf("nodes-%s.json", ts.UTC().Format("2006-01-02"))
}

// WriteFile writes the report as JSON. When path names an existing
// directory the file inside it is named by SnapshotName; the final
// path is returned.
func WriteFile(path string, rep model.Report) (string, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, SnapshotName(rep.GeneratedAt))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := WriteJSON(f, rep); err != nil {
		return "", err
	}
	return path, f.Sync()
}

// ReadFile loads a report written by WriteFile.
func ReadFile(path string) (model.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Report{}, err
	}

	var rep model.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return model.Report{}, fmt.Errorf("parse report %s: %w", path, err)
	}
	return rep, nil
}
