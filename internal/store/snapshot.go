// Package store persists a snapshot of the CN node registry so that
// node listings work without a network round trip.
package store

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"mnstat/internal/model"
)

// Snapshot is the cached registry state.
type Snapshot struct {
	UpdatedAt time.Time    `yaml:"updated_at"`
	CNBaseURL string       `yaml:"cn_base_url"`
	Nodes     []model.Node `yaml:"nodes"`
}

// LoadSnapshot loads the snapshot from disk. A missing file returns
// an empty snapshot.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Snapshot{}, nil
		}
		return nil, err
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, err
	}

	return &snap, nil
}

// SaveSnapshot writes the snapshot to disk, stamping UpdatedAt.
func SaveSnapshot(path string, snap *Snapshot) error {
	if snap == nil {
		return nil
	}
	snap.UpdatedAt = time.Now().UTC()
	data, err := yaml.Marshal(snap)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
