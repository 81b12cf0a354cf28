// Package store holds the dataset currently served to the dashboard.
package store

import (
	"sync/atomic"
	"time"

	"github.com/couchcryptid/water-balance-service/internal/domain"
)

// Snapshot is one loaded dataset with its audit report. A snapshot is never
// modified after it is stored.
type Snapshot struct {
	ID       string              `json:"id"`
	Source   string              `json:"source"`
	Format   string              `json:"format"`
	LoadedAt time.Time           `json:"loaded_at"`
	Dataset  domain.WaterDataset `json:"dataset"`
	Report   domain.Report       `json:"report"`
}

// Store publishes snapshots to concurrent readers. Replace swaps the whole
// snapshot in one atomic store so readers never see a partial load.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Current returns the latest snapshot, or false before the first load.
func (s *Store) Current() (*Snapshot, bool) {
	snap := s.current.Load()
	return snap, snap != nil
}

// Replace installs snap and returns the snapshot it replaced, if any.
func (s *Store) Replace(snap *Snapshot) *Snapshot {
	return s.current.Swap(snap)
}
