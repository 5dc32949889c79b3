package core

import "sync/atomic"

// Store holds the single active record collection for the process.
// Replace swaps the whole snapshot at once; readers never observe a
// partially written collection.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Replace makes snap the active snapshot.
func (s *Store) Replace(snap Snapshot) {
	s.current.Store(&snap)
}

// Current returns the active collection, or false while nothing was imported.
func (s *Store) Current() (RecordCollection, bool) {
	snap := s.current.Load()
	if snap == nil {
		return RecordCollection{}, false
	}
	return snap.Collection, true
}

// Snapshot returns the active snapshot with its import metadata.
func (s *Store) Snapshot() (Snapshot, bool) {
	snap := s.current.Load()
	if snap == nil {
		return Snapshot{}, false
	}
	return *snap, true
}
