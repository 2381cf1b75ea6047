// Package testutil provides shared fakes for engine and app tests.
package testutil

import (
	"fmt"
	"sync"

	"photodate/internal/model"
)

// MemoryStore is an in-memory engine.TrackingStore for tests. It records
// commits atomically and can be told to fail the next commit.
type MemoryStore struct {
	mu sync.Mutex

	photos  map[string][]model.Photo // base name -> ordered members
	groups  map[string][]string      // group id -> base names
	records []model.TrackingRecord

	// FailNextRecord makes the next RecordProcessed call fail without
	// writing anything, simulating a tracking-store outage at commit.
	FailNextRecord bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		photos: make(map[string][]model.Photo),
		groups: make(map[string][]string),
	}
}

// AddPhoto registers a unit member in listing order.
func (s *MemoryStore) AddPhoto(p model.Photo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos[p.BaseName] = append(s.photos[p.BaseName], p)
}

// AddGroup registers a group with the given member base names.
func (s *MemoryStore) AddGroup(groupID string, baseNames ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[groupID] = baseNames
}

func (s *MemoryStore) ListUnitMembers(baseName string) ([]model.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var members []model.Photo
	for _, p := range s.photos[baseName] {
		if p.Status == model.StatusUnprocessed {
			members = append(members, p)
		}
	}
	return members, nil
}

func (s *MemoryStore) ListGroupUnits(groupID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.groups[groupID]...), nil
}

func (s *MemoryStore) RecordProcessed(records []model.TrackingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailNextRecord {
		s.FailNextRecord = false
		return fmt.Errorf("injected tracking store failure")
	}

	for _, r := range records {
		members := s.photos[r.BaseName]
		found := false
		for i := range members {
			if members[i].ID == r.PhotoID {
				if members[i].Status != model.StatusUnprocessed {
					return fmt.Errorf("photo %s is not unprocessed", r.PhotoID)
				}
				members[i].Status = model.StatusProcessed
				members[i].Filepath = r.FinalPath
				found = true
			}
		}
		if !found {
			return fmt.Errorf("unknown photo: %s", r.PhotoID)
		}
	}
	s.records = append(s.records, records...)
	return nil
}

// Records returns all committed tracking records.
func (s *MemoryStore) Records() []model.TrackingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.TrackingRecord{}, s.records...)
}
