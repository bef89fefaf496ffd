package interview

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// Interview is one suspect's record. GuiltLevel is -1 until analyzed.
// The mp3_path key is part of the frontend contract.
type Interview struct {
	Name       string `json:"name"`
	AudioPath  string `json:"mp3_path"`
	GuiltLevel int    `json:"guilt_level"`
	Transcript string `json:"transcript"`
}

var ErrNotFound = errors.New("interview not found")

// Store keeps all interviews in a single JSON file. Mutations rewrite the
// whole file atomically; the file stays human-inspectable and small enough
// that this never matters.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// List returns every stored interview, oldest first.
func (s *Store) List() ([]Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get returns the interview with the given name.
func (s *Store) Get(name string) (Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	interviews, err := s.load()
	if err != nil {
		return Interview{}, err
	}
	for _, iv := range interviews {
		if iv.Name == name {
			return iv, nil
		}
	}
	return Interview{}, ErrNotFound
}

// Put inserts the interview, replacing any existing record with the same
// name.
func (s *Store) Put(iv Interview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	interviews, err := s.load()
	if err != nil {
		return err
	}
	kept := interviews[:0]
	for _, existing := range interviews {
		if existing.Name != iv.Name {
			kept = append(kept, existing)
		}
	}
	return s.save(append(kept, iv))
}

// Delete removes the named interview and returns it so the caller can clean
// up its audio file.
func (s *Store) Delete(name string) (Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	interviews, err := s.load()
	if err != nil {
		return Interview{}, err
	}
	var removed *Interview
	kept := interviews[:0]
	for _, iv := range interviews {
		if iv.Name == name {
			removed = &iv
			continue
		}
		kept = append(kept, iv)
	}
	if removed == nil {
		return Interview{}, ErrNotFound
	}
	if err := s.save(kept); err != nil {
		return Interview{}, err
	}
	return *removed, nil
}

// Reset removes all interviews and returns the removed records.
func (s *Store) Reset() ([]Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	interviews, err := s.load()
	if err != nil {
		return nil, err
	}
	if err := s.save([]Interview{}); err != nil {
		return nil, err
	}
	return interviews, nil
}

func (s *Store) load() ([]Interview, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read interviews: %w", err)
	}
	var interviews []Interview
	if err := json.Unmarshal(data, &interviews); err != nil {
		return nil, fmt.Errorf("parse interviews: %w", err)
	}
	return interviews, nil
}

func (s *Store) save(interviews []Interview) error {
	data, err := json.MarshalIndent(interviews, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write interviews: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace interviews: %w", err)
	}
	return nil
}
