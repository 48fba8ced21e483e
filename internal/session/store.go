package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
)

// layout names the fixed on-disk file names under a session directory.
const (
	sessionFile = "session.json"
	stepsFile   = "steps.json"
	eventsFile  = "events.log"
)

// Store manages session.json/steps.json/events.log under a sessions root
// directory, one subdirectory per session id.
type Store struct {
	root string
}

// NewStore returns a Store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return &Store{root: dir}, nil
}

// NewID generates a fresh session id.
func NewID() string { return uuid.NewString() }

// Dir returns the directory holding one session's files.
func (s *Store) Dir(id string) string { return filepath.Join(s.root, id) }

// WorkspaceDir returns the session's workspace subdirectory.
func (s *Store) WorkspaceDir(id string) string { return filepath.Join(s.Dir(id), "workspace") }

// EventsPath returns the path to a session's events.log.
func (s *Store) EventsPath(id string) string { return filepath.Join(s.Dir(id), eventsFile) }

// Create initializes a new session directory and writes the initial
// session.json and empty steps.json.
func (s *Store) Create(sess *Session) error {
	dir := s.Dir(sess.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	sess.WorkspaceDir = s.WorkspaceDir(sess.ID)
	if err := os.MkdirAll(sess.WorkspaceDir, 0o755); err != nil {
		return err
	}
	if err := s.SaveSession(sess); err != nil {
		return err
	}
	return s.SaveSteps(sess.ID, nil)
}

// SaveSession overwrites session.json.
func (s *Store) SaveSession(sess *Session) error {
	return writeJSON(filepath.Join(s.Dir(sess.ID), sessionFile), sess)
}

// LoadSession reads session.json for the given id.
func (s *Store) LoadSession(id string) (*Session, error) {
	var sess Session
	if err := readJSON(filepath.Join(s.Dir(id), sessionFile), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// SaveSteps overwrites steps.json.
func (s *Store) SaveSteps(id string, steps []Step) error {
	return writeJSON(filepath.Join(s.Dir(id), stepsFile), steps)
}

// LoadSteps reads steps.json for the given id.
func (s *Store) LoadSteps(id string) ([]Step, error) {
	var steps []Step
	if err := readJSON(filepath.Join(s.Dir(id), stepsFile), &steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// List returns every session found under the store root, most recently
// started first.
func (s *Store) List() ([]*Session, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []*Session
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sess, err := s.LoadSession(e.Name())
		if err != nil {
			continue
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
