package abuse

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// State is the persistent abuse record for a single identity. All
// timestamps are Unix seconds; zero means unset.
type State struct {
	LastMsgTS     int64 `json:"last_msg_ts"`    // Previous message timestamp.
	SpamHits      int   `json:"spam_hits"`      // Consecutive fast-message counter.
	Violations    int   `json:"violations"`     // Total penalty escalations.
	CooldownUntil int64 `json:"cooldown_until"` // Active cooldown expiry.
	BanUntil      int64 `json:"ban_until"`      // Active ban expiry.
	BanLevel      int   `json:"ban_level"`      // 0 none, 1 hour ban, 2 day ban.
	LastNoticeTS  int64 `json:"last_notice_ts"` // Last time the user was told about a penalty.
}

// StateStore persists guard state as a single flat JSON document mapping
// identity (stringified user id) to its State record. Writes go through a
// temp file plus atomic rename so a crash never leaves a half-written
// document behind.
type StateStore struct {
	path string
}

// NewStateStore constructs a StateStore for the given file path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Load reads the persisted document. A missing file yields an empty map
// and no error; a corrupt file yields an empty map and the parse error so
// the caller can log it. Either way the guard starts from a clean slate:
// a bad disk resets penalties instead of locking every user out.
func (s *StateStore) Load() (map[string]*State, error) {
	out := make(map[string]*State)
	if s == nil || s.path == "" {
		return out, nil
	}
	data, errRead := os.ReadFile(s.path)
	if errRead != nil {
		if errors.Is(errRead, os.ErrNotExist) {
			return out, nil
		}
		return out, fmt.Errorf("abuse store: read %s: %w", s.path, errRead)
	}
	if errUnmarshal := json.Unmarshal(data, &out); errUnmarshal != nil {
		return make(map[string]*State), fmt.Errorf("abuse store: parse %s: %w", s.path, errUnmarshal)
	}
	for k, v := range out {
		if v == nil {
			delete(out, k)
		}
	}
	return out, nil
}

// Save writes the full document atomically.
func (s *StateStore) Save(states map[string]*State) error {
	if s == nil || s.path == "" {
		return nil
	}
	if errMkdir := os.MkdirAll(filepath.Dir(s.path), 0o755); errMkdir != nil {
		return fmt.Errorf("abuse store: mkdir: %w", errMkdir)
	}
	data, errMarshal := json.MarshalIndent(states, "", "  ")
	if errMarshal != nil {
		return fmt.Errorf("abuse store: marshal: %w", errMarshal)
	}
	tmp := s.path + ".tmp"
	if errWrite := os.WriteFile(tmp, data, 0o644); errWrite != nil {
		return fmt.Errorf("abuse store: write temp: %w", errWrite)
	}
	if errRename := os.Rename(tmp, s.path); errRename != nil {
		return fmt.Errorf("abuse store: rename: %w", errRename)
	}
	return nil
}
