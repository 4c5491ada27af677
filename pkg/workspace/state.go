package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/justindra/yaks/pkg/object"
)

// StateFile records the outcome of the last successful sync.
const StateFile = "state.json"

// State is persisted after every sync.
type State struct {
	// RemoteID is the shared ref's content id the local base corresponds to.
	RemoteID object.Hash `json:"remote_id,omitempty"`
	// BaseID is the local snapshot holding the base collection.
	BaseID   object.Hash `json:"base_id,omitempty"`
	SyncedAt time.Time   `json:"synced_at,omitempty"`
}

func loadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("read state: unmarshal: %w", err)
	}
	return &st, nil
}

func saveState(path string, st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("write state: marshal: %w", err)
	}
	return writeFileAtomic(path, append(data, '\n'), ".state-tmp-*")
}
