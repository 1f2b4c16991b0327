package core

import (
	"encoding/json"
)

// Role tags the author of a transcript message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is one entry of an episode transcript
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// Top-level snapshot keys as they appear on the wire.
const (
	KeyTaskDescription = "task_description"
	KeyObservation     = "observation"
	KeyReward          = "reward"
	KeyComplete        = "complete"
	KeyInfo            = "info"
	KeyChoices         = "choices"
	KeyGoldPath        = "gold_path"
)

// Choices are the action templates and object names the engine currently accepts.
type Choices struct {
	Actions []string `json:"actions"`
	Objects []string `json:"objects"`
}

// Snapshot is the result of a load or step call.
type Snapshot struct {
	TaskDescription string         `json:"task_description,omitempty"`
	Observation     string         `json:"observation"`
	Reward          float64        `json:"reward"`
	Complete        bool           `json:"complete"`
	Info            map[string]any `json:"info"`
	Choices         Choices        `json:"choices"`
	GoldPath        []string       `json:"gold_path,omitempty"`

	// keys seen when decoded from the wire; nil for snapshots built in code
	present map[string]struct{}
}

// UnmarshalJSON records which top-level keys were present so that prompt
// rendering can tell an omitted field from a zero value.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	type snapshotAlias Snapshot
	var alias snapshotAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}

	*s = Snapshot(alias)
	s.present = make(map[string]struct{}, len(keys))
	for k := range keys {
		s.present[k] = struct{}{}
	}
	return nil
}

// Has reports whether key was part of the decoded payload. Snapshots built
// in code report every key as present.
func (s Snapshot) Has(key string) bool {
	if s.present == nil {
		return true
	}
	_, ok := s.present[key]
	return ok
}

// Score returns info.score when the engine reported one.
func (s Snapshot) Score() (float64, bool) {
	if s.Info == nil {
		return 0, false
	}
	switch v := s.Info["score"].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// TaskList maps a task name to its number of variations.
type TaskList map[string]int
