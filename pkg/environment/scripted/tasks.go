package scripted

import (
	_ "embed"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

//go:embed tasks.yaml
var defaultTasks []byte

// GoldStep is one action of a variation's gold path and what it produces.
type GoldStep struct {
	Action      string   `yaml:"action"`
	Observation string   `yaml:"observation"`
	Objects     []string `yaml:"objects,omitempty"` // replaces the visible objects when set
}

type Variation struct {
	Description string            `yaml:"description"`
	Observation string            `yaml:"observation"`
	Inventory   string            `yaml:"inventory,omitempty"`
	Objects     []string          `yaml:"objects"`
	Responses   map[string]string `yaml:"responses,omitempty"`
	Gold        []GoldStep        `yaml:"gold"`
}

type Task struct {
	Name       string      `yaml:"name"`
	Variations []Variation `yaml:"variations"`
}

// TaskFile is the document a scripted engine is built from.
type TaskFile struct {
	Actions []string `yaml:"actions"`
	Tasks   []Task   `yaml:"tasks"`
}

// Default returns the embedded task file.
func Default() (*TaskFile, error) {
	return Parse(defaultTasks)
}

// LoadFile reads a task file from disk.
func LoadFile(path string) (*TaskFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read task file", goerr.Value("path", path))
	}
	tf, err := Parse(raw)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid task file", goerr.Value("path", path))
	}
	return tf, nil
}

func Parse(raw []byte) (*TaskFile, error) {
	var tf TaskFile
	if err := yaml.Unmarshal(raw, &tf); err != nil {
		return nil, goerr.Wrap(err, "failed to decode task file")
	}
	if err := tf.Validate(); err != nil {
		return nil, err
	}
	for ti := range tf.Tasks {
		for vi := range tf.Tasks[ti].Variations {
			v := &tf.Tasks[ti].Variations[vi]
			for gi := range v.Gold {
				v.Gold[gi].Action = normalize(v.Gold[gi].Action)
			}
			if len(v.Responses) > 0 {
				responses := make(map[string]string, len(v.Responses))
				for k, obs := range v.Responses {
					responses[normalize(k)] = obs
				}
				v.Responses = responses
			}
		}
	}
	return &tf, nil
}

func (tf *TaskFile) Validate() error {
	if len(tf.Tasks) == 0 {
		return goerr.New("task file has no tasks")
	}
	seen := make(map[string]bool, len(tf.Tasks))
	for _, t := range tf.Tasks {
		if t.Name == "" {
			return goerr.New("task without a name")
		}
		if seen[t.Name] {
			return goerr.New("duplicate task", goerr.Value("task", t.Name))
		}
		seen[t.Name] = true
		if len(t.Variations) == 0 {
			return goerr.New("task has no variations", goerr.Value("task", t.Name))
		}
		for i, v := range t.Variations {
			if len(v.Gold) == 0 {
				return goerr.New("variation has no gold path", goerr.Value("task", t.Name), goerr.Value("variation", i))
			}
		}
	}
	return nil
}

func (tf *TaskFile) task(name string) (*Task, bool) {
	for i := range tf.Tasks {
		if tf.Tasks[i].Name == name {
			return &tf.Tasks[i], true
		}
	}
	return nil, false
}
