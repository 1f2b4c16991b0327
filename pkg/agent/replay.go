package agent

import (
	"context"
	"os"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"

	"github.com/boristopalov/sciworld/pkg/core"
)

// ReplayResponder answers with recorded replies in order, one per turn.
type ReplayResponder struct {
	mu      sync.Mutex
	replies []string
	next    int
}

var _ Responder = (*ReplayResponder)(nil)

func NewReplayResponder(replies []string) *ReplayResponder {
	return &ReplayResponder{replies: append([]string{}, replies...)}
}

func (r *ReplayResponder) Respond(ctx context.Context, _ []core.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.next >= len(r.replies) {
		return "", goerr.Wrap(ErrExhausted, "replies finished", goerr.Value("length", len(r.replies)))
	}
	reply := r.replies[r.next]
	r.next++
	return reply, nil
}

type repliesFile struct {
	Replies []string `yaml:"replies"`
}

// LoadReplies reads a YAML file of the form `replies: [...]`.
func LoadReplies(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read replies file", goerr.Value("path", path))
	}
	var f repliesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, goerr.Wrap(err, "failed to parse replies file", goerr.Value("path", path))
	}
	if len(f.Replies) == 0 {
		return nil, goerr.New("replies file has no replies", goerr.Value("path", path))
	}
	return f.Replies, nil
}
