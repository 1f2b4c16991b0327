package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"

	"github.com/boristopalov/sciworld/pkg/core"
)

var (
	// ErrExhausted is returned by a scripted policy with no actions left.
	ErrExhausted = errors.New("no actions left")
	// ErrNoAction is returned when a reply names no action.
	ErrNoAction = errors.New("no action in response")
)

// Decision is the action to take next and, optionally, the text to record
// for it. An empty Assistant records the action itself.
type Decision struct {
	Action    string
	Assistant string
}

// Policy picks the next action given the transcript so far
type Policy interface {
	Next(ctx context.Context, messages []core.Message) (Decision, error)
}

// ScriptPolicy replays a fixed list of actions.
type ScriptPolicy struct {
	mu      sync.Mutex
	actions []string
	next    int
}

func NewScriptPolicy(actions []string) *ScriptPolicy {
	return &ScriptPolicy{actions: append([]string{}, actions...)}
}

// NewGoldPolicy replays the gold path of a loaded snapshot.
func NewGoldPolicy(snap *core.Snapshot) (*ScriptPolicy, error) {
	if snap == nil || len(snap.GoldPath) == 0 {
		return nil, goerr.New("snapshot has no gold path")
	}
	return NewScriptPolicy(snap.GoldPath), nil
}

func (p *ScriptPolicy) Next(ctx context.Context, _ []core.Message) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.next >= len(p.actions) {
		return Decision{}, goerr.Wrap(ErrExhausted, "script finished", goerr.Value("length", len(p.actions)))
	}
	a := p.actions[p.next]
	p.next++
	return Decision{Action: a}, nil
}

// Remaining returns how many actions are left.
func (p *ScriptPolicy) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.actions) - p.next
}

// Responder produces a free-text reply to a transcript, typically a model.
type Responder interface {
	Respond(ctx context.Context, messages []core.Message) (string, error)
}

// ResponderPolicy asks a Responder and extracts the action from its reply.
// The full reply is kept as the assistant text.
type ResponderPolicy struct {
	responder Responder
}

func NewResponderPolicy(r Responder) *ResponderPolicy {
	return &ResponderPolicy{responder: r}
}

func (p *ResponderPolicy) Next(ctx context.Context, messages []core.Message) (Decision, error) {
	reply, err := p.responder.Respond(ctx, messages)
	if err != nil {
		return Decision{}, goerr.Wrap(err, "responder failed")
	}
	action, err := ParseResponse(reply)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Action: action, Assistant: reply}, nil
}

// ReaderPolicy shows the latest prompt on out and reads the next action from
// in, one line per turn. A line in either reply format is parsed; anything
// else is the action verbatim.
type ReaderPolicy struct {
	in  *bufio.Scanner
	out io.Writer
}

func NewReaderPolicy(in io.Reader, out io.Writer) *ReaderPolicy {
	return &ReaderPolicy{in: bufio.NewScanner(in), out: out}
}

func (p *ReaderPolicy) Next(ctx context.Context, messages []core.Message) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	if n := len(messages); n > 0 && messages[n-1].Role == core.RoleUser {
		fmt.Fprintf(p.out, "%s\n", messages[n-1].Content)
	}

	for {
		fmt.Fprint(p.out, "> ")
		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return Decision{}, goerr.Wrap(err, "failed to read action")
			}
			return Decision{}, goerr.Wrap(ErrExhausted, "input closed")
		}
		line := strings.TrimSpace(p.in.Text())
		if line == "" {
			continue
		}
		if action, err := ParseResponse(line); err == nil {
			return Decision{Action: action}, nil
		}
		return Decision{Action: line}, nil
	}
}
