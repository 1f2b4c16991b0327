package episode

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sirupsen/logrus"

	"github.com/boristopalov/sciworld/internal/logging"
	"github.com/boristopalov/sciworld/pkg/core"
	"github.com/boristopalov/sciworld/pkg/messaging"
	"github.com/boristopalov/sciworld/pkg/prompt"
	"github.com/boristopalov/sciworld/pkg/transcript"
)

// Episode is one run of a task variation, kept as a chat transcript. It
// never locks itself after completion; callers decide when to stop.
type Episode struct {
	id        string
	env       core.Env
	task      string
	variation int
	prompts   *prompt.Prompts

	logger *logrus.Logger
	broker messaging.Publisher
	repo   transcript.Repository

	mu              sync.Mutex
	transcript      *transcript.Transcript
	taskDescription string
	goldPath        []string
	snapshot        *core.Snapshot
	steps           int
	createdAt       time.Time
}

type Params struct {
	ID         string
	Style      *prompt.Style
	Prompts    *prompt.Prompts
	Logger     *logrus.Logger
	Broker     messaging.Publisher
	Repository transcript.Repository
}

type Option func(*Params)

func WithID(id string) Option {
	return func(p *Params) {
		p.ID = id
	}
}

// WithStyle compiles s when the episode is created.
func WithStyle(s prompt.Style) Option {
	return func(p *Params) {
		p.Style = &s
	}
}

// WithPrompts uses already compiled prompts and takes precedence over WithStyle.
func WithPrompts(prompts *prompt.Prompts) Option {
	return func(p *Params) {
		p.Prompts = prompts
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(p *Params) {
		p.Logger = logger
	}
}

// WithBroker publishes every message the episode writes.
func WithBroker(b messaging.Publisher) Option {
	return func(p *Params) {
		p.Broker = b
	}
}

// WithRepository saves the transcript after creation and after every step.
func WithRepository(r transcript.Repository) Option {
	return func(p *Params) {
		p.Repository = r
	}
}

func defaultParams() *Params {
	return &Params{
		ID:     "episode-" + uuid.New().String(),
		Logger: logging.Discard(),
	}
}

// New loads the task variation and writes the system and first user prompts.
func New(ctx context.Context, env core.Env, task string, variation int, opts ...Option) (*Episode, error) {
	params := defaultParams()
	for _, opt := range opts {
		opt(params)
	}

	prompts := params.Prompts
	if prompts == nil {
		style := prompt.Default()
		if params.Style != nil {
			style = *params.Style
		}
		var err error
		if prompts, err = prompt.Compile(style); err != nil {
			return nil, goerr.Wrap(err, "failed to compile prompt style", goerr.Value("style", style.Name))
		}
	}

	e := &Episode{
		id:         params.ID,
		env:        env,
		task:       task,
		variation:  variation,
		prompts:    prompts,
		logger:     params.Logger,
		broker:     params.Broker,
		repo:       params.Repository,
		transcript: transcript.New(),
		createdAt:  time.Now().UTC(),
	}

	snap, err := env.Load(ctx, task, variation)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load task", goerr.Value("task", task), goerr.Value("variation", variation))
	}

	data, err := prompts.Data(snap)
	if err != nil {
		return nil, err
	}
	system, err := prompts.System(data)
	if err != nil {
		return nil, err
	}
	user, err := prompts.UserFirst(data)
	if err != nil {
		return nil, err
	}

	e.transcript.SetSystem(system)
	if err := e.transcript.Append(core.RoleUser, user); err != nil {
		return nil, err
	}
	e.taskDescription = snap.TaskDescription
	e.goldPath = append([]string{}, snap.GoldPath...)
	e.snapshot = snap

	e.log().WithField("style", prompts.Style().Name).Debug("episode loaded")
	e.publish(0, false)
	e.publish(1, false)
	if err := e.save(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Step takes action and records it. assistant, when non-empty, is recorded
// instead of the action. It returns the snapshot's completion flag.
//
// Prompts are rendered before the transcript changes, so a failed step leaves
// the transcript as it was.
func (e *Episode) Step(ctx context.Context, action string, assistant string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.env.Step(ctx, action)
	if err != nil {
		return false, goerr.Wrap(err, "failed to step", goerr.Value("action", action), goerr.Value("episode", e.id))
	}

	data, err := e.prompts.Data(snap)
	if err != nil {
		return false, err
	}

	var system string
	refresh := e.prompts.RefreshSystem()
	if refresh {
		sysData := maps.Clone(data).Set(core.KeyTaskDescription, e.taskDescription)
		if system, err = e.prompts.System(sysData); err != nil {
			return false, err
		}
	}
	user, err := e.prompts.User(data)
	if err != nil {
		return false, err
	}

	if assistant == "" {
		assistant = action
	}
	if refresh {
		e.transcript.SetSystem(system)
	}
	if err := e.transcript.Append(core.RoleAssistant, assistant); err != nil {
		return false, err
	}
	if err := e.transcript.Append(core.RoleUser, user); err != nil {
		return false, err
	}
	e.snapshot = snap
	e.steps++

	score, _ := snap.Score()
	e.log().WithFields(logrus.Fields{
		"step":     e.steps,
		"action":   action,
		"reward":   snap.Reward,
		"score":    score,
		"complete": snap.Complete,
	}).Debug("step")
	if snap.Complete {
		e.log().WithFields(logrus.Fields{"steps": e.steps, "score": score}).Info("task complete")
	}

	n := e.transcript.Len()
	if refresh {
		e.publish(0, true)
	}
	e.publish(n-2, false)
	e.publish(n-1, false)

	if err := e.save(ctx); err != nil {
		return snap.Complete, err
	}
	return snap.Complete, nil
}

func (e *Episode) ID() string { return e.id }

func (e *Episode) Task() string { return e.task }

func (e *Episode) Variation() int { return e.variation }

// Messages returns a copy of the transcript.
func (e *Episode) Messages() []core.Message {
	return e.transcript.Messages()
}

// Transcript renders the transcript in its debug form.
func (e *Episode) Transcript() string {
	return e.transcript.String()
}

// Snapshot returns the latest environment snapshot.
func (e *Episode) Snapshot() *core.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot
}

// GoldPath returns the gold action sequence reported at load time, if any.
func (e *Episode) GoldPath() []string {
	return append([]string{}, e.goldPath...)
}

func (e *Episode) Steps() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.steps
}

// Record returns the persistable form of the episode.
func (e *Episode) Record() *transcript.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record()
}

// must hold e.mu or be called before the episode is shared
func (e *Episode) record() *transcript.Record {
	score, _ := e.snapshot.Score()
	return &transcript.Record{
		ID:        e.id,
		Task:      e.task,
		Variation: e.variation,
		Style:     e.prompts.Style().Name,
		Steps:     e.steps,
		Complete:  e.snapshot.Complete,
		Score:     score,
		Messages:  e.transcript.Messages(),
		CreatedAt: e.createdAt,
	}
}

func (e *Episode) save(ctx context.Context) error {
	if e.repo == nil {
		return nil
	}
	if err := e.repo.Save(ctx, e.record()); err != nil {
		return goerr.Wrap(err, "failed to save transcript", goerr.Value("episode", e.id))
	}
	return nil
}

func (e *Episode) publish(index int, replaced bool) {
	if e.broker == nil {
		return
	}
	msgs := e.transcript.Messages()
	if index < 0 || index >= len(msgs) {
		return
	}
	ev := messaging.Event{
		EpisodeID: e.id,
		Index:     index,
		Message:   msgs[index],
		Replaced:  replaced,
		Complete:  e.snapshot != nil && e.snapshot.Complete,
		Timestamp: time.Now(),
	}
	if err := e.broker.Publish(ev); err != nil {
		e.log().WithError(err).Warn("failed to publish message")
	}
}

func (e *Episode) log() *logrus.Entry {
	return e.logger.WithFields(logrus.Fields{
		"episode":   e.id,
		"task":      e.task,
		"variation": e.variation,
	})
}
