package generate

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/promptshot/pkg/model"
	"github.com/m-mizutani/promptshot/pkg/policy"
	"github.com/m-mizutani/promptshot/pkg/service/imagegen"
	"github.com/m-mizutani/promptshot/pkg/usecase/history"
	"github.com/m-mizutani/promptshot/pkg/utils/logging"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseGenerating Phase = "generating"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// State is a snapshot of the controller for presentation
type State struct {
	Phase    Phase
	Prompt   string
	ImageURL string
	// Message is the user visible error of the last attempt, if any
	Message string
}

// Controller drives one generate-and-display cycle at a time
type Controller struct {
	provider imagegen.ImageProvider
	store    *history.Store
	checker  policy.Checker
	now      func() time.Time

	mu     sync.Mutex
	state  State
	epoch  uint64
	closed bool
}

// Option is a functional option for Controller
type Option func(*Controller)

// WithPolicy enables prompt policy checks while validating
func WithPolicy(checker policy.Checker) Option {
	return func(c *Controller) {
		c.checker = checker
	}
}

// WithClock sets the clock used for request and entry timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// New creates a new Controller in the idle phase
func New(provider imagegen.ImageProvider, store *history.Store, opts ...Option) *Controller {
	c := &Controller{
		provider: provider,
		store:    store,
		now:      time.Now,
		state:    State{Phase: PhaseIdle},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetPrompt edits the prompt. The prompt is read-only while generating.
func (c *Controller) SetPrompt(prompt string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase == PhaseGenerating {
		return model.ErrBusy
	}
	c.state.Prompt = prompt
	return nil
}

// Reset clears the result, the message and the prompt. It returns false and
// does nothing while a submit is in flight.
func (c *Controller) Reset() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight() {
		return false
	}
	c.state = State{Phase: PhaseIdle}
	return true
}

// Close detaches the controller. A generation still in flight completes but
// its result is discarded and not added to history.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.epoch++
}

// inFlight must be called with c.mu held
func (c *Controller) inFlight() bool {
	return c.state.Phase == PhaseValidating || c.state.Phase == PhaseGenerating
}

// current reports whether epoch still owns the state. It must be called with
// c.mu held.
func (c *Controller) current(epoch uint64) bool {
	return !c.closed && epoch == c.epoch
}

// Submit validates the current prompt and generates an image for it. On
// success the result is added to history and the stored entry is returned.
// The lock is never held across policy evaluation, the provider call or the
// history write.
func (c *Controller) Submit(ctx context.Context) (*model.HistoryEntry, error) {
	req, epoch, err := c.begin()
	if err != nil {
		return nil, err
	}

	logger := logging.Component(ctx, "generate")

	if err := c.checkPolicy(ctx, req, epoch); err != nil {
		return nil, err
	}

	logger.Info("generating image", "prompt", req.Prompt)
	imageURL, genErr := c.provider.Generate(ctx, req.Prompt)
	if genErr == nil && imageURL == "" {
		genErr = goerr.New("image provider returned an empty URL")
	}

	c.mu.Lock()
	if !c.current(epoch) {
		c.mu.Unlock()
		logger.Debug("discarding stale generation result", "prompt", req.Prompt)
		return nil, goerr.New("controller was closed during generation")
	}

	if genErr != nil {
		defer c.mu.Unlock()
		logger.Error("image generation failed",
			"error", genErr,
			"prompt", req.Prompt,
			"elapsed", c.now().Sub(req.SubmittedAt))
		c.state.Phase = PhaseFailed
		c.state.ImageURL = ""
		c.state.Message = model.ErrGenerationFailed.Error()
		return nil, goerr.Wrap(model.ErrGenerationFailed, "image provider rejected the request",
			goerr.V("prompt", req.Prompt),
			goerr.V("cause", genErr.Error()))
	}
	timestamp := model.NewTimestamp(c.now())
	c.mu.Unlock()

	// The phase stays generating until the entry is recorded, so no other
	// submit can interleave here.
	entries := c.store.Append(ctx, model.HistoryEntry{
		ImageURL:  imageURL,
		Prompt:    req.Prompt,
		Timestamp: timestamp,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current(epoch) {
		c.state.Phase = PhaseSucceeded
		c.state.ImageURL = imageURL
		c.state.Message = ""
	}

	logger.Info("image generated", "prompt", req.Prompt, "url", imageURL)
	return &entries[0], nil
}

// begin validates the prompt and moves to the validating phase
func (c *Controller) begin() (*model.GenerationRequest, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, 0, goerr.New("controller is closed")
	}
	if c.inFlight() {
		return nil, 0, model.ErrBusy
	}

	prompt := strings.TrimSpace(c.state.Prompt)
	if prompt == "" {
		c.state.Phase = PhaseIdle
		c.state.ImageURL = ""
		c.state.Message = model.ErrEmptyPrompt.Error()
		return nil, 0, model.ErrEmptyPrompt
	}

	c.state.Phase = PhaseValidating
	c.state.ImageURL = ""
	c.state.Message = ""
	c.epoch++

	return &model.GenerationRequest{
		Prompt:      prompt,
		SubmittedAt: c.now(),
	}, c.epoch, nil
}

// checkPolicy evaluates the prompt policy without the lock and moves to the
// generating phase if the prompt is allowed
func (c *Controller) checkPolicy(ctx context.Context, req *model.GenerationRequest, epoch uint64) error {
	var reasons []string
	if c.checker != nil {
		r, err := c.checker.Check(ctx, req.Prompt)
		if err != nil {
			// Policy errors fail open
			logging.Component(ctx, "generate").Warn("prompt policy evaluation failed, allowing prompt",
				"error", err)
		} else {
			reasons = r
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.current(epoch) {
		return goerr.New("controller was closed during validation")
	}

	if len(reasons) > 0 {
		c.state.Phase = PhaseIdle
		c.state.ImageURL = ""
		c.state.Message = reasons[0]
		return goerr.Wrap(model.ErrPromptRejected, reasons[0],
			goerr.V("reasons", reasons))
	}

	c.state.Phase = PhaseGenerating
	return nil
}
