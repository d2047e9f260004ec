package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jwebster45206/scene-tracker/internal/services"
	"github.com/jwebster45206/scene-tracker/pkg/chat"
	"github.com/jwebster45206/scene-tracker/pkg/prompts"
	"github.com/jwebster45206/scene-tracker/pkg/storage"
	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

const notifyTimeout = 2 * time.Second

// Notifier receives the outcome of generation cycles. Failures to notify are
// logged and never fail a cycle.
type Notifier interface {
	PublishRequestProcessing(ctx context.Context, chatID uuid.UUID, requestID string, index int) error
	PublishTrackerUpdated(ctx context.Context, chatID uuid.UUID, requestID string, index int) error
	PublishRequestFailed(ctx context.Context, chatID uuid.UUID, requestID string, index int, errorMsg string) error
}

// Request describes one generation cycle.
type Request struct {
	RequestID string
	ChatID    uuid.UUID
	// Target is the message that receives the merged tracker. Negative
	// means the result is returned without being stored.
	Target int
	// Anchor is the last message the model reads. Negative means the
	// non-system message before Target, or the newest one without a target.
	Anchor int
	// Include selects the fields the model is asked for. Empty means dynamic.
	Include tracker.Include
}

// Result is the outcome of a cycle. It is returned on failure too and then
// carries the trace up to FAILED.
type Result struct {
	RequestID   string
	Target      int
	Anchor      int
	Tracker     *tracker.Object
	ShapeErrors []*tracker.MergeShapeError
	Trace       []State
	Committed   bool
}

func (r *Result) enter(s State) {
	r.Trace = append(r.Trace, s)
}

// State returns the last state the cycle reached.
func (r *Result) State() State {
	if len(r.Trace) == 0 {
		return StateIdle
	}
	return r.Trace[len(r.Trace)-1]
}

// Generator runs tracker generation cycles: prompt, model call with one
// fallback, parse, merge against the freshest baseline, commit.
type Generator struct {
	storage  storage.Storage
	primary  services.LLMService
	fallback services.LLMService
	settings prompts.Settings
	notifier Notifier
	logger   *slog.Logger

	schemas  singleflight.Group
	inflight *inflight
}

// New creates a generator. A nil fallback retries on the primary service
// with the prompt flattened into a single message.
func New(store storage.Storage, primary, fallback services.LLMService, settings prompts.Settings, logger *slog.Logger) *Generator {
	if fallback == nil {
		fallback = primary
	}
	return &Generator{
		storage:  store,
		primary:  primary,
		fallback: fallback,
		settings: settings,
		logger:   logger,
		inflight: newInflight(),
	}
}

// WithNotifier sets the receiver of cycle outcomes.
func (g *Generator) WithNotifier(n Notifier) *Generator {
	g.notifier = n
	return g
}

// Settings returns the generation settings.
func (g *Generator) Settings() prompts.Settings {
	return g.settings
}

// Schema returns the stored schema, or the default schema when none is
// stored. Concurrent callers share one storage read, which outlives the
// cancellation of whichever caller started it.
func (g *Generator) Schema(ctx context.Context) (*tracker.Schema, error) {
	ch := g.schemas.DoChan("schema", func() (interface{}, error) {
		s, err := g.storage.LoadSchema(context.WithoutCancel(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to load schema: %w", err)
		}
		if s == nil {
			s = tracker.DefaultSchema()
		}
		return s, nil
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*tracker.Schema), nil
	case <-ctx.Done():
		return nil, checkCtx(ctx)
	}
}

// Generate runs one cycle. A newer request for the same chat and target
// cancels this one, which then returns ErrSuperseded without committing.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	res := &Result{RequestID: req.RequestID, Target: req.Target, Anchor: req.Anchor}
	res.enter(StateIdle)
	log := g.logger.With("chat_id", req.ChatID.String(), "target", req.Target, "request_id", req.RequestID)

	ctx, done := g.inflight.begin(ctx, cycleKey{chatID: req.ChatID, target: req.Target})
	defer done()

	g.notify(func(nctx context.Context) error {
		return g.notifier.PublishRequestProcessing(nctx, req.ChatID, req.RequestID, req.Target)
	})

	if err := g.run(ctx, req, res, log); err != nil {
		res.enter(StateFailed)
		if errors.Is(err, ErrSuperseded) {
			log.Info("Tracker generation superseded")
			return res, err
		}
		log.Warn("Tracker generation failed", "error", err, "trace", res.Trace)
		g.notify(func(nctx context.Context) error {
			return g.notifier.PublishRequestFailed(nctx, req.ChatID, req.RequestID, req.Target, err.Error())
		})
		return res, err
	}

	if res.Committed {
		g.notify(func(nctx context.Context) error {
			return g.notifier.PublishTrackerUpdated(nctx, req.ChatID, req.RequestID, req.Target)
		})
	}
	log.Info("Tracker generated", "anchor", res.Anchor, "committed", res.Committed, "shape_errors", len(res.ShapeErrors))
	return res, nil
}

func (g *Generator) run(ctx context.Context, req Request, res *Result, log *slog.Logger) error {
	schema, err := g.Schema(ctx)
	if err != nil {
		return err
	}
	c, err := g.loadChat(ctx, req.ChatID)
	if err != nil {
		return err
	}

	anchor, err := resolveAnchor(c, req)
	if err != nil {
		return err
	}
	res.Anchor = anchor

	include := req.Include
	if include == "" {
		include = tracker.IncludeDynamic
	}
	messages, err := prompts.New().
		WithChat(c).
		WithSchema(schema).
		WithSettings(g.settings).
		WithInclude(include).
		WithAnchor(anchor).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build prompt: %w", err)
	}
	res.enter(StatePromptBuilt)

	text, err := g.callModel(ctx, messages, res, log)
	if err != nil {
		return err
	}

	candidate, err := tracker.Deserialize(text, g.settings.Format)
	if err != nil {
		res.enter(StateParseFail)
		log.Debug("Unparseable model output", "response", text)
		return err
	}
	res.enter(StateParseOK)

	unlock := g.inflight.lock(req.ChatID)
	defer unlock()

	// The chat may have changed while the model was working.
	c, err = g.loadChat(ctx, req.ChatID)
	if err != nil {
		return err
	}
	merged := tracker.Update(baseline(c, anchor, schema), candidate, schema, tracker.UpdateOptions{
		Include: tracker.IncludeAll,
		Full:    true,
	})
	for _, e := range merged.ShapeErrors {
		log.Warn("Ignored tracker value", "error", e)
	}
	res.Tracker = merged.Instance
	res.ShapeErrors = merged.ShapeErrors
	res.enter(StateMerged)

	if req.Target < 0 {
		return nil
	}
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := g.storage.SaveTracker(ctx, req.ChatID, req.Target, merged.Instance); err != nil {
		return fmt.Errorf("failed to save tracker: %w", err)
	}
	res.Committed = true
	return nil
}

// callModel asks the primary service, then exactly once the fallback path.
func (g *Generator) callModel(ctx context.Context, messages []chat.ChatMessage, res *Result, log *slog.Logger) (string, error) {
	maxTokens := g.settings.MaxTokens()

	res.enter(StateAwaitingModel)
	text, primaryErr := g.primary.Generate(ctx, messages, maxTokens)
	if primaryErr == nil {
		return text, nil
	}
	if err := checkCtx(ctx); err != nil {
		return "", err
	}

	log.Warn("Primary tracker generation failed, using fallback", "error", primaryErr)
	res.enter(StateAwaitingFallback)
	flat := []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: prompts.Prompt(messages)}}
	text, fallbackErr := g.fallback.Generate(ctx, flat, maxTokens)
	if fallbackErr == nil {
		return text, nil
	}
	if err := checkCtx(ctx); err != nil {
		return "", err
	}
	return "", &TransportError{Primary: primaryErr, Fallback: fallbackErr}
}

func (g *Generator) loadChat(ctx context.Context, id uuid.UUID) (*chat.Chat, error) {
	c, err := g.storage.LoadChat(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrNoChat, id)
	}
	return c, nil
}

func (g *Generator) notify(publish func(context.Context) error) {
	if g.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := publish(ctx); err != nil {
		g.logger.Warn("Failed to publish generation event", "error", err)
	}
}

// resolveAnchor picks the last message the model reads.
func resolveAnchor(c *chat.Chat, req Request) (int, error) {
	if req.Target >= 0 {
		if _, err := c.Message(req.Target); err != nil {
			return 0, err
		}
	}
	if req.Anchor >= 0 {
		if _, err := c.Message(req.Anchor); err != nil {
			return 0, err
		}
		return req.Anchor, nil
	}

	var anchor int
	if req.Target >= 0 {
		anchor = c.PreviousNonSystem(req.Target)
	} else {
		anchor = c.LastNonSystem()
	}
	if anchor < 0 {
		return 0, ErrNoAnchor
	}
	return anchor, nil
}

// baseline returns the instance a candidate is merged into: the newest
// tracker at or before anchor without its ephemeral fields, or a blank
// instance.
func baseline(c *chat.Chat, anchor int, s *tracker.Schema) *tracker.Object {
	if prev, _ := c.LastTracker(anchor); prev != nil {
		return tracker.StripEphemeral(prev, s)
	}
	blank, err := tracker.BuildInstance(s, tracker.IncludeAll, tracker.Blank())
	if err != nil {
		return tracker.NewObject()
	}
	return blank
}

func checkCtx(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	if cause := context.Cause(ctx); errors.Is(cause, ErrSuperseded) {
		return ErrSuperseded
	}
	return ctx.Err()
}
