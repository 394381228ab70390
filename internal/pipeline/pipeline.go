// Package pipeline turns one inbound chat message into one rendered reply:
// ingest, window, dispatch, record, render. Stages run strictly in order,
// none is retried and completed stages are never rolled back.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/chatrelay/internal/conversation"
	"github.com/flemzord/chatrelay/internal/dispatch"
	"github.com/flemzord/chatrelay/internal/history"
	"github.com/flemzord/chatrelay/internal/provider"
	"github.com/flemzord/chatrelay/internal/sanitize"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default bounds for blocking calls.
const (
	DefaultDispatchTimeout = 60 * time.Second
	DefaultStoreTimeout    = 5 * time.Second
)

// TracerName is the instrumentation scope of pipeline spans.
const TracerName = "github.com/flemzord/chatrelay/internal/pipeline"

// Service is the name under which the running *Pipeline is published in the
// core service registry.
const Service = "conversation.pipeline"

// Deps are the collaborators of a Pipeline. Store, Adapter and Persona are
// required; everything else has a default.
type Deps struct {
	Store     history.Store
	Adapter   provider.Adapter
	Persona   string
	Sanitizer sanitize.Table
	Policy    history.Policy

	DispatchTimeout time.Duration
	StoreTimeout    time.Duration

	Logger  zerolog.Logger
	Metrics *Metrics
	Tracer  trace.Tracer
}

// Pipeline is safe for concurrent use. Calls for the same conversation key
// are serialized; calls for different keys run in parallel.
type Pipeline struct {
	deps  Deps
	lanes *dispatch.LaneLock[conversation.Key]
}

// New validates deps and fills defaults.
func New(deps Deps) (*Pipeline, error) {
	if deps.Store == nil {
		return nil, errors.New("pipeline: store is required")
	}
	if deps.Adapter == nil {
		return nil, errors.New("pipeline: adapter is required")
	}
	if deps.Persona == "" {
		return nil, errors.New("pipeline: persona is required")
	}
	if deps.Sanitizer.Escape == 0 {
		deps.Sanitizer = sanitize.Telegram
	}
	deps.Policy = deps.Policy.WithDefaults()
	if deps.DispatchTimeout <= 0 {
		deps.DispatchTimeout = DefaultDispatchTimeout
	}
	if deps.StoreTimeout <= 0 {
		deps.StoreTimeout = DefaultStoreTimeout
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(TracerName)
	}
	return &Pipeline{deps: deps, lanes: dispatch.NewLaneLock[conversation.Key]()}, nil
}

// Persona returns the active persona.
func (p *Pipeline) Persona() string { return p.deps.Persona }

// Provider returns the name of the active backend.
func (p *Pipeline) Provider() string { return p.deps.Adapter.Name() }

// Policy returns the effective retention policy.
func (p *Pipeline) Policy() history.Policy { return p.deps.Policy }

// Key returns the conversation key of chatID under the active persona.
func (p *Pipeline) Key(chatID int64) conversation.Key {
	return conversation.Key{ChatID: chatID, Persona: p.deps.Persona}
}

// HandleIncoming answers text sent in chatID and returns the rendered reply.
// Errors are *StageError; every abort is logged here and only here.
func (p *Pipeline) HandleIncoming(ctx context.Context, chatID int64, text string) (reply string, err error) {
	key := p.Key(chatID)
	ctx, span := p.deps.Tracer.Start(ctx, "pipeline.HandleIncoming", trace.WithAttributes(
		attribute.Int64("chat.id", chatID),
		attribute.String("persona", key.Persona),
		attribute.String("provider", p.Provider()),
	))
	defer span.End()

	p.lanes.Acquire(key)
	defer p.lanes.Release(key)

	defer func() {
		p.deps.Metrics.message(result(err))
		if err == nil {
			return
		}
		span.SetStatus(codes.Error, err.Error())
		ev := p.deps.Logger.Error().Err(err).Int64("chat_id", chatID).Str("persona", key.Persona)
		var se *StageError
		if errors.As(err, &se) {
			ev = ev.Str("stage", string(se.Stage))
		}
		ev.Msg("message aborted")
	}()

	partition := conversation.Partition{Key: key, Provider: p.Provider()}

	err = p.stage(ctx, StageIngest, key, func(ctx context.Context) error {
		return p.appendTurn(ctx, conversation.Turn{
			Key: key, Role: conversation.RoleUser, Content: text, Provider: partition.Provider,
		})
	})
	if err != nil {
		return "", err
	}

	var window []conversation.Turn
	err = p.stage(ctx, StageWindow, key, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, p.deps.StoreTimeout)
		defer cancel()
		var werr error
		window, werr = p.deps.Store.RecentWindow(ctx, key, p.deps.Policy.MaxAge, p.deps.Policy.MaxTurns)
		return history.Fail("window", key, werr)
	})
	if err != nil {
		return "", err
	}

	var raw string
	err = p.stage(ctx, StageDispatch, key, func(ctx context.Context) error {
		var derr error
		raw, derr = p.dispatch(ctx, window)
		return derr
	})
	if err != nil {
		return "", err
	}

	err = p.stage(ctx, StageRecord, key, func(ctx context.Context) error {
		return p.appendTurn(ctx, conversation.Turn{
			Key: key, Role: conversation.RoleAssistant, Content: raw, Provider: partition.Provider,
		})
	})
	if err != nil {
		return "", err
	}

	_ = p.stage(ctx, StageRender, key, func(context.Context) error {
		reply = p.deps.Sanitizer.Sanitize(raw)
		return nil
	})
	return reply, nil
}

// Window returns the turns the next message of chatID would be answered
// with, excluding that message.
func (p *Pipeline) Window(ctx context.Context, chatID int64) ([]conversation.Turn, error) {
	ctx, cancel := context.WithTimeout(ctx, p.deps.StoreTimeout)
	defer cancel()
	key := p.Key(chatID)
	turns, err := p.deps.Store.RecentWindow(ctx, key, p.deps.Policy.MaxAge, p.deps.Policy.MaxTurns)
	return turns, history.Fail("window", key, err)
}

func (p *Pipeline) stage(ctx context.Context, s Stage, key conversation.Key, fn func(context.Context) error) error {
	ctx, span := p.deps.Tracer.Start(ctx, "pipeline."+string(s))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	p.deps.Metrics.stage(s, time.Since(start))
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return &StageError{Stage: s, Key: key, Err: err}
}

// appendTurn persists turn, then trims its partition. Trimming is cost
// control: a failed trim is logged and counted, never fatal.
func (p *Pipeline) appendTurn(ctx context.Context, turn conversation.Turn) error {
	actx, cancel := context.WithTimeout(ctx, p.deps.StoreTimeout)
	defer cancel()
	if _, err := p.deps.Store.Append(actx, turn); err != nil {
		return history.Fail("append", turn.Key, err)
	}

	tctx, cancel := context.WithTimeout(ctx, p.deps.StoreTimeout)
	defer cancel()
	deleted, err := p.deps.Store.Trim(tctx, turn.Partition(), p.deps.Policy.KeepTurns)
	p.deps.Metrics.trim(deleted, err)
	if err != nil {
		p.deps.Logger.Warn().Err(err).
			Str("partition", turn.Partition().String()).
			Msg("trim failed; history may exceed its cap until the next trim")
	}
	return nil
}

// dispatch calls the adapter under the dispatch timeout and normalizes
// every failure into a *provider.Failure.
func (p *Pipeline) dispatch(ctx context.Context, window []conversation.Turn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.deps.DispatchTimeout)
	defer cancel()

	backend := p.Provider()
	reply, err := p.deps.Adapter.GenerateReply(ctx, window)
	switch {
	case err == nil && reply == "":
		err = provider.NoReply(backend, "empty reply")
	case err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, provider.ErrTimeout):
		err = &provider.Failure{Backend: backend, Err: fmt.Errorf("%w after %s: %w", provider.ErrTimeout, p.deps.DispatchTimeout, err)}
	default:
		err = provider.Normalize(backend, err)
	}
	if err != nil {
		var f *provider.Failure
		if errors.As(err, &f) {
			p.deps.Metrics.providerFailure(f)
		}
		return "", err
	}
	return reply, nil
}
