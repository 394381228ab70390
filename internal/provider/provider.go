// Package provider defines the contract between the conversation pipeline
// and an LLM backend. Concrete adapters live under modules/provider and
// register as core modules named provider.<name>.
package provider

import (
	"context"
	"fmt"

	"github.com/flemzord/chatrelay/internal/conversation"
	"github.com/flemzord/chatrelay/internal/core"
	"github.com/flemzord/chatrelay/internal/persona"
)

// Namespace is the module namespace every adapter registers under.
const Namespace = "provider"

// Service names published on the AppContext.
const (
	// Service is where the loaded adapter publishes itself.
	Service = "provider.adapter"

	// PersonaService is where the app publishes the persona.Resolver
	// adapters read system prompts from.
	PersonaService = "persona.resolver"
)

// Adapter turns a conversation window into one reply from a backend.
type Adapter interface {
	// Name identifies the backend. It is stored on every turn as the
	// retention partition.
	Name() string

	// GenerateReply answers the last turn of window using every earlier
	// turn as context. The system prompt of the last turn's persona is
	// sent exactly once. Errors are *Failure.
	GenerateReply(ctx context.Context, window []conversation.Turn) (string, error)
}

// ModuleID returns the module identifier of the named adapter.
func ModuleID(name string) core.ModuleID {
	return core.ModuleID(Namespace + "." + name)
}

// FromApp returns the adapter published by the loaded provider module.
func FromApp(ctx *core.AppContext) (Adapter, error) {
	adapter, err := core.ServiceAs[Adapter](ctx, Service)
	if err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}
	return adapter, nil
}

// PersonasFromApp returns the persona resolver adapters use.
func PersonasFromApp(ctx *core.AppContext) (persona.Resolver, error) {
	resolver, err := core.ServiceAs[persona.Resolver](ctx, PersonaService)
	if err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}
	return resolver, nil
}

// Request is a window split into what every backend needs.
type Request struct {
	System  string
	History []conversation.Turn
	Last    conversation.Turn
}

// Prepare splits window and resolves the system prompt of its last turn.
// An empty window or an unknown persona is an ErrBadRequest failure.
func Prepare(backend string, personas persona.Resolver, window []conversation.Turn) (Request, error) {
	history, last, ok := conversation.Split(window)
	if !ok {
		return Request{}, &Failure{Backend: backend, Detail: "empty window", Err: ErrBadRequest}
	}
	system, err := personas.Prompt(last.Key.Persona)
	if err != nil {
		return Request{}, &Failure{Backend: backend, Detail: "system prompt", Err: fmt.Errorf("%w: %w", ErrBadRequest, err)}
	}
	return Request{System: system, History: history, Last: last}, nil
}

// Turns returns History followed by Last.
func (r Request) Turns() []conversation.Turn {
	out := make([]conversation.Turn, 0, len(r.History)+1)
	out = append(out, r.History...)
	return append(out, r.Last)
}
