// Package persona loads the assistant personas: named system prompts that
// frame every provider call.
package persona

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/flemzord/chatrelay/internal/core"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknown is returned for a persona with no prompt.
	ErrUnknown = errors.New("persona: unknown persona")

	// ErrBlankPrompt is returned for a persona whose prompt is empty.
	ErrBlankPrompt = errors.New("persona: blank prompt")
)

// Resolver yields the system prompt of a persona.
type Resolver interface {
	Prompt(name string) (string, error)
}

// Set maps persona names to system prompts.
type Set map[string]string

var _ Resolver = Set(nil)

// Load reads a YAML document mapping persona name to prompt.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persona: read %s: %w", path, err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("persona: %s: %w", path, err)
	}
	return set, nil
}

// Parse decodes a YAML persona map.
func Parse(data []byte) (Set, error) {
	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if set == nil {
		set = Set{}
	}
	return set, nil
}

// Prompt implements Resolver.
func (s Set) Prompt(name string) (string, error) {
	prompt, ok := s[name]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknown, name)
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w for %q", ErrBlankPrompt, name)
	}
	return prompt, nil
}

// Require checks that the active persona resolves. A failure is a
// ConfigurationFailure: the bot must not start without a prompt.
func (s Set) Require(name string) error {
	if name == "" {
		return core.Misconfigured("persona", errors.New("persona: no assistant configured"))
	}
	if _, err := s.Prompt(name); err != nil {
		return core.Misconfigured("persona", fmt.Errorf("%w; add it to the personas file", err))
	}
	return nil
}

// Names returns the configured persona names, sorted.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
