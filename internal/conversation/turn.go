// Package conversation defines the stored unit of a chat (Turn) and the keys
// that partition chat history.
package conversation

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Role identifies who authored a turn.
type Role string

// The only two valid roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Key identifies one independent history stream: a chat talking to one
// persona. The same chat may run several personas side by side.
type Key struct {
	ChatID  int64
	Persona string
}

func (k Key) String() string {
	return strconv.FormatInt(k.ChatID, 10) + "/" + k.Persona
}

// Partition is the retention unit: a conversation key further split by the
// provider that produced (or will produce) the replies.
type Partition struct {
	Key
	Provider string
}

func (p Partition) String() string {
	return p.Key.String() + "/" + p.Provider
}

// Turn is one stored message. Turns are never edited; retention is the only
// thing that deletes them.
type Turn struct {
	ID        string
	Key       Key
	Role      Role
	Content   string
	Provider  string
	CreatedAt time.Time
}

// Partition returns the retention partition the turn belongs to.
func (t Turn) Partition() Partition {
	return Partition{Key: t.Key, Provider: t.Provider}
}

var (
	ErrInvalidRole   = errors.New("conversation: invalid role")
	ErrMissingChat   = errors.New("conversation: chat id is required")
	ErrMissingAuthor = errors.New("conversation: persona and provider are required")
)

// Validate checks the fields a store requires before persisting a turn.
func (t Turn) Validate() error {
	if !t.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, t.Role)
	}
	if t.Key.ChatID == 0 {
		return ErrMissingChat
	}
	if t.Key.Persona == "" || t.Provider == "" {
		return ErrMissingAuthor
	}
	return nil
}

// Split separates a window into prior context and the turn to answer.
// It returns ok=false for an empty window.
func Split(window []Turn) (history []Turn, last Turn, ok bool) {
	if len(window) == 0 {
		return nil, Turn{}, false
	}
	return window[:len(window)-1], window[len(window)-1], true
}
