package history

import (
	"errors"
	"fmt"

	"github.com/flemzord/chatrelay/internal/conversation"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("history: store closed")

// StorageFailure reports that the store was unreachable or rejected an
// operation. A failed Append never leaves a partial write behind.
type StorageFailure struct {
	Op  string
	Key conversation.Key
	Err error
}

func (e *StorageFailure) Error() string {
	if e.Key == (conversation.Key{}) {
		return fmt.Sprintf("history: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("history: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageFailure) Unwrap() error { return e.Err }

// Fail wraps err as a StorageFailure. A nil err yields nil.
func Fail(op string, key conversation.Key, err error) error {
	if err == nil {
		return nil
	}
	var sf *StorageFailure
	if errors.As(err, &sf) {
		return err
	}
	return &StorageFailure{Op: op, Key: key, Err: err}
}
