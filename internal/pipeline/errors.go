package pipeline

import (
	"errors"
	"fmt"

	"github.com/flemzord/chatrelay/internal/conversation"
	"github.com/flemzord/chatrelay/internal/history"
	"github.com/flemzord/chatrelay/internal/provider"
)

// Stage names one step of HandleIncoming.
type Stage string

// Stages in execution order.
const (
	StageIngest   Stage = "ingest"
	StageWindow   Stage = "window"
	StageDispatch Stage = "dispatch"
	StageRecord   Stage = "record"
	StageRender   Stage = "render"
)

// StageError reports which stage aborted a message and for which
// conversation. Err is a *history.StorageFailure or *provider.Failure.
type StageError struct {
	Stage Stage
	Key   conversation.Key
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: %s %s: %v", e.Stage, e.Key, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// result classifies an outcome for the messages_total metric.
func result(err error) string {
	var (
		pf *provider.Failure
		sf *history.StorageFailure
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &pf):
		return "provider_failure"
	case errors.As(err, &sf):
		return "storage_failure"
	default:
		return "error"
	}
}
