package telegram

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

const (
	maxConsecutivePollingErrors = 5
	errorPauseDuration          = 30 * time.Second
)

// Poller long-polls getUpdates and hands every update to submit. The offset
// advances past an update whether or not submit accepted it.
type Poller struct {
	client *Client
	submit func(*Update) error
	logger zerolog.Logger
	config Config
	pause  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a Poller.
func NewPoller(client *Client, submit func(*Update) error, logger zerolog.Logger, config Config) *Poller {
	return &Poller{
		client: client,
		submit: submit,
		logger: logger,
		config: config,
		pause:  errorPauseDuration,
		done:   make(chan struct{}),
	}
}

// Start launches the polling loop.
func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.loop(ctx)
}

// Stop cancels the in-flight getUpdates and waits for the loop to exit. It
// is safe to call more than once.
func (p *Poller) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	var offset, consecutiveErrors int
	for ctx.Err() == nil {
		updates, err := p.client.GetUpdates(ctx, GetUpdatesRequest{
			Offset:         offset,
			Timeout:        p.config.PollingTimeout,
			AllowedUpdates: p.config.AllowedUpdates,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			consecutiveErrors++
			p.logger.Error().Err(err).Int("consecutive_errors", consecutiveErrors).Msg("getUpdates failed")
			if consecutiveErrors >= maxConsecutivePollingErrors {
				p.logger.Warn().Dur("pause", p.pause).Msg("polling paused after consecutive errors")
				select {
				case <-ctx.Done():
					return
				case <-time.After(p.pause):
				}
				consecutiveErrors = 0
			}
			continue
		}
		consecutiveErrors = 0

		for i := range updates {
			offset = updates[i].UpdateID + 1
			if err := p.submit(&updates[i]); err != nil {
				p.logger.Error().Err(err).Int("update_id", updates[i].UpdateID).Msg("update dropped")
			}
		}
	}
}
