package telegram

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Responder answers one text message of a chat with a rendered reply.
// *pipeline.Pipeline satisfies it.
type Responder interface {
	HandleIncoming(ctx context.Context, chatID int64, text string) (string, error)
}

// handler turns one queued message into Bot API calls. Calls for one chat
// arrive one at a time, in order.
type handler struct {
	client      *Client
	responder   Responder
	config      Config
	logger      zerolog.Logger
	botUsername string
}

func (h *handler) handle(ctx context.Context, msg *Message) {
	chatID := msg.Chat.ID
	logger := h.logger.With().Int64("chat_id", chatID).Int("message_id", msg.MessageID).Logger()

	if isStartCommand(msg.Text, h.botUsername) {
		h.sendPlain(ctx, logger, chatID, h.config.StartReply)
		return
	}

	if err := h.client.SendChatAction(ctx, chatID, "typing"); err != nil {
		logger.Debug().Err(err).Msg("typing indicator failed")
	}

	reply, err := h.responder.HandleIncoming(ctx, chatID, msg.Text)
	if err != nil {
		h.sendPlain(ctx, logger, chatID, h.config.ErrorMessage)
		return
	}

	parseMode := h.config.ParseMode
	if parseMode == "none" {
		parseMode = ""
	}
	for _, chunk := range SplitReply(reply, h.config.MaxMessageLength) {
		if _, err := h.client.SendMessage(ctx, SendMessageRequest{
			ChatID:    chatID,
			Text:      chunk,
			ParseMode: parseMode,
		}); err != nil {
			logger.Error().Err(err).Msg("sending reply failed")
			h.sendPlain(ctx, logger, chatID, h.config.ErrorMessage)
			return
		}
	}
	logger.Debug().Int("reply_runes", len([]rune(reply))).Msg("reply sent")
}

func (h *handler) sendPlain(ctx context.Context, logger zerolog.Logger, chatID int64, text string) {
	if _, err := h.client.SendMessage(ctx, SendMessageRequest{ChatID: chatID, Text: text}); err != nil {
		logger.Error().Err(err).Msg("sending message failed")
	}
}

// isStartCommand matches "/start" and "/start@<botUsername>", with or
// without a payload after it.
func isStartCommand(text, botUsername string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	cmd, target, addressed := strings.Cut(fields[0], "@")
	if cmd != "/start" {
		return false
	}
	return !addressed || strings.EqualFold(target, botUsername)
}
