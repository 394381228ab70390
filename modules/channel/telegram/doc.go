// Package telegram is the Telegram Bot API transport of chatrelay.
//
// Text messages received by long polling or through the gateway webhook are
// queued per chat on the shared dispatch queue, answered by the conversation
// pipeline and sent back as MarkdownV2, split to fit Telegram's message
// limit. "/start" is answered with a fixed greeting; other updates are
// ignored.
//
// The module registers itself as "channel.telegram" and talks to the Bot API
// over raw net/http + encoding/json.
package telegram
