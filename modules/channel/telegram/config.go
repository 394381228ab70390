package telegram

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"slices"
)

// TokenEnv is consulted when the configuration carries no token.
const TokenEnv = "TELEGRAM_BOT_TOKEN"

// Delivery modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Defaults applied by Config.defaults.
const (
	DefaultStartReply   = "Selamat datang"
	DefaultErrorMessage = "Sorry, something went wrong. Please try again later."
	DefaultParseMode    = "MarkdownV2"
	MaxMessageUnits     = 4096
)

var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Config holds the Telegram transport configuration.
type Config struct {
	Token          string   `yaml:"token"`
	Mode           string   `yaml:"mode"`
	PollingTimeout int      `yaml:"polling_timeout"`
	WebhookURL     string   `yaml:"webhook_url"`
	WebhookSecret  string   `yaml:"webhook_secret"`
	AllowedUpdates []string `yaml:"allowed_updates"`

	// AllowChats restricts the bot to these chat IDs. Empty allows every chat.
	AllowChats []int64 `yaml:"allow_chats"`

	StartReply       string `yaml:"start_reply"`
	ErrorMessage     string `yaml:"error_message"`
	ParseMode        string `yaml:"parse_mode"`
	MaxMessageLength int    `yaml:"max_message_length"`
	APIURL           string `yaml:"api_url"`
}

func (c *Config) defaults() {
	if c.Token == "" {
		c.Token = os.Getenv(TokenEnv)
	}
	if c.Mode == "" || c.Mode == "longpolling" {
		c.Mode = ModePolling
	}
	if c.PollingTimeout == 0 {
		c.PollingTimeout = 30
	}
	if c.AllowedUpdates == nil {
		c.AllowedUpdates = []string{"message"}
	}
	if c.StartReply == "" {
		c.StartReply = DefaultStartReply
	}
	if c.ErrorMessage == "" {
		c.ErrorMessage = DefaultErrorMessage
	}
	if c.ParseMode == "" {
		c.ParseMode = DefaultParseMode
	}
	if c.MaxMessageLength == 0 {
		c.MaxMessageLength = MaxMessageUnits
	}
	if c.APIURL == "" {
		c.APIURL = "https://api.telegram.org"
	}
}

func (c *Config) validate() error {
	if c.Token == "" {
		return fmt.Errorf("token is required (set it in the module or via %s)", TokenEnv)
	}
	if !tokenPattern.MatchString(c.Token) {
		return errors.New("token format invalid (expected <bot_id>:<hash>)")
	}
	switch c.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.WebhookURL == "" {
			return errors.New(`webhook_url is required when mode is "webhook"`)
		}
		if u, err := url.Parse(c.WebhookURL); err != nil || u.Scheme != "https" || u.Host == "" {
			return fmt.Errorf("webhook_url must be an https URL, got %q", c.WebhookURL)
		}
	default:
		return fmt.Errorf(`invalid mode %q (must be "polling" or "webhook")`, c.Mode)
	}
	if u, err := url.Parse(c.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("api_url must be a valid http/https URL, got %q", c.APIURL)
	}
	if c.PollingTimeout < 0 || c.PollingTimeout > 50 {
		return fmt.Errorf("polling_timeout must be 0-50, got %d", c.PollingTimeout)
	}
	if c.MaxMessageLength < 1 || c.MaxMessageLength > MaxMessageUnits {
		return fmt.Errorf("max_message_length must be 1-%d, got %d", MaxMessageUnits, c.MaxMessageLength)
	}
	switch c.ParseMode {
	case "MarkdownV2", "none":
	default:
		return fmt.Errorf(`parse_mode must be "MarkdownV2" or "none", got %q`, c.ParseMode)
	}
	return nil
}

// allows reports whether chatID may talk to the bot.
func (c *Config) allows(chatID int64) bool {
	return len(c.AllowChats) == 0 || slices.Contains(c.AllowChats, chatID)
}
