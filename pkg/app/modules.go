package app

// Compiled modules. Every module registers itself with the core registry
// from its init function.
import (
	_ "github.com/flemzord/chatrelay/internal/cron"
	_ "github.com/flemzord/chatrelay/internal/dispatch"
	_ "github.com/flemzord/chatrelay/internal/gateway"
	_ "github.com/flemzord/chatrelay/internal/telemetry"
	_ "github.com/flemzord/chatrelay/modules/channel/telegram"
	_ "github.com/flemzord/chatrelay/modules/history/memory"
	_ "github.com/flemzord/chatrelay/modules/history/redis"
	_ "github.com/flemzord/chatrelay/modules/history/sqlite"
	_ "github.com/flemzord/chatrelay/modules/provider/anthropic"
	_ "github.com/flemzord/chatrelay/modules/provider/gemini"
	_ "github.com/flemzord/chatrelay/modules/provider/openai"
)
