package main

import (
	"io"
	"text/template"
)

// starterParams are the answers of the init wizard.
type starterParams struct {
	Provider   string
	Assistant  string
	Mode       string
	WebhookURL string
	Bind       string
	History    string
	RedisAddr  string
}

// Secrets stay out of the file: every module falls back to its environment
// variable when the key is unset.
var starterTmpl = template.Must(template.New("config").Parse(`# chatrelay configuration, generated by "chatrelay init".
#
# Secrets are read from the environment:
#   TELEGRAM_BOT_TOKEN
{{- if eq .Provider "openai"}}
#   OPENAI_API_KEY
{{- else if eq .Provider "gemini"}}
#   GEMINI_API_KEY
{{- else if eq .Provider "anthropic"}}
#   ANTHROPIC_API_KEY
{{- end}}
version: "1"

assistant: {{.Assistant}}
provider: {{.Provider}}
personas_file: resources/system_prompts.yaml
sanitizer: telegram

window:
  max_turns: 10
  max_age: 30m
  keep_turns: 10

dispatch_timeout: 60s
workers: 8
data_dir: data

modules:
  channel.telegram:
    mode: {{.Mode}}
{{- if eq .Mode "webhook"}}
    webhook_url: {{.WebhookURL}}
    webhook_secret: ${TELEGRAM_WEBHOOK_SECRET:-}

  gateway.http:
    bind: {{.Bind}}
{{- end}}

{{- if eq .History "redis"}}

  history.redis:
    addr: {{.RedisAddr}}
{{- else}}

  history.{{.History}}: {}
{{- end}}

  provider.{{.Provider}}: {}

  retention:
    schedule: "0 * * * *"
    max_age: 24h
`))

// renderStarter writes a starter configuration for p to w.
func renderStarter(w io.Writer, p starterParams) error {
	return starterTmpl.Execute(w, p)
}

var personasTmpl = template.Must(template.New("personas").Parse(`# Persona name -> system prompt. "assistant" in the configuration picks one.
{{.Assistant}}: |
  You are {{.Assistant}}, a friendly assistant chatting on Telegram.
  Keep answers short and conversational.
`))

func renderPersonas(w io.Writer, p starterParams) error {
	return personasTmpl.Execute(w, p)
}
