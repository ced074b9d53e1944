package config

// Defaults returns a config with every optional field filled in. The bot
// token is left empty and must come from the config file.
func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Bot: BotConfig{
			BotURL:         "http://localhost",
			APIURL:         "https://api.chat-api.com/instance000000",
			TimeoutSeconds: 30,
		},
		Server: ServerConfig{
			Host:        "",
			Port:        80,
			WebhookPath: "/webhook",
			FilesDir:    "./files",
		},
		Audit: AuditConfig{
			Enabled: false,
			DBPath:  "~/.wabot/journal.db",
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}

// Template returns the config written by "wabot init": defaults with the
// token read from the environment at load time.
func Template() *Config {
	cfg := Defaults()
	cfg.Bot.Token = "${WABOT_TOKEN}"
	cfg.Bot.BotURL = "${WABOT_BOT_URL:-http://localhost}"
	cfg.Bot.APIURL = "${WABOT_API_URL:-https://api.chat-api.com/instance000000}"
	return cfg
}
