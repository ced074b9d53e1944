package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := Defaults()
	cfg.Bot.Token = "abcdef123456"
	cfg.Bot.APIURL = "https://eu1.chat-api.com/instance1"
	cfg.Bot.BotURL = "https://bot.example.com"
	return cfg
}

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_DefaultsNeedToken(t *testing.T) {
	err := Validate(Defaults())
	if err == nil {
		t.Fatal("expected error for missing token")
	}
	if !strings.Contains(err.Error(), "bot.token is required") {
		t.Errorf("expected token error, got: %v", err)
	}
}

func TestValidate_UnresolvedTokenVar(t *testing.T) {
	cfg := validConfig()
	cfg.Bot.Token = "${WABOT_TOKEN}"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unresolved token variable")
	}
}

func TestValidate_InvalidURLs(t *testing.T) {
	for _, raw := range []string{"", "not a url", "ftp://host", "http://"} {
		cfg := validConfig()
		cfg.Bot.APIURL = raw
		if err := Validate(cfg); err == nil {
			t.Errorf("apiUrl %q should be rejected", raw)
		}

		cfg = validConfig()
		cfg.Bot.BotURL = raw
		if err := Validate(cfg); err == nil {
			t.Errorf("botUrl %q should be rejected", raw)
		}
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for port 0")
	}

	cfg.Server.Port = 70000
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for port > 65535")
	}
}

func TestValidate_PortBoundary(t *testing.T) {
	cfg := validConfig()

	cfg.Server.Port = 1
	if err := Validate(cfg); err != nil {
		t.Fatalf("port=1 should be valid: %v", err)
	}

	cfg.Server.Port = 65535
	if err := Validate(cfg); err != nil {
		t.Fatalf("port=65535 should be valid: %v", err)
	}
}

func TestValidate_WebhookPath(t *testing.T) {
	for _, p := range []string{"", "/", "webhook"} {
		cfg := validConfig()
		cfg.Server.WebhookPath = p
		if err := Validate(cfg); err == nil {
			t.Errorf("webhookPath %q should be rejected", p)
		}
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.General.LogLevel = "verbose"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestValidate_AuditNeedsPath(t *testing.T) {
	cfg := validConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DBPath = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for audit without dbPath")
	}
}

func TestValidate_MetricsEndpointClash(t *testing.T) {
	cfg := validConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Endpoint = cfg.Server.WebhookPath
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for metrics endpoint equal to webhook path")
	}
}

func TestValidate_MetricsEndpointRoot(t *testing.T) {
	cfg := validConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Endpoint = "/"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for metrics endpoint at the root")
	}
}

func TestValidate_RoutePatterns(t *testing.T) {
	for _, p := range []string{"/hook {id}", "/{hook}", "/with space", "/tab\there"} {
		cfg := validConfig()
		cfg.Server.WebhookPath = p
		if err := Validate(cfg); err == nil {
			t.Errorf("expected error for webhookPath %q", p)
		}

		cfg = validConfig()
		cfg.Metrics.Enabled = true
		cfg.Metrics.Endpoint = p
		if err := Validate(cfg); err == nil {
			t.Errorf("expected error for metrics endpoint %q", p)
		}
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = -1
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	if !strings.Contains(err.Error(), "bot.token") || !strings.Contains(err.Error(), "server.port") {
		t.Errorf("expected both token and port errors, got: %v", err)
	}
}

// --- Load / Save ---

func TestLoadSave_RoundTripJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	original := validConfig()
	original.Server.Port = 8081

	if err := Save(path, original); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Server.Port != 8081 {
		t.Fatalf("expected port 8081, got %d", loaded.Server.Port)
	}
	if loaded.Bot.Token != original.Bot.Token {
		t.Fatalf("expected token %q, got %q", original.Bot.Token, loaded.Bot.Token)
	}
}

func TestLoadSave_RoundTripYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	original := validConfig()
	original.Metrics.Enabled = true

	if err := Save(path, original); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.Metrics.Enabled {
		t.Fatal("expected metrics enabled after YAML round trip")
	}
	if loaded.Bot.APIURL != original.Bot.APIURL {
		t.Fatalf("expected apiUrl %q, got %q", original.Bot.APIURL, loaded.Bot.APIURL)
	}
}

func TestLoad_YAMLKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := "bot:\n  token: tok-123456\n  apiUrl: https://api.example.com/instance9/\n  botUrl: https://bot.example.com\n"
	os.WriteFile(path, []byte(data), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 80 {
		t.Errorf("expected default port 80, got %d", cfg.Server.Port)
	}
	if cfg.Server.WebhookPath != "/webhook" {
		t.Errorf("expected default webhook path, got %q", cfg.Server.WebhookPath)
	}
	if cfg.Bot.APIURL != "https://api.example.com/instance9" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.Bot.APIURL)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("WABOT_TEST_TOKEN", "from-env-token")
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"bot":{"token":"${WABOT_TEST_TOKEN}","apiUrl":"${WABOT_TEST_API:-https://api.example.com/i1}","botUrl":"https://bot.example.com"}}`
	os.WriteFile(path, []byte(data), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Bot.Token != "from-env-token" {
		t.Errorf("expected token from env, got %q", cfg.Bot.Token)
	}
	if cfg.Bot.APIURL != "https://api.example.com/i1" {
		t.Errorf("expected default apiUrl, got %q", cfg.Bot.APIURL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.json")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte("{not json}"), 0o644)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestExpandEnvVars_UnsetWithoutDefault(t *testing.T) {
	in := "token=${WABOT_SURELY_UNSET_VAR}"
	if got := ExpandEnvVars(in); got != in {
		t.Errorf("expected %q unchanged, got %q", in, got)
	}
}

func TestTemplate_ResolvesFromEnv(t *testing.T) {
	t.Setenv("WABOT_TOKEN", "tpl-token-1")
	path := filepath.Join(t.TempDir(), "config.json")
	if err := Save(path, Template()); err != nil {
		t.Fatalf("save: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Bot.Token != "tpl-token-1" {
		t.Errorf("expected token from env, got %q", cfg.Bot.Token)
	}
	if cfg.Bot.BotURL != "http://localhost" {
		t.Errorf("expected default botUrl, got %q", cfg.Bot.BotURL)
	}
}

// --- Accessor ---

func TestGetByPath_ValidPaths(t *testing.T) {
	cfg := validConfig()

	val, err := GetByPath(cfg, "server.webhookPath")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "/webhook" {
		t.Fatalf("expected '/webhook', got %v", val)
	}

	val, err = GetByPath(cfg, "server.port")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != float64(80) {
		t.Fatalf("expected 80, got %v", val)
	}
}

func TestGetByPath_InvalidPath(t *testing.T) {
	_, err := GetByPath(validConfig(), "nonexistent.path")
	if err == nil {
		t.Fatal("expected error for nonexistent path")
	}
}

func TestSetByPath_IntConversion(t *testing.T) {
	cfg := validConfig()
	if err := SetByPath(cfg, "server.port", "8080"); err != nil {
		t.Fatalf("set int: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected 8080, got %d", cfg.Server.Port)
	}
}

func TestSetByPath_BoolConversion(t *testing.T) {
	cfg := validConfig()
	if err := SetByPath(cfg, "audit.enabled", "true"); err != nil {
		t.Fatalf("set bool: %v", err)
	}
	if !cfg.Audit.Enabled {
		t.Fatal("expected audit.enabled=true")
	}
}

func TestSetByPath_NumericToken(t *testing.T) {
	cfg := validConfig()
	if err := SetByPath(cfg, "bot.token", "1234567890"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	if cfg.Bot.Token != "1234567890" {
		t.Fatalf("expected numeric token kept as string, got %q", cfg.Bot.Token)
	}
}

func TestSanitize_MasksToken(t *testing.T) {
	cfg := validConfig()
	masked := Sanitize(cfg)
	if masked.Bot.Token != "abcd****3456" {
		t.Errorf("expected masked token, got %q", masked.Bot.Token)
	}
	if cfg.Bot.Token != "abcdef123456" {
		t.Error("Sanitize must not modify the original")
	}
}

func TestListPaths_Flattens(t *testing.T) {
	paths := ListPaths(validConfig())
	if paths["server.port"] != float64(80) {
		t.Errorf("expected server.port=80, got %v", paths["server.port"])
	}
	if _, ok := paths["bot.apiUrl"]; !ok {
		t.Error("expected bot.apiUrl in flattened paths")
	}
}
