package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
storage:
  driver: sqlite
  path: ./waremind.db
sender:
  channel: whatsapp
  whatsapp:
    gateway_url: http://127.0.0.1:3000
    timeout: 30s
    message_prefix: "REMINDER: "
scheduler:
  tick: 5s
  check_interval: 30s
  missed_window: 24h
  max_send_retries: 3
  retry_delay: 10s
`

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfigFile(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Storage.Path != "./waremind.db" {
		t.Fatalf("storage path = %q", cfg.Storage.Path)
	}
	if cfg.Sender.Whatsapp.MessagePrefix != "REMINDER: " {
		t.Fatalf("prefix = %q", cfg.Sender.Whatsapp.MessagePrefix)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return committed config")
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	body := `{
	  "logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}},
	  "storage": {"driver": "sqlite", "path": "/tmp/waremind.db"},
	  "sender": {"telegram": {"token": "123:abc"}, "channel": "telegram"},
	  "scheduler": {"check_interval": "1m"}
	}`
	m := NewManager(writeConfigFile(t, "config.json", body))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SenderChannel() != "telegram" {
		t.Fatalf("channel = %q", cfg.SenderChannel())
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	t.Parallel()
	body := strings.Replace(validYAML, "scheduler:", "shceduler_typo: {}\nscheduler:", 1)
	m := NewManager(writeConfigFile(t, "config.yaml", body))
	if _, err := m.Load(); err == nil {
		t.Fatal("expected unknown-field error")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		edit func(string) string
	}{
		{"missing gateway url", func(s string) string {
			return strings.Replace(s, "gateway_url: http://127.0.0.1:3000", `gateway_url: ""`, 1)
		}},
		{"bad duration", func(s string) string {
			return strings.Replace(s, "retry_delay: 10s", "retry_delay: soon", 1)
		}},
		{"negative retries", func(s string) string {
			return strings.Replace(s, "max_send_retries: 3", "max_send_retries: -1", 1)
		}},
		{"unknown channel", func(s string) string {
			return strings.Replace(s, "channel: whatsapp", "channel: pigeon", 1)
		}},
		{"bad timezone", func(s string) string {
			return s + "  timezone: Mars/Olympus\n"
		}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := NewManager(writeConfigFile(t, "config.yaml", tc.edit(validYAML)))
			if _, err := m.Load(); err == nil {
				t.Fatal("expected load error")
			}
		})
	}
}

func TestSenderChannelDefault(t *testing.T) {
	t.Parallel()
	cfg := &Config{}
	if got := cfg.SenderChannel(); got != "whatsapp" {
		t.Fatalf("channel = %q, want whatsapp", got)
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("scheduler.tick", "", 5*time.Second)
	if err != nil || d != 5*time.Second {
		t.Fatalf("default: d=%v err=%v", d, err)
	}
	d, err = ParseDurationOrDefault("scheduler.tick", "250ms", 5*time.Second)
	if err != nil || d != 250*time.Millisecond {
		t.Fatalf("explicit: d=%v err=%v", d, err)
	}
	if _, err := ParseDurationField("scheduler.tick", "-3s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestReloadPublishesOnChange(t *testing.T) {
	t.Parallel()
	path := writeConfigFile(t, "config.yaml", validYAML)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	// Rewriting identical content must not publish.
	m.reload()
	select {
	case <-ch:
		t.Fatal("unchanged config was published")
	default:
	}

	updated := strings.Replace(validYAML, "level: debug", "level: warn", 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	m.reload()
	select {
	case cfg := <-ch:
		if cfg.Logging.Level != "warn" {
			t.Fatalf("published level = %q", cfg.Logging.Level)
		}
	default:
		t.Fatal("changed config was not published")
	}

	// A broken rewrite keeps the last good config live.
	if err := os.WriteFile(path, []byte("{not yaml"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	m.reload()
	if got := m.Get(); got == nil || got.Logging.Level != "warn" {
		t.Fatalf("config after bad reload = %+v", got)
	}
}
