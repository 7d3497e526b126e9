package cmd

import "testing"

func TestConfigShowsDefaults(t *testing.T) {
	env := newTestEnv(t)

	out := env.run("config")
	env.contains(out, "storage.backend")
	env.contains(out, "rate_limit.floor_ms")
}

func TestConfigGetSetRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	env.run("config", "pager.min_chars_per_page", "128", "--local")
	out := env.run("config", "pager.min_chars_per_page")
	env.contains(out, "128")
}

func TestConfigSetInvalidKeyFails(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.runErr("config", "nonexistent.key", "1")
	if err == nil {
		t.Error("config set unknown key = nil error, want error")
	}
}

func TestConfigSetInvalidBackendFails(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.runErr("config", "storage.backend", "mongodb")
	if err == nil {
		t.Error("config set unsupported backend = nil error, want error")
	}
}
