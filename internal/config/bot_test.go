package config

import "testing"

func TestLoadBotDefaults(t *testing.T) {
	cfg, err := LoadBot()
	if err != nil {
		t.Fatalf("LoadBot() error = %v", err)
	}
	if cfg.ServerURL != "http://localhost:8080" {
		t.Fatalf("ServerURL = %q, want http://localhost:8080", cfg.ServerURL)
	}
	if cfg.UserID != "bot" {
		t.Fatalf("UserID = %q, want bot", cfg.UserID)
	}
	if !cfg.Guest {
		t.Fatal("Guest = false, want true")
	}
}

func TestLoadBotOverrides(t *testing.T) {
	t.Setenv("SERVER_URL", "http://127.0.0.1:9000")
	t.Setenv("BOT_USER_ID", "BotA")
	t.Setenv("GAME_ID", "01HZX")
	t.Setenv("GAME_PASSCODE", "hunter2")

	cfg, err := LoadBot()
	if err != nil {
		t.Fatalf("LoadBot() error = %v", err)
	}
	if cfg.ServerURL != "http://127.0.0.1:9000" {
		t.Fatalf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.UserID != "BotA" || cfg.GameID != "01HZX" || cfg.Passcode != "hunter2" {
		t.Fatalf("unexpected bot config: %+v", cfg)
	}
}
