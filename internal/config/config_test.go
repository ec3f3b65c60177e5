package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
)

func TestDefaultConfigHasSaneDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Display.TabWidth <= 0 {
		t.Fatalf("expected positive tab width")
	}
	if len(cfg.Keybindings.Quit) == 0 {
		t.Fatalf("expected default quit keybindings")
	}
	if cfg.Formats.BracketPattern == "" {
		t.Fatalf("expected a default bracket pattern")
	}
}

func TestConfigRoundTripsThroughTOML(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Theme.Name = "custom"
	cfg.Display.TabWidth = 8

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got Config
	if err := toml.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Theme.Name != "custom" {
		t.Fatalf("want theme name %q, got %q", "custom", got.Theme.Name)
	}
	if got.Display.TabWidth != 8 {
		t.Fatalf("want tab width 8, got %d", got.Display.TabWidth)
	}
}

func TestLoadFallsBackToDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Theme.Name != DefaultConfig().Theme.Name {
		t.Fatalf("expected default theme when no config file exists")
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	cfg := DefaultConfig()
	cfg.Theme.Name = "roundtrip"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := filepath.Join(xdg, "logdex", "config.toml")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file at %s: %v", path, err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Theme.Name != "roundtrip" {
		t.Fatalf("want theme name %q, got %q", "roundtrip", loaded.Theme.Name)
	}
}

func TestGetConfigPathUsesXDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	want := filepath.Join(xdg, "logdex", "config.toml")
	if got := GetConfigPath(); got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}
