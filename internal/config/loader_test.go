package config

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"setonix.toml", FormatTOML, false},
		{"/etc/setonix/config.TOML", FormatTOML, false},
		{"setonix.yaml", FormatYAML, false},
		{"setonix.yml", FormatYAML, false},
		{"setonix.json", "", true},
		{"setonix", "", true},
	}

	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("FormatFromPath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("FormatFromPath(%q) error = %v, want ErrUnsupportedFormat", tt.path, err)
		}
		if got != tt.want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestLoadTOML(t *testing.T) {
	fsys := fstest.MapFS{
		"setonix.toml": {Data: []byte(`
[sandbox]
freeze_libraries = false

[events]
always_return_payload = true

[logging]
level = "debug"
`)},
	}

	cfg, err := LoadFS(fsys, "setonix.toml")
	if err != nil {
		t.Fatalf("LoadFS error = %v", err)
	}

	if cfg.Sandbox.FreezeLibraries {
		t.Error("FreezeLibraries = true, want false")
	}
	if !cfg.Sandbox.AllowCoroutines {
		t.Error("AllowCoroutines should keep its default")
	}
	if !cfg.Events.AlwaysReturnPayload {
		t.Error("AlwaysReturnPayload = false, want true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Format = %q, want default %q", cfg.Logging.Format, "text")
	}
}

func TestLoadYAML(t *testing.T) {
	fsys := fstest.MapFS{
		"setonix.yml": {Data: []byte(`
sandbox:
  allow_coroutines: false
logging:
  format: json
`)},
	}

	cfg, err := LoadFS(fsys, "setonix.yml")
	if err != nil {
		t.Fatalf("LoadFS error = %v", err)
	}

	if cfg.Sandbox.AllowCoroutines {
		t.Error("AllowCoroutines = true, want false")
	}
	if !cfg.Sandbox.FreezeLibraries {
		t.Error("FreezeLibraries should keep its default")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := LoadFS(fstest.MapFS{}, "missing.toml")
	if err != nil {
		t.Fatalf("LoadFS error = %v", err)
	}
	if cfg != Default() {
		t.Errorf("LoadFS(missing) = %+v, want defaults", cfg)
	}
}

func TestLoadUnknownKey(t *testing.T) {
	tests := []struct {
		name string
		path string
		data string
	}{
		{"toml", "c.toml", "[sandbox]\nfreeze_libs = false\n"},
		{"yaml", "c.yaml", "sandbox:\n  freeze_libs: false\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{tt.path: {Data: []byte(tt.data)}}

			_, err := LoadFS(fsys, tt.path)
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("LoadFS error = %v, want *ParseError", err)
			}
			if pe.Path != tt.path {
				t.Errorf("Path = %q, want %q", pe.Path, tt.path)
			}
		})
	}
}

func TestLoadSyntaxErrorPosition(t *testing.T) {
	fsys := fstest.MapFS{
		"bad.toml": {Data: []byte("[sandbox]\nfreeze_libraries = = true\n")},
	}

	_, err := LoadFS(fsys, "bad.toml")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("LoadFS error = %v, want *ParseError", err)
	}
	if pe.Line != 2 {
		t.Errorf("Line = %d, want 2", pe.Line)
	}
	if !strings.Contains(pe.Error(), "bad.toml") {
		t.Errorf("Error() = %q, want path included", pe.Error())
	}
}

func TestLoadFromReader(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader("[events]\nalways_return_payload = true\n"), FormatTOML)
	if err != nil {
		t.Fatalf("LoadFromReader error = %v", err)
	}
	if !cfg.Events.AlwaysReturnPayload {
		t.Error("AlwaysReturnPayload = false, want true")
	}

	cfg, err = LoadFromReader(strings.NewReader(""), FormatYAML)
	if err != nil {
		t.Fatalf("LoadFromReader(empty yaml) error = %v", err)
	}
	if cfg != Default() {
		t.Errorf("empty YAML = %+v, want defaults", cfg)
	}

	if _, err := LoadFromReader(strings.NewReader(""), Format("ini")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("LoadFromReader(ini) error = %v, want ErrUnsupportedFormat", err)
	}
}
