package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"chatgptnvim/internal/layout"
)

func TestLoadOrCreateCredentials_WritesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".chatgpt-nvim.json")

	creds, err := LoadOrCreateCredentials(path)
	if err != nil {
		t.Fatalf("LoadOrCreateCredentials failed: %v", err)
	}
	if !creds.Empty() {
		t.Errorf("expected empty credentials, got %+v", creds)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written file: %v", err)
	}
	want := `{"authorization": "", "session_token": ""}`
	if string(data) != want {
		t.Errorf("default file content:\ngot  %s\nwant %s", data, want)
	}
}

func TestLoadOrCreateCredentials_ReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".chatgpt-nvim.json")
	content := `{"authorization": "Bearer abc", "session_token": "tok", "extra": 1}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write credentials: %v", err)
	}

	creds, err := LoadOrCreateCredentials(path)
	if err != nil {
		t.Fatalf("LoadOrCreateCredentials failed: %v", err)
	}
	if creds.Authorization != "Bearer abc" {
		t.Errorf("Authorization: got %q, want %q", creds.Authorization, "Bearer abc")
	}
	if creds.SessionToken != "tok" {
		t.Errorf("SessionToken: got %q, want %q", creds.SessionToken, "tok")
	}

	// Existing files are never rewritten.
	data, _ := os.ReadFile(path)
	if string(data) != content {
		t.Errorf("existing file was modified: %s", data)
	}
}

func TestLoadOrCreateCredentials_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".chatgpt-nvim.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("Failed to write credentials: %v", err)
	}

	if _, err := LoadOrCreateCredentials(path); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestCredentialsPath_UsesHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got := CredentialsPath()
	want := filepath.Join(home, ".chatgpt-nvim.json")
	if got != want {
		t.Errorf("CredentialsPath: got %q, want %q", got, want)
	}
}

func TestLoadOptions_MissingFileUsesDefaults(t *testing.T) {
	opts, err := LoadOptionsFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOptionsFrom failed: %v", err)
	}
	def := DefaultOptions()
	if opts.Theme != def.Theme || opts.Window.Alignment != def.Window.Alignment {
		t.Errorf("expected defaults, got %+v", opts)
	}
	if opts.Backend.Timeout != 60*time.Second {
		t.Errorf("Timeout: got %v, want 60s", opts.Backend.Timeout)
	}
}

func TestLoadOptions_FullFile(t *testing.T) {
	dir := t.TempDir()
	content := `
theme: latte
log_level: debug
backend:
  base_url: http://localhost:9999
  model: gpt-4
  timeout: 15s
window:
  width: 100
  height: 0.5
  alignment: south-east
  border: single
  title: " Bot "
banner:
  - "hello"
prompt_prefix: "Q: "
error_line: "bot unavailable"
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	opts, err := LoadOptionsFromDir(dir)
	if err != nil {
		t.Fatalf("LoadOptionsFromDir failed: %v", err)
	}

	if opts.Theme != "latte" {
		t.Errorf("Theme: got %q, want %q", opts.Theme, "latte")
	}
	if opts.Backend.BaseURL != "http://localhost:9999" {
		t.Errorf("BaseURL: got %q", opts.Backend.BaseURL)
	}
	if opts.Backend.Timeout != 15*time.Second {
		t.Errorf("Timeout: got %v, want 15s", opts.Backend.Timeout)
	}
	if opts.Window.Width.IsFraction() || opts.Window.Width.CellCount() != 100 {
		t.Errorf("Width: got %s, want 100 cells", opts.Window.Width)
	}
	if !opts.Window.Height.IsFraction() || opts.Window.Height.Ratio() != 0.5 {
		t.Errorf("Height: got %s, want fraction 0.5", opts.Window.Height)
	}
	a, err := opts.Alignment()
	if err != nil || a != layout.AlignSouthEast {
		t.Errorf("Alignment: got %v (%v), want south-east", a, err)
	}
	if len(opts.Banner) != 1 || opts.Banner[0] != "hello" {
		t.Errorf("Banner: got %v", opts.Banner)
	}
	if opts.PromptPrefix != "Q: " || opts.ErrorLine != "bot unavailable" {
		t.Errorf("PromptPrefix/ErrorLine: got %q / %q", opts.PromptPrefix, opts.ErrorLine)
	}
}

func TestLoadOptions_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("window:\n  border: double\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	opts, err := LoadOptionsFrom(path)
	if err != nil {
		t.Fatalf("LoadOptionsFrom failed: %v", err)
	}
	if opts.Window.Border != "double" {
		t.Errorf("Border: got %q, want double", opts.Window.Border)
	}
	if !opts.Window.Width.IsFraction() || opts.Window.Width.Ratio() != 0.8 {
		t.Errorf("Width default lost: got %s", opts.Window.Width)
	}
	if opts.ErrorLine == "" {
		t.Error("ErrorLine default lost")
	}
}

func TestLoadOptions_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"fraction above one", "window:\n  width: 1.5\n", "fraction"},
		{"negative cells", "window:\n  height: -3\n", "negative"},
		{"string size", "window:\n  width: wide\n", "number"},
		{"unknown alignment", "window:\n  alignment: middle\n", "alignment"},
		{"none alignment", "window:\n  alignment: none\n", "alignment"},
		{"empty base url", "backend:\n  base_url: \"\"\n", "base_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write config file: %v", err)
			}
			_, err := LoadOptionsFrom(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestDimension_MarshalRoundTrip(t *testing.T) {
	opts := DefaultOptions()
	opts.Window.Height = Dimension{layout.Cells(12)}

	data, err := yaml.Marshal(opts)
	if err != nil {
		t.Fatalf("yaml.Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), "width: 0.8") || !strings.Contains(string(data), "height: 12") {
		t.Errorf("unexpected YAML:\n%s", data)
	}
}

func TestOptionsPath_XDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	want := filepath.Join(xdg, "chatgpt-nvim", "config.yaml")
	if got := OptionsPath(); got != want {
		t.Errorf("OptionsPath: got %q, want %q", got, want)
	}
}

func TestCacheDir_XDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", xdg)

	want := filepath.Join(xdg, "chatgpt-nvim")
	if got := CacheDir(); got != want {
		t.Errorf("CacheDir: got %q, want %q", got, want)
	}
}

func TestWatcher_NotifiesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".chatgpt-nvim.json")
	other := filepath.Join(dir, "unrelated.txt")

	var calls atomic.Int32
	w, err := NewWatcher(path, func() { calls.Add(1) }, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(other, []byte("x"), 0600); err != nil {
		t.Fatalf("write unrelated: %v", err)
	}
	if err := os.WriteFile(path, []byte(defaultCredentials), 0600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if calls.Load() == 0 {
		t.Error("expected onChange to be called after write")
	}
}

func TestOptions_Flavor(t *testing.T) {
	tests := []struct {
		theme string
		want  string
	}{
		{"latte", "latte"},
		{"frappe", "frappe"},
		{"macchiato", "macchiato"},
		{"mocha", "mocha"},
		{"", "mocha"},
		{"solarized", "mocha"},
	}

	for _, tt := range tests {
		t.Run(tt.theme, func(t *testing.T) {
			o := DefaultOptions()
			o.Theme = tt.theme
			if got := strings.ToLower(o.Flavor().Name()); got != tt.want {
				t.Errorf("Flavor() = %q, want %q", got, tt.want)
			}
		})
	}
}
