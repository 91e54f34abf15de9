package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chatgptnvim/internal/bot"
)

type testEnv struct {
	env      Env
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	exitCode int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	te := &testEnv{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}, exitCode: -1}
	te.env = Env{
		ConfigDir:       dir,
		CredentialsPath: filepath.Join(dir, ".chatgpt-nvim.json"),
		LogPath:         filepath.Join(dir, "plugin.log"),
		Stdin:           strings.NewReader(""),
		Stdout:          te.stdout,
		Stderr:          te.stderr,
		ExitFunc:        func(code int) { te.exitCode = code },
	}
	return te
}

func TestAsk_PrintsPlainAnswer(t *testing.T) {
	te := newTestEnv(t)
	var gotPrompt string
	te.env.Query = func(_ context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return "\x1b[1mfour\x1b[0m\r\n", nil
	}

	if err := runAsk(te.env.withDefaults(), []string{"two", "plus", "two"}); err != nil {
		t.Fatalf("runAsk() error = %v", err)
	}
	if gotPrompt != "two plus two" {
		t.Errorf("prompt = %q", gotPrompt)
	}
	if te.stdout.String() != "four\n" {
		t.Errorf("stdout = %q, want %q", te.stdout.String(), "four\n")
	}
	if te.exitCode != -1 {
		t.Errorf("exit code = %d, want no exit", te.exitCode)
	}
}

func TestAsk_RequiresPrompt(t *testing.T) {
	te := newTestEnv(t)
	if err := runAsk(te.env.withDefaults(), []string{"  "}); err == nil {
		t.Error("runAsk() should fail without a prompt")
	}
}

func TestAsk_NotConfigured(t *testing.T) {
	te := newTestEnv(t)
	te.env.Query = func(context.Context, string) (string, error) {
		return "", &bot.BackendError{Op: "configure", Err: bot.ErrNotConfigured}
	}

	if err := runAsk(te.env.withDefaults(), []string{"hello"}); err != nil {
		t.Fatalf("runAsk() error = %v", err)
	}
	if te.exitCode != 1 {
		t.Errorf("exit code = %d, want 1", te.exitCode)
	}
	if !strings.Contains(te.stderr.String(), "credentials not configured") {
		t.Errorf("stderr = %q, want the error", te.stderr.String())
	}
	if !strings.Contains(te.stderr.String(), te.env.CredentialsPath) {
		t.Errorf("stderr = %q, want a hint naming the credentials file", te.stderr.String())
	}
	if te.stdout.Len() != 0 {
		t.Errorf("stdout = %q, want nothing", te.stdout.String())
	}
}

func TestAsk_BackendFailure(t *testing.T) {
	te := newTestEnv(t)
	te.env.Query = func(context.Context, string) (string, error) {
		return "", errors.New("query: HTTP 502")
	}

	_ = runAsk(te.env.withDefaults(), []string{"hello"})
	if te.exitCode != 1 {
		t.Errorf("exit code = %d, want 1", te.exitCode)
	}
	if strings.Contains(te.stderr.String(), "add a session token") {
		t.Error("hint should only appear when credentials are missing")
	}
}

func TestConfig_CreatesCredentials(t *testing.T) {
	te := newTestEnv(t)

	if err := runConfig(te.env.withDefaults()); err != nil {
		t.Fatalf("runConfig() error = %v", err)
	}
	if strings.TrimSpace(te.stdout.String()) != te.env.CredentialsPath {
		t.Errorf("stdout = %q, want the credentials path", te.stdout.String())
	}
	data, err := os.ReadFile(te.env.CredentialsPath)
	if err != nil {
		t.Fatalf("credentials not created: %v", err)
	}
	if string(data) != `{"authorization": "", "session_token": ""}` {
		t.Errorf("credentials = %q", data)
	}
	if !strings.Contains(te.stderr.String(), "session_token") {
		t.Errorf("stderr = %q, want a hint for empty credentials", te.stderr.String())
	}
}

func TestConfig_ConfiguredHasNoHint(t *testing.T) {
	te := newTestEnv(t)
	if err := os.WriteFile(te.env.CredentialsPath, []byte(`{"authorization": "", "session_token": "tok"}`), 0600); err != nil {
		t.Fatal(err)
	}

	if err := runConfig(te.env.withDefaults()); err != nil {
		t.Fatalf("runConfig() error = %v", err)
	}
	if te.stderr.Len() != 0 {
		t.Errorf("stderr = %q, want nothing", te.stderr.String())
	}
}

func TestBuildApp_ManifestAndVersion(t *testing.T) {
	te := newTestEnv(t)
	app := BuildApp("1.2.3", te.env)

	if app.Execute([]string{"manifest", "my-host"}) {
		t.Fatal("manifest should not serve")
	}
	if !strings.Contains(te.stdout.String(), "my-host") || !strings.Contains(te.stdout.String(), "ChatSubmit") {
		t.Errorf("manifest output = %q", te.stdout.String())
	}

	te.stdout.Reset()
	app.Execute([]string{"version"})
	if te.stdout.String() != "1.2.3\n" {
		t.Errorf("version output = %q", te.stdout.String())
	}

	te.stdout.Reset()
	app.Execute([]string{"log", "path"})
	if strings.TrimSpace(te.stdout.String()) != te.env.LogPath {
		t.Errorf("log path output = %q", te.stdout.String())
	}
}

func TestRunLogTail_Flags(t *testing.T) {
	te := newTestEnv(t)
	writeLog(t, te.env.LogPath, infoLine, errorLine)

	if err := runLogTail(te.env.withDefaults(), []string{"-n", "1", "--no-color"}); err != nil {
		t.Fatalf("runLogTail() error = %v", err)
	}
	got := te.stdout.String()
	if strings.Contains(got, "prompt answered") || !strings.Contains(got, "query failed") {
		t.Errorf("log tail -n 1 = %q", got)
	}

	if err := runLogTail(te.env.withDefaults(), []string{"--interval", "0s"}); err == nil {
		t.Error("zero interval should be rejected")
	}
}

func TestLoadOptions_BrokenFileWarns(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("window: [oops"), 0644); err != nil {
		t.Fatal(err)
	}

	var w bytes.Buffer
	opts := LoadOptions(dir, &w)
	if !strings.Contains(w.String(), "warning") {
		t.Errorf("LoadOptions() wrote %q, want a warning", w.String())
	}
	if opts.Theme != "mocha" {
		t.Errorf("Theme = %q, want default", opts.Theme)
	}
}

func TestAsk_ReturnsCodeWithoutExiting(t *testing.T) {
	te := newTestEnv(t)
	te.env.Query = func(context.Context, string) (string, error) {
		return "", errors.New("query: HTTP 502")
	}

	code, err := ask(te.env.withDefaults(), []string{"hello"})
	if err != nil {
		t.Fatalf("ask() error = %v", err)
	}
	if code != 1 {
		t.Errorf("ask() code = %d, want 1", code)
	}
	if te.exitCode != -1 {
		t.Errorf("ask() called ExitFunc(%d); exiting belongs to runAsk", te.exitCode)
	}
}

func TestRunAsk_LogClosedBeforeExit(t *testing.T) {
	te := newTestEnv(t)
	te.env.Query = func(context.Context, string) (string, error) {
		return "", errors.New("query: HTTP 502")
	}
	var logAtExit string
	te.env.ExitFunc = func(code int) {
		te.exitCode = code
		data, _ := os.ReadFile(te.env.LogPath)
		logAtExit = string(data)
	}

	if err := runAsk(te.env.withDefaults(), []string{"hello"}); err != nil {
		t.Fatalf("runAsk() error = %v", err)
	}
	if te.exitCode != 1 {
		t.Fatalf("exit code = %d, want 1", te.exitCode)
	}
	if !strings.Contains(logAtExit, "ask failed") || !strings.Contains(logAtExit, "HTTP 502") {
		t.Errorf("log at exit = %q, want the failure recorded", logAtExit)
	}
}
