// pattern: Imperative Shell
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"chatgptnvim/internal/bot"
	"chatgptnvim/internal/chat"
	"chatgptnvim/internal/config"
	"chatgptnvim/internal/host"
	"chatgptnvim/internal/logging"
	"chatgptnvim/internal/tui"
)

// DefaultHostName is the remote host name used in the generated manifest.
const DefaultHostName = "chatgpt-nvim"

// Env carries the process state commands depend on. Zero fields fall back
// to the real process values.
type Env struct {
	ConfigDir       string
	CredentialsPath string
	LogPath         string
	Stdin           io.Reader
	Stdout          io.Writer
	Stderr          io.Writer
	ExitFunc        func(int)

	// Query replaces the backend for ask.
	Query tui.QueryFunc
}

func (e Env) withDefaults() Env {
	if e.CredentialsPath == "" {
		e.CredentialsPath = config.CredentialsPath()
	}
	if e.LogPath == "" {
		e.LogPath = config.LogPath()
	}
	if e.Stdin == nil {
		e.Stdin = os.Stdin
	}
	if e.Stdout == nil {
		e.Stdout = os.Stdout
	}
	if e.Stderr == nil {
		e.Stderr = os.Stderr
	}
	if e.ExitFunc == nil {
		e.ExitFunc = os.Exit
	}
	return e
}

// LoadOptions reads config.yaml from dir, or from the default location when
// dir is empty. A broken file is reported on w and defaults are used.
func LoadOptions(dir string, w io.Writer) config.Options {
	var (
		opts config.Options
		err  error
	)
	if dir != "" {
		opts, err = config.LoadOptionsFromDir(dir)
	} else {
		opts, err = config.LoadOptions()
	}
	if err != nil {
		_, _ = fmt.Fprintf(w, "warning: ignoring config: %v\n", err)
		return config.DefaultOptions()
	}
	return opts
}

// BuildApp creates and configures the CLI application with all commands and groups.
func BuildApp(version string, env Env) *App {
	env = env.withDefaults()
	app := NewApp(version)

	app.AddCommand(&Command{
		Name:    "ask",
		Summary: "Ask ChatGPT one question from the shell",
		Usage:   "Usage: chatgpt-nvim ask <prompt...>",
		Run: func(args []string) error {
			return runAsk(env, args)
		},
	})

	app.AddCommand(&Command{
		Name:    "config",
		Summary: "Create the credentials file if needed and print its path",
		Usage:   "Usage: chatgpt-nvim config",
		Run: func(args []string) error {
			return runConfig(env)
		},
	})

	app.AddCommand(&Command{
		Name:    "manifest",
		Summary: "Print the Vim script that registers the plugin's commands",
		Usage:   "Usage: chatgpt-nvim manifest [host-name]",
		Run: func(args []string) error {
			name := DefaultHostName
			if len(args) > 0 {
				name = args[0]
			}
			_, err := env.Stdout.Write(host.Manifest(name))
			return err
		},
	})

	app.AddCommand(&Command{
		Name:    "version",
		Summary: "Print version and exit",
		Usage:   "Usage: chatgpt-nvim version",
		Run: func(args []string) error {
			_, _ = fmt.Fprintln(env.Stdout, version)
			return nil
		},
	})

	logGroup := app.AddGroup("log", "Inspect the plugin log")
	RegisterLogCommands(logGroup, env)

	return app
}

// RegisterLogCommands adds the log subcommands to the group.
func RegisterLogCommands(group *Group, env Env) {
	env = env.withDefaults()

	group.AddCommand(&Command{
		Name:    "path",
		Summary: "Print the log file location",
		Usage:   "Usage: chatgpt-nvim log path",
		Run: func(args []string) error {
			_, _ = fmt.Fprintln(env.Stdout, env.LogPath)
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "tail",
		Summary: "Print recent log entries, optionally following new ones",
		Usage:   "Usage: chatgpt-nvim log tail [-n lines] [-f] [-i interval] [--no-color]",
		Run: func(args []string) error {
			return runLogTail(env, args)
		},
	})
}

func runLogTail(env Env, args []string) error {
	fs := flag.NewFlagSet("log tail", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	lines := fs.IntP("lines", "n", 20, "number of entries to print")
	follow := fs.BoolP("follow", "f", false, "keep printing new entries")
	interval := fs.DurationP("interval", "i", 500*time.Millisecond, "poll interval when following")
	noColor := fs.Bool("no-color", false, "disable level colors")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	opts := LoadOptions(env.ConfigDir, env.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return TailLog(ctx, TailConfig{
		Path:     env.LogPath,
		Lines:    *lines,
		Follow:   *follow,
		Interval: *interval,
		NoColor:  *noColor,
		Styles:   tui.NewStyles(opts.Flavor()),
		Writer:   env.Stdout,
	})
}

func runConfig(env Env) error {
	creds, err := config.LoadOrCreateCredentials(env.CredentialsPath)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(env.Stdout, env.CredentialsPath)
	if creds.Empty() {
		styles := tui.NewStyles(LoadOptions(env.ConfigDir, env.Stderr).Flavor())
		_, _ = fmt.Fprintln(env.Stderr, styles.HelpStyle().Render(
			"set \"session_token\" (or \"authorization\") in this file to use the plugin"))
	}
	return nil
}

// runAsk calls ExitFunc with ask's code only after ask's deferred cleanup
// (log close, signal release) has run.
func runAsk(env Env, args []string) error {
	code, err := ask(env, args)
	if err != nil {
		return err
	}
	if code != 0 {
		env.ExitFunc(code)
	}
	return nil
}

func ask(env Env, args []string) (int, error) {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		return 0, fmt.Errorf("a prompt is required")
	}

	opts := LoadOptions(env.ConfigDir, env.Stderr)
	styles := tui.NewStyles(opts.Flavor())

	logger, closeLogs := cliLogger(env, opts)
	defer closeLogs()

	query := env.Query
	if query == nil {
		load := func() (config.Credentials, error) {
			return config.LoadOrCreateCredentials(env.CredentialsPath)
		}
		provider := bot.NewProvider(load, bot.Options{
			BaseURL: opts.Backend.BaseURL,
			Model:   opts.Backend.Model,
			Timeout: opts.Backend.Timeout,
		}, logger)
		query = provider.Query
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		answer string
		err    error
	)
	out, isFile := env.Stdout.(*os.File)
	if isFile && tui.IsTerminal(out) {
		answer, err = tui.Ask(ctx, prompt, query, styles, env.Stdin, env.Stderr)
		if err == nil {
			_, _ = fmt.Fprint(env.Stdout, tui.RenderAnswer(answer, tui.TerminalWidth(out), styles))
		}
	} else {
		answer, err = query(ctx, prompt)
		if err == nil {
			_, _ = fmt.Fprintln(env.Stdout, strings.Join(chat.ResponseLines(answer), "\n"))
		}
	}

	switch {
	case err == nil:
		logger.Debug("ask answered", "chars", len(answer))
		return 0, nil
	case errors.Is(err, tui.ErrCanceled):
		logger.Info("ask canceled")
		return 130, nil
	default:
		logger.Error("ask failed", "error", err)
		_, _ = fmt.Fprintln(env.Stderr, styles.ErrorStyle().Render("error: "+err.Error()))
		if errors.Is(err, bot.ErrNotConfigured) {
			_, _ = fmt.Fprintln(env.Stderr, styles.HelpStyle().Render(
				"add a session token to "+env.CredentialsPath))
		}
		return 1, nil
	}
}

// cliLogger logs shell queries to the plugin log so failures can be read
// back with `log tail`. Logging is skipped when the file cannot be opened.
func cliLogger(env Env, opts config.Options) (*logging.ScopedLogger, func()) {
	logs, err := logging.NewManager(logging.Config{
		FilePath: env.LogPath,
		Level:    opts.LogLevel,
	})
	if err != nil {
		return logging.NopLogger(), func() {}
	}
	return logs.For("cli.ask"), func() { _ = logs.Close() }
}
