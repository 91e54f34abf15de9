// pattern: Imperative Shell
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"chatgptnvim/internal/bot"
	"chatgptnvim/internal/cli"
	"chatgptnvim/internal/config"
	"chatgptnvim/internal/host"
	"chatgptnvim/internal/logging"
)

var version = "dev"

func main() {
	// Stop parsing flags after the first non-flag arg (the subcommand),
	// so that --help after a subcommand is handled by the subcommand.
	flag.CommandLine.SetInterspersed(false)

	configDir := flag.StringP("config-dir", "c", "", "config directory (default: ~/.config/chatgpt-nvim)")
	logLevel := flag.String("log-level", "", "override log_level from config.yaml")

	// Override flag.Usage before Parse so --help uses the CLI app's help
	flag.Usage = func() {
		app := cli.BuildApp(version, cli.Env{ConfigDir: *configDir})
		app.PrintHelp(os.Stderr)
		flag.PrintDefaults()
	}

	flag.Parse()

	app := cli.BuildApp(version, cli.Env{ConfigDir: *configDir})

	if app.Execute(flag.Args()) {
		if err := runServe(*configDir, *logLevel); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

// runServe hosts the plugin for the Neovim process that started us.
func runServe(configDir, levelOverride string) error {
	// Stdout carries msgpack-RPC. Anything printed by accident goes to
	// stderr, which Neovim shows as host errors instead of corrupting frames.
	rpcOut := os.Stdout
	os.Stdout = os.Stderr

	opts := cli.LoadOptions(configDir, os.Stderr)

	logManager, err := newLogManager(config.LogPath(), resolveLevel(levelOverride, opts))
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logManager.Close() }()

	appLogger := logManager.For("app")
	appLogger.Info("plugin host starting", "version", version, "pid", os.Getpid())

	provider := bot.NewProvider(config.LoadCredentials, bot.Options{
		BaseURL: opts.Backend.BaseURL,
		Model:   opts.Backend.Model,
		Timeout: opts.Backend.Timeout,
	}, logManager.For("bot"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The default credentials file is written on first start.
	if _, err := config.LoadCredentials(); err != nil {
		appLogger.Warn("credentials unavailable", "error", err)
	}
	watcher, err := config.NewWatcher(config.CredentialsPath(), provider.MarkStale, logManager.For("config"))
	if err != nil {
		appLogger.Warn("credentials watcher disabled", "error", err)
	} else {
		defer func() { _ = watcher.Close() }()
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				appLogger.Warn("credentials watcher stopped", "error", err)
			}
		}()
	}

	if err := host.Serve(ctx, os.Stdin, rpcOut, provider, opts, logManager); err != nil {
		appLogger.Error("plugin host exited with error", "error", err)
		return err
	}

	appLogger.Info("plugin host stopped")
	return nil
}

// resolveLevel picks the --log-level flag over config.yaml.
func resolveLevel(override string, opts config.Options) string {
	if override != "" {
		return override
	}
	return opts.LogLevel
}

func newLogManager(path, level string) (*logging.Manager, error) {
	return logging.NewManager(logging.Config{
		FilePath:   path,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 7,
		Level:      level,
	})
}
