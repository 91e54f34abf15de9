// pattern: Imperative Shell

// Package host wires the chat session and the bot to Neovim commands.
package host

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/neovim/go-client/nvim/plugin"

	"chatgptnvim/internal/chat"
	"chatgptnvim/internal/config"
	"chatgptnvim/internal/editor"
	"chatgptnvim/internal/logging"
)

// defaultLogLines is how many entries :ChatLog shows without an argument.
const defaultLogLines = 20

// Bot is the conversation backend as the commands see it.
type Bot interface {
	chat.Bot
	Reset(ctx context.Context) error
}

// Host owns the single chat session of a plugin process.
type Host struct {
	// mu serializes command handlers. The RPC layer may run them on
	// separate goroutines.
	mu sync.Mutex

	ed      editor.Editor
	bot     Bot
	opts    config.Options
	logs    logging.LoggerProvider
	logger  *logging.ScopedLogger
	session *chat.Session
}

// New creates a host. It fails only when the window options are invalid.
func New(ed editor.Editor, bot Bot, opts config.Options, logs logging.LoggerProvider) (*Host, error) {
	cfg, err := chat.ConfigFromOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("window options: %w", err)
	}
	return &Host{
		ed:      ed,
		bot:     bot,
		opts:    opts,
		logs:    logs,
		logger:  logs.For("host"),
		session: chat.New(ed, bot, cfg, logs.For("chat")),
	}, nil
}

// Register declares the plugin's commands on p.
func (h *Host) Register(p *plugin.Plugin) {
	p.HandleCommand(&plugin.CommandOptions{Name: "Chat", NArgs: "*"}, h.Chat)
	p.HandleCommand(&plugin.CommandOptions{Name: "ChatSubmit"}, h.Submit)
	p.HandleCommand(&plugin.CommandOptions{Name: "ChatClose"}, h.Close)
	p.HandleCommand(&plugin.CommandOptions{Name: "ChatReset"}, h.Reset)
	p.HandleCommand(&plugin.CommandOptions{Name: "ChatLog", NArgs: "*"}, h.Log)
}

// DefineHighlights creates the plugin's highlight groups from the
// configured catppuccin flavor. Existing user definitions win.
func (h *Host) DefineHighlights() error {
	f := h.opts.Flavor()
	groups := []struct {
		name string
		fg   string
		bold bool
	}{
		{chat.BorderHighlight, f.Lavender().Hex, false},
		{chat.TitleHighlight, f.Mauve().Hex, true},
		{chat.ErrorHighlight, f.Red().Hex, true},
	}
	for _, g := range groups {
		if err := h.ed.Highlight(g.name, g.fg, g.bold); err != nil {
			return fmt.Errorf("highlight %s: %w", g.name, err)
		}
	}
	return nil
}

// Chat opens the view when called without words. With words it sends them
// as a single query and echoes the reply.
func (h *Host) Chat(args []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := context.Background()
	if len(args) == 0 {
		return h.session.Open(ctx)
	}

	prompt := strings.Join(args, " ")
	reply, err := h.bot.Query(ctx, prompt)
	if err != nil {
		h.logger.Error("one-shot query failed", "error", err)
		return h.ed.Echo(h.opts.ErrorLine, chat.ErrorHighlight)
	}
	return h.ed.Echo(strings.Join(chat.ResponseLines(reply), "\n"), "")
}

// Submit sends the prompt buffer contents.
func (h *Host) Submit() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	text, ok := h.session.ReadPrompt()
	if !ok {
		return nil
	}
	return h.session.Submit(context.Background(), text)
}

// Close closes the view.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.Close()
}

// Reset starts a new conversation.
func (h *Host) Reset() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.bot.Reset(context.Background()); err != nil {
		h.logger.Error("reset failed", "error", err)
		return h.ed.Echo(h.opts.ErrorLine, chat.ErrorHighlight)
	}
	h.logger.Info("conversation reset")
	return h.ed.Echo("ChatGPT: conversation reset", "")
}

// logQuery is a parsed :ChatLog argument list.
type logQuery struct {
	count int
	level string
	scope string
}

// parseLogArgs accepts, in any order, a positive count, a level name
// (debug, info, warn, error) and a scope prefix.
func parseLogArgs(args []string) (logQuery, error) {
	q := logQuery{count: defaultLogLines, level: "debug"}
	for _, arg := range args {
		if n, err := strconv.Atoi(arg); err == nil {
			if n <= 0 {
				return logQuery{}, fmt.Errorf("ChatLog: count must be positive, got %d", n)
			}
			q.count = n
			continue
		}
		switch strings.ToLower(arg) {
		case "debug", "info", "warn", "warning", "error":
			q.level = arg
		default:
			q.scope = arg
		}
	}
	return q, nil
}

// Log echoes recent log entries, optionally filtered by level and scope.
func (h *Host) Log(args []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	q, err := parseLogArgs(args)
	if err != nil {
		return err
	}

	var lines []string
	for _, e := range h.logs.Recent(0) {
		if e.AtLeast(q.level) && e.MatchesScope(q.scope) {
			lines = append(lines, e.String())
		}
	}
	if len(lines) > q.count {
		lines = lines[len(lines)-q.count:]
	}
	if len(lines) == 0 {
		return h.ed.Echo("ChatGPT: no log entries", "")
	}
	return h.ed.Echo(strings.Join(lines, "\n"), "")
}

// Session exposes the chat session for tests and diagnostics.
func (h *Host) Session() *chat.Session {
	return h.session
}
