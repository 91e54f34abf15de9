// pattern: Imperative Shell

// Package chat holds the interactive chat view: a scrollable display float
// and a one-line prompt float below it.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"chatgptnvim/internal/config"
	"chatgptnvim/internal/editor"
	"chatgptnvim/internal/layout"
	"chatgptnvim/internal/logging"
)

// Bot answers one prompt at a time.
type Bot interface {
	Query(ctx context.Context, prompt string) (string, error)
}

// Config controls how the session lays out and decorates its windows.
type Config struct {
	Width     layout.Size
	Height    layout.Size
	Alignment layout.Alignment
	Border    string
	Title     string

	Banner       []string
	PromptPrefix string
	ErrorLine    string

	// Commands bound to keys in the prompt buffer.
	SubmitCommand string
	CloseCommand  string
}

// DefaultConfig mirrors config.DefaultOptions.
func DefaultConfig() Config {
	cfg, _ := ConfigFromOptions(config.DefaultOptions())
	return cfg
}

// ConfigFromOptions converts user options into a session Config.
func ConfigFromOptions(o config.Options) (Config, error) {
	align, err := o.Alignment()
	if err != nil {
		return Config{}, err
	}
	return Config{
		Width:         o.Window.Width.Size,
		Height:        o.Window.Height.Size,
		Alignment:     align,
		Border:        o.Window.Border,
		Title:         o.Window.Title,
		Banner:        o.Banner,
		PromptPrefix:  o.PromptPrefix,
		ErrorLine:     o.ErrorLine,
		SubmitCommand: "ChatSubmit",
		CloseCommand:  "ChatClose",
	}, nil
}

// Highlight groups applied to the chat floats.
const (
	BorderHighlight = "ChatGPTBorder"
	TitleHighlight  = "ChatGPTTitle"
	ErrorHighlight  = "ChatGPTError"
)

// Session is the chat view state. There is at most one per plugin process
// and all methods must be called from the RPC dispatch goroutine.
//
// Windows and buffers are owned by the editor. The session only keeps
// their handles and re-checks liveness before every use.
type Session struct {
	ed     editor.Editor
	bot    Bot
	cfg    Config
	logger *logging.ScopedLogger

	open       bool
	display    editor.Buffer
	prompt     editor.Buffer
	displayWin editor.Window
	promptWin  editor.Window
	seq        int
}

// New creates a closed session.
func New(ed editor.Editor, bot Bot, cfg Config, logger *logging.ScopedLogger) *Session {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Session{ed: ed, bot: bot, cfg: cfg, logger: logger}
}

// IsOpen reports whether the view is open.
func (s *Session) IsOpen() bool { return s.open }

// Seq returns the number of prompts submitted so far.
func (s *Session) Seq() int { return s.seq }

// promptFootprint is the number of rows the prompt float covers.
func (s *Session) promptFootprint() int {
	if s.cfg.Border == "" || s.cfg.Border == "none" {
		return 1
	}
	return 3
}

// placements resolves the display and prompt floats. The display is laid
// out in the area above the prompt so the two never overlap.
func (s *Session) placements(screen layout.Dimensions) (display, prompt layout.Placement, err error) {
	above := layout.Dimensions{Width: screen.Width, Height: max(screen.Height-s.promptFootprint(), 0)}

	display, err = layout.Resolve(layout.Request{
		Width:     s.cfg.Width,
		Height:    s.cfg.Height,
		Relative:  layout.RelativeEditor,
		Alignment: s.cfg.Alignment,
	}, above)
	if err != nil {
		return layout.Placement{}, layout.Placement{}, fmt.Errorf("display: %w", err)
	}

	prompt, err = layout.Resolve(layout.Request{
		Width:     layout.Cells(display.Width),
		Height:    layout.Cells(1),
		Relative:  layout.RelativeEditor,
		Alignment: layout.AlignSouth,
	}, screen)
	if err != nil {
		return layout.Placement{}, layout.Placement{}, fmt.Errorf("prompt: %w", err)
	}
	return display, prompt, nil
}

// Open creates both floats and focuses the prompt in insert mode. It does
// nothing when the view is already open with both windows alive; a view
// whose windows were closed outside the plugin is torn down and rebuilt.
// Layout errors are returned as layout.ErrInvalidLayoutRequest.
func (s *Session) Open(ctx context.Context) error {
	if s.open {
		if s.ed.WindowValid(s.promptWin) && s.ed.WindowValid(s.displayWin) {
			s.logger.Debug("open ignored, view already open")
			return nil
		}
		s.logger.Info("chat window closed outside the plugin, reopening")
		if err := s.Close(); err != nil {
			s.logger.Warn("failed to close stale view", "error", err)
		}
	}

	screen, err := s.ed.Dimensions(layout.RelativeEditor, 0)
	if err != nil {
		return fmt.Errorf("read editor size: %w", err)
	}
	displayPlace, promptPlace, err := s.placements(screen)
	if err != nil {
		return err
	}

	display, err := s.ed.CreateSurface(true, false)
	if err != nil {
		return fmt.Errorf("create display buffer: %w", err)
	}
	prompt, err := s.ed.CreateSurface(true, false)
	if err != nil {
		s.deleteSurfaces(display)
		return fmt.Errorf("create prompt buffer: %w", err)
	}

	displayWin, err := s.ed.OpenRegion(display, displayPlace, editor.RegionStyle{
		Border:         s.cfg.Border,
		Title:          s.cfg.Title,
		Highlight:      BorderHighlight,
		TitleHighlight: TitleHighlight,
	})
	if err != nil {
		s.deleteSurfaces(display, prompt)
		return fmt.Errorf("open display window: %w", err)
	}
	promptWin, err := s.ed.OpenRegion(prompt, promptPlace, editor.RegionStyle{
		Border:    s.cfg.Border,
		Highlight: BorderHighlight,
		Enter:     true,
	})
	if err != nil {
		// Closing the display window wipes its buffer; the prompt buffer
		// was never shown, so it has to be deleted.
		if cerr := s.closeWindow(displayWin); cerr != nil {
			s.logger.Warn("failed to close display window", "error", cerr)
		}
		s.deleteSurfaces(prompt)
		return fmt.Errorf("open prompt window: %w", err)
	}

	s.display, s.prompt = display, prompt
	s.displayWin, s.promptWin = displayWin, promptWin
	s.open = true

	if err := s.bindKeys(); err != nil {
		s.logger.Warn("failed to map prompt keys", "error", err)
	}
	if len(s.cfg.Banner) > 0 {
		if err := s.ed.Append(s.display, s.cfg.Banner); err != nil {
			s.logger.Warn("failed to write banner", "error", err)
		}
	}
	if err := s.ed.StartInput(s.promptWin); err != nil {
		s.logger.Warn("failed to focus prompt", "error", err)
	}

	s.logger.Info("chat view opened",
		"display", fmt.Sprintf("%dx%d@%d,%d", displayPlace.Width, displayPlace.Height, displayPlace.Row, displayPlace.Col),
		"screen", fmt.Sprintf("%dx%d", screen.Width, screen.Height),
	)
	return nil
}

// deleteSurfaces wipes buffers left behind by a failed Open.
func (s *Session) deleteSurfaces(bufs ...editor.Buffer) {
	for _, b := range bufs {
		if err := s.ed.DeleteSurface(b); err != nil {
			s.logger.Debug("failed to delete buffer", "buffer", int(b), "error", err)
		}
	}
}

func (s *Session) bindKeys() error {
	submit := "<Cmd>" + s.cfg.SubmitCommand + "<CR>"
	closeCmd := "<Cmd>" + s.cfg.CloseCommand + "<CR>"

	binds := []struct{ mode, lhs, rhs string }{
		{"i", "<CR>", submit},
		{"n", "<CR>", submit},
		{"i", "<C-c>", closeCmd},
		{"n", "<C-c>", closeCmd},
		{"n", "<Esc>", closeCmd},
	}
	var errs []error
	for _, b := range binds {
		if err := s.ed.Map(s.prompt, b.mode, b.lhs, b.rhs); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", b.mode, b.lhs, err))
		}
	}
	return errors.Join(errs...)
}

// ReadPrompt returns the prompt buffer text and clears it. ok is false when
// the view is closed or the prompt window is gone.
func (s *Session) ReadPrompt() (text string, ok bool) {
	if !s.open || !s.ed.WindowValid(s.promptWin) {
		return "", false
	}
	lines, err := s.ed.Lines(s.prompt)
	if err != nil {
		s.logger.Warn("failed to read prompt", "error", err)
		return "", false
	}
	if err := s.ed.SetLines(s.prompt, []string{""}); err != nil {
		s.logger.Warn("failed to clear prompt", "error", err)
	}
	return strings.Join(lines, "\n"), true
}

// Submit sends text to the bot and writes the exchange into the display.
// It is a no-op when the view is closed, when either window has been
// closed outside the plugin, or when text is blank. Bot failures are
// written as a single error line and never returned.
func (s *Session) Submit(ctx context.Context, text string) error {
	if !s.open {
		return nil
	}
	if !s.ed.WindowValid(s.promptWin) || !s.ed.WindowValid(s.displayWin) {
		s.logger.Debug("submit ignored, chat window no longer valid")
		return nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.seq++
	if err := s.ed.Append(s.display, promptLines(s.seq, s.cfg.PromptPrefix, text)); err != nil {
		return fmt.Errorf("write prompt: %w", err)
	}

	reply, err := s.bot.Query(ctx, text)
	if err != nil {
		s.logger.Error("query failed", "seq", s.seq, "error", err)
		if err := s.ed.Append(s.display, []string{s.cfg.ErrorLine}); err != nil {
			return fmt.Errorf("write error line: %w", err)
		}
		s.scroll()
		return nil
	}

	if err := s.ed.Append(s.display, append(ResponseLines(reply), "")); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	s.scroll()
	s.logger.Debug("prompt answered", "seq", s.seq, "chars", len(reply))
	return nil
}

func (s *Session) scroll() {
	if !s.ed.WindowValid(s.displayWin) {
		return
	}
	if err := s.ed.ScrollToEnd(s.displayWin); err != nil {
		s.logger.Debug("scroll failed", "error", err)
	}
}

// Close closes whichever windows are still valid and forgets all handles.
// Calling it on a closed session does nothing.
func (s *Session) Close() error {
	if !s.open {
		return nil
	}

	var errs []error
	for _, w := range []editor.Window{s.promptWin, s.displayWin} {
		if err := s.closeWindow(w); err != nil {
			errs = append(errs, err)
		}
	}

	s.display, s.prompt = 0, 0
	s.displayWin, s.promptWin = 0, 0
	s.open = false
	s.logger.Info("chat view closed", "seq", s.seq)
	return errors.Join(errs...)
}

func (s *Session) closeWindow(w editor.Window) error {
	if !s.ed.WindowValid(w) {
		return nil
	}
	if err := s.ed.CloseWindow(w, true); err != nil {
		return fmt.Errorf("close window %d: %w", w, err)
	}
	return nil
}

// promptLines formats a submitted prompt as "[n] <prefix><text>". Only the
// first line carries the marker.
func promptLines(seq int, prefix, text string) []string {
	lines := strings.Split(text, "\n")
	lines[0] = "[" + strconv.Itoa(seq) + "] " + prefix + lines[0]
	return lines
}

// ResponseLines turns a reply into buffer lines. Terminal escape sequences
// are stripped since the buffer would show them literally.
func ResponseLines(reply string) []string {
	reply = ansi.Strip(reply)
	reply = strings.ReplaceAll(reply, "\r\n", "\n")
	reply = strings.TrimRight(reply, "\n")
	return strings.Split(reply, "\n")
}
