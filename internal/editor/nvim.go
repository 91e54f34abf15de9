// pattern: Imperative Shell

package editor

import (
	"fmt"
	"strings"

	"github.com/neovim/go-client/nvim"

	"chatgptnvim/internal/layout"
)

// openFloatLua opens a float and applies window-local options in one round
// trip. The config goes through Lua so that zero row/col values are sent
// explicitly instead of being dropped by omitempty struct tags.
const openFloatLua = `
local buf, enter, cfg, winhl = ...
local win = vim.api.nvim_open_win(buf, enter, cfg)
if winhl ~= "" then
  vim.api.nvim_win_set_option(win, "winhighlight", winhl)
end
vim.api.nvim_win_set_option(win, "wrap", true)
return win
`

const echoLua = `
local msg, hl = ...
vim.api.nvim_echo({ { msg, hl } }, true, {})
`

// Nvim implements Editor over a msgpack-RPC connection to Neovim.
type Nvim struct {
	v *nvim.Nvim
}

// NewNvim wraps an established client connection.
func NewNvim(v *nvim.Nvim) *Nvim {
	return &Nvim{v: v}
}

func (n *Nvim) Dimensions(rel layout.Relative, ref Window) (layout.Dimensions, error) {
	switch rel {
	case layout.RelativeWindow, layout.RelativeCursor:
		win := nvim.Window(ref)
		if rel == layout.RelativeCursor || ref == 0 {
			cur, err := n.v.CurrentWindow()
			if err != nil {
				return layout.Dimensions{}, fmt.Errorf("current window: %w", err)
			}
			win = cur
		}
		w, err := n.v.WindowWidth(win)
		if err != nil {
			return layout.Dimensions{}, fmt.Errorf("window width: %w", err)
		}
		h, err := n.v.WindowHeight(win)
		if err != nil {
			return layout.Dimensions{}, fmt.Errorf("window height: %w", err)
		}
		return layout.Dimensions{Width: w, Height: h}, nil

	default:
		var columns, lines, cmdheight int
		if err := n.v.Option("columns", &columns); err != nil {
			return layout.Dimensions{}, fmt.Errorf("columns: %w", err)
		}
		if err := n.v.Option("lines", &lines); err != nil {
			return layout.Dimensions{}, fmt.Errorf("lines: %w", err)
		}
		if err := n.v.Option("cmdheight", &cmdheight); err != nil {
			return layout.Dimensions{}, fmt.Errorf("cmdheight: %w", err)
		}
		// Floats anchored to the bottom edge should sit above the command line.
		return layout.Dimensions{Width: columns, Height: lines - cmdheight}, nil
	}
}

func (n *Nvim) CreateSurface(scratch, listed bool) (Buffer, error) {
	b, err := n.v.CreateBuffer(listed, scratch)
	if err != nil {
		return 0, fmt.Errorf("create buffer: %w", err)
	}
	if scratch {
		// Neovim frees the buffer once its last window closes.
		if err := n.v.SetBufferOption(b, "bufhidden", "wipe"); err != nil {
			return 0, fmt.Errorf("set bufhidden: %w", err)
		}
	}
	return Buffer(b), nil
}

func (n *Nvim) DeleteSurface(buf Buffer) error {
	return n.v.DeleteBuffer(nvim.Buffer(buf), map[string]bool{"force": true})
}

func (n *Nvim) OpenRegion(buf Buffer, p layout.Placement, style RegionStyle) (Window, error) {
	cfg := map[string]any{
		"relative": p.Relative.String(),
		"anchor":   string(p.Anchor),
		"row":      p.Row,
		"col":      p.Col,
		"width":    max(p.Width, 1),
		"height":   max(p.Height, 1),
		"style":    "minimal",
	}
	if p.Relative == layout.RelativeWindow && style.Anchor != 0 {
		cfg["win"] = int(style.Anchor)
	}
	if style.Border != "" {
		cfg["border"] = style.Border
		if style.Title != "" && style.Border != "none" {
			cfg["title"] = style.Title
			cfg["title_pos"] = "center"
		}
	}

	var hl []string
	if style.Highlight != "" {
		hl = append(hl, "FloatBorder:"+style.Highlight)
	}
	if style.TitleHighlight != "" {
		hl = append(hl, "FloatTitle:"+style.TitleHighlight)
	}
	winhl := strings.Join(hl, ",")

	var id int
	if err := n.v.ExecLua(openFloatLua, &id, int(buf), style.Enter, cfg, winhl); err != nil {
		return 0, fmt.Errorf("open window: %w", err)
	}
	return Window(id), nil
}

func (n *Nvim) WindowValid(w Window) bool {
	if w == 0 {
		return false
	}
	ok, err := n.v.IsWindowValid(nvim.Window(w))
	return err == nil && ok
}

func (n *Nvim) CloseWindow(w Window, force bool) error {
	return n.v.CloseWindow(nvim.Window(w), force)
}

func (n *Nvim) Append(buf Buffer, lines []string) error {
	b := nvim.Buffer(buf)
	count, err := n.v.BufferLineCount(b)
	if err != nil {
		return fmt.Errorf("line count: %w", err)
	}

	start := count
	if count == 1 {
		first, err := n.v.BufferLines(b, 0, 1, true)
		if err != nil {
			return fmt.Errorf("read first line: %w", err)
		}
		if len(first) == 1 && len(first[0]) == 0 {
			start = 0
		}
	}

	return n.v.SetBufferLines(b, start, -1, true, toBytes(lines))
}

func (n *Nvim) Lines(buf Buffer) ([]string, error) {
	raw, err := n.v.BufferLines(nvim.Buffer(buf), 0, -1, true)
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = string(l)
	}
	return lines, nil
}

func (n *Nvim) SetLines(buf Buffer, lines []string) error {
	return n.v.SetBufferLines(nvim.Buffer(buf), 0, -1, true, toBytes(lines))
}

func (n *Nvim) Map(buf Buffer, mode, lhs, rhs string) error {
	opts := map[string]bool{"noremap": true, "silent": true, "nowait": true}
	return n.v.SetBufferKeyMap(nvim.Buffer(buf), mode, lhs, rhs, opts)
}

func (n *Nvim) StartInput(w Window) error {
	if err := n.v.SetCurrentWindow(nvim.Window(w)); err != nil {
		return fmt.Errorf("focus window: %w", err)
	}
	return n.v.Command("startinsert!")
}

func (n *Nvim) ScrollToEnd(w Window) error {
	win := nvim.Window(w)
	b, err := n.v.WindowBuffer(win)
	if err != nil {
		return err
	}
	count, err := n.v.BufferLineCount(b)
	if err != nil {
		return err
	}
	return n.v.SetWindowCursor(win, [2]int{count, 0})
}

func (n *Nvim) Echo(msg, hl string) error {
	msg = strings.TrimRight(msg, "\n")
	if hl == "" {
		return n.v.WriteOut(msg + "\n")
	}
	return n.v.ExecLua(echoLua, nil, msg, hl)
}

func (n *Nvim) Highlight(group, fg string, bold bool) error {
	cmd := fmt.Sprintf("highlight default %s guifg=%s", group, fg)
	if bold {
		cmd += " gui=bold"
	}
	return n.v.Command(cmd)
}

// toBytes converts lines for the buffer API. Neovim rejects embedded
// newlines, so any that slipped through are split into separate lines.
func toBytes(lines []string) [][]byte {
	out := make([][]byte, 0, len(lines))
	for _, l := range lines {
		for part := range strings.SplitSeq(l, "\n") {
			out = append(out, []byte(part))
		}
	}
	return out
}
