// Package editor is the boundary between the plugin and the host editor.
// Buffers and windows belong to the editor; the plugin only borrows their
// handles and must check WindowValid before reusing one.
package editor

import (
	"chatgptnvim/internal/layout"
)

// Buffer is an editor-managed text buffer (a "surface").
type Buffer int

// Window is an editor-managed viewport showing a buffer at a placement.
type Window int

// RegionStyle holds the cosmetic half of a float's configuration.
type RegionStyle struct {
	Border         string // "none", "single", "double", "rounded", ...
	Title          string
	Highlight      string // highlight group for the border
	TitleHighlight string
	Enter          bool   // focus the window after opening it
	Anchor         Window // reference window for layout.RelativeWindow
}

// Editor is what the chat session needs from the host editor.
type Editor interface {
	// Dimensions returns the size of the region a placement is relative to.
	// ref is only used for layout.RelativeWindow.
	Dimensions(rel layout.Relative, ref Window) (layout.Dimensions, error)

	CreateSurface(scratch, listed bool) (Buffer, error)
	// DeleteSurface wipes a buffer, including one never shown in a window.
	DeleteSurface(buf Buffer) error
	OpenRegion(buf Buffer, p layout.Placement, style RegionStyle) (Window, error)
	WindowValid(w Window) bool
	CloseWindow(w Window, force bool) error

	// Append adds lines to the end of buf. The first append to an empty
	// buffer replaces its single blank line.
	Append(buf Buffer, lines []string) error
	Lines(buf Buffer) ([]string, error)
	SetLines(buf Buffer, lines []string) error

	// Map adds a buffer-local mapping that runs rhs silently.
	Map(buf Buffer, mode, lhs, rhs string) error

	// StartInput focuses w and enters insert mode.
	StartInput(w Window) error
	// ScrollToEnd moves the cursor of w to the last line of its buffer.
	ScrollToEnd(w Window) error

	// Echo shows msg in the message area, in highlight group hl if set.
	Echo(msg, hl string) error
	Highlight(group, fg string, bold bool) error
}
