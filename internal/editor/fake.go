package editor

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"chatgptnvim/internal/layout"
)

// FakeWindow records how a window was opened.
type FakeWindow struct {
	Buffer    Buffer
	Placement layout.Placement
	Style     RegionStyle
}

// FakeMapping is one recorded Map call.
type FakeMapping struct {
	Buffer Buffer
	Mode   string
	LHS    string
	RHS    string
}

// FakeEcho is one recorded Echo call.
type FakeEcho struct {
	Msg       string
	Highlight string
}

// Fake is an in-memory Editor for tests. Window and buffer handles start at
// 1000 so they are never mistaken for the zero handle.
type Fake struct {
	Screen     layout.Dimensions
	WindowSize layout.Dimensions

	// FailOpen makes the next OpenRegion calls fail while set.
	FailOpen error

	mu          sync.Mutex
	next        int
	buffers     map[Buffer][]string
	windows     map[Window]FakeWindow
	closed      []Window
	deleted     []Buffer
	mappings    []FakeMapping
	echoes      []FakeEcho
	highlights  map[string]string
	inputs      []Window
	appendCalls map[Buffer]int
}

// NewFake returns a fake editor with an 80x24 screen.
func NewFake() *Fake {
	return &Fake{
		Screen:      layout.Dimensions{Width: 80, Height: 24},
		WindowSize:  layout.Dimensions{Width: 80, Height: 22},
		next:        1000,
		buffers:     make(map[Buffer][]string),
		windows:     make(map[Window]FakeWindow),
		highlights:  make(map[string]string),
		appendCalls: make(map[Buffer]int),
	}
}

func (f *Fake) Dimensions(rel layout.Relative, _ Window) (layout.Dimensions, error) {
	if rel == layout.RelativeEditor {
		return f.Screen, nil
	}
	return f.WindowSize, nil
}

func (f *Fake) CreateSurface(_, _ bool) (Buffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	b := Buffer(f.next)
	f.buffers[b] = []string{""}
	return b, nil
}

func (f *Fake) DeleteSurface(buf Buffer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.buffers[buf]; !ok {
		return fmt.Errorf("invalid buffer %d", buf)
	}
	delete(f.buffers, buf)
	f.deleted = append(f.deleted, buf)
	return nil
}

func (f *Fake) OpenRegion(buf Buffer, p layout.Placement, style RegionStyle) (Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailOpen != nil {
		return 0, f.FailOpen
	}
	if _, ok := f.buffers[buf]; !ok {
		return 0, fmt.Errorf("invalid buffer %d", buf)
	}
	f.next++
	w := Window(f.next)
	f.windows[w] = FakeWindow{Buffer: buf, Placement: p, Style: style}
	return w, nil
}

func (f *Fake) WindowValid(w Window) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.windows[w]
	return ok
}

func (f *Fake) CloseWindow(w Window, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.windows[w]; !ok {
		return fmt.Errorf("invalid window %d", w)
	}
	delete(f.windows, w)
	f.closed = append(f.closed, w)
	return nil
}

func (f *Fake) Append(buf Buffer, lines []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.buffers[buf]
	if !ok {
		return fmt.Errorf("invalid buffer %d", buf)
	}
	if len(cur) == 1 && cur[0] == "" {
		cur = nil
	}
	f.buffers[buf] = append(cur, lines...)
	f.appendCalls[buf]++
	return nil
}

func (f *Fake) Lines(buf Buffer) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.buffers[buf]
	if !ok {
		return nil, fmt.Errorf("invalid buffer %d", buf)
	}
	return append([]string(nil), cur...), nil
}

func (f *Fake) SetLines(buf Buffer, lines []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.buffers[buf]; !ok {
		return fmt.Errorf("invalid buffer %d", buf)
	}
	f.buffers[buf] = append([]string(nil), lines...)
	return nil
}

func (f *Fake) Map(buf Buffer, mode, lhs, rhs string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mappings = append(f.mappings, FakeMapping{Buffer: buf, Mode: mode, LHS: lhs, RHS: rhs})
	return nil
}

func (f *Fake) StartInput(w Window) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.windows[w]; !ok {
		return errors.New("start input: invalid window")
	}
	f.inputs = append(f.inputs, w)
	return nil
}

func (f *Fake) ScrollToEnd(w Window) error {
	if !f.WindowValid(w) {
		return errors.New("scroll: invalid window")
	}
	return nil
}

func (f *Fake) Echo(msg, hl string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.echoes = append(f.echoes, FakeEcho{Msg: msg, Highlight: hl})
	return nil
}

func (f *Fake) Highlight(group, fg string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.highlights[group] = fg
	return nil
}

// CloseOutOfBand simulates the user closing a window behind the plugin's back.
func (f *Fake) CloseOutOfBand(w Window) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.windows, w)
}

// Window returns how w was opened and whether it is still open.
func (f *Fake) Window(w Window) (FakeWindow, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fw, ok := f.windows[w]
	return fw, ok
}

// OpenWindows returns the number of windows still open.
func (f *Fake) OpenWindows() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.windows)
}

// WindowHandles returns the open windows in creation order.
func (f *Fake) WindowHandles() []Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Sorted(maps.Keys(f.windows))
}

// Closed returns the windows closed through CloseWindow, in order.
func (f *Fake) Closed() []Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Window(nil), f.closed...)
}

// Deleted returns the buffers wiped through DeleteSurface, in order.
func (f *Fake) Deleted() []Buffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Buffer(nil), f.deleted...)
}

// Buffers returns the number of buffers that still exist.
func (f *Fake) Buffers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buffers)
}

// AppendCalls returns how many times Append was called on buf.
func (f *Fake) AppendCalls(buf Buffer) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appendCalls[buf]
}

func (f *Fake) Mappings() []FakeMapping {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeMapping(nil), f.mappings...)
}

func (f *Fake) Echoes() []FakeEcho {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeEcho(nil), f.echoes...)
}

func (f *Fake) Highlights() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.highlights))
	for k, v := range f.highlights {
		out[k] = v
	}
	return out
}

func (f *Fake) Inputs() []Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Window(nil), f.inputs...)
}

var _ Editor = (*Fake)(nil)
var _ Editor = (*Nvim)(nil)
