package editor

import (
	"reflect"
	"testing"

	"chatgptnvim/internal/layout"
)

func TestToBytes_SplitsEmbeddedNewlines(t *testing.T) {
	got := toBytes([]string{"a", "b\nc", ""})
	want := []string{"a", "b", "c", ""}

	if len(got) != len(want) {
		t.Fatalf("toBytes() returned %d lines, want %d", len(got), len(want))
	}
	for i := range want {
		if string(got[i]) != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFake_AppendReplacesInitialBlankLine(t *testing.T) {
	f := NewFake()
	b, _ := f.CreateSurface(true, false)

	if err := f.Append(b, []string{"one"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := f.Append(b, []string{"two", ""}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, _ := f.Lines(b)
	if want := []string{"one", "two", ""}; !reflect.DeepEqual(got, want) {
		t.Errorf("Lines() = %q, want %q", got, want)
	}
}

func TestFake_WindowLifecycle(t *testing.T) {
	f := NewFake()
	b, _ := f.CreateSurface(true, false)
	w, err := f.OpenRegion(b, layout.Placement{Width: 10, Height: 1}, RegionStyle{})
	if err != nil {
		t.Fatalf("OpenRegion() error = %v", err)
	}
	if !f.WindowValid(w) {
		t.Fatal("new window should be valid")
	}

	f.CloseOutOfBand(w)
	if f.WindowValid(w) {
		t.Error("window closed out of band should be invalid")
	}
	if err := f.CloseWindow(w, true); err == nil {
		t.Error("closing an invalid window should fail")
	}
	if len(f.Closed()) != 0 {
		t.Errorf("Closed() = %v, want none", f.Closed())
	}
}
