package window_test

import (
	"errors"
	"image"
	"reflect"
	"testing"

	"github.com/bryanchriswhite/shadowcap/internal/window"
	"github.com/bryanchriswhite/shadowcap/internal/window/windowtest"
)

func titles(ds []window.Descriptor) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Title
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestListVisibleWindowsOrdering(t *testing.T) {
	be := windowtest.New(
		&windowtest.Window{Handle: 1, Class: "Term", Title: "zsh", Visible: true},
		&windowtest.Window{Handle: 2, Class: "Editor", Title: "notes", Visible: true, Minimized: true},
		&windowtest.Window{Handle: 3, Class: "Browser", Title: "Docs", Visible: true, Foreground: true},
		&windowtest.Window{Handle: 4, Class: "Hidden", Title: "invisible", Visible: false},
		&windowtest.Window{Handle: 5, Class: "Blank", Title: "   ", Visible: true},
		&windowtest.Window{Handle: 6, Class: "Mail", Title: "Inbox", Visible: true},
	)
	m := window.NewManager(be, nil)

	got, err := m.ListVisibleWindows()
	if err != nil {
		t.Fatalf("ListVisibleWindows() error = %v", err)
	}

	want := []string{"Docs", "zsh", "Inbox", "notes"}
	if !equal(titles(got), want) {
		t.Fatalf("order = %v, want %v", titles(got), want)
	}

	// z-order is the index among kept windows
	z := map[string]int{}
	for _, d := range got {
		z[d.Title] = d.ZOrder
	}
	if z["zsh"] != 0 || z["notes"] != 1 || z["Docs"] != 2 || z["Inbox"] != 3 {
		t.Fatalf("z-order = %v", z)
	}
}

func TestListVisibleWindowsTitleTieBreak(t *testing.T) {
	got := []window.Descriptor{
		{Title: "beta", ZOrder: 1},
		{Title: "Alpha", ZOrder: 1},
		{Title: "gamma", ZOrder: 0},
	}
	window.SortDescriptors(got)
	want := []string{"gamma", "Alpha", "beta"}
	if !equal(titles(got), want) {
		t.Fatalf("order = %v, want %v", titles(got), want)
	}
}

func TestListVisibleWindowsExclusion(t *testing.T) {
	be := windowtest.New(
		&windowtest.Window{Handle: 1, Class: "Grammarly.Desktop.exe.Overlay", Title: "Grammarly", Visible: true},
		&windowtest.Window{Handle: 2, Class: "Term", Title: "zsh", Visible: true},
	)
	m := window.NewManager(be, []string{"Grammarly.Desktop.exe", " "})

	got, err := m.ListVisibleWindows()
	if err != nil {
		t.Fatalf("ListVisibleWindows() error = %v", err)
	}
	if len(got) != 1 || got[0].Title != "zsh" || got[0].ZOrder != 0 {
		t.Fatalf("got %+v, want only zsh at z-order 0", got)
	}

	m.SetExcludedClasses(nil)
	got, _ = m.ListVisibleWindows()
	if len(got) != 2 {
		t.Fatalf("got %d windows after clearing exclusions, want 2", len(got))
	}
}

func TestListVisibleWindowsStableAcrossCalls(t *testing.T) {
	be := windowtest.New(
		&windowtest.Window{Handle: 1, Class: "Term", Title: "zsh", Visible: true},
		&windowtest.Window{Handle: 2, Class: "Editor", Title: "notes", Visible: true, Minimized: true},
		&windowtest.Window{Handle: 3, Class: "Browser", Title: "docs", Visible: true, Foreground: true},
		&windowtest.Window{Handle: 4, Class: "Term", Title: "ZSH", Visible: true},
	)
	m := window.NewManager(be, nil)

	first, err := m.ListVisibleWindows()
	if err != nil {
		t.Fatalf("ListVisibleWindows() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		got, err := m.ListVisibleWindows()
		if err != nil {
			t.Fatalf("ListVisibleWindows() error = %v", err)
		}
		if !reflect.DeepEqual(got, first) {
			t.Fatalf("call %d = %+v, want %+v", i+2, got, first)
		}
	}
	if calls := be.Calls(); len(calls) != 0 {
		t.Fatalf("enumeration mutated state: %v", calls)
	}
}

func TestSortDescriptorsKeepsHostOrderOnTies(t *testing.T) {
	ds := []window.Descriptor{
		{Handle: 7, Title: "b", ZOrder: 1},
		{Handle: 5, Title: "Doc", ZOrder: 0},
		{Handle: 3, Title: "doc", ZOrder: 0},
		{Handle: 9, Title: "DOC", ZOrder: 0},
	}
	window.SortDescriptors(ds)

	var handles []window.Handle
	for _, d := range ds {
		handles = append(handles, d.Handle)
	}
	if want := []window.Handle{5, 3, 9, 7}; !reflect.DeepEqual(handles, want) {
		t.Fatalf("order = %v, want %v", handles, want)
	}
}

func TestFind(t *testing.T) {
	be := windowtest.New(
		&windowtest.Window{Handle: 10, Class: "Term", Title: "zsh", Visible: true, Rect: image.Rect(0, 0, 10, 10)},
		&windowtest.Window{Handle: 11, Class: "Term", Title: "htop", Visible: true},
	)
	m := window.NewManager(be, nil)

	d, err := m.Find(window.Selector{Class: "Term", Title: "htop"})
	if err != nil || d.Handle != 11 {
		t.Fatalf("Find(class+title) = %+v, %v", d, err)
	}

	d, err = m.Find(window.Selector{Title: "zsh"})
	if err != nil || d.Handle != 10 || d.ClassName != "Term" {
		t.Fatalf("Find(title) = %+v, %v", d, err)
	}

	d, err = m.Find(window.Selector{Handle: 11})
	if err != nil || d.Title != "htop" || d.ZOrder != 1 {
		t.Fatalf("Find(handle) = %+v, %v", d, err)
	}

	if _, err := m.Find(window.Selector{Title: "zs"}); !errors.Is(err, window.ErrNotFound) {
		t.Fatalf("partial title should not match, err = %v", err)
	}
	if _, err := m.Find(window.Selector{}); !errors.Is(err, window.ErrNotFound) {
		t.Fatalf("empty selector err = %v, want ErrNotFound", err)
	}
	if _, err := m.Find(window.Selector{Handle: 99}); !errors.Is(err, window.ErrNotFound) {
		t.Fatalf("stale handle err = %v, want ErrNotFound", err)
	}
}

func TestDescriptorLabel(t *testing.T) {
	d := window.Descriptor{ClassName: "Notepad", Title: "todo.txt"}
	if got := d.Label(); got != "Notepad - todo.txt" {
		t.Fatalf("Label() = %q", got)
	}
}
