package window

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bryanchriswhite/shadowcap/internal/logger"
)

// Descriptor is a snapshot of one capturable window. It goes stale as soon as
// the window stack changes.
type Descriptor struct {
	Handle       Handle `json:"handle"`
	ClassName    string `json:"class"`
	Title        string `json:"title"`
	ZOrder       int    `json:"z_order"`
	IsForeground bool   `json:"foreground"`
	IsMinimized  bool   `json:"minimized"`
}

// Label returns the "Class - Title" form used in pickers and logs
func (d Descriptor) Label() string {
	return fmt.Sprintf("%s - %s", d.ClassName, d.Title)
}

// Selector identifies the capture target. A non-zero Handle wins; otherwise
// Class and Title must match exactly where set.
type Selector struct {
	Handle Handle
	Class  string
	Title  string
}

// Empty reports whether the selector names nothing
func (s Selector) Empty() bool {
	return s.Handle == 0 && s.Class == "" && s.Title == ""
}

func (s Selector) String() string {
	if s.Handle != 0 {
		return fmt.Sprintf("handle=0x%x", uintptr(s.Handle))
	}
	return fmt.Sprintf("class=%q title=%q", s.Class, s.Title)
}

// Manager enumerates and resolves windows on top of a Backend
type Manager struct {
	backend Backend

	mu       sync.RWMutex
	excludes []string
}

// NewManager creates a window manager. Windows whose class contains any of
// the exclude substrings are never listed.
func NewManager(backend Backend, excludes []string) *Manager {
	m := &Manager{backend: backend}
	m.SetExcludedClasses(excludes)
	return m
}

// Backend returns the underlying platform backend
func (m *Manager) Backend() Backend {
	return m.backend
}

// SetExcludedClasses replaces the class exclusion list
func (m *Manager) SetExcludedClasses(excludes []string) {
	cleaned := make([]string, 0, len(excludes))
	for _, e := range excludes {
		if e = strings.TrimSpace(e); e != "" {
			cleaned = append(cleaned, e)
		}
	}
	m.mu.Lock()
	m.excludes = cleaned
	m.mu.Unlock()
}

func (m *Manager) excluded(class string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.excludes {
		if strings.Contains(class, e) {
			return true
		}
	}
	return false
}

// ListVisibleWindows returns the visible, titled top-level windows ordered
// foreground first, then non-minimized, then by stacking order, then by
// case-insensitive title. State is re-queried on every call.
func (m *Manager) ListVisibleWindows() ([]Descriptor, error) {
	log := logger.WithComponent("window")

	infos, err := m.backend.ListWindows()
	if err != nil {
		return nil, fmt.Errorf("failed to list windows: %w", err)
	}

	windows := make([]Descriptor, 0, len(infos))
	skipped := 0
	for _, info := range infos {
		if !info.Visible || strings.TrimSpace(info.Title) == "" {
			continue
		}
		if m.excluded(info.Class) {
			skipped++
			continue
		}
		windows = append(windows, Descriptor{
			Handle:       info.Handle,
			ClassName:    info.Class,
			Title:        info.Title,
			ZOrder:       len(windows),
			IsForeground: info.Foreground,
			IsMinimized:  info.Minimized,
		})
	}

	SortDescriptors(windows)

	log.Debug().
		Int("total", len(infos)).
		Int("listed", len(windows)).
		Int("excluded", skipped).
		Msg("Enumerated windows")

	return windows, nil
}

// SortDescriptors orders windows by (foreground, not minimized, z-order,
// lower-cased title).
func SortDescriptors(windows []Descriptor) {
	sort.SliceStable(windows, func(i, j int) bool {
		a, b := windows[i], windows[j]
		if a.IsForeground != b.IsForeground {
			return a.IsForeground
		}
		if a.IsMinimized != b.IsMinimized {
			return !a.IsMinimized
		}
		if a.ZOrder != b.ZOrder {
			return a.ZOrder < b.ZOrder
		}
		return strings.ToLower(a.Title) < strings.ToLower(b.Title)
	})
}

// Find resolves a selector to a live window
func (m *Manager) Find(sel Selector) (Descriptor, error) {
	if sel.Empty() {
		return Descriptor{}, fmt.Errorf("%w: empty selector", ErrNotFound)
	}

	h := sel.Handle
	if h == 0 {
		found, err := m.backend.FindWindow(sel.Class, sel.Title)
		if err != nil || found == 0 {
			return Descriptor{}, fmt.Errorf("%w: %s", ErrNotFound, sel)
		}
		h = found
	}

	if !m.backend.IsWindow(h) {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrNotFound, sel)
	}

	desc := Descriptor{Handle: h, ClassName: sel.Class, Title: sel.Title, ZOrder: -1}
	infos, err := m.backend.ListWindows()
	if err != nil {
		return desc, nil
	}
	for i, info := range infos {
		if info.Handle == h {
			desc.ClassName = info.Class
			desc.Title = info.Title
			desc.ZOrder = i
			desc.IsForeground = info.Foreground
			desc.IsMinimized = info.Minimized
			break
		}
	}
	return desc, nil
}
