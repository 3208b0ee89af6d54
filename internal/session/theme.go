// Package session is the browser-side helper: it keeps the light/dark theme
// preference and signs the user out after a stretch of inactivity.
package session

import "sync"

// Theme is the persisted colour scheme.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ThemeKey is the storage key holding the preference.
const ThemeKey = "ut_theme"

// Storage is the key/value store the preference persists in (local storage
// in the browser).
type Storage interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string)
}

// Document receives the applied theme: the data-theme attribute and the
// toggle icon glyph.
type Document interface {
	SetTheme(theme Theme, icon string)
}

// Icon returns the toggle glyph shown for t.
func Icon(t Theme) string {
	if t == ThemeDark {
		return "🌙"
	}
	return "☀️"
}

// ThemeManager reads, applies and flips the theme preference.
type ThemeManager struct {
	storage Storage
	doc     Document
}

// NewThemeManager returns a manager over storage. doc may be nil when there
// is nothing to render into.
func NewThemeManager(storage Storage, doc Document) *ThemeManager {
	return &ThemeManager{storage: storage, doc: doc}
}

// Current returns the stored theme, dark when unset or unrecognised.
func (m *ThemeManager) Current() Theme {
	v, ok := m.storage.GetItem(ThemeKey)
	if ok && Theme(v) == ThemeLight {
		return ThemeLight
	}
	return ThemeDark
}

// Apply pushes the current theme to the document and returns it.
func (m *ThemeManager) Apply() Theme {
	t := m.Current()
	if m.doc != nil {
		m.doc.SetTheme(t, Icon(t))
	}
	return t
}

// Toggle flips the preference, persists it and re-applies it immediately.
func (m *ThemeManager) Toggle() Theme {
	next := ThemeLight
	if m.Current() == ThemeLight {
		next = ThemeDark
	}
	m.storage.SetItem(ThemeKey, string(next))
	return m.Apply()
}

// MemoryStorage is an in-process Storage.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStorage returns an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (s *MemoryStorage) GetItem(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

func (s *MemoryStorage) SetItem(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
}
