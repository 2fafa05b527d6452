// Package viewstate holds the session-wide zoom level and feature toggles and
// fans out change events to subscribers one at a time.
package viewstate

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"noxmap/core-go/internal/geometry"
)

const (
	SettingPOIs        = "show_pois"
	SettingConnections = "show_connections"
)

var (
	ErrUnknownSetting = errors.New("unknown setting")
	ErrInvalidZoom    = errors.New("invalid zoom")
)

type EventKind int

const (
	ZoomChanged EventKind = iota + 1
	SettingsChanged
)

func (k EventKind) String() string {
	switch k {
	case ZoomChanged:
		return "zoom_changed"
	case SettingsChanged:
		return "settings_changed"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable copy of the view state.
type Snapshot struct {
	Zoom     float64
	Settings map[string]bool
}

func (s Snapshot) Enabled(name string) bool {
	return s.Settings[name]
}

// SettingNames returns the setting keys in sorted order.
func (s Snapshot) SettingNames() []string {
	names := make([]string, 0, len(s.Settings))
	for k := range s.Settings {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

type Event struct {
	Kind EventKind
	View Snapshot
}

// Handler reacts to an event. Handlers run synchronously and must not call
// back into the State that dispatched them.
type Handler func(Event)

type Options struct {
	Zoom     float64
	MinZoom  float64
	MaxZoom  float64
	Settings map[string]bool
}

// DefaultSettings enables both marker layers.
func DefaultSettings() map[string]bool {
	return map[string]bool{
		SettingPOIs:        true,
		SettingConnections: true,
	}
}

type State struct {
	// dispatch serialises mutation plus fan-out so each event is fully
	// handled before the next one starts.
	dispatch sync.Mutex
	mu       sync.RWMutex
	zoom     float64
	minZoom  float64
	maxZoom  float64
	settings map[string]bool
	subs     []Handler
}

func New(opts Options) *State {
	minZoom, maxZoom := opts.MinZoom, opts.MaxZoom
	if minZoom == 0 && maxZoom == 0 {
		minZoom, maxZoom = -10, 2
	}
	if minZoom > maxZoom {
		minZoom, maxZoom = maxZoom, minZoom
	}

	settings := DefaultSettings()
	for k, v := range opts.Settings {
		settings[k] = v
	}

	return &State{
		zoom:     geometry.ClampZoom(opts.Zoom, minZoom, maxZoom),
		minZoom:  minZoom,
		maxZoom:  maxZoom,
		settings: settings,
	}
}

// Subscribe registers h for every later event.
func (s *State) Subscribe(h Handler) {
	if h == nil {
		return
	}
	s.dispatch.Lock()
	defer s.dispatch.Unlock()
	s.subs = append(s.subs, h)
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *State) ZoomLimits() (float64, float64) {
	return s.minZoom, s.maxZoom
}

// SetZoom clamps z to the zoom limits, stores it and dispatches ZoomChanged.
// The event is dispatched even when the zoom is unchanged; subscribers are
// expected to be idempotent.
func (s *State) SetZoom(z float64) (Snapshot, error) {
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidZoom, z)
	}

	s.dispatch.Lock()
	defer s.dispatch.Unlock()

	s.mu.Lock()
	s.zoom = geometry.ClampZoom(z, s.minZoom, s.maxZoom)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.fanOut(Event{Kind: ZoomChanged, View: snap})
	return snap, nil
}

// Toggle flips a known setting and dispatches SettingsChanged.
func (s *State) Toggle(name string) (Snapshot, error) {
	return s.update(name, func(cur bool) bool { return !cur })
}

// Set assigns a known setting and dispatches SettingsChanged.
func (s *State) Set(name string, enabled bool) (Snapshot, error) {
	return s.update(name, func(bool) bool { return enabled })
}

func (s *State) update(name string, next func(bool) bool) (Snapshot, error) {
	s.dispatch.Lock()
	defer s.dispatch.Unlock()

	s.mu.Lock()
	cur, ok := s.settings[name]
	if !ok {
		s.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownSetting, name)
	}
	s.settings[name] = next(cur)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.fanOut(Event{Kind: SettingsChanged, View: snap})
	return snap, nil
}

func (s *State) fanOut(ev Event) {
	for _, h := range s.subs {
		h(ev)
	}
}

func (s *State) snapshotLocked() Snapshot {
	settings := make(map[string]bool, len(s.settings))
	for k, v := range s.settings {
		settings[k] = v
	}
	return Snapshot{Zoom: s.zoom, Settings: settings}
}
