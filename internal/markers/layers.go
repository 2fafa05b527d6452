package markers

import (
	"sync"

	"noxmap/core-go/internal/viewstate"
)

const (
	LayerPOIs        = "pois"
	LayerConnections = "connections"

	POIMinZoom        = -5
	ConnectionMinZoom = -4
)

// Layer is a toggleable collection of markers gated by a zoom threshold and a
// view setting.
type Layer struct {
	Name    string
	Setting string
	MinZoom float64
	Markers []Marker
}

func NewPOILayer(ms []Marker) *Layer {
	return &Layer{Name: LayerPOIs, Setting: viewstate.SettingPOIs, MinZoom: POIMinZoom, Markers: ms}
}

func NewConnectionLayer(ms []Marker) *Layer {
	return &Layer{Name: LayerConnections, Setting: viewstate.SettingConnections, MinZoom: ConnectionMinZoom, Markers: ms}
}

// Visible reports the layer's effective membership for a view: zoom at or
// above the threshold and the feature setting on.
func (l *Layer) Visible(v viewstate.Snapshot) bool {
	return v.Zoom >= l.MinZoom && v.Enabled(l.Setting)
}

// Renderer is the collaborator that actually shows or hides layers.
type Renderer interface {
	AddLayer(l *Layer)
	RemoveLayer(l *Layer)
}

// Manager owns layer membership. Membership is recomputed from the full view
// on every Sync; the renderer only sees calls for layers whose membership
// changed.
type Manager struct {
	mu       sync.Mutex
	renderer Renderer
	layers   []*Layer
	shown    map[string]bool
}

func NewManager(r Renderer, layers ...*Layer) *Manager {
	return &Manager{
		renderer: r,
		layers:   layers,
		shown:    make(map[string]bool, len(layers)),
	}
}

// Sync brings membership in line with v. It returns the number of add and
// remove calls issued.
func (m *Manager) Sync(v viewstate.Snapshot) (added, removed int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.layers {
		want := l.Visible(v)
		if want == m.shown[l.Name] {
			continue
		}
		m.shown[l.Name] = want
		if want {
			added++
			if m.renderer != nil {
				m.renderer.AddLayer(l)
			}
		} else {
			removed++
			if m.renderer != nil {
				m.renderer.RemoveLayer(l)
			}
		}
	}
	return added, removed
}

// Handle adapts Sync to a viewstate subscription.
func (m *Manager) Handle(ev viewstate.Event) {
	m.Sync(ev.View)
}

func (m *Manager) Shown(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shown[name]
}

func (m *Manager) Layers() []*Layer {
	out := make([]*Layer, len(m.layers))
	copy(out, m.layers)
	return out
}

func (m *Manager) Layer(name string) (*Layer, bool) {
	for _, l := range m.layers {
		if l.Name == name {
			return l, true
		}
	}
	return nil, false
}
