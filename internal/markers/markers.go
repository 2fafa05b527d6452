// Package markers builds renderable markers from annotation records and keeps
// the marker layers' membership in the view in step with zoom and settings.
package markers

import (
	"github.com/paulmach/orb"

	"noxmap/core-go/internal/geometry"
	"noxmap/core-go/internal/mapdata"
	"noxmap/core-go/internal/naming"
)

type Kind string

const (
	KindPOI        Kind = "poi"
	KindConnection Kind = "connection"
)

// Marker is one renderable point: position, icon color and tooltip label.
type Marker struct {
	Kind     Kind
	MapID    string
	GridX    int
	GridY    int
	Position orb.Point
	Color    string
	Label    string
	// Group is the index of the owning connection; -1 for points of interest.
	Group int
}

// Lookup resolves sub-maps by id. *mapdata.Catalog satisfies it.
type Lookup interface {
	Lookup(id string) (mapdata.SubMap, bool)
}

// Drops counts annotation records discarded during construction.
type Drops struct {
	UnknownMapIDs    []string
	EmptyConnections int
}

func (d Drops) Total() int {
	return len(d.UnknownMapIDs) + d.EmptyConnections
}

// BuildPOIs converts points of interest into markers. Records naming an
// unknown sub-map are dropped.
func BuildPOIs(maps Lookup, pois []mapdata.PointOfInterest) ([]Marker, Drops) {
	var drops Drops
	out := make([]Marker, 0, len(pois))

	for _, p := range pois {
		m, ok := maps.Lookup(p.MapID)
		if !ok {
			drops.UnknownMapIDs = append(drops.UnknownMapIDs, p.MapID)
			continue
		}

		cx, cy := geometry.CenterCell(m.Frame)
		if p.GridX != nil {
			cx = *p.GridX
		}
		if p.GridY != nil {
			cy = *p.GridY
		}

		out = append(out, Marker{
			Kind:     KindPOI,
			MapID:    m.ID,
			GridX:    cx,
			GridY:    cy,
			Position: geometry.CellToPoint(m.Frame, cx, cy),
			Color:    p.Color,
			Label:    naming.PointLabel(p.Label, m.DisplayName()),
			Group:    -1,
		})
	}
	return out, drops
}

// BuildConnections emits one marker per resolvable point. Every marker of a
// connection shares its color and label. Connections without points are
// dropped, as are individual points naming an unknown sub-map.
func BuildConnections(maps Lookup, conns []mapdata.Connection) ([]Marker, Drops) {
	var drops Drops
	var out []Marker

	for gi, c := range conns {
		if len(c.Points) == 0 {
			drops.EmptyConnections++
			continue
		}

		resolved := make([]mapdata.SubMap, 0, len(c.Points))
		points := make([]mapdata.ConnectionPoint, 0, len(c.Points))
		names := make([]string, 0, len(c.Points))
		for _, pt := range c.Points {
			m, ok := maps.Lookup(pt.MapID)
			if !ok {
				drops.UnknownMapIDs = append(drops.UnknownMapIDs, pt.MapID)
				continue
			}
			resolved = append(resolved, m)
			points = append(points, pt)
			names = append(names, m.DisplayName())
		}

		label := naming.ConnectionLabel(c.Label, names)
		for i, pt := range points {
			m := resolved[i]
			out = append(out, Marker{
				Kind:     KindConnection,
				MapID:    m.ID,
				GridX:    pt.GridX,
				GridY:    pt.GridY,
				Position: geometry.CellToPoint(m.Frame, pt.GridX, pt.GridY),
				Color:    c.Color,
				Label:    label,
				Group:    gi,
			})
		}
	}
	return out, drops
}
