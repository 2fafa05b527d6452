// Package mapdata decodes the sub-map configuration and annotation documents
// and indexes sub-maps by id.
package mapdata

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/paulmach/orb"

	"noxmap/core-go/internal/geometry"
)

var ErrInvalidSubMap = errors.New("invalid sub-map")

// SubMap is one rectangular sub-map of the composite.
type SubMap struct {
	ID   string
	Name string
	// File is the asset base name shared by every resolution tier.
	File string
	geometry.Frame
}

type subMapDoc struct {
	ID       string    `json:"id"`
	Name     string    `json:"name,omitempty"`
	File     string    `json:"file"`
	Size     []float64 `json:"size"`
	Pos      []float64 `json:"pos"`
	Paddings []float64 `json:"paddings,omitempty"`
	Columns  int       `json:"columns"`
	Rows     int       `json:"rows"`
}

// DecodeSubMaps parses a JSON array of sub-map records.
func DecodeSubMaps(data []byte) ([]SubMap, error) {
	var docs []subMapDoc
	if err := sonic.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode sub-map config: %w", err)
	}

	out := make([]SubMap, 0, len(docs))
	for i, d := range docs {
		m, err := d.toSubMap()
		if err != nil {
			return nil, fmt.Errorf("sub-map #%d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (d subMapDoc) toSubMap() (SubMap, error) {
	id := strings.TrimSpace(d.ID)
	if id == "" {
		return SubMap{}, fmt.Errorf("%w: missing id", ErrInvalidSubMap)
	}
	if len(d.Size) != 2 {
		return SubMap{}, fmt.Errorf("%w %q: size must be [w,h]", ErrInvalidSubMap, id)
	}
	if len(d.Pos) != 2 {
		return SubMap{}, fmt.Errorf("%w %q: pos must be [x,y]", ErrInvalidSubMap, id)
	}

	var pad geometry.Padding
	switch len(d.Paddings) {
	case 0:
	case 4:
		pad = geometry.Padding{Top: d.Paddings[0], Right: d.Paddings[1], Bottom: d.Paddings[2], Left: d.Paddings[3]}
	default:
		return SubMap{}, fmt.Errorf("%w %q: paddings must be [top,right,bottom,left]", ErrInvalidSubMap, id)
	}

	m := SubMap{
		ID:   id,
		Name: d.Name,
		File: d.File,
		Frame: geometry.Frame{
			Position: orb.Point{d.Pos[0], d.Pos[1]},
			Width:    d.Size[0],
			Height:   d.Size[1],
			Padding:  pad,
			Columns:  d.Columns,
			Rows:     d.Rows,
		},
	}
	return m, m.Validate()
}

// Validate checks the sub-map invariants: a non-empty padded interior and a
// positive grid.
func (m SubMap) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidSubMap)
	}
	if strings.TrimSpace(m.File) == "" {
		return fmt.Errorf("%w %q: missing file", ErrInvalidSubMap, m.ID)
	}
	if m.Columns <= 0 || m.Rows <= 0 {
		return fmt.Errorf("%w %q: columns and rows must be positive (got %dx%d)", ErrInvalidSubMap, m.ID, m.Columns, m.Rows)
	}
	p := m.Padding
	if p.Top < 0 || p.Right < 0 || p.Bottom < 0 || p.Left < 0 {
		return fmt.Errorf("%w %q: negative padding", ErrInvalidSubMap, m.ID)
	}
	if p.Top+p.Bottom >= m.Height {
		return fmt.Errorf("%w %q: vertical padding %v leaves no interior in height %v", ErrInvalidSubMap, m.ID, p.Top+p.Bottom, m.Height)
	}
	if p.Left+p.Right >= m.Width {
		return fmt.Errorf("%w %q: horizontal padding %v leaves no interior in width %v", ErrInvalidSubMap, m.ID, p.Left+p.Right, m.Width)
	}
	return nil
}

// DisplayName falls back to the id when no name was configured.
func (m SubMap) DisplayName() string {
	if n := strings.TrimSpace(m.Name); n != "" {
		return n
	}
	return m.ID
}

func (m SubMap) Bounds() orb.Bound {
	return geometry.ComputeBounds(m.Frame)
}

// Catalog is the immutable set of loaded sub-maps.
type Catalog struct {
	ordered []SubMap
	byID    map[string]int
}

// NewCatalog validates maps, rejects duplicate ids and orders the result for
// drawing: highest position first, so lower sub-maps stack on top.
func NewCatalog(maps []SubMap) (*Catalog, error) {
	ordered := make([]SubMap, len(maps))
	copy(ordered, maps)

	seen := make(map[string]struct{}, len(ordered))
	for _, m := range ordered {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[m.ID]; dup {
			return nil, fmt.Errorf("%w %q: duplicate id", ErrInvalidSubMap, m.ID)
		}
		seen[m.ID] = struct{}{}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		yi, yj := ordered[i].Position.Y(), ordered[j].Position.Y()
		if yi != yj {
			return yi > yj
		}
		return strings.ToLower(ordered[i].ID) < strings.ToLower(ordered[j].ID)
	})

	byID := make(map[string]int, len(ordered))
	for i, m := range ordered {
		byID[m.ID] = i
	}
	return &Catalog{ordered: ordered, byID: byID}, nil
}

func (c *Catalog) Lookup(id string) (SubMap, bool) {
	if c == nil {
		return SubMap{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return SubMap{}, false
	}
	return c.ordered[i], true
}

// All returns the sub-maps in draw order.
func (c *Catalog) All() []SubMap {
	if c == nil {
		return nil
	}
	out := make([]SubMap, len(c.ordered))
	copy(out, c.ordered)
	return out
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.ordered)
}

// Bounds returns every sub-map's rectangle in draw order.
func (c *Catalog) Bounds() []orb.Bound {
	if c == nil {
		return nil
	}
	out := make([]orb.Bound, 0, len(c.ordered))
	for _, m := range c.ordered {
		out = append(out, m.Bounds())
	}
	return out
}
