package resolution

import (
	"math"
	"strings"
	"sync"
)

// Tier is one pre-rendered resolution of every sub-map image.
type Tier struct {
	Name    string
	MinZoom float64
	// Scale is the downscale divisor applied when the tier was rendered.
	Scale int
}

// Tiers is ordered from full resolution down to the coarsest fallback. The
// last tier has no zoom floor.
var Tiers = []Tier{
	{Name: "default", MinZoom: 0, Scale: 1},
	{Name: "low", MinZoom: -2, Scale: 2},
	{Name: "small", MinZoom: -4, Scale: 3},
	{Name: "tiny", MinZoom: -6, Scale: 4},
	{Name: "micro", MinZoom: math.Inf(-1), Scale: 5},
}

type Band struct {
	URL     string
	MinZoom float64
	Tier    string
	Scale   int
}

// Bands is sorted descending by MinZoom and ends with a band that matches
// any zoom.
type Bands []Band

// ForAsset builds the band list for one sub-map image file. The token is an
// opaque cache-busting segment placed between prefix and tier.
func ForAsset(prefix, token, file string) Bands {
	out := make(Bands, 0, len(Tiers))
	for _, t := range Tiers {
		out = append(out, Band{
			URL:     AssetURL(prefix, token, t.Name, file),
			MinZoom: t.MinZoom,
			Tier:    t.Name,
			Scale:   t.Scale,
		})
	}
	return out
}

func AssetURL(prefix, token, tier, file string) string {
	parts := make([]string, 0, 4)
	if p := strings.TrimRight(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	if token != "" {
		parts = append(parts, token)
	}
	parts = append(parts, tier, strings.TrimLeft(file, "/"))
	return strings.Join(parts, "/")
}

// Select returns the first band whose MinZoom <= zoom.
func (b Bands) Select(zoom float64) Band {
	for _, band := range b {
		if band.MinZoom <= zoom {
			return band
		}
	}
	// Only reachable for NaN or a list without a floorless band.
	return b[len(b)-1]
}

func (b Bands) SelectURL(zoom float64) string {
	return b.Select(zoom).URL
}

// Coarsest is the band shown before the first zoom event.
func (b Bands) Coarsest() Band {
	return b[len(b)-1]
}

// SwapFunc is notified when an image's displayed URL changes.
type SwapFunc func(subMapID string, band Band)

// Image tracks the URL currently displayed for one sub-map.
type Image struct {
	mu      sync.Mutex
	id      string
	bands   Bands
	current Band
	onSwap  SwapFunc
}

func NewImage(subMapID string, bands Bands, onSwap SwapFunc) *Image {
	return &Image{
		id:      subMapID,
		bands:   bands,
		current: bands.Coarsest(),
		onSwap:  onSwap,
	}
}

// Update re-evaluates the band for zoom. It reports true and notifies the
// swap hook only when the selected URL differs from the displayed one.
func (i *Image) Update(zoom float64) (Band, bool) {
	i.mu.Lock()
	next := i.bands.Select(zoom)
	if next.URL == i.current.URL {
		cur := i.current
		i.mu.Unlock()
		return cur, false
	}
	i.current = next
	i.mu.Unlock()

	if i.onSwap != nil {
		i.onSwap(i.id, next)
	}
	return next, true
}

func (i *Image) Current() Band {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.current
}

func (i *Image) ID() string {
	return i.id
}

func (i *Image) Bands() Bands {
	return i.bands
}
