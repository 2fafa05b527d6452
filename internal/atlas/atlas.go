// Package atlas assembles the composite map: sub-map bounds and images, the
// overall viewport, marker layers, and the view state that drives them.
package atlas

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"noxmap/core-go/internal/geometry"
	"noxmap/core-go/internal/mapdata"
	"noxmap/core-go/internal/markers"
	"noxmap/core-go/internal/metrics"
	"noxmap/core-go/internal/resolution"
	"noxmap/core-go/internal/source"
	"noxmap/core-go/internal/viewstate"
)

var ErrUnknownSubMap = errors.New("unknown sub-map")

const (
	defaultViewportWidth  = 1280
	defaultViewportHeight = 800
)

type Options struct {
	AssetPrefix string
	// AssetToken overrides the sub-map document's token in image URLs.
	AssetToken     string
	MinZoom        float64
	MaxZoom        float64
	ViewportWidth  int
	ViewportHeight int
	Settings       map[string]bool
	Renderer       markers.Renderer
	OnSwap         resolution.SwapFunc
	Metrics        *metrics.Metrics
	Log            zerolog.Logger
}

// SubMapView is a sub-map together with its rendering bounds and image.
type SubMapView struct {
	mapdata.SubMap
	Bounds orb.Bound
	Image  *resolution.Image
}

type Atlas struct {
	log     zerolog.Logger
	metrics *metrics.Metrics

	catalog *mapdata.Catalog
	subMaps []SubMapView
	byID    map[string]int

	bounds  orb.Bound
	fitZoom float64

	view   *viewstate.State
	layers *markers.Manager
	drops  markers.Drops
	token  string
}

// Load fetches both documents concurrently, then builds the atlas. Any fetch
// or decode failure aborts the load.
func Load(ctx context.Context, subMaps, annotations source.Source, opts Options) (*Atlas, error) {
	var smDoc, annDoc source.Document

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := fetch(gctx, "submaps", subMaps, opts)
		smDoc = d
		return err
	})
	g.Go(func() error {
		d, err := fetch(gctx, "annotations", annotations, opts)
		annDoc = d
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	maps, err := mapdata.DecodeSubMaps(smDoc.Body)
	if err != nil {
		return nil, err
	}
	catalog, err := mapdata.NewCatalog(maps)
	if err != nil {
		return nil, err
	}
	ann, err := mapdata.DecodeAnnotations(annDoc.Body)
	if err != nil {
		return nil, err
	}

	if opts.AssetToken == "" {
		opts.AssetToken = smDoc.Token
	}
	return New(catalog, ann, opts), nil
}

func fetch(ctx context.Context, name string, src source.Source, opts Options) (source.Document, error) {
	if src == nil {
		return source.Document{}, fmt.Errorf("load %s: no source configured", name)
	}
	start := time.Now()
	doc, err := src.Fetch(ctx)
	opts.Metrics.ObserveDocumentLoad(name, err, time.Since(start))
	if err != nil {
		return source.Document{}, fmt.Errorf("load %s from %s: %w", name, src, err)
	}

	opts.Log.Info().
		Str("document", name).
		Str("source", src.String()).
		Str("size", humanize.Bytes(uint64(len(doc.Body)))).
		Str("token", doc.Token).
		Msg("map document loaded")
	return doc, nil
}

// New builds an atlas from already-decoded documents and applies the initial
// view: the zoom that fits every sub-map.
func New(catalog *mapdata.Catalog, ann mapdata.Annotations, opts Options) *Atlas {
	a := &Atlas{
		log:     opts.Log,
		metrics: opts.Metrics,
		catalog: catalog,
		byID:    make(map[string]int, catalog.Len()),
		token:   opts.AssetToken,
	}

	onSwap := func(id string, b resolution.Band) {
		a.metrics.IncImageSwap(b.Tier)
		a.log.Debug().Str("submap", id).Str("tier", b.Tier).Str("url", b.URL).Msg("image swapped")
		if opts.OnSwap != nil {
			opts.OnSwap(id, b)
		}
	}

	rects := make([]orb.Bound, 0, catalog.Len())
	for i, m := range catalog.All() {
		bounds := m.Bounds()
		rects = append(rects, bounds)
		a.subMaps = append(a.subMaps, SubMapView{
			SubMap: m,
			Bounds: bounds,
			Image:  resolution.NewImage(m.ID, resolution.ForAsset(opts.AssetPrefix, opts.AssetToken, m.File), onSwap),
		})
		a.byID[m.ID] = i
	}
	a.bounds = geometry.Accumulate(rects...)

	minZoom, maxZoom := opts.MinZoom, opts.MaxZoom
	if minZoom == 0 && maxZoom == 0 {
		minZoom, maxZoom = -10, 2
	}
	vw, vh := opts.ViewportWidth, opts.ViewportHeight
	if vw <= 0 || vh <= 0 {
		vw, vh = defaultViewportWidth, defaultViewportHeight
	}
	a.fitZoom = geometry.FitZoom(a.bounds, vw, vh, minZoom, maxZoom)

	pois, poiDrops := markers.BuildPOIs(catalog, ann.POIs)
	conns, connDrops := markers.BuildConnections(catalog, ann.Connections)
	a.drops = markers.Drops{
		UnknownMapIDs:    append(poiDrops.UnknownMapIDs, connDrops.UnknownMapIDs...),
		EmptyConnections: poiDrops.EmptyConnections + connDrops.EmptyConnections,
	}
	a.reportDrops()

	a.layers = markers.NewManager(
		observedRenderer{next: opts.Renderer, metrics: opts.Metrics},
		markers.NewPOILayer(pois),
		markers.NewConnectionLayer(conns),
	)

	a.view = viewstate.New(viewstate.Options{
		Zoom:     a.fitZoom,
		MinZoom:  minZoom,
		MaxZoom:  maxZoom,
		Settings: opts.Settings,
	})
	a.view.Subscribe(a.handleZoom)
	a.view.Subscribe(a.layers.Handle)

	// Mirrors the viewer's first zoom event after fitting the bounds.
	_, _ = a.view.SetZoom(a.fitZoom)

	a.log.Info().
		Int("submaps", len(a.subMaps)).
		Int("pois", len(pois)).
		Int("connection_markers", len(conns)).
		Int("dropped", a.drops.Total()).
		Float64("fit_zoom", a.fitZoom).
		Msg("atlas ready")
	return a
}

func (a *Atlas) handleZoom(ev viewstate.Event) {
	if ev.Kind != viewstate.ZoomChanged {
		return
	}
	for _, sm := range a.subMaps {
		sm.Image.Update(ev.View.Zoom)
	}
}

func (a *Atlas) reportDrops() {
	for _, id := range a.drops.UnknownMapIDs {
		a.log.Debug().Str("map_id", id).Msg("annotation references unknown sub-map; dropped")
	}
	if a.drops.EmptyConnections > 0 {
		a.log.Debug().Int("count", a.drops.EmptyConnections).Msg("connections without points dropped")
	}
	a.metrics.AddAnnotationsDropped("unknown_map", len(a.drops.UnknownMapIDs))
	a.metrics.AddAnnotationsDropped("empty_connection", a.drops.EmptyConnections)
}

// SubMaps returns every sub-map in draw order.
func (a *Atlas) SubMaps() []SubMapView {
	out := make([]SubMapView, len(a.subMaps))
	copy(out, a.subMaps)
	return out
}

func (a *Atlas) SubMap(id string) (SubMapView, bool) {
	i, ok := a.byID[id]
	if !ok {
		return SubMapView{}, false
	}
	return a.subMaps[i], true
}

// CellToPoint converts a grid cell of the named sub-map to rendering space.
func (a *Atlas) CellToPoint(id string, gridX, gridY int) (orb.Point, error) {
	sm, ok := a.SubMap(id)
	if !ok {
		return orb.Point{}, fmt.Errorf("%w: %q", ErrUnknownSubMap, id)
	}
	return geometry.CellToPoint(sm.Frame, gridX, gridY), nil
}

// Bounds is the composite viewport enclosing every sub-map.
func (a *Atlas) Bounds() orb.Bound { return a.bounds }

func (a *Atlas) Center() orb.Point { return a.bounds.Center() }

func (a *Atlas) FitZoom() float64 { return a.fitZoom }

func (a *Atlas) View() *viewstate.State { return a.view }

func (a *Atlas) Layers() *markers.Manager { return a.layers }

func (a *Atlas) Drops() markers.Drops { return a.drops }

func (a *Atlas) AssetToken() string { return a.token }

// SetZoom is the zoom-change entry point.
func (a *Atlas) SetZoom(z float64) (viewstate.Snapshot, error) {
	return a.view.SetZoom(z)
}

// Toggle is the user-facing settings toggle.
func (a *Atlas) Toggle(setting string) (viewstate.Snapshot, error) {
	return a.view.Toggle(setting)
}

func (a *Atlas) SetSetting(setting string, enabled bool) (viewstate.Snapshot, error) {
	return a.view.Set(setting, enabled)
}

type observedRenderer struct {
	next    markers.Renderer
	metrics *metrics.Metrics
}

func (r observedRenderer) AddLayer(l *markers.Layer) {
	r.metrics.SetLayerShown(l.Name, true)
	if r.next != nil {
		r.next.AddLayer(l)
	}
}

func (r observedRenderer) RemoveLayer(l *markers.Layer) {
	r.metrics.SetLayerShown(l.Name, false)
	if r.next != nil {
		r.next.RemoveLayer(l)
	}
}
