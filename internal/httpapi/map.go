package httpapi

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"

	"noxmap/core-go/internal/atlas"
	"noxmap/core-go/internal/markers"
	"noxmap/core-go/internal/resolution"
	"noxmap/core-go/internal/viewstate"
)

// latLng is a rendering-space point in the viewer's [y, x] order.
type latLng [2]float64

func toLatLng(p orb.Point) latLng { return latLng{p.Y(), p.X()} }

// toLatLngBounds returns [[south, west], [north, east]].
func toLatLngBounds(b orb.Bound) [2]latLng {
	return [2]latLng{toLatLng(b.Min), toLatLng(b.Max)}
}

type imageResponse struct {
	URL   string `json:"url"`
	Tier  string `json:"tier"`
	Scale int    `json:"scale"`
	// MinZoom is omitted for the floorless tier.
	MinZoom *float64 `json:"min_zoom,omitempty"`
}

func toImageResponse(b resolution.Band) imageResponse {
	out := imageResponse{URL: b.URL, Tier: b.Tier, Scale: b.Scale}
	if !math.IsInf(b.MinZoom, 0) && !math.IsNaN(b.MinZoom) {
		z := b.MinZoom
		out.MinZoom = &z
	}
	return out
}

type subMapResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	File        string          `json:"file"`
	Columns     int             `json:"columns"`
	Rows        int             `json:"rows"`
	Bounds      [2]latLng       `json:"bounds"`
	Image       imageResponse   `json:"image"`
	Resolutions []imageResponse `json:"resolutions"`
}

func toSubMapResponse(sm atlas.SubMapView) subMapResponse {
	bands := sm.Image.Bands()
	res := make([]imageResponse, 0, len(bands))
	for _, b := range bands {
		res = append(res, toImageResponse(b))
	}
	return subMapResponse{
		ID:          sm.ID,
		Name:        sm.DisplayName(),
		File:        sm.File,
		Columns:     sm.Columns,
		Rows:        sm.Rows,
		Bounds:      toLatLngBounds(sm.Bounds),
		Image:       toImageResponse(sm.Image.Current()),
		Resolutions: res,
	}
}

type markerResponse struct {
	Kind   string `json:"kind"`
	MapID  string `json:"map_id"`
	GridX  int    `json:"grid_x"`
	GridY  int    `json:"grid_y"`
	LatLng latLng `json:"latlng"`
	Color  string `json:"color"`
	Label  string `json:"label"`
	Group  *int   `json:"group,omitempty"`
}

func toMarkerResponses(ms []markers.Marker) []markerResponse {
	out := make([]markerResponse, 0, len(ms))
	for _, m := range ms {
		mr := markerResponse{
			Kind:   string(m.Kind),
			MapID:  m.MapID,
			GridX:  m.GridX,
			GridY:  m.GridY,
			LatLng: toLatLng(m.Position),
			Color:  m.Color,
			Label:  m.Label,
		}
		if m.Group >= 0 {
			g := m.Group
			mr.Group = &g
		}
		out = append(out, mr)
	}
	return out
}

type layerResponse struct {
	Name    string           `json:"name"`
	Setting string           `json:"setting"`
	MinZoom float64          `json:"min_zoom"`
	Shown   bool             `json:"shown"`
	Count   int              `json:"count"`
	Markers []markerResponse `json:"markers,omitempty"`
}

type viewResponse struct {
	Zoom     float64         `json:"zoom"`
	MinZoom  float64         `json:"min_zoom"`
	MaxZoom  float64         `json:"max_zoom"`
	Settings map[string]bool `json:"settings"`
	Layers   map[string]bool `json:"layers"`
}

func (h *Handler) viewResponse(v viewstate.Snapshot) viewResponse {
	minZoom, maxZoom := h.atlas.View().ZoomLimits()
	layers := make(map[string]bool)
	for _, l := range h.atlas.Layers().Layers() {
		layers[l.Name] = h.atlas.Layers().Shown(l.Name)
	}
	return viewResponse{
		Zoom:     v.Zoom,
		MinZoom:  minZoom,
		MaxZoom:  maxZoom,
		Settings: v.Settings,
		Layers:   layers,
	}
}

type droppedResponse struct {
	UnknownMapIDs    []string `json:"unknown_map_ids"`
	EmptyConnections int      `json:"empty_connections"`
}

type atlasResponse struct {
	Bounds     [2]latLng        `json:"bounds"`
	Center     latLng           `json:"center"`
	FitZoom    float64          `json:"fit_zoom"`
	AssetToken string           `json:"asset_token,omitempty"`
	View       viewResponse     `json:"view"`
	SubMaps    []subMapResponse `json:"submaps"`
	Dropped    droppedResponse  `json:"dropped"`
}

func (h *Handler) handleGetAtlas(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAtlas(w) {
		return
	}

	sms := h.atlas.SubMaps()
	out := make([]subMapResponse, 0, len(sms))
	for _, sm := range sms {
		out = append(out, toSubMapResponse(sm))
	}

	drops := h.atlas.Drops()
	unknown := drops.UnknownMapIDs
	if unknown == nil {
		unknown = []string{}
	}

	h.writeJSON(w, http.StatusOK, atlasResponse{
		Bounds:     toLatLngBounds(h.atlas.Bounds()),
		Center:     toLatLng(h.atlas.Center()),
		FitZoom:    h.atlas.FitZoom(),
		AssetToken: h.atlas.AssetToken(),
		View:       h.viewResponse(h.atlas.View().Snapshot()),
		SubMaps:    out,
		Dropped:    droppedResponse{UnknownMapIDs: unknown, EmptyConnections: drops.EmptyConnections},
	})
}

func (h *Handler) handleListSubMaps(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAtlas(w) {
		return
	}
	sms := h.atlas.SubMaps()
	out := make([]subMapResponse, 0, len(sms))
	for _, sm := range sms {
		out = append(out, toSubMapResponse(sm))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetSubMap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.ensureAtlas(w) {
		return
	}
	sm, ok := h.atlas.SubMap(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "not_found", "sub-map not found", map[string]any{"id": id})
		return
	}
	h.writeJSON(w, http.StatusOK, toSubMapResponse(sm))
}

type cellResponse struct {
	SubMapID string  `json:"submap_id"`
	GridX    int     `json:"grid_x"`
	GridY    int     `json:"grid_y"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	LatLng   latLng  `json:"latlng"`
}

func (h *Handler) handleCellToPoint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query()

	gx, errX := strconv.Atoi(strings.TrimSpace(q.Get("x")))
	gy, errY := strconv.Atoi(strings.TrimSpace(q.Get("y")))
	if errX != nil || errY != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "x and y must be integers", map[string]any{
			"x": q.Get("x"),
			"y": q.Get("y"),
		})
		return
	}

	if !h.ensureAtlas(w) {
		return
	}

	// Out-of-range cells are valid; they land outside the interior.
	p, err := h.atlas.CellToPoint(id, gx, gy)
	if err != nil {
		if errors.Is(err, atlas.ErrUnknownSubMap) {
			h.writeError(w, http.StatusNotFound, "not_found", "sub-map not found", map[string]any{"id": id})
			return
		}
		h.log.Error().Err(err).Str("id", id).Msg("cell to point failed")
		h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to convert cell", nil)
		return
	}

	h.writeJSON(w, http.StatusOK, cellResponse{
		SubMapID: id,
		GridX:    gx,
		GridY:    gy,
		X:        p.X(),
		Y:        p.Y(),
		LatLng:   toLatLng(p),
	})
}

func (h *Handler) handleListMarkers(w http.ResponseWriter, r *http.Request) {
	includeHidden := false
	if raw := strings.TrimSpace(r.URL.Query().Get("include_hidden")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "include_hidden must be a boolean", map[string]any{"include_hidden": raw})
			return
		}
		includeHidden = v
	}
	layerFilter := strings.TrimSpace(r.URL.Query().Get("layer"))

	if !h.ensureAtlas(w) {
		return
	}

	mgr := h.atlas.Layers()
	if layerFilter != "" {
		if _, ok := mgr.Layer(layerFilter); !ok {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "unknown layer", map[string]any{"layer": layerFilter})
			return
		}
	}

	out := make([]layerResponse, 0, 2)
	for _, l := range mgr.Layers() {
		if layerFilter != "" && l.Name != layerFilter {
			continue
		}
		shown := mgr.Shown(l.Name)
		lr := layerResponse{
			Name:    l.Name,
			Setting: l.Setting,
			MinZoom: l.MinZoom,
			Shown:   shown,
			Count:   len(l.Markers),
		}
		if shown || includeHidden {
			lr.Markers = toMarkerResponses(l.Markers)
		}
		out = append(out, lr)
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"layers": out})
}

func (h *Handler) handleGetView(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAtlas(w) {
		return
	}
	h.writeJSON(w, http.StatusOK, h.viewResponse(h.atlas.View().Snapshot()))
}

type zoomRequest struct {
	Zoom *float64 `json:"zoom"`
}

func (h *Handler) handleSetZoom(w http.ResponseWriter, r *http.Request) {
	var req zoomRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if req.Zoom == nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "zoom is required", nil)
		return
	}

	if !h.ensureAtlas(w) {
		return
	}

	v, err := h.atlas.SetZoom(*req.Zoom)
	if err != nil {
		if errors.Is(err, viewstate.ErrInvalidZoom) {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid zoom", map[string]any{"error": err.Error()})
			return
		}
		h.log.Error().Err(err).Msg("set zoom failed")
		h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to set zoom", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, h.viewResponse(v))
}

type settingRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *Handler) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req settingRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if req.Enabled == nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "enabled is required", nil)
		return
	}

	if !h.ensureAtlas(w) {
		return
	}

	v, err := h.atlas.SetSetting(name, *req.Enabled)
	h.writeSettingResult(w, name, v, err)
}

func (h *Handler) handleToggleSetting(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !h.ensureAtlas(w) {
		return
	}
	v, err := h.atlas.Toggle(name)
	h.writeSettingResult(w, name, v, err)
}

func (h *Handler) writeSettingResult(w http.ResponseWriter, name string, v viewstate.Snapshot, err error) {
	if err != nil {
		if errors.Is(err, viewstate.ErrUnknownSetting) {
			h.writeError(w, http.StatusNotFound, "not_found", "setting not found", map[string]any{"name": name})
			return
		}
		h.log.Error().Err(err).Str("name", name).Msg("update setting failed")
		h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to update setting", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, h.viewResponse(v))
}
