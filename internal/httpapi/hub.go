package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"noxmap/core-go/internal/markers"
	"noxmap/core-go/internal/resolution"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	subscriberSend = 32
)

const (
	eventLayerAdded   = "layer_added"
	eventLayerRemoved = "layer_removed"
	eventImageSwapped = "image_swapped"
)

// streamEvent is one message on the events websocket.
type streamEvent struct {
	Type    string           `json:"type"`
	Layer   string           `json:"layer,omitempty"`
	Markers []markerResponse `json:"markers,omitempty"`
	SubMap  string           `json:"submap_id,omitempty"`
	Image   *imageResponse   `json:"image,omitempty"`
}

// Hub is the render collaborator for connected viewers: layer membership
// changes and image swaps are pushed to every websocket subscriber.
type Hub struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log: log.With().Str("component", "hub").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		subs: make(map[*subscriber]struct{}),
	}
}

func (h *Hub) AddLayer(l *markers.Layer) {
	if h == nil || l == nil {
		return
	}
	h.broadcast(streamEvent{Type: eventLayerAdded, Layer: l.Name, Markers: toMarkerResponses(l.Markers)})
}

func (h *Hub) RemoveLayer(l *markers.Layer) {
	if h == nil || l == nil {
		return
	}
	h.broadcast(streamEvent{Type: eventLayerRemoved, Layer: l.Name})
}

// ImageSwapped has the resolution.SwapFunc signature.
func (h *Hub) ImageSwapped(subMapID string, b resolution.Band) {
	if h == nil {
		return
	}
	img := toImageResponse(b)
	h.broadcast(streamEvent{Type: eventImageSwapped, SubMap: subMapID, Image: &img})
}

// Subscribers reports the number of connected viewers.
func (h *Hub) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// broadcast never blocks: a subscriber whose buffer is full is disconnected.
func (h *Hub) broadcast(ev streamEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Str("type", ev.Type).Msg("marshal stream event failed")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.send <- data:
		default:
			h.log.Warn().Str("type", ev.Type).Msg("subscriber too slow; dropping")
			delete(h.subs, sub)
			sub.close()
		}
	}
}

func (h *Hub) register(sub *subscriber) {
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	h.log.Debug().Int("subscribers", n).Msg("viewer connected")
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		sub.close()
	}
	n := len(h.subs)
	h.mu.Unlock()
	h.log.Debug().Int("subscribers", n).Msg("viewer disconnected")
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		delete(h.subs, sub)
		sub.close()
	}
}

// ServeWS upgrades the request and streams events until the peer goes away.
// Inbound messages are read only to process control frames.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, subscriberSend)}
	h.register(sub)

	go h.writeLoop(sub)

	defer h.unregister(sub)
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}
	}
}

func (h *Hub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()

	for {
		select {
		case data, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					h.log.Debug().Err(err).Msg("websocket write failed")
				}
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
