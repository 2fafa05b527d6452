package httpapi

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"noxmap/core-go/internal/markers"
	"noxmap/core-go/internal/resolution"
)

func waitForSubscribers(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, have %d", n, hub.Subscribers())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) streamEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev streamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode event: %v\n%s", err, data)
	}
	return ev
}

func TestEvents_StreamsSwapsAndLayerChanges(t *testing.T) {
	h, a := newTestHandler(t)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForSubscribers(t, h.hub, 1)

	if _, err := a.SetZoom(-6); err != nil {
		t.Fatalf("set zoom: %v", err)
	}

	// Images are updated before layer membership on each zoom event.
	want := []struct{ typ, subMap, layer, tier string }{
		{eventImageSwapped, "forest", "", "tiny"},
		{eventImageSwapped, "town", "", "tiny"},
		{eventLayerRemoved, "", markers.LayerPOIs, ""},
		{eventLayerRemoved, "", markers.LayerConnections, ""},
	}
	for i, w := range want {
		ev := readEvent(t, conn)
		if ev.Type != w.typ || ev.SubMap != w.subMap || ev.Layer != w.layer {
			t.Fatalf("event %d: expected %+v, got %+v", i, w, ev)
		}
		if w.tier != "" && (ev.Image == nil || ev.Image.Tier != w.tier) {
			t.Fatalf("event %d: expected tier %s, got %+v", i, w.tier, ev.Image)
		}
	}

	if _, err := a.SetZoom(-5); err != nil {
		t.Fatalf("set zoom: %v", err)
	}
	ev := readEvent(t, conn)
	if ev.Type != eventLayerAdded || ev.Layer != markers.LayerPOIs || len(ev.Markers) != 1 {
		t.Fatalf("expected pois added with its marker, got %+v", ev)
	}
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	hub := NewHub(testLogger())
	sub := &subscriber{send: make(chan []byte)}
	hub.register(sub)

	hub.RemoveLayer(&markers.Layer{Name: markers.LayerPOIs})

	if hub.Subscribers() != 0 {
		t.Fatalf("expected slow subscriber dropped")
	}
	if _, ok := <-sub.send; ok {
		t.Fatalf("expected send channel closed")
	}
}

func TestHub_NilSafe(t *testing.T) {
	var hub *Hub
	hub.AddLayer(&markers.Layer{Name: markers.LayerPOIs})
	hub.RemoveLayer(&markers.Layer{Name: markers.LayerPOIs})
	hub.ImageSwapped("town", resolution.Band{Tier: "low"})
	hub.Close()
	if hub.Subscribers() != 0 {
		t.Fatalf("expected zero subscribers on nil hub")
	}
}
