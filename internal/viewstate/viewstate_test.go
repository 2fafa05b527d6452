package viewstate

import (
	"errors"
	"math"
	"testing"
)

func TestNew_DefaultsAndClamp(t *testing.T) {
	s := New(Options{Zoom: -40})

	snap := s.Snapshot()
	if snap.Zoom != -10 {
		t.Fatalf("expected zoom clamped to -10, got %v", snap.Zoom)
	}
	if !snap.Enabled(SettingPOIs) || !snap.Enabled(SettingConnections) {
		t.Fatalf("expected both layers enabled by default, got %v", snap.Settings)
	}
	lo, hi := s.ZoomLimits()
	if lo != -10 || hi != 2 {
		t.Fatalf("expected default limits -10..2, got %v..%v", lo, hi)
	}
}

func TestNew_SettingsOverrideDefaults(t *testing.T) {
	s := New(Options{Settings: map[string]bool{SettingConnections: false}})

	snap := s.Snapshot()
	if !snap.Enabled(SettingPOIs) {
		t.Fatalf("expected pois to keep default")
	}
	if snap.Enabled(SettingConnections) {
		t.Fatalf("expected connections disabled")
	}
}

func TestSetZoom_DispatchesEvent(t *testing.T) {
	s := New(Options{MinZoom: -10, MaxZoom: 2})

	var got []Event
	s.Subscribe(func(ev Event) { got = append(got, ev) })

	if _, err := s.SetZoom(5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Kind != ZoomChanged {
		t.Fatalf("expected one zoom event, got %+v", got)
	}
	if got[0].View.Zoom != 2 {
		t.Fatalf("expected clamped zoom 2 in event, got %v", got[0].View.Zoom)
	}
}

func TestSetZoom_RejectsNaN(t *testing.T) {
	s := New(Options{})
	calls := 0
	s.Subscribe(func(Event) { calls++ })

	if _, err := s.SetZoom(math.NaN()); !errors.Is(err, ErrInvalidZoom) {
		t.Fatalf("expected ErrInvalidZoom, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no dispatch on invalid zoom")
	}
}

func TestToggle(t *testing.T) {
	s := New(Options{})

	var kinds []EventKind
	s.Subscribe(func(ev Event) { kinds = append(kinds, ev.Kind) })

	snap, err := s.Toggle(SettingPOIs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Enabled(SettingPOIs) {
		t.Fatalf("expected pois disabled after toggle")
	}
	snap, _ = s.Toggle(SettingPOIs)
	if !snap.Enabled(SettingPOIs) {
		t.Fatalf("expected pois enabled after second toggle")
	}
	if len(kinds) != 2 || kinds[0] != SettingsChanged {
		t.Fatalf("expected two settings events, got %v", kinds)
	}
}

func TestToggle_UnknownSetting(t *testing.T) {
	s := New(Options{})
	if _, err := s.Toggle("show_everything"); !errors.Is(err, ErrUnknownSetting) {
		t.Fatalf("expected ErrUnknownSetting, got %v", err)
	}
	if _, err := s.Set("show_everything", true); !errors.Is(err, ErrUnknownSetting) {
		t.Fatalf("expected ErrUnknownSetting from Set, got %v", err)
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	s := New(Options{})
	snap := s.Snapshot()
	snap.Settings[SettingPOIs] = false

	if !s.Snapshot().Enabled(SettingPOIs) {
		t.Fatalf("mutating a snapshot must not change state")
	}
}

func TestSnapshot_SettingNamesSorted(t *testing.T) {
	names := New(Options{}).Snapshot().SettingNames()
	if len(names) != 2 || names[0] != SettingConnections || names[1] != SettingPOIs {
		t.Fatalf("unexpected names %v", names)
	}
}
