package resolution

import (
	"math"
	"testing"
)

func TestForAsset_URLs(t *testing.T) {
	bands := ForAsset("./maps/", "", "Town.webp")
	if len(bands) != 5 {
		t.Fatalf("expected 5 bands, got %d", len(bands))
	}
	want := []string{
		"./maps/default/Town.webp",
		"./maps/low/Town.webp",
		"./maps/small/Town.webp",
		"./maps/tiny/Town.webp",
		"./maps/micro/Town.webp",
	}
	for i, b := range bands {
		if b.URL != want[i] {
			t.Fatalf("band %d: expected %q, got %q", i, want[i], b.URL)
		}
	}

	withToken := ForAsset("/maps", "1718000000", "Town.webp")
	if got := withToken[0].URL; got != "/maps/1718000000/default/Town.webp" {
		t.Fatalf("expected token segment in url, got %q", got)
	}
}

func TestSelect_TierThresholds(t *testing.T) {
	bands := ForAsset("m", "", "a.webp")

	cases := []struct {
		zoom float64
		tier string
	}{
		{2, "default"},
		{0, "default"},
		{-0.5, "low"},
		{-2, "low"},
		{-3, "small"},
		{-4, "small"},
		{-5, "tiny"},
		{-6, "tiny"},
		{-7, "micro"},
		{-10, "micro"},
		{math.Inf(-1), "micro"},
	}
	for _, tc := range cases {
		if got := bands.Select(tc.zoom).Tier; got != tc.tier {
			t.Fatalf("zoom %v: expected %s, got %s", tc.zoom, tc.tier, got)
		}
	}
}

func TestSelect_Monotonic(t *testing.T) {
	bands := ForAsset("m", "", "a.webp")

	prevScale := math.MaxInt
	for z := -12.0; z <= 3; z += 0.25 {
		scale := bands.Select(z).Scale
		if scale > prevScale {
			t.Fatalf("zoom %v regressed to coarser tier (scale %d after %d)", z, scale, prevScale)
		}
		prevScale = scale
	}
}

func TestImage_StartsAtCoarsest(t *testing.T) {
	img := NewImage("town", ForAsset("m", "", "a.webp"), nil)
	if got := img.Current().Tier; got != "micro" {
		t.Fatalf("expected micro before first zoom, got %s", got)
	}
}

func TestImage_UpdateIsIdempotent(t *testing.T) {
	var swaps []string
	img := NewImage("town", ForAsset("m", "", "a.webp"), func(id string, b Band) {
		if id != "town" {
			t.Fatalf("unexpected id %q", id)
		}
		swaps = append(swaps, b.Tier)
	})

	first, changed := img.Update(-1)
	if !changed || first.Tier != "low" {
		t.Fatalf("expected swap to low, got %s changed=%v", first.Tier, changed)
	}
	second, changed := img.Update(-1)
	if changed {
		t.Fatalf("expected no swap on repeated zoom")
	}
	if second.URL != first.URL {
		t.Fatalf("expected same url, got %q vs %q", second.URL, first.URL)
	}

	// Different zoom inside the same band is also not a swap.
	if _, changed := img.Update(-1.5); changed {
		t.Fatalf("expected no swap within band")
	}

	if _, changed := img.Update(1); !changed {
		t.Fatalf("expected swap to default")
	}
	if len(swaps) != 2 || swaps[0] != "low" || swaps[1] != "default" {
		t.Fatalf("unexpected swap notifications %v", swaps)
	}
}

func TestImage_UpdateToCoarsestFromStartIsNoop(t *testing.T) {
	calls := 0
	img := NewImage("town", ForAsset("m", "", "a.webp"), func(string, Band) { calls++ })

	if _, changed := img.Update(-9); changed {
		t.Fatalf("expected no swap: micro already displayed")
	}
	if calls != 0 {
		t.Fatalf("expected no notifications, got %d", calls)
	}
}
