package mapdata

import (
	"fmt"

	"github.com/bytedance/sonic"
)

type PointOfInterest struct {
	MapID string  `json:"mapId"`
	Label *string `json:"label,omitempty"`
	Color string  `json:"color"`
	// GridX and GridY default to the sub-map's center cell when absent.
	GridX *int `json:"gridX,omitempty"`
	GridY *int `json:"gridY,omitempty"`
}

type ConnectionPoint struct {
	MapID string `json:"mapId"`
	GridX int    `json:"gridX"`
	GridY int    `json:"gridY"`
}

type Connection struct {
	Label  *string           `json:"label,omitempty"`
	Color  string            `json:"color"`
	Points []ConnectionPoint `json:"points"`
}

type Annotations struct {
	POIs        []PointOfInterest `json:"pois"`
	Connections []Connection      `json:"connections"`
}

// DecodeAnnotations parses the annotation document.
func DecodeAnnotations(data []byte) (Annotations, error) {
	var a Annotations
	if err := sonic.Unmarshal(data, &a); err != nil {
		return Annotations{}, fmt.Errorf("decode annotations: %w", err)
	}
	return a, nil
}
