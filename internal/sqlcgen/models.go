package sqlcgen

import "time"

type MapDocument struct {
	Name      string
	Body      []byte
	UpdatedAt time.Time
}
