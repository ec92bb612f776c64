package service

import "github.com/oklog/ulid/v2"

// newID returns a lexically sortable ULID string.
func newID() string {
	return ulid.Make().String()
}
