// Package invalidation defines the wire format of parking update events and
// validates them before any cache entry is touched.
package invalidation

import (
	"fmt"
	"strings"
	"time"
)

// Event announces that a parking entity changed upstream. An "update" or
// "delete" names one entity; "reload" asks for the whole catalog to be
// re-fetched.
type Event struct {
	Version  int       `json:"version"`
	Op       string    `json:"op"`
	EntityID string    `json:"entity_id,omitempty"`
	TS       time.Time `json:"ts"`
	Source   string    `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case "update", "delete":
		if strings.TrimSpace(e.EntityID) == "" {
			return fmt.Errorf("entity_id is required for op %q", e.Op)
		}
	case "reload":
		if strings.TrimSpace(e.EntityID) != "" {
			return fmt.Errorf("entity_id must be empty for op reload")
		}
	default:
		return fmt.Errorf("op must be update|delete|reload")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}
