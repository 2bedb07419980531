package invalidation

import (
	"testing"
	"time"
)

func mustTS() time.Time { return time.Date(2025, 3, 12, 12, 30, 45, 0, time.UTC) }

func TestEvent_Validate_UpdateHappyPath(t *testing.T) {
	ev := Event{Version: 1, Op: "update", EntityID: "urn:ngsi-ld:parking:001", TS: mustTS()}
	if err := ev.Validate(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}

func TestEvent_Validate_ReloadHappyPath(t *testing.T) {
	ev := Event{Version: 1, Op: "reload", TS: mustTS()}
	if err := ev.Validate(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}

func TestEvent_Validate_UpdateWithoutEntity(t *testing.T) {
	ev := Event{Version: 1, Op: "update", TS: mustTS()}
	if err := ev.Validate(); err == nil {
		t.Fatalf("expected error for update without entity_id")
	}
}

func TestEvent_Validate_ReloadWithEntity(t *testing.T) {
	ev := Event{Version: 1, Op: "reload", EntityID: "urn:ngsi-ld:parking:001", TS: mustTS()}
	if err := ev.Validate(); err == nil {
		t.Fatalf("expected error for reload carrying an entity_id")
	}
}

func TestEvent_Validate_RejectsUnknownOpAndVersion(t *testing.T) {
	if err := (Event{Version: 2, Op: "update", EntityID: "x", TS: mustTS()}).Validate(); err == nil {
		t.Fatalf("expected version error")
	}
	if err := (Event{Version: 1, Op: "upsert", EntityID: "x", TS: mustTS()}).Validate(); err == nil {
		t.Fatalf("expected op error")
	}
	if err := (Event{Version: 1, Op: "delete", EntityID: "x"}).Validate(); err == nil {
		t.Fatalf("expected ts error")
	}
}
