package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGenerateID(t *testing.T) {
	id1 := GenerateID("room")
	id2 := GenerateID("room")

	if id1 == id2 {
		t.Error("expected different IDs")
	}
	if !strings.HasPrefix(id1, "room_") {
		t.Errorf("expected prefix 'room_', got %s", id1)
	}
}

func TestNewID(t *testing.T) {
	if _, err := uuid.Parse(NewID()); err != nil {
		t.Errorf("NewID() is not a uuid: %v", err)
	}
}

func TestNormalizeSlot(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	in := time.Date(2025, 1, 1, 12, 0, 42, 500, loc)

	got := NormalizeSlot(in)
	want := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) || got.Location() != time.UTC {
		t.Errorf("NormalizeSlot() = %v, want %v", got, want)
	}
}

func TestParseSlot(t *testing.T) {
	got, err := ParseSlot("2025-01-01T09:00:00Z")
	if err != nil {
		t.Fatalf("ParseSlot() error = %v", err)
	}
	if want := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("ParseSlot() = %v, want %v", got, want)
	}
	if got, _ := ParseSlot("2025-01-01T12:00:42+03:00"); got.Second() != 0 || got.Hour() != 9 {
		t.Errorf("ParseSlot() did not normalize: %v", got)
	}
	if _, err := ParseSlot("tomorrow"); err == nil {
		t.Error("expected parse error")
	}
}
