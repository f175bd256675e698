package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type joinRequest struct {
	Role       string    `json:"role" validate:"required,oneof=interviewer candidate"`
	SlotUTC    time.Time `json:"slot_utc" validate:"minute"`
	Profession string    `json:"profession" validate:"key,max=64"`
}

func TestStruct(t *testing.T) {
	slot := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		req     joinRequest
		wantErr string
	}{
		{"valid", joinRequest{Role: "candidate", SlotUTC: slot, Profession: "frontend"}, ""},
		{"empty profession allowed", joinRequest{Role: "interviewer", SlotUTC: slot}, ""},
		{"missing role", joinRequest{SlotUTC: slot}, "role is required"},
		{"bad role", joinRequest{Role: "observer", SlotUTC: slot}, "role must be one of"},
		{"seconds in slot", joinRequest{Role: "candidate", SlotUTC: slot.Add(30 * time.Second)}, "slot_utc must be"},
		{"zero slot", joinRequest{Role: "candidate"}, "slot_utc must be"},
		{"bad profession", joinRequest{Role: "candidate", SlotUTC: slot, Profession: "Front End"}, "profession has an invalid format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateHTTPSURL(t *testing.T) {
	_, err := ValidateHTTPSURL("https://meet.jit.si/supermock-abc")
	assert.NoError(t, err)

	for _, raw := range []string{"", "http://meet.jit.si/x", "https://", "https://user:pw@meet.jit.si/x", "::"} {
		_, err := ValidateHTTPSURL(raw)
		assert.Error(t, err, raw)
	}
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("session id", "c6f1a0e2-7b1f-4c55-9f5e-0c1d2e3f4a5b"))
	assert.Error(t, ValidateID("session id", ""))
	assert.Error(t, ValidateID("session id", "a b"))
	assert.Error(t, ValidateID("session id", strings.Repeat("a", 129)))
}

func TestValidateStringLength(t *testing.T) {
	assert.NoError(t, ValidateStringLength("message", "привет", 1, 6))
	assert.Error(t, ValidateStringLength("message", "привет!", 1, 6))
	assert.Error(t, ValidateStringLength("message", "", 1, 6))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "при", TruncateRunes("привет", 3))
	assert.Equal(t, "abc", TruncateRunes("abc", 10))
}
