package videolink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supermock/internal/core/domain"
	"supermock/pkg/config"
)

func TestValidatorCheck(t *testing.T) {
	v := NewValidator([]string{"meet.jit.si", " Zoom.us "})

	tests := []struct {
		name  string
		link  string
		valid bool
	}{
		{"jitsi room", "https://meet.jit.si/supermock-abc", true},
		{"zoom subdomain", "https://us02web.zoom.us/j/123", true},
		{"plain http", "http://meet.jit.si/room", false},
		{"unknown host", "https://evil.example.com/room", false},
		{"lookalike host", "https://meet.jit.si.evil.com/room", false},
		{"no room path", "https://meet.jit.si/", false},
		{"credentials", "https://u:p@meet.jit.si/room", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := v.Check(tt.link)
			assert.Equal(t, tt.valid, check.Valid, check.Reason)
			if !tt.valid {
				assert.NotEmpty(t, check.Reason)
			}
		})
	}
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	p := NewLocalProvider("https://meet.jit.si/", NewValidator([]string{"meet.jit.si"}))
	now := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	link, err := p.CreateRoom(ctx, "Frontend / RU interview", now, 60)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "https://meet.jit.si/supermock-frontend-ru-interview-"), link)

	check, err := p.ValidateRoomURL(ctx, link)
	require.NoError(t, err)
	assert.True(t, check.Valid)

	state, err := p.RoomStatus(ctx, link)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomActive, state)

	now = now.Add(61 * time.Minute)
	state, err = p.RoomStatus(ctx, link)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomExpired, state)

	state, err = p.RoomStatus(ctx, "https://meet.jit.si/manual")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomActive, state)

	other, err := p.CreateRoom(ctx, "", now, 60)
	require.NoError(t, err)
	assert.Contains(t, other, "/supermock-interview-")
	assert.NotEqual(t, link, other)
}

func TestHTTPProvider(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/rooms":
			var body map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["summary"] == "broken" {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(`{"message":"upstream down"}`))
				return
			}
			_, _ = w.Write([]byte(`{"data":{"url":"https://meet.jit.si/from-api"}}`))
		case "/rooms/validate":
			valid := r.URL.Query().Get("url") == "https://meet.jit.si/from-api"
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"valid": valid, "reason": "not provisioned"})
		case "/rooms/status":
			_, _ = w.Write([]byte(`{"status":"EXPIRED"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	p := NewHTTPProvider(srv.URL+"/", "secret", time.Second, NewValidator([]string{"meet.jit.si"}))

	link, err := p.CreateRoom(ctx, "ok", time.Now(), 30)
	require.NoError(t, err)
	assert.Equal(t, "https://meet.jit.si/from-api", link)
	assert.Equal(t, "Bearer secret", gotAuth)

	_, err = p.CreateRoom(ctx, "broken", time.Now(), 30)
	var sce *StatusCodeError
	require.ErrorAs(t, err, &sce)
	assert.Equal(t, http.StatusBadGateway, sce.StatusCode)
	assert.Equal(t, "upstream down", sce.Message)

	check, err := p.ValidateRoomURL(ctx, link)
	require.NoError(t, err)
	assert.True(t, check.Valid)

	check, err = p.ValidateRoomURL(ctx, "https://meet.jit.si/other")
	require.NoError(t, err)
	assert.False(t, check.Valid)
	assert.Equal(t, "not provisioned", check.Reason)

	check, err = p.ValidateRoomURL(ctx, "https://example.com/x")
	require.NoError(t, err)
	assert.False(t, check.Valid, "allowlist is checked before the API")

	state, err := p.RoomStatus(ctx, link)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomExpired, state)
}

func TestHTTPProviderUnreachable(t *testing.T) {
	p := NewHTTPProvider("http://127.0.0.1:1", "", 200*time.Millisecond, NewValidator(nil))

	_, err := p.CreateRoom(context.Background(), "x", time.Now(), 30)
	var ce *CallError
	assert.ErrorAs(t, err, &ce)
}

func TestNewProvider(t *testing.T) {
	cfg := config.DefaultConfig()

	p, err := NewProvider(cfg)
	require.NoError(t, err)
	assert.IsType(t, &LocalProvider{}, p)

	cfg.Video.Provider = "http"
	cfg.Video.APIURL = "https://rooms.example.com"
	p, err = NewProvider(cfg)
	require.NoError(t, err)
	assert.IsType(t, &HTTPProvider{}, p)

	cfg.Video.Provider = "carrier-pigeon"
	_, err = NewProvider(cfg)
	assert.Error(t, err)
}
