package videolink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"supermock/internal/core/domain"
)

// CallError wraps a transport failure talking to the room API.
type CallError struct {
	API string
	Err error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call %s: %v", e.API, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// StatusCodeError is returned for non-2xx responses.
type StatusCodeError struct {
	API        string
	StatusCode int
	Message    string
}

func (e *StatusCodeError) Error() string {
	return fmt.Sprintf("call %s: status %d: %s", e.API, e.StatusCode, e.Message)
}

// HTTPProvider provisions rooms through a JSON conferencing API.
//
//	POST {api}/rooms            {"summary","start","duration_minutes"} -> {"url"} or {"data":{"url"}}
//	GET  {api}/rooms/validate?url= -> {"valid":bool,"reason":string}
//	GET  {api}/rooms/status?url=   -> {"status":"active"|"expired"}
type HTTPProvider struct {
	apiURL    string
	apiKey    string
	client    *http.Client
	validator *Validator
}

func NewHTTPProvider(apiURL, apiKey string, timeout time.Duration, validator *Validator) *HTTPProvider {
	return &HTTPProvider{
		apiURL:    strings.TrimRight(apiURL, "/"),
		apiKey:    apiKey,
		client:    &http.Client{Timeout: timeout},
		validator: validator,
	}
}

func (p *HTTPProvider) CreateRoom(ctx context.Context, summary string, start time.Time, durationMinutes int) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"summary":          summary,
		"start":            start.UTC().Format(time.RFC3339),
		"duration_minutes": durationMinutes,
	})
	if err != nil {
		return "", err
	}

	result, err := p.call(ctx, http.MethodPost, p.apiURL+"/rooms", bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	link := result.Get("url").String()
	if link == "" {
		link = result.Get("data.url").String()
	}
	if link == "" {
		return "", &CallError{API: "/rooms", Err: fmt.Errorf("response carries no room url")}
	}
	return link, nil
}

// ValidateRoomURL runs the local allowlist first and only asks the API about
// links that pass it.
func (p *HTTPProvider) ValidateRoomURL(ctx context.Context, link string) (domain.LinkCheck, error) {
	if check := p.validator.Check(link); !check.Valid {
		return check, nil
	}

	result, err := p.call(ctx, http.MethodGet, p.apiURL+"/rooms/validate?url="+url.QueryEscape(link), nil)
	if err != nil {
		return domain.LinkCheck{}, err
	}
	return domain.LinkCheck{
		Valid:  result.Get("valid").Bool(),
		Reason: result.Get("reason").String(),
	}, nil
}

func (p *HTTPProvider) RoomStatus(ctx context.Context, link string) (domain.RoomState, error) {
	result, err := p.call(ctx, http.MethodGet, p.apiURL+"/rooms/status?url="+url.QueryEscape(link), nil)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(result.Get("status").String(), string(domain.RoomExpired)) {
		return domain.RoomExpired, nil
	}
	return domain.RoomActive, nil
}

func (p *HTTPProvider) call(ctx context.Context, method, endpoint string, body io.Reader) (gjson.Result, error) {
	api := strings.TrimPrefix(endpoint, p.apiURL)
	if i := strings.IndexByte(api, '?'); i >= 0 {
		api = api[:i]
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return gjson.Result{}, &CallError{API: api, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return gjson.Result{}, &CallError{API: api, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gjson.Result{}, &CallError{API: api, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gjson.Result{}, &StatusCodeError{API: api, StatusCode: resp.StatusCode, Message: gjson.GetBytes(raw, "message").String()}
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, &CallError{API: api, Err: fmt.Errorf("invalid response json")}
	}
	return gjson.ParseBytes(raw), nil
}
