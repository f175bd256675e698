package videolink

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"supermock/internal/core/domain"
	"supermock/pkg/utils"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// LocalProvider mints Jitsi-style room links under a base URL without calling
// any API. Rooms it created expire once their scheduled window has passed.
type LocalProvider struct {
	baseURL   string
	validator *Validator
	now       func() time.Time

	mu      sync.Mutex
	expires map[string]time.Time
}

func NewLocalProvider(baseURL string, validator *Validator) *LocalProvider {
	return &LocalProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		validator: validator,
		now:       time.Now,
		expires:   make(map[string]time.Time),
	}
}

func (p *LocalProvider) CreateRoom(ctx context.Context, summary string, start time.Time, durationMinutes int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(summary), "-"), "-")
	if len(slug) > 40 {
		slug = strings.Trim(slug[:40], "-")
	}
	if slug == "" {
		slug = "interview"
	}
	link := fmt.Sprintf("%s/supermock-%s-%s", p.baseURL, slug, strings.TrimPrefix(utils.GenerateRoomID(), "room_"))

	p.mu.Lock()
	now := p.now()
	for l, until := range p.expires {
		if now.Sub(until) > 24*time.Hour {
			delete(p.expires, l)
		}
	}
	p.expires[link] = start.Add(time.Duration(durationMinutes) * time.Minute)
	p.mu.Unlock()

	return link, nil
}

func (p *LocalProvider) ValidateRoomURL(ctx context.Context, url string) (domain.LinkCheck, error) {
	return p.validator.Check(url), nil
}

// RoomStatus reports expired for rooms past their window. Links this
// provider did not create are assumed active.
func (p *LocalProvider) RoomStatus(ctx context.Context, url string) (domain.RoomState, error) {
	p.mu.Lock()
	until, ok := p.expires[url]
	p.mu.Unlock()

	if ok && !p.now().Before(until) {
		return domain.RoomExpired, nil
	}
	return domain.RoomActive, nil
}
