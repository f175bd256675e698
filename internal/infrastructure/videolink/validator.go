package videolink

import (
	"strings"

	"github.com/samber/lo"

	"supermock/internal/core/domain"
	"supermock/pkg/validation"
)

// Validator accepts https room links on an allowlist of conferencing hosts.
type Validator struct {
	allowedHosts []string
}

func NewValidator(allowedHosts []string) *Validator {
	return &Validator{
		allowedHosts: lo.Map(allowedHosts, func(h string, _ int) string {
			return strings.ToLower(strings.TrimSpace(h))
		}),
	}
}

// Check reports whether raw is a usable room link. A subdomain of an allowed
// host is accepted.
func (v *Validator) Check(raw string) domain.LinkCheck {
	u, err := validation.ValidateHTTPSURL(raw)
	if err != nil {
		return domain.LinkCheck{Valid: false, Reason: err.Error()}
	}

	host := strings.ToLower(u.Hostname())
	allowed := lo.ContainsBy(v.allowedHosts, func(h string) bool {
		return host == h || strings.HasSuffix(host, "."+h)
	})
	if !allowed {
		return domain.LinkCheck{Valid: false, Reason: "host " + host + " is not an allowed conferencing provider"}
	}

	if strings.Trim(u.Path, "/") == "" {
		return domain.LinkCheck{Valid: false, Reason: "link has no room path"}
	}
	return domain.LinkCheck{Valid: true}
}
