package videolink

import (
	"fmt"

	"supermock/internal/core/ports"
	"supermock/pkg/config"
)

// NewProvider builds the room provider selected by cfg.Video.Provider.
func NewProvider(cfg *config.Config) (ports.RoomProvider, error) {
	validator := NewValidator(cfg.Video.AllowedHosts)

	switch cfg.Video.Provider {
	case "local":
		return NewLocalProvider(cfg.Video.BaseURL, validator), nil
	case "http":
		return NewHTTPProvider(cfg.Video.APIURL, cfg.Video.APIKey, cfg.Video.Timeout, validator), nil
	}
	return nil, fmt.Errorf("unknown video provider %q", cfg.Video.Provider)
}
