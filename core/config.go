package core

import (
	"fmt"
	"strings"
)

const (
	// MaxPageLimit is the hard ceiling for a single search page.
	MaxPageLimit     = 100
	DefaultPageLimit = 25
)

type Config struct {
	ServiceName   string `koanf:"service_name" mapstructure:"service_name"`
	MaxLimit      int    `koanf:"max_limit" mapstructure:"max_limit"`
	DefaultLimit  int    `koanf:"default_limit" mapstructure:"default_limit"`
	GroupSentinel string `koanf:"group_sentinel" mapstructure:"group_sentinel"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:   "search",
		MaxLimit:      MaxPageLimit,
		DefaultLimit:  DefaultPageLimit,
		GroupSentinel: DefaultGroupSentinel,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.MaxLimit < 1 || c.MaxLimit > MaxPageLimit {
		return fmt.Errorf("core: max_limit must be between 1 and %d", MaxPageLimit)
	}
	if c.DefaultLimit < 1 || c.DefaultLimit > c.MaxLimit {
		return fmt.Errorf("core: default_limit must be between 1 and max_limit")
	}
	if c.GroupSentinel == "" {
		return fmt.Errorf("core: group_sentinel is required")
	}
	return nil
}

// EffectiveLimit applies the default for unset limits and clamps to MaxLimit.
func (c Config) EffectiveLimit(requested int) int {
	maxLimit := c.MaxLimit
	if maxLimit <= 0 || maxLimit > MaxPageLimit {
		maxLimit = MaxPageLimit
	}
	if requested <= 0 {
		requested = c.DefaultLimit
		if requested <= 0 {
			requested = DefaultPageLimit
		}
	}
	return min(requested, maxLimit)
}
