package agent

import (
	"errors"
	"time"

	"github.com/ulule/limiter/v3"
)

const (
	DefaultAddr      = "127.0.0.1:7878"
	DefaultRateLimit = "200-S"
)

type Config struct {
	Addr string
	// Root is the local directory standing in for the device file system
	Root string
	// ApplyDelay simulates the time an app takes to apply a sync operation
	ApplyDelay time.Duration
	// Secret turns on bearer token auth for /api/v1 when set
	Secret string
	// RateLimit is a ulule/limiter rate such as "200-S". "-" turns it off.
	RateLimit string
}

func (c *Config) Validate() error {
	if c.Root == "" {
		return errors.New("agent root is required")
	}
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ApplyDelay < 0 {
		return errors.New("apply delay must not be negative")
	}
	if c.RateLimit == "" {
		c.RateLimit = DefaultRateLimit
	}
	if c.RateLimit != "-" {
		if _, err := limiter.NewRateFromFormatted(c.RateLimit); err != nil {
			return err
		}
	}
	return nil
}
