package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Kumar2007/MarvelClashArena/internal/server"
)

// HealthcheckCmd queries a running server's /healthz endpoint
type HealthcheckCmd struct {
	URL      string        `default:"http://localhost:8080" help:"Base URL of the arena server"`
	Wait     time.Duration `default:"0s" help:"Keep polling for this long before giving up"`
	Interval time.Duration `default:"250ms" help:"Delay between polls while waiting"`
}

func (c *HealthcheckCmd) Run() error {
	timeout := c.Wait
	if timeout <= 0 {
		timeout = c.Interval
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	health, err := server.WaitForHealthy(ctx, c.URL, c.Interval)
	if err != nil {
		return fmt.Errorf("%s is not healthy: %w", c.URL, err)
	}
	fmt.Println(renderHealth(c.URL, health))
	return nil
}

func renderHealth(url string, h *server.Health) string {
	return fmt.Sprintf("%s %s\n  %s",
		heroStyle.Render(h.Status),
		mutedStyle.Render(url),
		statStyle.Render(fmt.Sprintf("%d connections  %d matches  %d bots", h.Connections, h.Matches, h.Bots)))
}
