package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// CheckHealth fetches /healthz from baseURL once.
func CheckHealth(ctx context.Context, client *http.Client, baseURL string) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(baseURL, "/")+"/healthz", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health check returned %s", resp.Status)
	}
	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &h, nil
}

// WaitForHealthy polls /healthz every interval until it answers or ctx is
// done.
func WaitForHealthy(ctx context.Context, baseURL string, interval time.Duration) (*Health, error) {
	client := &http.Client{Timeout: time.Second}

	var h *Health
	err := retry.Do(ctx, retry.NewConstant(interval), func(ctx context.Context) error {
		var err error
		h, err = CheckHealth(ctx, client, baseURL)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}
