// Package health verifies the provider account at startup so a bad URL or
// rotated password fails loudly instead of as a stream of 502s later.
package health

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/streamfront/streamfront/internal/upstream"
)

// CheckProvider performs one cheap player_api call and inspects the result.
// Some panels answer HTTP 200 with {"user_info":{"auth":0}} for rejected
// credentials, so a transport-level success is not enough.
func CheckProvider(ctx context.Context, c *upstream.Client) error {
	body, err := c.Call(ctx, "get_live_categories", nil)
	if err != nil {
		return fmt.Errorf("provider check: %w", err)
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return nil
	}
	var probe struct {
		UserInfo struct {
			Auth json.Number `json:"auth"`
		} `json:"user_info"`
	}
	if err := json.Unmarshal(trimmed, &probe); err == nil && probe.UserInfo.Auth.String() == "0" {
		return fmt.Errorf("provider rejected credentials")
	}
	// Unknown shape: the panel answered, assume usable.
	return nil
}
