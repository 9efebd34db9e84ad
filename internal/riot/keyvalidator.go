package riot

import (
	"context"
	"errors"
	"fmt"
)

// Lightweight endpoint used to check a key before crawling.
const statusEndpoint = "/lol/status/v4/platform-data"

// PlatformStatus is the subset of /lol/status/v4/platform-data we read.
type PlatformStatus struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Locales []string `json:"locales"`
}

// ValidateKey checks the client's API key with a single status request.
// Returns:
//   - (true, nil) if the key is valid
//   - (false, nil) if the key is invalid (401/403)
//   - (false, error) if there was a network/server error (key validity unknown)
func (c *Client) ValidateKey(ctx context.Context) (bool, error) {
	var status PlatformStatus
	found, err := c.doRequest(ctx, methodPlatformStatus, c.platformURL+statusEndpoint, nil, &status)
	switch {
	case errors.Is(err, ErrAuthRejected):
		return false, nil
	case err != nil:
		return false, err
	case !found:
		return false, fmt.Errorf("platform status unavailable at %s", c.platformURL)
	}

	c.logger.WithField("platform", status.ID).Debug("API key accepted")
	return true, nil
}
