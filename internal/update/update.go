// Package update implements the remote-update availability check. The
// file-sync mechanism itself lives outside the controller; this only
// compares the published version against the running one.
package update

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eddwatts/BellTimer/internal/platform"
)

type Checker struct {
	client     platform.SecureHTTP
	versionURL string
	current    string
}

func NewChecker(client platform.SecureHTTP, versionURL, current string) *Checker {
	return &Checker{client: client, versionURL: versionURL, current: current}
}

// Check fetches the published version document and reports whether it
// differs from the running version.
func (c *Checker) Check() (bool, string, error) {
	if c.versionURL == "" {
		return false, "", nil
	}

	body, err := c.client.GetJSON(c.versionURL)
	if err != nil {
		return false, "", fmt.Errorf("version check: %w", err)
	}

	var doc struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return false, "", fmt.Errorf("malformed version document: %w", err)
	}

	remote := strings.TrimSpace(doc.Version)
	if remote == "" {
		return false, "", fmt.Errorf("version document missing version")
	}
	return remote != c.current, remote, nil
}
