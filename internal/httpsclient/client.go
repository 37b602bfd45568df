// Package httpsclient implements the secure-transport capability with
// bounded retries. A retry loop can outlast the watchdog timeout, so the
// watchdog is fed before every attempt.
package httpsclient

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eddwatts/BellTimer/internal/platform"
)

const (
	requestTimeout = 10 * time.Second
	maxAttempts    = 3
	maxBodyBytes   = 256 * 1024
)

var retrySleep = time.Sleep

type Client struct {
	http *http.Client
	wdt  platform.Watchdog
}

func New(wdt platform.Watchdog) *Client {
	return &Client{
		http: &http.Client{Timeout: requestTimeout},
		wdt:  wdt,
	}
}

// GetJSON fetches a document, retrying transient failures a fixed small
// number of times before giving up.
func (c *Client) GetJSON(url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		c.wdt.Feed()

		body, err := c.get(url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		log.Warn().Err(err).Str("url", url).Int("attempt", attempt).Msg("Fetch attempt failed")
		if attempt < maxAttempts {
			retrySleep(2 * time.Second)
		}
	}
	return nil, fmt.Errorf("fetch failed after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) get(url string) ([]byte, error) {
	resp, err := c.http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}
