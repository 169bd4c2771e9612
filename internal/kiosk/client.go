package kiosk

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultRequestTimeout = 10 * time.Second

// Client talks to the display server. Every call carries a timeout so a
// wedged network can never hang the render loop.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Init(ctx context.Context) (*InitResponse, error) {
	var res InitResponse
	if err := c.post(ctx, "/displays/pairing/init", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Status(ctx context.Context, deviceID string) (*StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/displays/pairing/status/%s", c.baseURL, deviceID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrDeviceNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status poll: unexpected status %d", resp.StatusCode)
	}

	var res StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("status poll: decode: %w", err)
	}
	return &res, nil
}

func (c *Client) Disconnect(ctx context.Context, deviceID string) error {
	return c.post(ctx, fmt.Sprintf("/displays/pairing/%s/disconnect", deviceID), nil)
}

func (c *Client) Reset(ctx context.Context, deviceID string) error {
	return c.post(ctx, fmt.Sprintf("/displays/pairing/%s/reset", deviceID), nil)
}

func (c *Client) post(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrDeviceNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decode: %w", path, err)
		}
	}
	return nil
}

// Listen subscribes to the server's push channel and calls nudge whenever
// any event arrives. The event payload is deliberately ignored: the next
// poll is the source of truth, push only shortens the latency. Returns
// when the stream drops; the caller decides whether to reconnect.
func (c *Client) Listen(ctx context.Context, deviceID string, nudge func()) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/displays/events/%s", c.baseURL, deviceID), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	// The SSE stream is long-lived; bypass the per-request timeout.
	streamClient := &http.Client{}
	resp, err := streamClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("events: unexpected status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") && line != "event: connected" {
			log.Debug().Str("line", line).Msg("push event received")
			nudge()
		}
	}
	return scanner.Err()
}
