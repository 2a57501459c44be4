package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPPoller issues the polling bootstrap GET.
type HTTPPoller struct {
	Client *http.Client
}

// NewHTTPPoller returns a poller with its own client and a request timeout.
func NewHTTPPoller(timeout time.Duration) *HTTPPoller {
	return &HTTPPoller{Client: &http.Client{Timeout: timeout}}
}

func (p *HTTPPoller) Poll(ctx context.Context, url string) (string, error) {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return string(body), fmt.Errorf("transport: bootstrap returned %s", resp.Status)
	}

	return string(body), nil
}
