package actuator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// HTTPReplacementTrigger asks the orchestrator API to place a graph again by
// issuing GET {BaseURL}/graphs/{graph}/placement.
type HTTPReplacementTrigger struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPReplacementTrigger returns a trigger with a bounded request timeout.
func NewHTTPReplacementTrigger(baseURL string) *HTTPReplacementTrigger {
	return &HTTPReplacementTrigger{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// RequestReplacement implements the control loop's ReplacementTrigger.
func (h *HTTPReplacementTrigger) RequestReplacement(ctx context.Context, graph string) error {
	endpoint := fmt.Sprintf("%s/graphs/%s/placement", h.BaseURL, url.PathEscape(graph))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building re-placement request: %w", err)
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("requesting re-placement of %s: %w", graph, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("requesting re-placement of %s: unexpected status %s", graph, resp.Status)
	}
	logrus.Infof("re-placement of graph %s requested", graph)
	return nil
}
