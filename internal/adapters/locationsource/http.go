package locationsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/ports"
)

const (
	activeLocationsPath = "/rides/active/locations"
	maxBodyBytes        = 8 << 20
)

// HTTPSource reads driver locations from the dispatch service's REST endpoint.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

var _ ports.LocationSource = (*HTTPSource)(nil)

// NewHTTPSource creates a source polling baseURL. A nil client gets a traced client
// with a 30s timeout.
func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &HTTPSource{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// ActiveLocations fetches one reading per active ride.
func (s *HTTPSource) ActiveLocations(ctx context.Context) ([]domain.DriverLocationReading, error) {
	url := s.baseURL + activeLocationsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var readings []domain.DriverLocationReading
	if err := json.Unmarshal(body, &readings); err != nil {
		return nil, fmt.Errorf("decode locations: %w", err)
	}
	return readings, nil
}
