package registry

import (
	"context"
	"fmt"
	"time"

	"MacroChain/internal/domain/models"
	xhttp "MacroChain/pkg/http"
)

type instrumentsResponse struct {
	Instruments []models.Instrument `json:"instruments"`
}

// HTTPSource loads instruments from a mention-tracker JSON endpoint
// returning {"instruments": [{"symbol", "names", "sectors"}]}.
type HTTPSource struct {
	url    string
	client *xhttp.Client
}

func NewHTTPSource(url string, timeout time.Duration, attempts int) *HTTPSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSource{
		url:    url,
		client: xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithRetry(attempts, 50*time.Millisecond)),
	}
}

func (s *HTTPSource) Load(ctx context.Context) ([]models.Instrument, error) {
	if s.url == "" {
		return nil, fmt.Errorf("registry url not configured")
	}

	var resp instrumentsResponse
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     s.url,
		Headers: map[string]string{"Accept": "application/json"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.url, err)
	}
	return resp.Instruments, nil
}
