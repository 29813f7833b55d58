package association

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"loostaar/domain/genotype"
	"loostaar/ports"
)

// HTTPTest posts each test to a remote association test service. The null
// model handle is the service's identifier for a fitted model.
type HTTPTest struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewHTTPTest creates an HTTP-backed association test
func NewHTTPTest(baseURL, apiKey string) *HTTPTest {
	return &HTTPTest{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 30 * time.Minute},
	}
}

func (t *HTTPTest) Name() string { return "http" }

func (t *HTTPTest) Test(ctx context.Context, m *genotype.Matrix, model ports.NullModel, params ports.TestParams) (*ports.TestResult, error) {
	raw, err := json.Marshal(newRequest(m, model, params))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := t.BaseURL + "/v1/association"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.APIKey)
	}

	resp, err := t.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("association service request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("association service returned %d: %s", resp.StatusCode, truncate(string(body), 300))
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.result()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
