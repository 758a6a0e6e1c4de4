package bypass

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pysugar/relay-checkin/internal/httpx"
)

// solverTimeout covers one challenge-solving session; the solver drives a
// real browser, so this is far above the normal request timeout.
const solverTimeout = 120 * time.Second

// SolverClient implements Provider against a FlareSolverr-compatible solver
// sidecar: the solver loads the login page in a managed browser, waits out
// the challenge and hands back the issued cookies.
type SolverClient struct {
	endpoint   string
	httpClient *http.Client
	retry      httpx.RetryPolicy
}

// NewSolverClient points the client at the solver's /v1 endpoint, e.g.
// http://127.0.0.1:8191/v1.
func NewSolverClient(endpoint string) *SolverClient {
	return &SolverClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: solverTimeout},
		retry:      httpx.DefaultRetryPolicy(),
	}
}

type solverRequest struct {
	Cmd        string `json:"cmd"`
	URL        string `json:"url"`
	MaxTimeout int    `json:"maxTimeout"`
}

type solverResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Solution struct {
		Cookies []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"cookies"`
	} `json:"solution"`
}

// Acquire asks the solver to visit loginURL and returns the cookies whose
// names appear in required. A response missing any required name is an
// error; the cache never sees partial sets.
func (c *SolverClient) Acquire(ctx context.Context, domain, loginURL string, required []string) (TokenSet, error) {
	payload, err := json.Marshal(solverRequest{
		Cmd:        "request.get",
		URL:        loginURL,
		MaxTimeout: int(solverTimeout.Milliseconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal solver request: %w", err)
	}

	var parsed solverResponse
	err = c.retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("solver returned HTTP %d", resp.StatusCode)
		}
		return json.Unmarshal(body, &parsed)
	})
	if err != nil {
		return nil, err
	}

	if parsed.Status != "ok" {
		return nil, fmt.Errorf("solver failed: %s", parsed.Message)
	}

	tokens := make(TokenSet)
	for _, cookie := range parsed.Solution.Cookies {
		for _, name := range required {
			if cookie.Name == name {
				tokens[name] = cookie.Value
			}
		}
	}
	if !tokens.HasAll(required) {
		return nil, fmt.Errorf("solver solved the page but is missing required tokens")
	}
	return tokens, nil
}

// Unavailable is the Provider used when no solver is configured: every
// acquisition fails fast with a configuration hint.
type Unavailable struct{}

// Acquire always fails.
func (Unavailable) Acquire(context.Context, string, string, []string) (TokenSet, error) {
	return nil, fmt.Errorf("no bypass solver configured (set CHECKIN_SOLVER_URL)")
}
