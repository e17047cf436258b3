package serp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/FranksOps/jobsweep/pkg/httpclient"
)

const (
	// DefaultSerpAPIEndpoint is the SerpAPI JSON search endpoint.
	DefaultSerpAPIEndpoint = "https://serpapi.com/search.json"
	DefaultEngine          = "google"
)

// SerpAPI queries serpapi.com.
type SerpAPI struct {
	client   *httpclient.Client
	endpoint string
	apiKey   string
	engine   string
}

var _ Provider = (*SerpAPI)(nil)

// NewSerpAPI returns a provider that authenticates with apiKey. Empty endpoint
// and engine fall back to the defaults.
func NewSerpAPI(client *httpclient.Client, apiKey, endpoint, engine string) (*SerpAPI, error) {
	if client == nil {
		return nil, fmt.Errorf("serpapi: http client is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("serpapi: api key is required")
	}
	if endpoint == "" {
		endpoint = DefaultSerpAPIEndpoint
	}
	if engine == "" {
		engine = DefaultEngine
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("serpapi: invalid endpoint %q: %w", endpoint, err)
	}
	return &SerpAPI{client: client, endpoint: endpoint, apiKey: apiKey, engine: engine}, nil
}

func (s *SerpAPI) Name() string { return "serpapi" }

type serpAPIResponse struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"organic_results"`
}

// Search fetches one page. A SerpAPI "error" field on a 2xx response is
// reported through Page.Notice with an empty result set.
func (s *SerpAPI) Search(ctx context.Context, req Request) (*Page, error) {
	num := req.Num
	if num <= 0 {
		num = DefaultPageSize
	}

	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("serpapi: invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set("api_key", s.apiKey)
	q.Set("engine", s.engine)
	q.Set("q", req.Query)
	q.Set("start", strconv.Itoa(req.Start))
	q.Set("num", strconv.Itoa(num))
	u.RawQuery = q.Encode()

	resp, err := s.client.Get(ctx, u.String(), http.Header{"Accept": []string{"application/json"}})
	if err != nil {
		return nil, fmt.Errorf("serpapi: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(s.Name(), resp)
	}

	var decoded serpAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("serpapi: decode response: %w", err)
	}

	page := &Page{Notice: decoded.Error, Items: make([]Item, 0, len(decoded.OrganicResults))}
	for _, r := range decoded.OrganicResults {
		page.Items = append(page.Items, Item{Title: r.Title, Snippet: r.Snippet, Link: r.Link})
	}
	return page, nil
}
