package serp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/FranksOps/jobsweep/pkg/httpclient"
	"github.com/FranksOps/jobsweep/pkg/proxy"
)

// scriptedProvider returns err and remembers the proxy each search was routed
// through.
type scriptedProvider struct {
	err  error
	used []*url.URL
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) Search(ctx context.Context, _ Request) (*Page, error) {
	s.used = append(s.used, proxy.FromContext(ctx))
	if s.err != nil {
		return nil, s.err
	}
	return &Page{}, nil
}

func TestProxied_ReportsOutcome(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		successes int
		failures  int
	}{
		{"results", nil, 1, 0},
		{"challenge", fmt.Errorf("%w (duckduckgo)", ErrChallenged), 0, 1},
		{"protection page", &StatusError{Provider: "duckduckgo", StatusCode: 503, BlockedBy: "cloudflare"}, 0, 1},
		{"rate limited", &StatusError{Provider: "duckduckgo", StatusCode: http.StatusTooManyRequests}, 0, 1},
		{"transport", fmt.Errorf("duckduckgo: request failed: %w", &url.Error{Op: "Get", URL: "https://x", Err: errors.New("connection refused")}), 0, 1},
		{"server error", &StatusError{Provider: "serpapi", StatusCode: http.StatusInternalServerError}, 1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pool := proxy.NewPool(proxy.Config{})
			if err := pool.Add("http://p1:3128"); err != nil {
				t.Fatalf("Add: %v", err)
			}
			inner := &scriptedProvider{err: tc.err}

			_, err := NewProxied(inner, pool).Search(context.Background(), Request{Query: "go"})
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected error %v to pass through, got %v", tc.err, err)
			}
			if len(inner.used) != 1 || inner.used[0] == nil || inner.used[0].Host != "p1:3128" {
				t.Fatalf("expected the search to carry the proxy, got %v", inner.used)
			}

			p1, _ := url.Parse("http://p1:3128")
			succ, fail, err := pool.Stats(p1)
			if err != nil {
				t.Fatalf("Stats: %v", err)
			}
			if succ != tc.successes || fail != tc.failures {
				t.Errorf("expected %d/%d successes/failures, got %d/%d", tc.successes, tc.failures, succ, fail)
			}
		})
	}
}

func TestProxied_DirectWhenAllBenched(t *testing.T) {
	pool := proxy.NewPool(proxy.Config{MaxFailures: 1, Cooldown: time.Hour})
	_ = pool.Add("http://p1:3128")
	inner := &scriptedProvider{err: ErrChallenged}
	p := NewProxied(inner, pool)

	_, _ = p.Search(context.Background(), Request{Query: "go"})
	_, _ = p.Search(context.Background(), Request{Query: "go"})

	if len(inner.used) != 2 || inner.used[0] == nil || inner.used[1] != nil {
		t.Errorf("expected first search proxied and second direct, got %v", inner.used)
	}
}

func TestProxied_CancelledSearchIsNotCounted(t *testing.T) {
	pool := proxy.NewPool(proxy.Config{})
	_ = pool.Add("http://p1:3128")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _ = NewProxied(&scriptedProvider{err: context.Canceled}, pool).Search(ctx, Request{Query: "go"})

	p1, _ := url.Parse("http://p1:3128")
	if succ, fail, _ := pool.Stats(p1); succ != 0 || fail != 0 {
		t.Errorf("expected no outcome recorded, got %d/%d", succ, fail)
	}
}

func TestProxied_KeepsStride(t *testing.T) {
	ddg, _ := NewDuckDuckGo(newClient(t), "", nil, "")
	api, _ := NewSerpAPI(newClient(t), "k", "", "")
	pool := proxy.NewPool(proxy.Config{})

	if got := Stride(NewProxied(ddg, pool), 100); got != DuckDuckGoPageSize {
		t.Errorf("expected duckduckgo stride %d through the wrapper, got %d", DuckDuckGoPageSize, got)
	}
	if got := Stride(NewProxied(api, pool), 100); got != 100 {
		t.Errorf("expected page size stride for serpapi, got %d", got)
	}
}

func TestProxied_RoutesDuckDuckGoThroughProxy(t *testing.T) {
	var proxiedHost string
	proxySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxiedHost = r.URL.Host
		_, _ = w.Write([]byte(ddgResults))
	}))
	defer proxySrv.Close()

	client, err := httpclient.New(httpclient.Config{Transport: &http.Transport{Proxy: proxy.FromRequest}})
	if err != nil {
		t.Fatalf("httpclient.New: %v", err)
	}
	ddg, _ := NewDuckDuckGo(client, "http://search.invalid/html/", nil, "")
	pool := proxy.NewPool(proxy.Config{})
	_ = pool.Add(proxySrv.URL)

	page, err := NewProxied(ddg, pool).Search(context.Background(), Request{Query: "go jobs"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if proxiedHost != "search.invalid" || len(page.Items) != 2 {
		t.Errorf("expected results through the proxy, got host %q and %d items", proxiedHost, len(page.Items))
	}
	u, _ := url.Parse(proxySrv.URL)
	if succ, _, _ := pool.Stats(u); succ != 1 {
		t.Errorf("expected one success recorded, got %d", succ)
	}
}
