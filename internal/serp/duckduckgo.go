package serp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/FranksOps/jobsweep/internal/bypass"
	"github.com/FranksOps/jobsweep/pkg/httpclient"
	"github.com/FranksOps/jobsweep/pkg/useragent"
)

// DefaultDuckDuckGoEndpoint is the JavaScript-free results page.
const DefaultDuckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

// DuckDuckGoPageSize is the number of organic results DuckDuckGo serves per
// HTML page. Result offsets advance by this amount.
const DuckDuckGoPageSize = 30

const maxPageBody = 4 << 20

// ErrChallenged is returned when DuckDuckGo serves a bot challenge instead of
// results.
var ErrChallenged = errors.New("duckduckgo: anomaly challenge served")

// DuckDuckGo scrapes the HTML results page. It needs no API key. The page
// size is fixed by DuckDuckGo, so Request.Num is ignored and Start maps to the
// "s" offset parameter.
type DuckDuckGo struct {
	client   *httpclient.Client
	endpoint string
	agents   *useragent.Pool
	rotation useragent.Rotation
}

var (
	_ Provider = (*DuckDuckGo)(nil)
	_ Strider  = (*DuckDuckGo)(nil)
)

// NewDuckDuckGo returns an HTML provider. A nil pool uses the default
// User-Agent set.
func NewDuckDuckGo(client *httpclient.Client, endpoint string, agents *useragent.Pool, rotation useragent.Rotation) (*DuckDuckGo, error) {
	if client == nil {
		return nil, fmt.Errorf("duckduckgo: http client is required")
	}
	if endpoint == "" {
		endpoint = DefaultDuckDuckGoEndpoint
	}
	if agents == nil {
		agents = useragent.NewPool(nil)
	}
	return &DuckDuckGo{client: client, endpoint: endpoint, agents: agents, rotation: rotation}, nil
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) PageStride() int { return DuckDuckGoPageSize }

func (d *DuckDuckGo) Search(ctx context.Context, req Request) (*Page, error) {
	u, err := url.Parse(d.endpoint)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", req.Query)
	if req.Start > 0 {
		q.Set("s", strconv.Itoa(req.Start))
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("User-Agent", d.agents.Pick(d.rotation))
	header.Set("Accept", "text/html")

	resp, err := d.client.Get(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(d.Name(), resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBody))
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: read body: %w", err)
	}
	if src, ok := bypass.Detect(&bypass.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, bypass.DefaultDetectors()); ok {
		return nil, fmt.Errorf("%w (%s)", ErrChallenged, src)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: parse html: %w", err)
	}

	page := &Page{}
	doc.Find("div.result").Each(func(_ int, s *goquery.Selection) {
		// Sponsored results carry the result--ad class.
		if s.HasClass("result--ad") {
			return
		}
		a := s.Find("a.result__a").First()
		href, _ := a.Attr("href")
		page.Items = append(page.Items, Item{
			Title:   collapse(a.Text()),
			Snippet: collapse(s.Find(".result__snippet").First().Text()),
			Link:    decodeRedirect(strings.TrimSpace(href)),
		})
	})

	if len(page.Items) == 0 {
		if msg := collapse(doc.Find(".no-results").First().Text()); msg != "" {
			page.Notice = msg
		}
	}
	return page, nil
}

// decodeRedirect unwraps DuckDuckGo's /l/?uddg=<target> links.
func decodeRedirect(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		u.Scheme = "https"
		return u.String()
	}
	return href
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
