package serp

import (
	"context"
	"errors"
	"net/url"

	"github.com/FranksOps/jobsweep/internal/metrics"
	"github.com/FranksOps/jobsweep/pkg/proxy"
)

// Proxied routes each search through the next healthy proxy of a pool. A
// blocked search or a transport failure counts against the proxy; any other
// answer counts for it. When every proxy is benched the search goes direct.
type Proxied struct {
	Provider
	pool *proxy.Pool
}

var (
	_ Provider = (*Proxied)(nil)
	_ Strider  = (*Proxied)(nil)
)

// NewProxied wraps p. The HTTP client behind p must pick its proxy with
// proxy.FromRequest.
func NewProxied(p Provider, pool *proxy.Pool) *Proxied {
	return &Proxied{Provider: p, pool: pool}
}

func (p *Proxied) Search(ctx context.Context, req Request) (*Page, error) {
	u := p.pool.Next()
	if u == nil {
		return p.Provider.Search(ctx, req)
	}

	page, err := p.Provider.Search(proxy.WithURL(ctx, u), req)
	switch {
	case err == nil:
		_ = p.pool.MarkSuccess(u)
	case ctx.Err() != nil:
		// Cancelled by the caller; says nothing about the proxy.
	case Blocked(err) || isTransportError(err):
		_ = p.pool.MarkFailure(u)
		metrics.RecordProxyFailure(u.Host)
	default:
		_ = p.pool.MarkSuccess(u)
	}
	return page, err
}

func (p *Proxied) PageStride() int {
	return Stride(p.Provider, 0)
}

func isTransportError(err error) bool {
	var ue *url.Error
	return errors.As(err, &ue)
}
