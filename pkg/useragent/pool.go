// Package useragent rotates browser User-Agent strings for HTML search
// providers.
package useragent

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
)

// DefaultAgents is a set of current desktop browser User-Agents.
var DefaultAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:130.0) Gecko/20100101 Firefox/130.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14.6; rv:130.0) Gecko/20100101 Firefox/130.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.6 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36 Edg/128.0.0.0",
}

// Rotation selects how Pick chooses the next User-Agent.
type Rotation string

const (
	RotateSequential Rotation = "sequential"
	RotateRandom     Rotation = "random"
)

// ParseRotation maps a configuration value to a Rotation. The empty string
// selects RotateSequential.
func ParseRotation(s string) (Rotation, error) {
	switch r := Rotation(strings.ToLower(strings.TrimSpace(s))); r {
	case "", RotateSequential:
		return RotateSequential, nil
	case RotateRandom:
		return r, nil
	default:
		return "", fmt.Errorf("useragent: unknown rotation %q", s)
	}
}

// Pool hands out User-Agents round-robin. It is safe for concurrent use.
type Pool struct {
	agents  []string
	counter atomic.Uint64
}

// NewPool copies agents, dropping blank entries. An empty result falls back
// to DefaultAgents.
func NewPool(agents []string) *Pool {
	kept := make([]string, 0, len(agents))
	for _, a := range agents {
		if a = strings.TrimSpace(a); a != "" {
			kept = append(kept, a)
		}
	}
	if len(kept) == 0 {
		kept = append(kept, DefaultAgents...)
	}
	return &Pool{agents: kept}
}

// Next returns the next User-Agent in rotation.
func (p *Pool) Next() string {
	if len(p.agents) == 0 {
		return ""
	}
	idx := p.counter.Add(1) - 1
	return p.agents[idx%uint64(len(p.agents))]
}

// Random returns a uniformly chosen User-Agent, falling back to Next if the
// system random source fails.
func (p *Pool) Random() string {
	if len(p.agents) == 0 {
		return ""
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(p.agents))))
	if err != nil {
		return p.Next()
	}
	return p.agents[n.Int64()]
}

// Pick returns a User-Agent using the given rotation.
func (p *Pool) Pick(r Rotation) string {
	if r == RotateRandom {
		return p.Random()
	}
	return p.Next()
}

// Len reports how many User-Agents the pool rotates through.
func (p *Pool) Len() int { return len(p.agents) }
