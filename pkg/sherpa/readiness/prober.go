// Package readiness implements the Readiness Prober (§4.9): it TCP-dials
// each node's management address until connectivity is observed or the
// lab deadline fires.
package readiness

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sherpa-labs/sherpa/pkg/util"
)

// DefaultDeadline and DefaultSleep are the §5 defaults (600s deadline,
// fixed inter-pass sleep), overridable per deployment via pkg/sherpa/config.
const (
	DefaultDeadline = 600 * time.Second
	DefaultSleep    = 5 * time.Second
)

// Target is one node's readiness-check subject.
type Target struct {
	NodeName    string
	Address     net.IP
	Port        int
	IsContainer bool // containers are ready as soon as backend Create returns (§4.9)
}

// Result is the outcome of one readiness poll: which nodes connected and
// which did not by the time the loop ended.
type Result struct {
	Ready    []string
	Laggards []string
}

// Prober polls management endpoints for TCP connectivity.
type Prober struct {
	Deadline time.Duration
	Sleep    time.Duration
	// DialTimeout bounds a single connection attempt so one slow/firewalled
	// node cannot stall the whole pass.
	DialTimeout time.Duration
}

// New builds a Prober with the §5 defaults.
func New() *Prober {
	return &Prober{Deadline: DefaultDeadline, Sleep: DefaultSleep, DialTimeout: 2 * time.Second}
}

// Wait loops until every target connects or the deadline elapses,
// returning the set of nodes that came up and the laggards remaining.
// Containers are recorded ready immediately (§4.9), never dialed.
func (p *Prober) Wait(ctx context.Context, targets []Target) Result {
	connected := make(map[string]bool, len(targets))
	var pending []Target
	for _, t := range targets {
		if t.IsContainer {
			connected[t.NodeName] = true
			continue
		}
		pending = append(pending, t)
	}

	deadline := time.Now().Add(p.Deadline)
	log := util.WithField("component", "readiness")

loop:
	for len(pending) > 0 && time.Now().Before(deadline) {
		var stillPending []Target
		for _, t := range pending {
			if p.dial(ctx, t) {
				connected[t.NodeName] = true
				log.WithField("node", t.NodeName).Info("readiness: node connected")
				continue
			}
			stillPending = append(stillPending, t)
		}
		pending = stillPending
		if len(pending) == 0 {
			break
		}
		select {
		case <-ctx.Done():
			break loop
		case <-time.After(p.Sleep):
		}
	}

	result := Result{}
	for _, t := range targets {
		if connected[t.NodeName] {
			result.Ready = append(result.Ready, t.NodeName)
		}
	}
	for _, t := range pending {
		result.Laggards = append(result.Laggards, t.NodeName)
		log.WithField("node", t.NodeName).Warn("readiness: node did not connect before deadline")
	}
	return result
}

func (p *Prober) dial(ctx context.Context, t Target) bool {
	addr := fmt.Sprintf("%s:%d", t.Address.String(), t.Port)
	dialer := net.Dialer{Timeout: p.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
