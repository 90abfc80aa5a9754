// Package peering provides node-to-node transport for DocMesh.
package peering

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/raft"
)

// Transport owns the TCP listener carrying replication traffic.
//
// Lifecycle: Attach binds the listener at the resolved endpoint (a
// bind failure is startup-fatal for the caller), Start begins serving,
// Stop initiates teardown after an optional grace period and Join
// blocks until teardown has completed.
type Transport struct {
	logger *slog.Logger

	mu       sync.Mutex
	trans    *raft.NetworkTransport
	attached bool
	serving  bool

	quit     atomic.Bool
	stopOnce sync.Once
	done     chan struct{}
}

// ErrNotAttached is returned when Start is called before Attach.
var ErrNotAttached = errors.New("peering: transport not attached")

// maxConnPool is the connection pool size for outgoing peer links.
const maxConnPool = 3

// connTimeout bounds dial and I/O on peer connections.
const connTimeout = 10 * time.Second

// NewTransport creates an unbound transport.
func NewTransport(logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Attach binds the peering listener at the endpoint.
func (t *Transport) Attach(endpoint Endpoint) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	addr, err := net.ResolveTCPAddr("tcp", endpoint.String())
	if err != nil {
		return fmt.Errorf("resolve peering endpoint: %w", err)
	}

	trans, err := raft.NewTCPTransport(endpoint.String(), addr, maxConnPool, connTimeout, io.Discard)
	if err != nil {
		return fmt.Errorf("bind peering listener at %s: %w", endpoint, err)
	}

	t.trans = trans
	t.attached = true
	return nil
}

// Start begins serving peer traffic. Attach must have succeeded.
func (t *Transport) Start(endpoint Endpoint) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.attached {
		return ErrNotAttached
	}

	t.serving = true
	t.logger.Info("peering service is running", "addr", t.trans.LocalAddr())
	return nil
}

// Raft exposes the underlying transport for the replication layer.
func (t *Transport) Raft() *raft.NetworkTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trans
}

// ListenAddress returns the bound peering address for diagnostics.
func (t *Transport) ListenAddress() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.trans == nil {
		return ""
	}
	return string(t.trans.LocalAddr())
}

// RequestQuit records an externally-requested quit. The supervisory
// loop polls QuitRequested and exits cooperatively.
func (t *Transport) RequestQuit() {
	t.quit.Store(true)
}

// QuitRequested reports whether an external quit was requested.
func (t *Transport) QuitRequested() bool {
	return t.quit.Load()
}

// Stop closes the listener after the grace period. In-flight peer
// connections are closed along with the listener; Stop returns once
// the transport has released its resources.
func (t *Transport) Stop(grace time.Duration) {
	t.stopOnce.Do(func() {
		if grace > 0 {
			time.Sleep(grace)
		}

		t.mu.Lock()
		trans := t.trans
		t.serving = false
		t.mu.Unlock()

		if trans != nil {
			if err := trans.Close(); err != nil {
				t.logger.Error("peering transport close failed", "error", err)
			}
		}
		close(t.done)
	})
}

// Join blocks until Stop has completed.
func (t *Transport) Join() {
	<-t.done
}
