package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lahirusamith/mssql-go/driver"
)

// PoolStats tracks connection pool statistics.
type PoolStats struct {
	ActiveConnections atomic.Int32
	IdleConnections   atomic.Int32
	TotalConnections  atomic.Int32
	WaitCount         atomic.Int64
	WaitDuration      atomic.Int64 // nanoseconds
	Hits              atomic.Int64
	Misses            atomic.Int64
	Timeouts          atomic.Int64
	Errors            atomic.Int64
}

// pooledConn pairs a physical connection with the pool bookkeeping needed
// to return or discard it exactly once.
type pooledConn struct {
	conn   driver.Conn
	broken bool
}

// ConnectionPool owns a bounded set of physical connections. Clients
// attach to a pool and borrow connections per operation; the pool is torn
// down when the last attached client detaches.
//
// Capacity is enforced with a permit channel: one token is held for every
// open connection, so concurrent acquirers can never exceed
// MaxOpenConnections.
type ConnectionPool struct {
	connector driver.Connector
	cfg       driver.Config
	opts      PoolOptions
	logger    Logger

	idle  chan *pooledConn
	slots chan struct{}

	stats  PoolStats
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu       sync.Mutex
	refCount int
	closed   bool

	// registry bookkeeping, set by the registry that created this pool
	regKey *registryKey
}

// newConnectionPool creates a pool and starts its idle reaper.
func newConnectionPool(connector driver.Connector, cfg driver.Config, opts PoolOptions, logger Logger) *ConnectionPool {
	opts = opts.withDefaults()
	p := &ConnectionPool{
		connector: connector,
		cfg:       cfg,
		opts:      opts,
		logger:    logger,
		idle:      make(chan *pooledConn, opts.MaxIdleConnections),
		slots:     make(chan struct{}, opts.MaxOpenConnections),
		stopCh:    make(chan struct{}),
	}

	p.wg.Add(1)
	go p.reaper()

	return p
}

// Stats returns a snapshot of pool statistics.
func (p *ConnectionPool) Stats() *PoolStats {
	s := &PoolStats{}
	s.ActiveConnections.Store(p.stats.ActiveConnections.Load())
	s.IdleConnections.Store(p.stats.IdleConnections.Load())
	s.TotalConnections.Store(p.stats.TotalConnections.Load())
	s.WaitCount.Store(p.stats.WaitCount.Load())
	s.WaitDuration.Store(p.stats.WaitDuration.Load())
	s.Hits.Store(p.stats.Hits.Load())
	s.Misses.Store(p.stats.Misses.Load())
	s.Timeouts.Store(p.stats.Timeouts.Load())
	s.Errors.Store(p.stats.Errors.Load())
	return s
}

// MaxOpen returns the configured connection cap.
func (p *ConnectionPool) MaxOpen() int { return p.opts.MaxOpenConnections }

// attach registers one more client with the pool. It fails when the pool
// is already closed or closing; the caller must then use a fresh pool. The
// closed flag is checked under the same lock that detach sets it, so an
// attach can never land on a pool whose teardown has been decided.
func (p *ConnectionPool) attach() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.refCount++
	return true
}

// detach deregisters a client. When the last client detaches, the pool is
// closed and all its connections are torn down. The zero-ref check and the
// closed flag flip happen in one critical section, so a concurrent attach
// either lands before the decision (and keeps the pool alive) or sees the
// pool closed and fails.
func (p *ConnectionPool) detach() error {
	p.mu.Lock()
	p.refCount--
	if p.refCount > 0 || p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	return p.teardown()
}

// refs returns the current number of attached clients.
func (p *ConnectionPool) refs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refCount
}

// acquire borrows a connection, blocking up to the configured acquire
// timeout when the pool is at capacity. An idle connection is reused when
// one is available and still fresh; otherwise a new physical connection is
// opened as long as MaxOpenConnections is not reached.
func (p *ConnectionPool) acquire(ctx context.Context) (*pooledConn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, &ResourceClosedError{Resource: "connection pool"}
	}
	p.mu.Unlock()

	start := time.Now()
	p.stats.WaitCount.Add(1)
	deadline := start.Add(p.opts.AcquireTimeout)

	for {
		// Reuse an idle connection when possible.
		select {
		case pc := <-p.idle:
			p.stats.IdleConnections.Add(-1)
			if !p.usable(pc) {
				p.discard(pc)
				continue
			}
			return p.borrowed(pc, start, true), nil
		default:
		}

		// Below capacity: claim a permit and open a new connection.
		select {
		case pc := <-p.idle:
			p.stats.IdleConnections.Add(-1)
			if !p.usable(pc) {
				p.discard(pc)
				continue
			}
			return p.borrowed(pc, start, true), nil
		case p.slots <- struct{}{}:
			pc, err := p.dial(ctx)
			if err != nil {
				<-p.slots
				p.stats.Errors.Add(1)
				return nil, err
			}
			return p.borrowed(pc, start, false), nil
		default:
		}

		// At capacity. Fail fast when no wait is configured.
		if p.opts.AcquireTimeout <= 0 {
			p.stats.Timeouts.Add(1)
			return nil, &PoolExhaustedError{MaxOpen: p.opts.MaxOpenConnections}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			p.stats.Timeouts.Add(1)
			return nil, &PoolTimeoutError{Waited: time.Since(start), MaxOpen: p.opts.MaxOpenConnections}
		}

		timer := time.NewTimer(remaining)
		select {
		case pc := <-p.idle:
			timer.Stop()
			p.stats.IdleConnections.Add(-1)
			if !p.usable(pc) {
				p.discard(pc)
				continue
			}
			return p.borrowed(pc, start, true), nil
		case p.slots <- struct{}{}:
			timer.Stop()
			pc, err := p.dial(ctx)
			if err != nil {
				<-p.slots
				p.stats.Errors.Add(1)
				return nil, err
			}
			return p.borrowed(pc, start, false), nil
		case <-timer.C:
			p.stats.Timeouts.Add(1)
			return nil, &PoolTimeoutError{Waited: time.Since(start), MaxOpen: p.opts.MaxOpenConnections}
		case <-ctx.Done():
			timer.Stop()
			p.stats.Timeouts.Add(1)
			return nil, ctx.Err()
		}
	}
}

// release returns a borrowed connection. A broken or stale connection is
// closed and its permit freed; otherwise it becomes idle and eligible for
// reuse. Every borrowed connection passes through here exactly once.
func (p *ConnectionPool) release(pc *pooledConn) {
	if pc == nil {
		return
	}
	p.stats.ActiveConnections.Add(-1)

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	if closed || pc.broken || !pc.conn.Alive() {
		p.discard(pc)
		return
	}

	select {
	case p.idle <- pc:
		p.stats.IdleConnections.Add(1)
	default:
		// Idle buffer is full.
		p.discard(pc)
	}
}

// dial opens a new physical connection, bounding the handshake with the
// configured login timeout.
func (p *ConnectionPool) dial(ctx context.Context) (*pooledConn, error) {
	if p.cfg.LoginTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.LoginTimeout)
		defer cancel()
	}

	conn, err := p.connector.Connect(ctx, p.cfg)
	if err != nil {
		return nil, &ConnectionError{
			Code:    "E_CONNECT_FAILED",
			Message: "failed to open connection",
			Details: map[string]interface{}{
				"host": p.cfg.Host,
				"port": p.cfg.Port,
			},
			Cause: err,
		}
	}
	p.stats.TotalConnections.Add(1)
	return &pooledConn{conn: conn}, nil
}

// borrowed finalizes acquire bookkeeping.
func (p *ConnectionPool) borrowed(pc *pooledConn, start time.Time, reused bool) *pooledConn {
	p.stats.WaitDuration.Add(int64(time.Since(start)))
	p.stats.ActiveConnections.Add(1)
	if reused {
		p.stats.Hits.Add(1)
	} else {
		p.stats.Misses.Add(1)
	}
	return pc
}

// usable reports whether an idle connection can still be handed out.
func (p *ConnectionPool) usable(pc *pooledConn) bool {
	if pc.broken || !pc.conn.Alive() {
		return false
	}
	return time.Since(pc.conn.LastActivity()) <= p.opts.IdleTimeout
}

// discard closes a connection and frees its capacity permit.
func (p *ConnectionPool) discard(pc *pooledConn) {
	if err := pc.conn.Close(); err != nil {
		p.logger.Warn("error closing connection", Error("error", err))
	}
	p.stats.TotalConnections.Add(-1)
	<-p.slots
}

// close tears the pool down: the reaper is stopped and all idle
// connections are closed. Connections still borrowed are closed when they
// are released.
func (p *ConnectionPool) close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	return p.teardown()
}

// teardown does the actual shutdown work. The closed flag is already set,
// so no new attach or acquire can land; the registry entry may outlive the
// flag briefly, which is safe because registry lookups re-check it via
// attach and replace the entry when it fails.
func (p *ConnectionPool) teardown() error {
	close(p.stopCh)
	p.wg.Wait()

	if p.regKey != nil {
		registry.remove(p)
	}

	for {
		select {
		case pc := <-p.idle:
			p.stats.IdleConnections.Add(-1)
			p.discard(pc)
		default:
			return nil
		}
	}
}

// reaper periodically closes idle connections that exceeded IdleTimeout.
func (p *ConnectionPool) reaper() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.opts.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapIdle()
		}
	}
}

// reapIdle removes stale idle connections. Fresh connections popped during
// the sweep are pushed back and the sweep stops there, since the channel
// keeps rough LRU order.
func (p *ConnectionPool) reapIdle() {
	for i := 0; i < cap(p.idle); i++ {
		select {
		case pc := <-p.idle:
			if time.Since(pc.conn.LastActivity()) > p.opts.IdleTimeout || !pc.conn.Alive() {
				p.stats.IdleConnections.Add(-1)
				p.discard(pc)
				continue
			}
			select {
			case p.idle <- pc:
			default:
				p.stats.IdleConnections.Add(-1)
				p.discard(pc)
			}
			return
		default:
			return
		}
	}
}
