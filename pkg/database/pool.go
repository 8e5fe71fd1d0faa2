// backend/pkg/database/pool.go
package database

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"course-platform/internal/apperr"

	"gorm.io/gorm"
)

// Dialer establishes a new handle. It must return a handle that is ready for use.
type Dialer func(ctx context.Context) (*gorm.DB, error)

type State int

const (
	// StateAbsent: no handle and no attempt in flight.
	StateAbsent State = iota
	// StateConnecting: one establishment attempt is in flight.
	StateConnecting
	// StateEstablished: a live handle is shared by all callers.
	StateEstablished
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateEstablished:
		return "established"
	default:
		return "absent"
	}
}

// errSuperseded tells waiters of a dropped attempt to start over.
var errSuperseded = errors.New("connection attempt superseded")

type attempt struct {
	done chan struct{}
	conn *gorm.DB
	err  error
}

// Pool owns the process-wide database handle. It is created at startup and
// passed to repositories, which borrow the handle through Acquire and never
// close it.
//
// At most one establishment runs at a time. Concurrent callers against a cold
// pool share that attempt. A failed attempt leaves the pool absent so the next
// Acquire starts over.
type Pool struct {
	dial        Dialer
	dialTimeout time.Duration

	mu          sync.Mutex
	conn        *gorm.DB
	pending     *attempt
	established int
}

func NewPool(dial Dialer, dialTimeout time.Duration) *Pool {
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	return &Pool{
		dial:        dial,
		dialTimeout: dialTimeout,
	}
}

// Acquire returns the shared handle, establishing it if needed. ctx only bounds
// how long this caller waits; an attempt in flight keeps running for the
// others.
func (p *Pool) Acquire(ctx context.Context) (*gorm.DB, error) {
	for {
		p.mu.Lock()
		if p.conn != nil {
			conn := p.conn
			p.mu.Unlock()
			return conn, nil
		}

		a := p.pending
		if a == nil {
			a = &attempt{done: make(chan struct{})}
			p.pending = a
			go p.establish(a)
		}
		p.mu.Unlock()

		select {
		case <-a.done:
			if errors.Is(a.err, errSuperseded) {
				continue
			}
			if a.err != nil {
				return nil, apperr.Connection(a.err)
			}
			return a.conn, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (p *Pool) establish(a *attempt) {
	ctx, cancel := context.WithTimeout(context.Background(), p.dialTimeout)
	defer cancel()

	log.Printf("Opening new database connection...")
	conn, err := p.dial(ctx)

	p.mu.Lock()
	current := p.pending == a
	if current {
		p.pending = nil
		if err == nil {
			p.conn = conn
			p.established++
		}
	}
	reconnect := p.established > 1
	p.mu.Unlock()

	switch {
	case !current:
		// Close or Disconnected dropped this attempt while it was dialing.
		if err == nil {
			go closeHandle(conn)
		}
		conn, err = nil, errSuperseded
	case err != nil:
		log.Printf("Error connecting to database: %v", err)
	case reconnect:
		log.Printf("Database reconnected")
	default:
		log.Printf("Database connection established")
	}

	a.conn, a.err = conn, err
	close(a.done)
}

// Disconnected is the disconnect observer. When conn is the current handle it
// clears the handle and any in-flight attempt, so the next Acquire dials again.
// Notifications about handles that were already replaced are ignored.
func (p *Pool) Disconnected(conn *gorm.DB) {
	p.mu.Lock()
	if conn == nil || p.conn != conn {
		p.mu.Unlock()
		return
	}
	p.conn = nil
	p.pending = nil
	p.mu.Unlock()

	log.Printf("Database disconnected; next request will reconnect")

	// Running queries finish before Close returns.
	go closeHandle(conn)
}

func (p *Pool) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.conn != nil:
		return StateEstablished
	case p.pending != nil:
		return StateConnecting
	default:
		return StateAbsent
	}
}

// Ping acquires the handle and checks the link, for health endpoints.
func (p *Pool) Ping(ctx context.Context) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return apperr.Connection(err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		p.Disconnected(conn)
		return apperr.Connection(err)
	}
	return nil
}

// Watch pings the established handle every interval and reports failures
// through Disconnected. It returns when ctx is done.
func (p *Pool) Watch(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.check(ctx, interval)
		}
	}
}

func (p *Pool) check(ctx context.Context, timeout time.Duration) {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return
	}

	sqlDB, err := conn.DB()
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err = sqlDB.PingContext(pingCtx)
		cancel()
	}
	if err != nil && ctx.Err() == nil {
		log.Printf("Database health check failed: %v", err)
		p.Disconnected(conn)
	}
}

// Close releases the current handle. Later Acquire calls dial again.
func (p *Pool) Close() {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.pending = nil
	p.mu.Unlock()
	closeHandle(conn)
}

func closeHandle(conn *gorm.DB) {
	if conn == nil {
		return
	}
	if sqlDB, err := conn.DB(); err == nil {
		sqlDB.Close()
	}
}
