package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"course-platform/internal/apperr"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeDialer struct {
	mu      sync.Mutex
	calls   int
	err     error
	release chan struct{}
}

func (f *fakeDialer) dial(ctx context.Context) (*gorm.DB, error) {
	f.mu.Lock()
	f.calls++
	err := f.err
	release := f.release
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	return &gorm.DB{Config: &gorm.Config{}}, nil
}

func (f *fakeDialer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitForState(t *testing.T, p *Pool, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for p.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("pool state = %s, want %s", p.State(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAcquireColdPoolDialsOnce(t *testing.T) {
	dialer := &fakeDialer{release: make(chan struct{})}
	pool := NewPool(dialer.dial, time.Second)

	if pool.State() != StateAbsent {
		t.Fatalf("new pool state = %s, want absent", pool.State())
	}

	const callers = 32
	handles := make([]*gorm.DB, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = pool.Acquire(context.Background())
		}(i)
	}

	waitForState(t, pool, StateConnecting)
	close(dialer.release)
	wg.Wait()

	if got := dialer.callCount(); got != 1 {
		t.Fatalf("dial calls = %d, want 1", got)
	}
	for i := range handles {
		if errs[i] != nil {
			t.Fatalf("caller %d: unexpected error %v", i, errs[i])
		}
		if handles[i] != handles[0] {
			t.Fatalf("caller %d received a different handle", i)
		}
	}
	if pool.State() != StateEstablished {
		t.Fatalf("state = %s, want established", pool.State())
	}
}

func TestAcquireEstablishedReusesHandle(t *testing.T) {
	dialer := &fakeDialer{}
	pool := NewPool(dialer.dial, time.Second)

	first, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	second, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if first != second {
		t.Fatalf("expected the same handle on the warm path")
	}
	if got := dialer.callCount(); got != 1 {
		t.Fatalf("dial calls = %d, want 1", got)
	}
}

func TestFailedAttemptRevertsToAbsent(t *testing.T) {
	dialErr := errors.New("connection refused")
	dialer := &fakeDialer{err: dialErr}
	pool := NewPool(dialer.dial, time.Second)

	_, err := pool.Acquire(context.Background())
	if err == nil {
		t.Fatalf("expected establishment error")
	}
	if !errors.Is(err, apperr.ErrConnection) || !errors.Is(err, dialErr) {
		t.Fatalf("error = %v, want connection error wrapping the dial error", err)
	}
	if pool.State() != StateAbsent {
		t.Fatalf("state after failure = %s, want absent", pool.State())
	}

	dialer.mu.Lock()
	dialer.err = nil
	dialer.mu.Unlock()

	if _, err := pool.Acquire(context.Background()); err != nil {
		t.Fatalf("retry acquire: %v", err)
	}
	if got := dialer.callCount(); got != 2 {
		t.Fatalf("dial calls = %d, want 2", got)
	}
}

func TestFailureReachesEveryWaiter(t *testing.T) {
	dialer := &fakeDialer{err: errors.New("timeout"), release: make(chan struct{})}
	pool := NewPool(dialer.dial, time.Second)

	const callers = 8
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := pool.Acquire(context.Background())
			errs <- err
		}()
	}

	waitForState(t, pool, StateConnecting)
	close(dialer.release)

	for i := 0; i < callers; i++ {
		if err := <-errs; !errors.Is(err, apperr.ErrConnection) {
			t.Fatalf("waiter error = %v, want connection error", err)
		}
	}
	if got := dialer.callCount(); got > callers {
		t.Fatalf("dial calls = %d, more attempts than callers", got)
	}
}

func TestDisconnectTriggersFreshEstablishment(t *testing.T) {
	dialer := &fakeDialer{}
	pool := NewPool(dialer.dial, time.Second)

	stale, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	pool.Disconnected(stale)
	if pool.State() != StateAbsent {
		t.Fatalf("state after disconnect = %s, want absent", pool.State())
	}

	fresh, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after disconnect: %v", err)
	}
	if fresh == stale {
		t.Fatalf("expected a new handle after disconnect")
	}
	if got := dialer.callCount(); got != 2 {
		t.Fatalf("dial calls = %d, want 2", got)
	}

	// A late notification for the old handle must not drop the new one.
	pool.Disconnected(stale)
	if pool.State() != StateEstablished {
		t.Fatalf("stale disconnect changed state to %s", pool.State())
	}
}

func TestWaiterContextDoesNotCancelAttempt(t *testing.T) {
	dialer := &fakeDialer{release: make(chan struct{})}
	pool := NewPool(dialer.dial, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := pool.Acquire(ctx)
		done <- err
	}()

	waitForState(t, pool, StateConnecting)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled waiter error = %v, want context.Canceled", err)
	}

	close(dialer.release)
	if _, err := pool.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire after cancelled waiter: %v", err)
	}
	if got := dialer.callCount(); got != 1 {
		t.Fatalf("dial calls = %d, want 1", got)
	}
}

type widget struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestHealthCheckDetectsClosedHandle(t *testing.T) {
	config := Config{MaxOpenConns: 1, Models: []interface{}{&widget{}}}
	pool := NewPool(GormDialer(sqlite.Open("file:pool_watch?mode=memory&cache=shared"), config), time.Second)

	conn, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !conn.Migrator().HasTable(&widget{}) {
		t.Fatalf("expected models to be migrated on establishment")
	}

	pool.check(context.Background(), time.Second)
	if pool.State() != StateEstablished {
		t.Fatalf("healthy handle was dropped, state = %s", pool.State())
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.Close()

	pool.check(context.Background(), time.Second)
	if pool.State() != StateAbsent {
		t.Fatalf("state after failed health check = %s, want absent", pool.State())
	}

	fresh, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if fresh == conn {
		t.Fatalf("expected a new handle after reconnect")
	}
	if err := pool.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestCloseReleasesHandle(t *testing.T) {
	dialer := &fakeDialer{}
	pool := NewPool(dialer.dial, time.Second)

	if _, err := pool.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	pool.Close()
	if pool.State() != StateAbsent {
		t.Fatalf("state after Close = %s, want absent", pool.State())
	}
	if _, err := pool.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire after Close: %v", err)
	}
	if dialer.callCount() != 2 {
		t.Fatalf("dial calls = %d, want 2", dialer.callCount())
	}
}

// gatedDialer hands out a distinct handle per call, each released by its own gate.
type gatedDialer struct {
	mu    sync.Mutex
	calls int
	gates []chan struct{}
}

func (g *gatedDialer) dial(ctx context.Context) (*gorm.DB, error) {
	g.mu.Lock()
	gate := g.gates[g.calls]
	g.calls++
	g.mu.Unlock()

	<-gate
	return &gorm.DB{Config: &gorm.Config{}}, nil
}

func (g *gatedDialer) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func waitForCalls(t *testing.T, count func() int, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("dial calls = %d, want %d", count(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAttemptDroppedByCloseDoesNotInstall(t *testing.T) {
	dialer := &gatedDialer{gates: []chan struct{}{make(chan struct{}), make(chan struct{})}}
	pool := NewPool(dialer.dial, time.Second)

	type result struct {
		conn *gorm.DB
		err  error
	}
	first := make(chan result, 1)
	go func() {
		conn, err := pool.Acquire(context.Background())
		first <- result{conn, err}
	}()
	waitForCalls(t, dialer.callCount, 1)

	pool.Close()

	second := make(chan result, 1)
	go func() {
		conn, err := pool.Acquire(context.Background())
		second <- result{conn, err}
	}()
	waitForCalls(t, dialer.callCount, 2)

	// The dropped attempt finishes first; its caller must wait for the new one.
	close(dialer.gates[0])
	select {
	case r := <-first:
		t.Fatalf("caller of the dropped attempt returned early: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
	if pool.State() != StateConnecting {
		t.Fatalf("state = %s, want connecting", pool.State())
	}

	close(dialer.gates[1])
	a, b := <-first, <-second
	if a.err != nil || b.err != nil {
		t.Fatalf("Acquire errors = %v, %v", a.err, b.err)
	}
	if a.conn != b.conn {
		t.Fatalf("callers got different handles %p and %p", a.conn, b.conn)
	}
	current, err := pool.Acquire(context.Background())
	if err != nil || current != b.conn {
		t.Fatalf("pool holds %p (%v), want %p", current, err, b.conn)
	}
	if dialer.callCount() != 2 {
		t.Fatalf("dial calls = %d, want 2", dialer.callCount())
	}
}

func TestStateString(t *testing.T) {
	if StateConnecting.String() != "connecting" || StateEstablished.String() != "established" || StateAbsent.String() != "absent" {
		t.Fatalf("unexpected state names")
	}
}

func TestIsConnectionError(t *testing.T) {
	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"statement error", errors.New("duplicate key value violates unique constraint"), false},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), false},
		{"canceled", context.Canceled, false},
		{"net.OpError", fmt.Errorf("query: %w", opErr), true},
		{"bad conn", driver.ErrBadConn, true},
		{"conn done", sql.ErrConnDone, true},
		{"unexpected eof", fmt.Errorf("failed to receive message: %w", io.ErrUnexpectedEOF), true},
		{"closed network conn", fmt.Errorf("write: %w", net.ErrClosed), true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"connection failure", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "08006"}), true},
		{"closed pgconn", errors.New("conn closed"), true},
	}
	for _, tc := range cases {
		if got := IsConnectionError(tc.err); got != tc.want {
			t.Fatalf("%s: IsConnectionError(%v) = %v, want %v", tc.name, tc.err, got, tc.want)
		}
	}
}
