package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ConnectionPool shares SQLite handles across partition engines. Handles are
// keyed by file path and reference counted; handles left idle past the
// timeout are closed by a background sweep.
type ConnectionPool struct {
	mu          sync.Mutex
	connections map[string]*connectionEntry
	maxTotal    int
	total       int
	idleTimeout time.Duration
	closed      bool
}

type connectionEntry struct {
	db       *sql.DB
	refCount int
	lastUsed time.Time
}

// PoolConfig holds configuration for the connection pool.
type PoolConfig struct {
	// MaxTotalConnections is the maximum total handles (default: 64).
	MaxTotalConnections int

	// IdleTimeout is how long an unreferenced handle may stay open
	// (default: 5 minutes).
	IdleTimeout time.Duration
}

// DefaultPoolConfig returns the default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxTotalConnections: 64,
		IdleTimeout:         5 * time.Minute,
	}
}

// NewConnectionPool creates a pool with the given configuration.
func NewConnectionPool(config PoolConfig) *ConnectionPool {
	if config.MaxTotalConnections <= 0 {
		config.MaxTotalConnections = 64
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 5 * time.Minute
	}
	p := &ConnectionPool{
		connections: make(map[string]*connectionEntry),
		maxTotal:    config.MaxTotalConnections,
		idleTimeout: config.IdleTimeout,
	}
	go p.cleanupLoop()
	return p
}

// Get retrieves or creates a read-write handle for the given partition file.
// The caller must call Release when done with it.
func (p *ConnectionPool) Get(ctx context.Context, path string) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("pool: connection pool is closed")
	}

	if entry, ok := p.connections[path]; ok {
		entry.refCount++
		entry.lastUsed = time.Now()
		return entry.db, nil
	}

	if p.total >= p.maxTotal && !p.evictIdle() {
		return nil, fmt.Errorf("pool: maximum connections reached (%d)", p.maxTotal)
	}

	db, err := openPartitionFile(ctx, path)
	if err != nil {
		return nil, err
	}

	p.connections[path] = &connectionEntry{db: db, refCount: 1, lastUsed: time.Now()}
	p.total++
	return db, nil
}

// Release decrements the reference count for a handle.
func (p *ConnectionPool) Release(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if entry, ok := p.connections[path]; ok {
		entry.refCount--
		entry.lastUsed = time.Now()
	}
}

func openPartitionFile(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("pool: failed to open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pool: failed to ping %s: %w", path, err)
	}
	return db, nil
}

// evictIdle closes the least recently used unreferenced handle. Must be
// called with the lock held.
func (p *ConnectionPool) evictIdle() bool {
	var oldestPath string
	var oldestTime time.Time
	for path, entry := range p.connections {
		if entry.refCount == 0 && (oldestPath == "" || entry.lastUsed.Before(oldestTime)) {
			oldestPath = path
			oldestTime = entry.lastUsed
		}
	}
	if oldestPath == "" {
		return false
	}
	p.connections[oldestPath].db.Close()
	delete(p.connections, oldestPath)
	p.total--
	return true
}

func (p *ConnectionPool) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return
		}
		now := time.Now()
		for path, entry := range p.connections {
			if entry.refCount == 0 && now.Sub(entry.lastUsed) > p.idleTimeout {
				entry.db.Close()
				delete(p.connections, path)
				p.total--
			}
		}
		p.mu.Unlock()
	}
}

// Close closes every handle in the pool.
func (p *ConnectionPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	var lastErr error
	for path, entry := range p.connections {
		if err := entry.db.Close(); err != nil {
			lastErr = err
		}
		delete(p.connections, path)
	}
	p.total = 0
	return lastErr
}
