// Package indexdb keeps a queryable sqlite read-model of the tick and audit
// streams. The zstd JSONL logs remain the source of truth; this index may
// drop rows under load.
package indexdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"astra.mc/internal/sim/world"
)

const defaultQueue = 65536

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick  atomic.Uint64
	dropAudit atomic.Uint64
	writeErrs atomic.Uint64
}

type reqKind uint8

const (
	reqTick reqKind = iota + 1
	reqAudit
)

type req struct {
	kind  reqKind
	tick  world.TickLogEntry
	audit world.AuditEntry
}

type Stats struct {
	QueueDepth     int    `json:"queue_depth"`
	QueueCapacity  int    `json:"queue_capacity"`
	DropTickTotal  uint64 `json:"drop_tick_total"`
	DropAuditTotal uint64 `json:"drop_audit_total"`
	WriteErrTotal  uint64 `json:"write_err_total"`
}

// OpenSQLite creates the database file (and its directory) if needed and
// starts the background writer.
func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, errors.New("indexdb: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; sqlite serializes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("indexdb: %s: %w", filepath.Base(path), err)
	}

	s := &SQLiteIndex{db: db, ch: make(chan req, defaultQueue)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(newBatch(db, func() { s.writeErrs.Add(1) }))
	}()
	return s, nil
}

// RecordWorld stores the world parameters the rows were produced under.
// It writes synchronously; call it once at startup.
func (s *SQLiteIndex) RecordWorld(cfg world.WorldConfig) error {
	if s == nil {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	meta := [][2]string{
		{"world_seed", fmt.Sprint(cfg.WorldSeed)},
		{"rng_seed", fmt.Sprint(cfg.RngSeed)},
		{"worldgen", cfg.Mode.String()},
		{"height", fmt.Sprint(cfg.Height)},
		{"view_distance", fmt.Sprint(cfg.ViewDistance)},
		{"tick_rate_hz", fmt.Sprint(cfg.TickRateHz)},
		{"day_length", fmt.Sprint(cfg.DayLength)},
		{"started_at", time.Now().UTC().Format(time.RFC3339Nano)},
	}
	for _, kv := range meta {
		if _, err := tx.Exec(sqlMeta, kv[0], kv[1]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close drains the queue, commits and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropTickTotal:  s.dropTick.Load(),
		DropAuditTotal: s.dropAudit.Load(),
		WriteErrTotal:  s.writeErrs.Load(),
	}
}

// WriteTick implements world.TickLogger. The entry is copied; the world may
// reuse its slices after the call.
func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	entry.Joins = append([]world.RecordedJoin(nil), entry.Joins...)
	entry.Leaves = append([]string(nil), entry.Leaves...)
	s.enqueue(req{kind: reqTick, tick: entry}, &s.dropTick)
	return nil
}

// WriteAudit implements world.AuditLogger.
func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.enqueue(req{kind: reqAudit, audit: entry}, &s.dropAudit)
	return nil
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) run(b *batch) {
	defer b.close()
	for r := range s.ch {
		if !b.open() {
			continue
		}
		switch r.kind {
		case reqTick:
			b.tick(r.tick)
		case reqAudit:
			b.audit(r.audit)
		}
		if b.due() {
			b.commit()
		}
	}
}
