package indexdb

import (
	"database/sql"
	"encoding/json"
	"time"

	"astra.mc/internal/sim/world"
)

const (
	batchOps     = 2000
	batchMaxWait = 2 * time.Second
)

// batch groups queued writes into one transaction, committed every batchOps
// statements or batchMaxWait, whichever comes first. A failed statement
// rolls the whole open transaction back.
type batch struct {
	db    *sql.DB
	stmts map[string]*sql.Stmt
	errs  func()

	tx     *sql.Tx
	ops    int
	opened time.Time

	// Audit rows are keyed by (tick, seq); seq restarts every tick.
	auditTick uint32
	auditSeq  int
}

func newBatch(db *sql.DB, onErr func()) *batch {
	b := &batch{db: db, stmts: map[string]*sql.Stmt{}, errs: onErr}
	for _, q := range []string{sqlTick, sqlJoin, sqlLeave, sqlAudit} {
		st, err := db.Prepare(q)
		if err != nil {
			onErr()
			continue
		}
		b.stmts[q] = st
	}
	return b
}

func (b *batch) close() {
	b.commit()
	for _, st := range b.stmts {
		_ = st.Close()
	}
}

func (b *batch) open() bool {
	if b.tx != nil {
		return true
	}
	tx, err := b.db.Begin()
	if err != nil {
		b.errs()
		time.Sleep(50 * time.Millisecond)
		return false
	}
	b.tx, b.ops, b.opened = tx, 0, time.Now()
	return true
}

func (b *batch) exec(q string, args ...any) bool {
	st := b.stmts[q]
	if st == nil || b.tx == nil {
		return false
	}
	if _, err := b.tx.Stmt(st).Exec(args...); err != nil {
		b.errs()
		_ = b.tx.Rollback()
		b.tx = nil
		return false
	}
	b.ops++
	return true
}

func (b *batch) commit() {
	if b.tx == nil {
		return
	}
	if err := b.tx.Commit(); err != nil {
		b.errs()
	}
	b.tx = nil
}

func (b *batch) due() bool {
	return b.ops >= batchOps || time.Since(b.opened) >= batchMaxWait
}

func (b *batch) tick(t world.TickLogEntry) {
	raw, _ := json.Marshal(t)
	if !b.exec(sqlTick, int64(t.Tick), int64(t.WorldTime), t.Intents, t.Rejected, t.Stale,
		t.BlockChanges, t.ChunksGenerated, t.Players, t.Mobs, t.StepMS, string(raw)) {
		return
	}
	for _, j := range t.Joins {
		if !b.exec(sqlJoin, int64(t.Tick), j.EntityID, j.Name) {
			return
		}
	}
	for i, name := range t.Leaves {
		if !b.exec(sqlLeave, int64(t.Tick), i, name) {
			return
		}
	}
}

func (b *batch) audit(a world.AuditEntry) {
	if a.Tick != b.auditTick {
		b.auditTick, b.auditSeq = a.Tick, 0
	}
	seq := b.auditSeq
	b.auditSeq++
	b.exec(sqlAudit, int64(a.Tick), seq, a.Actor, a.Cause, a.Pos[0], a.Pos[1], a.Pos[2], a.To)
}
