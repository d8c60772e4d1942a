package log

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"astra.mc/internal/sim/world"
)

func TestTickLogger_RotatesHourlyAndReadsBack(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	now := time.Date(2024, 5, 1, 10, 59, 0, 0, time.UTC)
	l.w.Now = func() time.Time { return now }

	for i := uint32(1); i <= 3; i++ {
		if err := l.WriteTick(world.TickLogEntry{Tick: i, Players: 1}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	now = now.Add(2 * time.Minute)
	if err := l.WriteTick(world.TickLogEntry{Tick: 4}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(filepath.Join(dir, "ticks"), "ticks")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files=%v want 2", files)
	}
	if filepath.Base(files[0]) != "ticks-2024-05-01-10.jsonl.zst" {
		t.Fatalf("first file=%s", files[0])
	}

	var ticks []uint32
	for _, f := range files {
		err := ReadLines(f, func(line []byte) error {
			var e world.TickLogEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			ticks = append(ticks, e.Tick)
			return nil
		})
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
	}
	if len(ticks) != 4 || ticks[0] != 1 || ticks[3] != 4 {
		t.Fatalf("ticks=%v", ticks)
	}
}

type countingAudit struct{ n int }

func (c *countingAudit) WriteAudit(world.AuditEntry) error { c.n++; return nil }

func TestMultiAudit_FansOut(t *testing.T) {
	a, b := &countingAudit{}, &countingAudit{}
	m := MultiAudit{a, b}
	_ = m.WriteAudit(world.AuditEntry{})
	_ = m.WriteAudit(world.AuditEntry{})
	if a.n != 2 || b.n != 2 {
		t.Fatalf("a=%d b=%d", a.n, b.n)
	}
}

type failingTick struct{ n int }

func (f *failingTick) WriteTick(world.TickLogEntry) error { f.n++; return errors.New("disk full") }

func TestMultiTick_ContinuesPastErrors(t *testing.T) {
	bad, good := &failingTick{}, &failingTick{}
	if err := (MultiTick{bad, good}).WriteTick(world.TickLogEntry{Tick: 1}); err == nil {
		t.Fatalf("expected the first error")
	}
	if bad.n != 1 || good.n != 1 {
		t.Fatalf("bad=%d good=%d", bad.n, good.n)
	}
}
