// Command ticklog summarizes the tick and audit logs a server wrote under
// its data directory, and checks that the two agree on block changes.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	persistlog "astra.mc/internal/persistence/log"
	"astra.mc/internal/sim/world"
)

func main() {
	var (
		dataDir  = flag.String("data", "./data", "server data directory")
		fromTick = flag.Uint("from_tick", 0, "first tick to include")
		toTick   = flag.Uint("to_tick", 0, "last tick to include (0 means all)")
	)
	flag.Parse()

	r := tickRange{from: uint32(*fromTick), to: uint32(*toTick)}
	sum, err := summarize(*dataDir, r)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ticklog:", err)
		os.Exit(1)
	}
	sum.print(os.Stdout)
	if len(sum.Mismatches) > 0 {
		os.Exit(1)
	}
}

type tickRange struct{ from, to uint32 }

func (r tickRange) has(t uint32) bool {
	return t >= r.from && (r.to == 0 || t <= r.to)
}

type summary struct {
	Ticks        int
	FirstTick    uint32
	LastTick     uint32
	Joins        int
	Leaves       int
	Intents      int
	Rejected     int
	BlockChanges int
	MaxStepMS    float64
	MaxPlayers   int

	AuditEntries int
	ByCause      map[string]int
	// Edited counts distinct positions touched by audited changes.
	Edited int

	// Mismatches lists ticks whose block_changes differs from the number
	// of audit entries recorded for that tick.
	Mismatches []uint32
}

func summarize(dataDir string, r tickRange) (*summary, error) {
	s := &summary{ByCause: map[string]int{}}
	perTick := map[uint32]int{}

	err := eachLine(filepath.Join(dataDir, "ticks"), "ticks", func(line []byte) error {
		var e world.TickLogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		if !r.has(e.Tick) {
			return nil
		}
		if s.Ticks == 0 {
			s.FirstTick = e.Tick
		}
		s.Ticks++
		s.LastTick = e.Tick
		s.Joins += len(e.Joins)
		s.Leaves += len(e.Leaves)
		s.Intents += e.Intents
		s.Rejected += e.Rejected
		s.BlockChanges += e.BlockChanges
		s.MaxStepMS = max(s.MaxStepMS, e.StepMS)
		s.MaxPlayers = max(s.MaxPlayers, e.Players)
		perTick[e.Tick] += e.BlockChanges
		return nil
	})
	if err != nil {
		return nil, err
	}

	edited := map[[3]int]struct{}{}
	err = eachLine(filepath.Join(dataDir, "audit"), "audit", func(line []byte) error {
		var e world.AuditEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		if !r.has(e.Tick) {
			return nil
		}
		s.AuditEntries++
		s.ByCause[e.Cause]++
		edited[e.Pos] = struct{}{}
		perTick[e.Tick]--
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Edited = len(edited)

	for tick, diff := range perTick {
		if diff != 0 {
			s.Mismatches = append(s.Mismatches, tick)
		}
	}
	sort.Slice(s.Mismatches, func(i, j int) bool { return s.Mismatches[i] < s.Mismatches[j] })
	return s, nil
}

func eachLine(dir, prefix string, fn func([]byte) error) error {
	files, err := persistlog.Files(dir, prefix)
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := persistlog.ReadLines(path, fn); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

func (s *summary) print(w io.Writer) {
	if s.Ticks == 0 {
		fmt.Fprintln(w, "no ticks")
	} else {
		fmt.Fprintf(w, "ticks=%d range=[%d,%d] joins=%d leaves=%d intents=%d rejected=%d block_changes=%d max_players=%d max_step_ms=%.3f\n",
			s.Ticks, s.FirstTick, s.LastTick, s.Joins, s.Leaves, s.Intents, s.Rejected, s.BlockChanges, s.MaxPlayers, s.MaxStepMS)
	}
	causes := make([]string, 0, len(s.ByCause))
	for c := range s.ByCause {
		causes = append(causes, c)
	}
	sort.Strings(causes)
	fmt.Fprintf(w, "audit=%d edited_positions=%d", s.AuditEntries, s.Edited)
	for _, c := range causes {
		fmt.Fprintf(w, " %s=%d", c, s.ByCause[c])
	}
	fmt.Fprintln(w)
	if len(s.Mismatches) > 0 {
		fmt.Fprintf(w, "MISMATCH block_changes vs audit at ticks %v\n", s.Mismatches)
	} else {
		fmt.Fprintln(w, "ok")
	}
}
