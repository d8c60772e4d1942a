package world

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick      uint32 `json:"tick"`
	WorldTime uint16 `json:"world_time"`

	Players    int `json:"players"`
	MaxPlayers int `json:"max_players"`
	Mobs       int `json:"mobs"`
	WorldEdits int `json:"world_edits"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`

	Totals MetricTotals `json:"totals"`
}

type QueueDepths struct {
	Inbox    int `json:"inbox"`
	InboxCap int `json:"inbox_cap"`
	Ledger   int `json:"ledger"`
}

type MetricTotals struct {
	Intents         uint64 `json:"intents"`
	Rejected        uint64 `json:"rejected"`
	Stale           uint64 `json:"stale"`
	BlockChanges    uint64 `json:"block_changes"`
	ChunksGenerated uint64 `json:"chunks_generated"`
	GenFailures     uint64 `json:"gen_failures"`
	MobErrors       uint64 `json:"mob_errors"`
	DeliverFailures uint64 `json:"deliver_failures"`
	RegistryFull    uint64 `json:"registry_full"`
	Timeouts        uint64 `json:"timeouts"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) publishMetrics(stepMS float64) {
	w.metrics.Store(WorldMetrics{
		Tick:       w.tick.Load(),
		WorldTime:  uint16(w.worldTime.Load()),
		Players:    w.players.Len(),
		MaxPlayers: w.players.Cap(),
		Mobs:       w.mobs.Len(),
		WorldEdits: w.blocks.Len(),
		QueueDepths: QueueDepths{
			Inbox:    len(w.inbox),
			InboxCap: cap(w.inbox),
			Ledger:   w.ledger.Len(),
		},
		StepMS: stepMS,
		Totals: w.totals,
	})
}
