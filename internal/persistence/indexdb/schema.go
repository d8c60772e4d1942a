package indexdb

import "database/sql"

const schemaVersion = "1"

var pragmas = []string{
	"PRAGMA journal_mode=WAL;",
	"PRAGMA synchronous=NORMAL;",
	"PRAGMA busy_timeout=5000;",
	"PRAGMA temp_store=MEMORY;",
}

// Columns mirror world.TickLogEntry and world.AuditEntry; raw_json keeps the
// full tick record for fields without a column.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS ticks (
		tick INTEGER PRIMARY KEY,
		world_time INTEGER NOT NULL,
		intents INTEGER NOT NULL,
		rejected INTEGER NOT NULL,
		stale INTEGER NOT NULL,
		block_changes INTEGER NOT NULL,
		chunks_generated INTEGER NOT NULL,
		players INTEGER NOT NULL,
		mobs INTEGER NOT NULL,
		step_ms REAL NOT NULL,
		raw_json TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS joins (
		tick INTEGER NOT NULL,
		entity_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		PRIMARY KEY (tick, entity_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_joins_name ON joins(name, tick)`,
	`CREATE TABLE IF NOT EXISTS leaves (
		tick INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		name TEXT NOT NULL,
		PRIMARY KEY (tick, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS audits (
		tick INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		actor INTEGER NOT NULL,
		cause TEXT NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		z INTEGER NOT NULL,
		to_block TEXT NOT NULL,
		PRIMARY KEY (tick, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audits_actor ON audits(actor, tick)`,
	`CREATE INDEX IF NOT EXISTS idx_audits_pos ON audits(x, z, y, tick)`,
}

const (
	sqlMeta  = `INSERT OR REPLACE INTO meta(key, value) VALUES(?, ?)`
	sqlTick  = `INSERT OR REPLACE INTO ticks(tick, world_time, intents, rejected, stale, block_changes, chunks_generated, players, mobs, step_ms, raw_json) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlJoin  = `INSERT OR REPLACE INTO joins(tick, entity_id, name) VALUES(?, ?, ?)`
	sqlLeave = `INSERT OR REPLACE INTO leaves(tick, seq, name) VALUES(?, ?, ?)`
	sqlAudit = `INSERT OR REPLACE INTO audits(tick, seq, actor, cause, x, y, z, to_block) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`
)

func migrate(db *sql.DB) error {
	for _, group := range [][]string{pragmas, ddl} {
		for _, stmt := range group {
			if _, err := db.Exec(stmt); err != nil {
				return err
			}
		}
	}
	_, err := db.Exec(sqlMeta, "schema_version", schemaVersion)
	return err
}
