package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"golemcraft.ai/internal/persistence/snapshot"
	"golemcraft.ai/internal/sim/catalogs"
	"golemcraft.ai/internal/sim/tuning"
	"golemcraft.ai/internal/sim/world"
)

const schemaVersion = "1"

// SQLiteIndex is a queryable secondary index over the tick log, the seal audit
// log and the snapshot history. Writes go through a single goroutine and are
// batched into transactions; the JSONL logs stay the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqSnapshot
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	audit    world.AuditEntry
	snapshot snapshotRow
}

type snapshotRow struct {
	Tick       uint64
	Path       string
	Seals      int
	Golems     int
	Entities   int
	Containers int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Bursts of task churn should not stall the sim.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			created INTEGER NOT NULL,
			removed INTEGER NOT NULL,
			started INTEGER NOT NULL,
			completed INTEGER NOT NULL,
			abandoned INTEGER NOT NULL,
			live INTEGER NOT NULL,
			requests INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS task_events (
			tick INTEGER NOT NULL,
			task_id INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			face TEXT NOT NULL,
			target TEXT NOT NULL,
			reason TEXT NOT NULL,
			worker TEXT NOT NULL,
			PRIMARY KEY (tick, task_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_task_events_worker ON task_events(worker, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_task_events_origin ON task_events(x, z, y, tick);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			face TEXT NOT NULL,
			type TEXT NOT NULL,
			reason TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_tick ON audits(actor, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_pos_tick ON audits(x, z, y, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seals INTEGER NOT NULL,
			golems INTEGER NOT NULL,
			entities INTEGER NOT NULL,
			containers INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains pending writes, commits and closes the database.
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

// Dropped counts writes discarded because the writer fell behind.
func (s *SQLiteIndex) Dropped() uint64 { return s.dropped.Load() }

func (s *SQLiteIndex) enqueue(r req) {
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.enqueue(req{kind: reqTick, tick: entry})
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.enqueue(req{kind: reqAudit, audit: entry})
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: snapshotRow{
		Tick:       snap.Header.Tick,
		Path:       path,
		Seals:      len(snap.Seals),
		Golems:     len(snap.Golems),
		Entities:   len(snap.Entities),
		Containers: len(snap.Containers),
	}})
}

// UpsertCatalogs records the catalogs and tuning the server runs with.
func (s *SQLiteIndex) UpsertCatalogs(worldID string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, _ := json.Marshal(cats.Blocks.Defs); len(b) > 0 {
		rows = append(rows, kv{name: "blocks_defs", digest: cats.Blocks.DefsDigest, json: b})
	}
	if b, _ := json.Marshal(cats.Blocks.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "blocks_palette", digest: cats.Blocks.PaletteDigest, json: b})
	}
	if b, _ := json.Marshal(cats.Items.Defs); len(b) > 0 {
		rows = append(rows, kv{name: "items_defs", digest: cats.Items.DefsDigest, json: b})
	}
	if b, _ := json.Marshal(cats.Items.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "items_palette", digest: cats.Items.PaletteDigest, json: b})
	}
	if b, _ := json.Marshal(cats.Creatures.Defs); len(b) > 0 {
		rows = append(rows, kv{name: "creatures", digest: cats.Creatures.Digest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for k, v := range map[string]string{"schema_version": schemaVersion, "world_id": worldID} {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`, k, v); err != nil {
			return err
		}
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const (
	commitEvery = 2000
	flushEvery  = time.Second
)

// batch is the open write transaction of the loop goroutine.
type batch struct {
	db  *sql.DB
	tx  *sql.Tx
	ops int
}

func (b *batch) exec(st *sql.Stmt, args ...any) bool {
	if st == nil {
		return false
	}
	if b.tx == nil {
		tx, err := b.db.Begin()
		if err != nil {
			return false
		}
		b.tx = tx
	}
	if _, err := b.tx.Stmt(st).Exec(args...); err != nil {
		_ = b.tx.Rollback()
		b.tx, b.ops = nil, 0
		return false
	}
	b.ops++
	return true
}

func (b *batch) commit() {
	if b.tx != nil {
		_ = b.tx.Commit()
	}
	b.tx, b.ops = nil, 0
}

func (s *SQLiteIndex) loop() {
	prep := func(q string) *sql.Stmt {
		st, err := s.db.Prepare(q)
		if err != nil {
			return nil
		}
		return st
	}
	insTick := prep(`INSERT OR REPLACE INTO ticks(tick,created,removed,started,completed,abandoned,live,requests,raw_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	insEvent := prep(`INSERT OR REPLACE INTO task_events(tick,task_id,x,y,z,face,target,reason,worker) VALUES(?,?,?,?,?,?,?,?,?)`)
	insAudit := prep(`INSERT OR REPLACE INTO audits(tick,seq,actor,action,x,y,z,face,type,reason,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	insSnap := prep(`INSERT OR REPLACE INTO snapshots(tick,path,seals,golems,entities,containers) VALUES(?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insTick, insEvent, insAudit, insSnap} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	b := &batch{db: s.db}
	defer b.commit()

	flush := time.NewTicker(flushEvery)
	defer flush.Stop()

	// Audits within one tick are numbered in arrival order.
	var auditTick uint64
	var auditSeq int

	for {
		var r req
		var ok bool
		select {
		case r, ok = <-s.ch:
			if !ok {
				return
			}
		case <-flush.C:
			b.commit()
			continue
		}

		switch r.kind {
		case reqTick:
			e := r.tick
			raw, _ := json.Marshal(e)
			d := e.Dispatch
			if !b.exec(insTick, int64(e.Tick), int64(e.Created), len(e.Removed), d.Started, d.Completed, d.Abandoned, e.Live, e.Requests, string(raw)) {
				continue
			}
			for _, ev := range e.Removed {
				o := ev.Origin
				if !b.exec(insEvent, int64(e.Tick), int64(ev.TaskID), o[0], o[1], o[2], ev.Face, ev.Target, ev.Reason, ev.Worker) {
					break
				}
			}

		case reqAudit:
			a := r.audit
			if a.Tick != auditTick {
				auditTick, auditSeq = a.Tick, 0
			}
			raw, _ := json.Marshal(a)
			b.exec(insAudit, int64(a.Tick), auditSeq, a.Actor, a.Action, a.Pos[0], a.Pos[1], a.Pos[2], a.Face, a.Type, a.Reason, string(raw))
			auditSeq++

		case reqSnapshot:
			sn := r.snapshot
			b.exec(insSnap, int64(sn.Tick), sn.Path, sn.Seals, sn.Golems, sn.Entities, sn.Containers)
		}
		if b.ops >= commitEvery {
			b.commit()
		}
	}
}
