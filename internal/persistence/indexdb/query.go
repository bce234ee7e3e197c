package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Reader runs queries against an index written by SQLiteIndex. It may be opened
// while a server is writing; WAL mode keeps readers consistent.
type Reader struct {
	db *sql.DB
}

func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

func (r *Reader) Meta(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

type TaskEventRow struct {
	Tick   uint64 `json:"tick"`
	TaskID uint64 `json:"task_id"`
	Origin [3]int `json:"origin"`
	Face   string `json:"face"`
	Target string `json:"target"`
	Reason string `json:"reason"`
	Worker string `json:"worker,omitempty"`
}

type TaskEventQuery struct {
	Worker string
	Reason string
	Since  uint64
	Limit  int
}

func (r *Reader) TaskEvents(ctx context.Context, q TaskEventQuery) ([]TaskEventRow, error) {
	where, args := []string{"tick >= ?"}, []any{int64(q.Since)}
	if q.Worker != "" {
		where = append(where, "worker = ?")
		args = append(args, q.Worker)
	}
	if q.Reason != "" {
		where = append(where, "reason = ?")
		args = append(args, strings.ToUpper(q.Reason))
	}
	args = append(args, limitOr(q.Limit, 100))
	rows, err := r.db.QueryContext(ctx,
		`SELECT tick, task_id, x, y, z, face, target, reason, worker FROM task_events WHERE `+
			strings.Join(where, " AND ")+` ORDER BY tick, task_id LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TaskEventRow
	for rows.Next() {
		var e TaskEventRow
		if err := rows.Scan(&e.Tick, &e.TaskID, &e.Origin[0], &e.Origin[1], &e.Origin[2], &e.Face, &e.Target, &e.Reason, &e.Worker); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type AuditRow struct {
	Tick   uint64 `json:"tick"`
	Seq    int    `json:"seq"`
	Actor  string `json:"actor"`
	Action string `json:"action"`
	Pos    [3]int `json:"pos"`
	Face   string `json:"face"`
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

type AuditQuery struct {
	Actor  string
	Action string
	Since  uint64
	Limit  int
}

func (r *Reader) Audits(ctx context.Context, q AuditQuery) ([]AuditRow, error) {
	where, args := []string{"tick >= ?"}, []any{int64(q.Since)}
	if q.Actor != "" {
		where = append(where, "actor = ?")
		args = append(args, q.Actor)
	}
	if q.Action != "" {
		where = append(where, "action = ?")
		args = append(args, strings.ToUpper(q.Action))
	}
	args = append(args, limitOr(q.Limit, 100))
	rows, err := r.db.QueryContext(ctx,
		`SELECT tick, seq, actor, action, x, y, z, face, type, COALESCE(reason,'') FROM audits WHERE `+
			strings.Join(where, " AND ")+` ORDER BY tick, seq LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditRow
	for rows.Next() {
		var a AuditRow
		if err := rows.Scan(&a.Tick, &a.Seq, &a.Actor, &a.Action, &a.Pos[0], &a.Pos[1], &a.Pos[2], &a.Face, &a.Type, &a.Reason); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type SnapshotRow struct {
	Tick       uint64 `json:"tick"`
	Path       string `json:"path"`
	Seals      int    `json:"seals"`
	Golems     int    `json:"golems"`
	Entities   int    `json:"entities"`
	Containers int    `json:"containers"`
}

// Snapshots lists recorded snapshots, newest first.
func (r *Reader) Snapshots(ctx context.Context, limit int) ([]SnapshotRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tick, path, seals, golems, entities, containers FROM snapshots ORDER BY tick DESC LIMIT ?`, limitOr(limit, 20))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SnapshotRow
	for rows.Next() {
		var s SnapshotRow
		if err := rows.Scan(&s.Tick, &s.Path, &s.Seals, &s.Golems, &s.Entities, &s.Containers); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Throughput sums the tick table over [from, to].
type Throughput struct {
	Ticks     int   `json:"ticks"`
	Created   int64 `json:"created"`
	Completed int64 `json:"completed"`
	Abandoned int64 `json:"abandoned"`
	Removed   int64 `json:"removed"`
}

func (r *Reader) Throughput(ctx context.Context, from, to uint64) (Throughput, error) {
	var t Throughput
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(created),0), COALESCE(SUM(completed),0), COALESCE(SUM(abandoned),0), COALESCE(SUM(removed),0)
		 FROM ticks WHERE tick BETWEEN ? AND ?`, int64(from), int64(to)).
		Scan(&t.Ticks, &t.Created, &t.Completed, &t.Abandoned, &t.Removed)
	return t, err
}

func limitOr(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
