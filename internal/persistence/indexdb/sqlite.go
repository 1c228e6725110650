package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteIndex is the queryable history of searches and evaluated seeds.
// World rows are written by a single goroutine; the hit log stays the
// source of truth when the queue overflows.
type SQLiteIndex struct {
	db *sql.DB

	insertWorld *sql.Stmt
	insertItem  *sql.Stmt

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropWorldTotal  atomic.Uint64
	writeErrorTotal atomic.Uint64
}

type reqKind int

const (
	reqWorld reqKind = iota + 1
	reqFlush
)

type req struct {
	kind  reqKind
	world WorldRow
	done  chan struct{}
}

type SearchRow struct {
	SearchID   string    `json:"search_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	WorldType  string    `json:"world_type"`
	Query      string    `json:"query"`
	ConfigJSON string    `json:"-"`
	Searched   int64     `json:"searched"`
	Matched    int64     `json:"matched"`
	Skipped    int64     `json:"skipped"`
}

// World statuses.
const (
	StatusMatched  = "matched"
	StatusRejected = "rejected"
	StatusSkipped  = "skipped"
)

type WorldRow struct {
	SearchID  string    `json:"search_id"`
	Seed      int64     `json:"seed"`
	WorldType string    `json:"world_type"`
	Status    string    `json:"status"`
	Regions   int       `json:"regions"`
	GenErrors int       `json:"gen_errors,omitempty"`
	EvalMicro int64     `json:"eval_us"`
	Goals     []string  `json:"goals,omitempty"`
	Error     string    `json:"error,omitempty"`
	Items     []ItemRow `json:"items,omitempty"`
}

type ItemRow struct {
	X          int64    `json:"x"`
	Z          int64    `json:"z"`
	Biome      string   `json:"biome,omitempty"`
	Structures []string `json:"structures,omitempty"`
	Goal       string   `json:"goal,omitempty"`
}

// Stats reports the writer queue. WriteErrorTotal counts world rows that
// failed to insert and were rolled back.
type Stats struct {
	QueueDepth      int
	QueueCapacity   int
	DropWorldTotal  uint64
	WriteErrorTotal uint64
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
		ch: make(chan req, 65536),
	}
	if err := s.prepare(); err != nil {
		s.closeStmts()
		_ = db.Close()
		return nil, err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func (s *SQLiteIndex) prepare() error {
	var err error
	s.insertWorld, err = s.db.Prepare(`INSERT OR REPLACE INTO worlds(search_id,seed,world_type,status,regions,gen_errors,eval_us,goals_json,error) VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare world insert: %w", err)
	}
	s.insertItem, err = s.db.Prepare(`INSERT OR REPLACE INTO items(search_id,seed,x,z,biome,structures_json,goal) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare item insert: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) closeStmts() {
	if s.insertWorld != nil {
		_ = s.insertWorld.Close()
	}
	if s.insertItem != nil {
		_ = s.insertItem.Close()
	}
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
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
		`CREATE TABLE IF NOT EXISTS searches (
			search_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			world_type TEXT NOT NULL,
			query TEXT NOT NULL,
			config_json TEXT NOT NULL,
			searched INTEGER NOT NULL DEFAULT 0,
			matched INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS worlds (
			search_id TEXT NOT NULL,
			seed INTEGER NOT NULL,
			world_type TEXT NOT NULL,
			status TEXT NOT NULL,
			regions INTEGER NOT NULL,
			gen_errors INTEGER NOT NULL,
			eval_us INTEGER NOT NULL,
			goals_json TEXT NOT NULL,
			error TEXT,
			PRIMARY KEY (search_id, seed)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_worlds_status ON worlds(search_id, status);`,
		`CREATE TABLE IF NOT EXISTS items (
			search_id TEXT NOT NULL,
			seed INTEGER NOT NULL,
			x INTEGER NOT NULL,
			z INTEGER NOT NULL,
			biome TEXT,
			structures_json TEXT NOT NULL,
			goal TEXT,
			PRIMARY KEY (search_id, seed, x, z)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		s.closeStmts()
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
		DropWorldTotal:  s.dropWorldTotal.Load(),
		WriteErrorTotal: s.writeErrorTotal.Load(),
	}
}

// StartSearch inserts the search row synchronously so that world rows
// always have a parent.
func (s *SQLiteIndex) StartSearch(ctx context.Context, r SearchRow) error {
	if s == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO searches(search_id,started_at,world_type,query,config_json) VALUES(?,?,?,?,?)`,
		r.SearchID, r.StartedAt.UTC().Format(time.RFC3339Nano), r.WorldType, r.Query, r.ConfigJSON)
	return err
}

// FinishSearch flushes queued world rows and stores the final counters.
func (s *SQLiteIndex) FinishSearch(ctx context.Context, r SearchRow) error {
	if s == nil {
		return nil
	}
	s.Flush()
	_, err := s.db.ExecContext(ctx,
		`UPDATE searches SET finished_at=?, searched=?, matched=?, skipped=? WHERE search_id=?`,
		r.FinishedAt.UTC().Format(time.RFC3339Nano), r.Searched, r.Matched, r.Skipped, r.SearchID)
	return err
}

// RecordWorld queues a world row. It never blocks.
func (s *SQLiteIndex) RecordWorld(r WorldRow) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqWorld, world: r}:
	default:
		s.dropWorldTotal.Add(1)
	}
}

// Flush waits until every queued row is committed.
func (s *SQLiteIndex) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- req{kind: reqFlush, done: done}
	<-done
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			s.writeErrorTotal.Add(1)
			continue
		}
		w := r.world
		goals, _ := json.Marshal(nonNil(w.Goals))
		if _, err := tx.Stmt(s.insertWorld).Exec(
			w.SearchID, w.Seed, w.WorldType, w.Status,
			w.Regions, w.GenErrors, w.EvalMicro, string(goals), w.Error,
		); err != nil {
			rollback()
			s.writeErrorTotal.Add(1)
			continue
		}
		opCount++
		for _, it := range w.Items {
			st, _ := json.Marshal(nonNil(it.Structures))
			if _, err := tx.Stmt(s.insertItem).Exec(w.SearchID, w.Seed, it.X, it.Z, it.Biome, string(st), it.Goal); err != nil {
				rollback()
				s.writeErrorTotal.Add(1)
				break
			}
			opCount++
		}
		// An idle queue commits at once so readers sharing the single
		// connection are not held behind an open transaction.
		if tx != nil && (len(s.ch) == 0 || opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s.String)
	return t
}

// ListSearches returns the most recent searches first.
func (s *SQLiteIndex) ListSearches(ctx context.Context, limit int) ([]SearchRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT search_id,started_at,finished_at,world_type,query,config_json,searched,matched,skipped
		 FROM searches ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchRow
	for rows.Next() {
		var (
			r        SearchRow
			started  sql.NullString
			finished sql.NullString
		)
		if err := rows.Scan(&r.SearchID, &started, &finished, &r.WorldType, &r.Query, &r.ConfigJSON, &r.Searched, &r.Matched, &r.Skipped); err != nil {
			return nil, err
		}
		r.StartedAt, r.FinishedAt = parseTime(started), parseTime(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListWorlds returns the worlds of a search with the given status (all
// statuses when empty), by seed. Items are loaded for matched worlds.
func (s *SQLiteIndex) ListWorlds(ctx context.Context, searchID, status string) ([]WorldRow, error) {
	q := `SELECT search_id,seed,world_type,status,regions,gen_errors,eval_us,goals_json,error FROM worlds WHERE search_id=?`
	args := []any{searchID}
	if status != "" {
		q += ` AND status=?`
		args = append(args, status)
	}
	q += ` ORDER BY seed`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var out []WorldRow
	for rows.Next() {
		var (
			w     WorldRow
			goals string
			msg   sql.NullString
		)
		if err := rows.Scan(&w.SearchID, &w.Seed, &w.WorldType, &w.Status, &w.Regions, &w.GenErrors, &w.EvalMicro, &goals, &msg); err != nil {
			rows.Close()
			return nil, err
		}
		_ = json.Unmarshal([]byte(goals), &w.Goals)
		w.Error = msg.String
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		if out[i].Status != StatusMatched {
			continue
		}
		items, err := s.items(ctx, out[i].SearchID, out[i].Seed)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

// ListHits is ListWorlds restricted to matched worlds.
func (s *SQLiteIndex) ListHits(ctx context.Context, searchID string) ([]WorldRow, error) {
	return s.ListWorlds(ctx, searchID, StatusMatched)
}

func (s *SQLiteIndex) items(ctx context.Context, searchID string, seed int64) ([]ItemRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT x,z,biome,structures_json,goal FROM items WHERE search_id=? AND seed=? ORDER BY z,x`, searchID, seed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ItemRow
	for rows.Next() {
		var (
			it          ItemRow
			biome, goal sql.NullString
			st          string
		)
		if err := rows.Scan(&it.X, &it.Z, &biome, &st, &goal); err != nil {
			return nil, err
		}
		it.Biome, it.Goal = biome.String, goal.String
		_ = json.Unmarshal([]byte(st), &it.Structures)
		out = append(out, it)
	}
	return out, rows.Err()
}
