// Package journal indexes executed commands and game-over outcomes in a
// SQLite database. Writes are queued to a single writer goroutine so the
// tick path never blocks on disk.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nstehr/vimy/vimy-instance/model"
	"github.com/nstehr/vimy/vimy-instance/queue"
)

type reqKind int

const (
	reqCommands reqKind = iota + 1
	reqGameOver
	reqSync
)

type req struct {
	kind     reqKind
	instance string
	frame    uint32
	commands []queue.Command
	gameOver model.GameOver
	done     chan struct{}
}

// Journal is safe for concurrent use.
type Journal struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Int64
}

// Open creates or opens the journal at path. Use ":memory:" for a
// throwaway journal.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("empty journal path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
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

	j := &Journal{db: db, ch: make(chan req, 4096)}
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.loop()
	}()
	return j, nil
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
			return fmt.Errorf("journal pragma %q: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS commands (
			instance_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			house INTEGER NOT NULL,
			object_kind TEXT NOT NULL,
			object_id INTEGER NOT NULL,
			cell INTEGER NOT NULL,
			scheduled_frame INTEGER NOT NULL,
			executed_frame INTEGER NOT NULL,
			PRIMARY KEY (instance_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_house ON commands(instance_id, house, executed_frame);`,
		`CREATE TABLE IF NOT EXISTS games (
			instance_id TEXT PRIMARY KEY,
			frame INTEGER NOT NULL,
			multiplayer INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			instance_id TEXT NOT NULL,
			player INTEGER NOT NULL,
			name TEXT NOT NULL,
			house INTEGER NOT NULL,
			team INTEGER NOT NULL,
			human INTEGER NOT NULL,
			was_human INTEGER NOT NULL,
			won INTEGER NOT NULL,
			defeated INTEGER NOT NULL,
			PRIMARY KEY (instance_id, player)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("journal schema: %w", err)
		}
	}
	return nil
}

// Close drains queued writes and closes the database.
func (j *Journal) Close() error {
	var err error
	j.once.Do(func() {
		j.closed.Store(true)
		close(j.ch)
		j.wg.Wait()
		err = j.db.Close()
	})
	return err
}

// Dropped counts writes discarded because the writer fell behind.
func (j *Journal) Dropped() int64 { return j.dropped.Load() }

// Executed queues the commands run at frame.
func (j *Journal) Executed(instance uuid.UUID, frame uint32, cmds []queue.Command) {
	if len(cmds) == 0 {
		return
	}
	j.enqueue(req{kind: reqCommands, instance: instance.String(), frame: frame, commands: cmds})
}

// GameOver queues the terminal outcome of a match.
func (j *Journal) GameOver(instance uuid.UUID, ev model.GameOver) {
	j.enqueue(req{kind: reqGameOver, instance: instance.String(), gameOver: ev})
}

// Sync blocks until every write queued before it has been applied.
func (j *Journal) Sync(ctx context.Context) error {
	if j.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case j.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Journal) enqueue(r req) {
	if j.closed.Load() {
		return
	}
	select {
	case j.ch <- r:
	default:
		j.dropped.Add(1)
	}
}

func (j *Journal) loop() {
	for r := range j.ch {
		var err error
		switch r.kind {
		case reqCommands:
			err = j.writeCommands(r.instance, r.frame, r.commands)
		case reqGameOver:
			err = j.writeGameOver(r.instance, r.gameOver)
		case reqSync:
			close(r.done)
		}
		if err != nil {
			slog.Error("journal write failed", "kind", r.kind, "instance", r.instance, "error", err)
		}
	}
}

func (j *Journal) writeCommands(instance string, frame uint32, cmds []queue.Command) error {
	tx, err := j.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO commands(instance_id,seq,kind,house,object_kind,object_id,cell,scheduled_frame,executed_frame) VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	for _, c := range cmds {
		if _, err := stmt.Exec(instance, int64(c.Seq), string(c.Kind), int(c.House), c.Object.Kind.String(), c.Object.ID, int(c.Cell), c.Frame, frame); err != nil {
			return fmt.Errorf("insert command %d: %w", c.Seq, err)
		}
	}
	return tx.Commit()
}

func (j *Journal) writeGameOver(instance string, ev model.GameOver) error {
	tx, err := j.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO games(instance_id,frame,multiplayer,recorded_at) VALUES(?,?,?,?)`,
		instance, ev.Frame, ev.Multiplayer, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO outcomes(instance_id,player,name,house,team,human,was_human,won,defeated) VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	for _, o := range ev.Outcomes {
		if _, err := stmt.Exec(instance, int64(o.Player), o.Name, int(o.House), o.Team, o.Human, o.WasHuman, o.Won, o.Defeated); err != nil {
			return fmt.Errorf("insert outcome %d: %w", o.Player, err)
		}
	}
	return tx.Commit()
}

// CommandRow is one journaled command.
type CommandRow struct {
	Seq            uint64
	Kind           queue.CommandKind
	House          model.HouseID
	ObjectKind     model.Kind
	ObjectID       int
	Cell           model.Cell
	ScheduledFrame uint32
	ExecutedFrame  uint32
}

// Commands lists the commands executed in an instance in sequence order.
func (j *Journal) Commands(ctx context.Context, instance uuid.UUID) ([]CommandRow, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT seq,kind,house,object_kind,object_id,cell,scheduled_frame,executed_frame FROM commands WHERE instance_id = ? ORDER BY seq`, instance.String())
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	var out []CommandRow
	for rows.Next() {
		var (
			r       CommandRow
			seq     int64
			kind    string
			house   int
			objKind string
			cell    int
		)
		if err := rows.Scan(&seq, &kind, &house, &objKind, &r.ObjectID, &cell, &r.ScheduledFrame, &r.ExecutedFrame); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		r.Seq = uint64(seq)
		r.Kind = queue.CommandKind(kind)
		r.House = model.HouseID(house)
		r.Cell = model.Cell(cell)
		if r.ObjectKind, err = model.ParseKind(objKind); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Outcomes lists the recorded outcome of an instance by player id.
func (j *Journal) Outcomes(ctx context.Context, instance uuid.UUID) ([]model.Outcome, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT player,name,house,team,human,was_human,won,defeated FROM outcomes WHERE instance_id = ? ORDER BY player`, instance.String())
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []model.Outcome
	for rows.Next() {
		var (
			o      model.Outcome
			player int64
			house  int
		)
		if err := rows.Scan(&player, &o.Name, &house, &o.Team, &o.Human, &o.WasHuman, &o.Won, &o.Defeated); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Player = model.PlayerID(player)
		o.House = model.HouseID(house)
		out = append(out, o)
	}
	return out, rows.Err()
}
