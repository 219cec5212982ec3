package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // sqlite driver

	"github.com/varrock/clogboard/internal/domain/score"
	"github.com/varrock/clogboard/pkg/logger"
	"github.com/varrock/clogboard/pkg/metrics"
)

// DB is the sqlite-backed store. One shared handle serves all flows; a
// failed liveness probe triggers a transparent reopen.
type DB struct {
	mu   sync.Mutex
	path string
	db   *sql.DB
	log  logger.Logger
}

// Open opens (or creates) the database at path and bootstraps the schema.
func Open(ctx context.Context, path string, opts ...Option) (*DB, error) {
	s := &DB{path: path}

	for _, opt := range opts {
		opt(s)
	}

	if s.log == nil {
		s.log = logger.Get().Named("store")
	}

	db, err := open(ctx, path)
	if err != nil {
		return nil, err
	}
	s.db = db

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// sqlite tolerates one writer; a single connection sidesteps SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// Close closes the underlying handle.
func (s *DB) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// handle returns a live database handle, reopening after a failed probe.
func (s *DB) handle(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.db.PingContext(ctx); err == nil {
			return s.db, nil
		}
		s.log.Warn(ctx, "database connection lost, reconnecting")
		metrics.RecordStoreReconnect()
		_ = s.db.Close()
		s.db = nil
	}

	db, err := open(ctx, s.path)
	if err != nil {
		metrics.RecordStoreError()
		return nil, err
	}
	s.db = db
	return db, nil
}

func (s *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS linked_accounts (
			scope_id TEXT,
			owner_id TEXT,
			participant_key TEXT,
			category TEXT,
			decoration TEXT,
			PRIMARY KEY (scope_id, owner_id, participant_key)
		)`,
		`CREATE TABLE IF NOT EXISTS leaderboard (
			scope_id TEXT,
			participant_key TEXT,
			score INTEGER,
			PRIMARY KEY (scope_id, participant_key)
		)`,
		`CREATE TABLE IF NOT EXISTS state (
			scope_id TEXT,
			key TEXT,
			value TEXT,
			PRIMARY KEY (scope_id, key)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	// Older databases predate the external rank column.
	hasRank, err := s.hasColumn(ctx, "leaderboard", "external_rank")
	if err != nil {
		return err
	}
	if !hasRank {
		if _, err := s.db.ExecContext(ctx,
			`ALTER TABLE leaderboard ADD COLUMN external_rank INTEGER DEFAULT -1`); err != nil {
			return fmt.Errorf("add external_rank column: %w", err)
		}
		s.log.Info(ctx, "added external_rank column to leaderboard table")
	}
	return nil
}

func (s *DB) hasColumn(ctx context.Context, table, column string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Players returns the tracked participant keys for a scope in the order
// the accounts were linked.
func (s *DB) Players(ctx context.Context, scope string) ([]string, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT participant_key FROM linked_accounts WHERE scope_id = ?
		 GROUP BY participant_key ORDER BY MIN(rowid)`, scope)
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// Scopes returns every scope with at least one linked account.
func (s *DB) Scopes(ctx context.Context) ([]string, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT DISTINCT scope_id FROM linked_accounts`)
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("list scopes: %w", err)
	}
	defer rows.Close()

	var scopes []string
	for rows.Next() {
		var sc string
		if err := rows.Scan(&sc); err != nil {
			return nil, err
		}
		scopes = append(scopes, sc)
	}
	return scopes, rows.Err()
}

// Snapshot loads the stored leaderboard rows for a scope keyed by player.
func (s *DB) Snapshot(ctx context.Context, scope string) (map[string]Record, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT participant_key, score, external_rank FROM leaderboard WHERE scope_id = ?`, scope)
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	defer rows.Close()

	snapshot := make(map[string]Record)
	for rows.Next() {
		var (
			player string
			raw    int
			rank   int
		)
		if err := rows.Scan(&player, &raw, &rank); err != nil {
			return nil, err
		}
		snapshot[player] = Record{Player: player, Total: score.FromRaw(raw), SourceRank: rank}
	}
	return snapshot, rows.Err()
}

// SaveSnapshot upserts the pass results for a scope in one transaction.
// A commit failure rolls the whole pass back.
func (s *DB) SaveSnapshot(ctx context.Context, scope string, records []Record) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range records {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO leaderboard (scope_id, participant_key, score, external_rank)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(scope_id, participant_key)
			 DO UPDATE SET score = excluded.score, external_rank = excluded.external_rank`,
			scope, r.Player, r.Total.Raw(), r.SourceRank); err != nil {
			metrics.RecordStoreError()
			return fmt.Errorf("upsert %s: %w", r.Player, err)
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// RecordFor returns the stored leaderboard row for one player.
func (s *DB) RecordFor(ctx context.Context, scope, player string) (Record, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return Record{}, err
	}

	var (
		raw  int
		rank int
	)
	err = db.QueryRowContext(ctx,
		`SELECT score, external_rank FROM leaderboard WHERE scope_id = ? AND participant_key = ?`,
		scope, player).Scan(&raw, &rank)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		metrics.RecordStoreError()
		return Record{}, fmt.Errorf("load record: %w", err)
	}
	return Record{Player: player, Total: score.FromRaw(raw), SourceRank: rank}, nil
}

// SetScore upserts one player's stored total, keeping the external rank.
// Used by the moderator override path.
func (s *DB) SetScore(ctx context.Context, scope, player string, total score.Total) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO leaderboard (scope_id, participant_key, score, external_rank)
		 VALUES (?, ?, ?, -1)
		 ON CONFLICT(scope_id, participant_key) DO UPDATE SET score = excluded.score`,
		scope, player, total.Raw())
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("set score: %w", err)
	}
	return nil
}

// DeleteRecord removes a player's leaderboard row.
func (s *DB) DeleteRecord(ctx context.Context, scope, player string) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx,
		`DELETE FROM leaderboard WHERE scope_id = ? AND participant_key = ?`, scope, player); err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Link stores a linked account, replacing attributes on re-link.
func (s *DB) Link(ctx context.Context, a Account) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO linked_accounts (scope_id, owner_id, participant_key, category, decoration)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(scope_id, owner_id, participant_key)
		 DO UPDATE SET category = excluded.category, decoration = excluded.decoration`,
		a.Scope, a.OwnerID, a.Player, a.Category, a.Decoration)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("link account: %w", err)
	}
	return nil
}

// Unlink removes one of an owner's linked accounts.
func (s *DB) Unlink(ctx context.Context, scope, ownerID, player string) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx,
		`DELETE FROM linked_accounts WHERE scope_id = ? AND owner_id = ? AND participant_key = ?`,
		scope, ownerID, player)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("unlink account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotLinked
	}
	return nil
}

// UpdateAccount changes an account's mutable attributes. Empty arguments
// leave the current value in place.
func (s *DB) UpdateAccount(ctx context.Context, scope, ownerID, player, category, decoration string) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx,
		`UPDATE linked_accounts
		 SET category = CASE WHEN ? = '' THEN category ELSE ? END,
		     decoration = CASE WHEN ? = '' THEN decoration ELSE ? END
		 WHERE scope_id = ? AND owner_id = ? AND participant_key = ?`,
		category, category, decoration, decoration, scope, ownerID, player)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotLinked
	}
	return nil
}

// AccountsByOwner lists an owner's linked accounts within a scope.
func (s *DB) AccountsByOwner(ctx context.Context, scope, ownerID string) ([]Account, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT owner_id, participant_key, category, decoration
		 FROM linked_accounts WHERE scope_id = ? AND owner_id = ? ORDER BY rowid`,
		scope, ownerID)
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	return scanAccounts(scope, rows)
}

// Accounts returns every linked account for a scope keyed by player.
// When one player is linked by several owners, the earliest link wins.
func (s *DB) Accounts(ctx context.Context, scope string) (map[string]Account, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT owner_id, participant_key, category, decoration
		 FROM linked_accounts WHERE scope_id = ? ORDER BY rowid`, scope)
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts, err := scanAccounts(scope, rows)
	if err != nil {
		return nil, err
	}
	byPlayer := make(map[string]Account, len(accounts))
	for _, a := range accounts {
		if _, ok := byPlayer[a.Player]; !ok {
			byPlayer[a.Player] = a
		}
	}
	return byPlayer, nil
}

// Owner reports which owner linked a player within a scope.
func (s *DB) Owner(ctx context.Context, scope, player string) (string, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return "", err
	}

	var owner string
	err = db.QueryRowContext(ctx,
		`SELECT owner_id FROM linked_accounts
		 WHERE scope_id = ? AND participant_key = ? ORDER BY rowid LIMIT 1`,
		scope, player).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotLinked
	}
	if err != nil {
		metrics.RecordStoreError()
		return "", fmt.Errorf("find owner: %w", err)
	}
	return owner, nil
}

func scanAccounts(scope string, rows *sql.Rows) ([]Account, error) {
	var accounts []Account
	for rows.Next() {
		a := Account{Scope: scope}
		if err := rows.Scan(&a.OwnerID, &a.Player, &a.Category, &a.Decoration); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// DisplayState loads the publish destination and artifact id for a scope.
func (s *DB) DisplayState(ctx context.Context, scope string) (DisplayState, error) {
	channel, err := s.stateValue(ctx, scope, stateKeyChannel)
	if err != nil {
		return DisplayState{}, err
	}
	message, err := s.stateValue(ctx, scope, stateKeyMessage)
	if err != nil {
		return DisplayState{}, err
	}
	return DisplayState{ChannelID: channel, MessageID: message}, nil
}

// SetChannel stores the publish destination for a scope.
func (s *DB) SetChannel(ctx context.Context, scope, channelID string) error {
	return s.setStateValue(ctx, scope, stateKeyChannel, channelID)
}

// SetMessageID stores the published artifact id for a scope.
func (s *DB) SetMessageID(ctx context.Context, scope, messageID string) error {
	return s.setStateValue(ctx, scope, stateKeyMessage, messageID)
}

// ClearMessageID forgets the published artifact for a scope, forcing the
// next publish to create a fresh message.
func (s *DB) ClearMessageID(ctx context.Context, scope string) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx,
		`DELETE FROM state WHERE scope_id = ? AND key = ?`, scope, stateKeyMessage); err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("clear artifact id: %w", err)
	}
	return nil
}

func (s *DB) stateValue(ctx context.Context, scope, key string) (string, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return "", err
	}

	var value string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM state WHERE scope_id = ? AND key = ?`, scope, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		metrics.RecordStoreError()
		return "", fmt.Errorf("load state %s: %w", key, err)
	}
	return value, nil
}

func (s *DB) setStateValue(ctx context.Context, scope, key, value string) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO state (scope_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(scope_id, key) DO UPDATE SET value = excluded.value`,
		scope, key, value)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("save state %s: %w", key, err)
	}
	return nil
}
