// Package store persists finished matches and serves the aggregate queries
// behind the stats endpoints. It is a thin sqlite layer: one writer (the
// session coordinator) and many concurrent readers, made safe by WAL mode.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS matches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    player1_id TEXT NOT NULL,
    player1_name TEXT NOT NULL,
    player2_id TEXT NOT NULL,
    player2_name TEXT NOT NULL,
    winner_id TEXT,
    start_time INTEGER NOT NULL,
    end_time INTEGER NOT NULL,
    turn_count INTEGER NOT NULL,
    deck1_id TEXT NOT NULL,
    deck2_id TEXT NOT NULL,
    created_at INTEGER DEFAULT (strftime('%s','now'))
);
CREATE TABLE IF NOT EXISTS players (
    player_id TEXT PRIMARY KEY,
    player_name TEXT NOT NULL,
    total_games INTEGER DEFAULT 0,
    wins INTEGER DEFAULT 0,
    losses INTEGER DEFAULT 0,
    draws INTEGER DEFAULT 0,
    total_turns INTEGER DEFAULT 0,
    last_seen INTEGER DEFAULT (strftime('%s','now'))
);
CREATE INDEX IF NOT EXISTS idx_matches_player1 ON matches(player1_id);
CREATE INDEX IF NOT EXISTS idx_matches_player2 ON matches(player2_id);
CREATE INDEX IF NOT EXISTS idx_matches_winner  ON matches(winner_id);
CREATE INDEX IF NOT EXISTS idx_matches_time    ON matches(end_time);
`

// Store is the durable match-history layer.
type Store struct {
	db *sql.DB
}

// MatchRecord is one finished match as reported by the session coordinator.
type MatchRecord struct {
	Player1ID   string
	Player1Name string
	Deck1ID     string
	Player2ID   string
	Player2Name string
	Deck2ID     string
	WinnerID    *string // nil on draw
	StartedAt   time.Time
	EndedAt     time.Time
	TurnCount   int
}

// Stats is the aggregate summary behind /api/stats.
type Stats struct {
	TotalMatches     int64   `json:"totalMatches"`
	TotalPlayers     int64   `json:"totalPlayers"`
	AvgMatchDuration float64 `json:"avgMatchDuration"`
}

// LeaderboardEntry is one row of the top-10 leaderboard.
type LeaderboardEntry struct {
	PlayerID   string  `json:"player_id"`
	PlayerName string  `json:"player_name"`
	TotalGames int64   `json:"total_games"`
	Wins       int64   `json:"wins"`
	Losses     int64   `json:"losses"`
	Draws      int64   `json:"draws"`
	WinRate    float64 `json:"win_rate"`
}

// Match is one persisted match row.
type Match struct {
	ID          int64   `json:"id"`
	Player1ID   string  `json:"player1_id"`
	Player1Name string  `json:"player1_name"`
	Player2ID   string  `json:"player2_id"`
	Player2Name string  `json:"player2_name"`
	WinnerID    *string `json:"winner_id"`
	StartTime   int64   `json:"start_time"`
	EndTime     int64   `json:"end_time"`
	TurnCount   int64   `json:"turn_count"`
	Deck1ID     string  `json:"deck1_id"`
	Deck2ID     string  `json:"deck2_id"`
}

// PlayerStats is the per-player totals behind /api/player/:id.
type PlayerStats struct {
	PlayerID   string  `json:"player_id"`
	PlayerName string  `json:"player_name"`
	TotalGames int64   `json:"total_games"`
	Wins       int64   `json:"wins"`
	Losses     int64   `json:"losses"`
	Draws      int64   `json:"draws"`
	WinRate    float64 `json:"win_rate"`
}

// Open opens (creating if necessary) the sqlite database at path, enables
// WAL mode and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer at a time keeps the upsert transaction simple; readers are
	// unaffected thanks to WAL.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordMatch appends one match row and upserts both players' totals in a
// single transaction. Returns the new match id.
func (s *Store) RecordMatch(ctx context.Context, rec MatchRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO matches
		     (player1_id, player1_name, player2_id, player2_name, winner_id,
		      start_time, end_time, turn_count, deck1_id, deck2_id)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		rec.Player1ID, rec.Player1Name, rec.Player2ID, rec.Player2Name, rec.WinnerID,
		rec.StartedAt.UnixMilli(), rec.EndedAt.UnixMilli(), rec.TurnCount,
		rec.Deck1ID, rec.Deck2ID,
	)
	if err != nil {
		return 0, err
	}
	matchID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, p := range []struct {
		id, name string
		won      bool
	}{
		{rec.Player1ID, rec.Player1Name, rec.WinnerID != nil && *rec.WinnerID == rec.Player1ID},
		{rec.Player2ID, rec.Player2Name, rec.WinnerID != nil && *rec.WinnerID == rec.Player2ID},
	} {
		var w, l, d int
		switch {
		case p.won:
			w = 1
		case rec.WinnerID != nil:
			l = 1
		default:
			d = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO players
			     (player_id, player_name, total_games, wins, losses, draws, total_turns)
			 VALUES (?,?,1,?,?,?,?)
			 ON CONFLICT(player_id) DO UPDATE SET
			     player_name = excluded.player_name,
			     total_games = total_games + 1,
			     wins        = wins + ?,
			     losses      = losses + ?,
			     draws       = draws + ?,
			     total_turns = total_turns + ?,
			     last_seen   = strftime('%s','now')`,
			p.id, p.name, w, l, d, rec.TurnCount, w, l, d, rec.TurnCount,
		); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return matchID, nil
}

// Stats returns the aggregate match counters.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT player1_id) + COUNT(DISTINCT player2_id),
		       AVG(end_time - start_time)
		FROM matches`).Scan(&st.TotalMatches, &st.TotalPlayers, &avg)
	if err != nil {
		return Stats{}, err
	}
	st.AvgMatchDuration = avg.Float64
	return st, nil
}

// Leaderboard returns the top 10 players with at least 3 games, ranked by
// wins and then win rate.
func (s *Store) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT player_id, player_name, total_games, wins, losses, draws,
		       ROUND(CAST(wins AS REAL) / NULLIF(total_games, 0) * 100, 1) AS win_rate
		FROM players
		WHERE total_games >= 3
		ORDER BY wins DESC, win_rate DESC
		LIMIT 10`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]LeaderboardEntry, 0, 10)
	for rows.Next() {
		var e LeaderboardEntry
		var rate sql.NullFloat64
		if err := rows.Scan(&e.PlayerID, &e.PlayerName, &e.TotalGames, &e.Wins, &e.Losses, &e.Draws, &rate); err != nil {
			return nil, err
		}
		e.WinRate = rate.Float64
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecentMatches returns the 20 most recent matches by end time.
func (s *Store) RecentMatches(ctx context.Context) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, player1_id, player1_name, player2_id, player2_name, winner_id,
		       start_time, end_time, turn_count, deck1_id, deck2_id
		FROM matches ORDER BY end_time DESC LIMIT 20`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]Match, 0, 20)
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Player1ID, &m.Player1Name, &m.Player2ID, &m.Player2Name,
			&m.WinnerID, &m.StartTime, &m.EndTime, &m.TurnCount, &m.Deck1ID, &m.Deck2ID); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Player returns the totals for one player, or nil when unknown.
func (s *Store) Player(ctx context.Context, playerID string) (*PlayerStats, error) {
	var p PlayerStats
	err := s.db.QueryRowContext(ctx, `
		SELECT player_id, player_name, total_games, wins, losses, draws
		FROM players WHERE player_id = ?`, playerID).
		Scan(&p.PlayerID, &p.PlayerName, &p.TotalGames, &p.Wins, &p.Losses, &p.Draws)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	games := p.TotalGames
	if games < 1 {
		games = 1
	}
	p.WinRate = roundTenth(float64(p.Wins) / float64(games) * 100)
	return &p, nil
}

func roundTenth(f float64) float64 {
	return float64(int64(f*10+0.5)) / 10
}
