package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lottohub-kr/lottosync/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS draws (
	round INTEGER PRIMARY KEY,
	draw_date TEXT,
	n1 INTEGER NOT NULL,
	n2 INTEGER NOT NULL,
	n3 INTEGER NOT NULL,
	n4 INTEGER NOT NULL,
	n5 INTEGER NOT NULL,
	n6 INTEGER NOT NULL,
	bonus INTEGER NOT NULL,
	total_sales INTEGER NOT NULL DEFAULT 0,
	prize_tiers TEXT,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS winning_shops (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	round INTEGER NOT NULL,
	rank INTEGER NOT NULL,
	sequence INTEGER,
	name TEXT NOT NULL,
	method TEXT,
	address TEXT,
	winners_count INTEGER,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_winning_shops_round ON winning_shops(round);
`

// sqliteStore implements Store on a local SQLite file.
type sqliteStore struct {
	db *sql.DB
}

// openSQLite opens (creating if needed) the SQLite-backed store.
func openSQLite(ctx context.Context, path string) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma journal_mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) GetDraw(ctx context.Context, round int) (*domain.Draw, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT round, draw_date, n1, n2, n3, n4, n5, n6, bonus, total_sales, prize_tiers
		FROM draws WHERE round = ?`, round)

	var (
		d         domain.Draw
		drawDate  sql.NullString
		prizeJSON sql.NullString
	)
	err := row.Scan(&d.Round, &drawDate,
		&d.Numbers[0], &d.Numbers[1], &d.Numbers[2], &d.Numbers[3], &d.Numbers[4], &d.Numbers[5],
		&d.Bonus, &d.TotalSales, &prizeJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draw %d: %w", round, err)
	}

	if drawDate.Valid && drawDate.String != "" {
		t, err := time.Parse("2006-01-02", drawDate.String)
		if err != nil {
			return nil, fmt.Errorf("draw %d: stored date %q: %w", round, drawDate.String, err)
		}
		d.DrawDate = t
	}
	if prizeJSON.Valid && prizeJSON.String != "" {
		if err := json.Unmarshal([]byte(prizeJSON.String), &d.Prizes); err != nil {
			return nil, fmt.Errorf("draw %d: prize tiers: %w", round, err)
		}
	}
	return &d, nil
}

func (s *sqliteStore) UpsertDraw(ctx context.Context, draw *domain.Draw) error {
	if err := draw.Validate(); err != nil {
		return err
	}
	prizeJSON, err := json.Marshal(draw.Prizes)
	if err != nil {
		return fmt.Errorf("marshal prize tiers: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO draws (round, draw_date, n1, n2, n3, n4, n5, n6, bonus, total_sales, prize_tiers)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(round) DO UPDATE SET
			draw_date = excluded.draw_date,
			n1 = excluded.n1, n2 = excluded.n2, n3 = excluded.n3,
			n4 = excluded.n4, n5 = excluded.n5, n6 = excluded.n6,
			bonus = excluded.bonus,
			total_sales = excluded.total_sales,
			prize_tiers = excluded.prize_tiers`,
		draw.Round, nullableDate(draw.DrawDate),
		draw.Numbers[0], draw.Numbers[1], draw.Numbers[2], draw.Numbers[3], draw.Numbers[4], draw.Numbers[5],
		draw.Bonus, draw.TotalSales, string(prizeJSON))
	if err != nil {
		return fmt.Errorf("upsert draw %d: %w", draw.Round, err)
	}
	return nil
}

func (s *sqliteStore) CountShops(ctx context.Context, round int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM winning_shops WHERE round = ?`, round).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count shops round %d: %w", round, err)
	}
	return n, nil
}

func (s *sqliteStore) ReplaceShops(ctx context.Context, round int, shops []domain.WinningShop) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM winning_shops WHERE round = ?`, round); err != nil {
		return fmt.Errorf("clear shops round %d: %w", round, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO winning_shops (round, rank, sequence, name, method, address, winners_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, shop := range shops {
		_, err := stmt.ExecContext(ctx, round, shop.Rank,
			nullableInt(shop.Sequence), shop.Name,
			nullableString(shop.Method), nullableString(shop.Address),
			nullableInt(shop.WinnersCount))
		if err != nil {
			return fmt.Errorf("insert shop %q round %d: %w", shop.Name, round, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit shops round %d: %w", round, err)
	}
	return nil
}

func (s *sqliteStore) ShopsByRound(ctx context.Context, round int) ([]domain.WinningShop, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT round, rank, sequence, name, method, address, winners_count
		FROM winning_shops WHERE round = ? ORDER BY rank, sequence, id`, round)
	if err != nil {
		return nil, fmt.Errorf("shops round %d: %w", round, err)
	}
	defer rows.Close()
	return scanShops(rows)
}

func (s *sqliteStore) MaxRound(ctx context.Context) (int, error) {
	var max sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(round) FROM draws`).Scan(&max); err != nil {
		return 0, fmt.Errorf("max round: %w", err)
	}
	return int(max.Int64), nil
}

func (s *sqliteStore) AllRounds(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT round FROM draws ORDER BY round`)
	if err != nil {
		return nil, fmt.Errorf("all rounds: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var r int
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// scanShops reads winning_shops rows shared by the SQL backends.
func scanShops(rows *sql.Rows) ([]domain.WinningShop, error) {
	var out []domain.WinningShop
	for rows.Next() {
		var (
			shop     domain.WinningShop
			sequence sql.NullInt64
			method   sql.NullString
			address  sql.NullString
			winners  sql.NullInt64
		)
		if err := rows.Scan(&shop.Round, &shop.Rank, &sequence, &shop.Name, &method, &address, &winners); err != nil {
			return nil, err
		}
		shop.Sequence = int(sequence.Int64)
		shop.Method = method.String
		shop.Address = address.String
		shop.WinnersCount = int(winners.Int64)
		out = append(out, shop)
	}
	return out, rows.Err()
}

func nullableDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format("2006-01-02")
}

func nullableInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
