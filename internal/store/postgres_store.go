package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lottohub-kr/lottosync/internal/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS draws (
	round BIGINT PRIMARY KEY,
	draw_date DATE,
	n1 INT NOT NULL,
	n2 INT NOT NULL,
	n3 INT NOT NULL,
	n4 INT NOT NULL,
	n5 INT NOT NULL,
	n6 INT NOT NULL,
	bonus INT NOT NULL,
	total_sales BIGINT NOT NULL DEFAULT 0,
	prize_tiers JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS winning_shops (
	id BIGSERIAL PRIMARY KEY,
	round BIGINT NOT NULL,
	rank INT NOT NULL,
	sequence INT,
	name TEXT NOT NULL,
	method TEXT,
	address TEXT,
	winners_count INT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_winning_shops_round ON winning_shops (round);
`

// postgresStore implements Store on a pgx connection pool.
type postgresStore struct {
	pool *pgxpool.Pool
}

func openPostgres(ctx context.Context, dsn string) (Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init postgres schema: %w", err)
	}
	return &postgresStore{pool: pool}, nil
}

func (p *postgresStore) Close() error {
	p.pool.Close()
	return nil
}

func (p *postgresStore) GetDraw(ctx context.Context, round int) (*domain.Draw, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT round, draw_date, n1, n2, n3, n4, n5, n6, bonus, total_sales, prize_tiers
		FROM draws WHERE round = $1`, round)

	var (
		d         domain.Draw
		drawDate  *time.Time
		prizeJSON []byte
	)
	err := row.Scan(&d.Round, &drawDate,
		&d.Numbers[0], &d.Numbers[1], &d.Numbers[2], &d.Numbers[3], &d.Numbers[4], &d.Numbers[5],
		&d.Bonus, &d.TotalSales, &prizeJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draw %d: %w", round, err)
	}

	if drawDate != nil {
		d.DrawDate = *drawDate
	}
	if len(prizeJSON) > 0 {
		if err := json.Unmarshal(prizeJSON, &d.Prizes); err != nil {
			return nil, fmt.Errorf("draw %d: prize tiers: %w", round, err)
		}
	}
	return &d, nil
}

func (p *postgresStore) UpsertDraw(ctx context.Context, draw *domain.Draw) error {
	if err := draw.Validate(); err != nil {
		return err
	}
	prizeJSON, err := json.Marshal(draw.Prizes)
	if err != nil {
		return fmt.Errorf("marshal prize tiers: %w", err)
	}

	var drawDate *time.Time
	if !draw.DrawDate.IsZero() {
		drawDate = &draw.DrawDate
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO draws (round, draw_date, n1, n2, n3, n4, n5, n6, bonus, total_sales, prize_tiers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (round) DO UPDATE SET
			draw_date = EXCLUDED.draw_date,
			n1 = EXCLUDED.n1, n2 = EXCLUDED.n2, n3 = EXCLUDED.n3,
			n4 = EXCLUDED.n4, n5 = EXCLUDED.n5, n6 = EXCLUDED.n6,
			bonus = EXCLUDED.bonus,
			total_sales = EXCLUDED.total_sales,
			prize_tiers = EXCLUDED.prize_tiers`,
		draw.Round, drawDate,
		draw.Numbers[0], draw.Numbers[1], draw.Numbers[2], draw.Numbers[3], draw.Numbers[4], draw.Numbers[5],
		draw.Bonus, draw.TotalSales, prizeJSON)
	if err != nil {
		return fmt.Errorf("upsert draw %d: %w", draw.Round, err)
	}
	return nil
}

func (p *postgresStore) CountShops(ctx context.Context, round int) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM winning_shops WHERE round = $1`, round).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count shops round %d: %w", round, err)
	}
	return n, nil
}

func (p *postgresStore) ReplaceShops(ctx context.Context, round int, shops []domain.WinningShop) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM winning_shops WHERE round = $1`, round); err != nil {
		return fmt.Errorf("clear shops round %d: %w", round, err)
	}

	for _, shop := range shops {
		_, err := tx.Exec(ctx, `
			INSERT INTO winning_shops (round, rank, sequence, name, method, address, winners_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			round, shop.Rank,
			nullableInt(shop.Sequence), shop.Name,
			nullableString(shop.Method), nullableString(shop.Address),
			nullableInt(shop.WinnersCount))
		if err != nil {
			return fmt.Errorf("insert shop %q round %d: %w", shop.Name, round, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit shops round %d: %w", round, err)
	}
	return nil
}

func (p *postgresStore) ShopsByRound(ctx context.Context, round int) ([]domain.WinningShop, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT round, rank, sequence, name, method, address, winners_count
		FROM winning_shops WHERE round = $1 ORDER BY rank, sequence, id`, round)
	if err != nil {
		return nil, fmt.Errorf("shops round %d: %w", round, err)
	}
	defer rows.Close()

	var out []domain.WinningShop
	for rows.Next() {
		var (
			shop     domain.WinningShop
			sequence *int
			method   *string
			address  *string
			winners  *int
		)
		if err := rows.Scan(&shop.Round, &shop.Rank, &sequence, &shop.Name, &method, &address, &winners); err != nil {
			return nil, err
		}
		if sequence != nil {
			shop.Sequence = *sequence
		}
		if method != nil {
			shop.Method = *method
		}
		if address != nil {
			shop.Address = *address
		}
		if winners != nil {
			shop.WinnersCount = *winners
		}
		out = append(out, shop)
	}
	return out, rows.Err()
}

func (p *postgresStore) MaxRound(ctx context.Context) (int, error) {
	var max *int
	if err := p.pool.QueryRow(ctx, `SELECT MAX(round) FROM draws`).Scan(&max); err != nil {
		return 0, fmt.Errorf("max round: %w", err)
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (p *postgresStore) AllRounds(ctx context.Context) ([]int, error) {
	rows, err := p.pool.Query(ctx, `SELECT round FROM draws ORDER BY round`)
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
