package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/lottohub-kr/lottosync/internal/domain"
)

// Package store provides the relational boundary the sync pipeline writes to.

// Store persists draws and winning shops. Implementations must make
// ReplaceShops atomic per round (clear-then-insert) so a failed run never
// leaves a mix of old and new rows.
type Store interface {
	Close() error

	// GetDraw returns the stored draw for a round, or nil when absent.
	GetDraw(ctx context.Context, round int) (*domain.Draw, error)
	// UpsertDraw writes the draw, overwriting every field of an existing row.
	UpsertDraw(ctx context.Context, draw *domain.Draw) error

	// CountShops returns how many winning-shop rows exist for a round.
	CountShops(ctx context.Context, round int) (int, error)
	// ReplaceShops swaps the round's entire shop set in one transaction.
	ReplaceShops(ctx context.Context, round int, shops []domain.WinningShop) error
	// ShopsByRound returns the stored shops ordered by rank then sequence.
	ShopsByRound(ctx context.Context, round int) ([]domain.WinningShop, error)

	// MaxRound returns the highest stored round, zero when empty.
	MaxRound(ctx context.Context) (int, error)
	// AllRounds returns every stored round number in ascending order.
	AllRounds(ctx context.Context) ([]int, error)
}

// NewStore creates the configured storage backend.
func NewStore(ctx context.Context, typ, dsn string) (Store, error) {
	switch strings.TrimSpace(strings.ToLower(typ)) {
	case "", "sqlite":
		if strings.TrimSpace(dsn) == "" {
			return nil, fmt.Errorf("sqlite store requires a path")
		}
		return openSQLite(ctx, dsn)
	case "postgres":
		if strings.TrimSpace(dsn) == "" {
			return nil, fmt.Errorf("postgres store requires a dsn")
		}
		return openPostgres(ctx, dsn)
	case "memory", "none":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store type %q", typ)
	}
}
