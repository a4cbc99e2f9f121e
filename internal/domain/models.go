package domain

import (
	"fmt"
	"time"
)

// Domain contains core models shared across the sync pipeline.

const (
	// NumberMin and NumberMax bound every drawn number, bonus included.
	NumberMin = 1
	NumberMax = 45

	// DrawNumbers is the count of main numbers per round.
	DrawNumbers = 6

	// PrizeTiers is the number of prize ranks published per round.
	PrizeTiers = 5
)

// PrizeTier holds the payout and winner count for one prize rank.
type PrizeTier struct {
	Amount  int64 `json:"amount"`
	Winners int64 `json:"winners"`
}

// Draw is one lottery round: date, six main numbers, and the bonus number.
// Round is the unique key and immutable once stored.
type Draw struct {
	Round      int                  `json:"round"`
	DrawDate   time.Time            `json:"draw_date"`
	Numbers    [DrawNumbers]int     `json:"numbers"`
	Bonus      int                  `json:"bonus"`
	TotalSales int64                `json:"total_sales,omitempty"`
	Prizes     [PrizeTiers]PrizeTier `json:"prizes"`
}

// Validate checks the round invariants: positive round number, six distinct
// in-range main numbers, and an in-range bonus.
func (d Draw) Validate() error {
	if d.Round <= 0 {
		return fmt.Errorf("round must be positive, got %d", d.Round)
	}
	seen := map[int]bool{}
	for _, n := range d.Numbers {
		if n < NumberMin || n > NumberMax {
			return fmt.Errorf("round %d: number %d out of range [%d,%d]", d.Round, n, NumberMin, NumberMax)
		}
		if seen[n] {
			return fmt.Errorf("round %d: duplicate number %d", d.Round, n)
		}
		seen[n] = true
	}
	if d.Bonus < NumberMin || d.Bonus > NumberMax {
		return fmt.Errorf("round %d: bonus %d out of range [%d,%d]", d.Round, d.Bonus, NumberMin, NumberMax)
	}
	return nil
}

// Purchase method labels as the upstream renders them.
const (
	MethodAuto     = "자동"
	MethodManual   = "수동"
	MethodSemiAuto = "반자동"
)

// WinningShop is one retailer credited with selling a winning ticket for a
// round. Rank is 1 or 2. Sequence is the display order on the listing page and
// may be 0 when the upstream omits it; Method and Address may be empty for
// rank-2 rows.
type WinningShop struct {
	Round        int    `json:"round"`
	Rank         int    `json:"rank"`
	Sequence     int    `json:"sequence,omitempty"`
	Name         string `json:"name"`
	Method       string `json:"method,omitempty"`
	Address      string `json:"address,omitempty"`
	WinnersCount int    `json:"winners_count,omitempty"`
}

// SyncProgress is a point-in-time snapshot of the active (or idle) sync job.
// The coordinator owns the mutable instance; everyone else sees copies.
type SyncProgress struct {
	JobID           string    `json:"job_id,omitempty"`
	IsRunning       bool      `json:"is_running"`
	ShouldStop      bool      `json:"should_stop"`
	OperationType   string    `json:"operation_type"`
	CurrentRound    int       `json:"current_round"`
	TotalRounds     int       `json:"total_rounds"`
	CompletedRounds int       `json:"completed_rounds"`
	Status          string    `json:"status"`
	StartTime       time.Time `json:"start_time,omitzero"`
}
