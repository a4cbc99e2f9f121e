package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/lottohub-kr/lottosync/internal/domain"
	"github.com/lottohub-kr/lottosync/internal/logger"
	"github.com/lottohub-kr/lottosync/internal/store"
	"github.com/lottohub-kr/lottosync/pkg/upstream"
)

// Package syncer reconciles the local store with the upstream draw service,
// one round at a time.

// Scope selects which parts of a round get synchronized.
type Scope string

const (
	ScopeDraw  Scope = "draw"
	ScopeShops Scope = "shops"
	ScopeBoth  Scope = "both"
)

// ParseScope maps a request string onto a Scope, defaulting to both.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopeBoth:
		return ScopeBoth, nil
	case ScopeDraw, ScopeShops:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("unknown sync scope %q", s)
	}
}

// RoundStatus summarizes what a single-round sync accomplished.
type RoundStatus string

const (
	// StatusUpdated means everything the scope requested was freshly written.
	StatusUpdated RoundStatus = "updated"
	// StatusPartial means some requested data was written but not all of it.
	StatusPartial RoundStatus = "partial"
	// StatusSkipped means the store already held everything requested.
	StatusSkipped RoundStatus = "skipped"
	// StatusFailed means nothing was written and at least one fetch failed.
	StatusFailed RoundStatus = "failed"
)

// Fetcher is the upstream acquisition surface the orchestrator drives.
type Fetcher interface {
	FetchRound(ctx context.Context, round int) (*domain.Draw, error)
	FetchShops(ctx context.Context, round int) ([]domain.WinningShop, error)
	FindLatest(ctx context.Context) (int, bool)
}

// Notifier receives an event after a round's draw is freshly stored.
type Notifier interface {
	RoundSynced(ctx context.Context, draw domain.Draw)
}

// ProgressFunc observes per-round progress of a batch operation.
type ProgressFunc func(current, total, completed int, status string)

// StopFunc reports whether a cooperative stop was requested. It is consulted
// at every round boundary; an in-flight round always completes.
type StopFunc func() bool

// Hooks carries the optional batch-operation callbacks.
type Hooks struct {
	Progress ProgressFunc
	Stop     StopFunc
}

func (h Hooks) progress(current, total, completed int, status string) {
	if h.Progress != nil {
		h.Progress(current, total, completed, status)
	}
}

func (h Hooks) stopped() bool {
	return h.Stop != nil && h.Stop()
}

// Options configures optional collaborators.
type Options struct {
	Notifier Notifier
	Logger   logger.Logger
}

// Syncer owns the reconciliation logic between store and upstream.
type Syncer struct {
	store    store.Store
	fetcher  Fetcher
	notifier Notifier
	log      logger.Logger
}

func New(st store.Store, fetcher Fetcher, opts Options) *Syncer {
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Syncer{
		store:    st,
		fetcher:  fetcher,
		notifier: opts.Notifier,
		log:      log,
	}
}

// RoundResult reports the outcome of one SyncRound call.
type RoundResult struct {
	Round        int         `json:"round"`
	Status       RoundStatus `json:"status"`
	DrawWritten  bool        `json:"draw_written"`
	ShopsWritten bool        `json:"shops_written"`
	ShopCount    int         `json:"shop_count"`
	Err          error       `json:"-"`
}

// RangeResult aggregates per-status counts over an inclusive round range.
type RangeResult struct {
	Start   int  `json:"start"`
	End     int  `json:"end"`
	Total   int  `json:"total"`
	Updated int  `json:"updated"`
	Partial int  `json:"partial"`
	Skipped int  `json:"skipped"`
	Failed  int  `json:"failed"`
	Stopped bool `json:"stopped"`
}

func (r *RangeResult) record(res RoundResult) {
	switch res.Status {
	case StatusUpdated:
		r.Updated++
	case StatusPartial:
		r.Partial++
	case StatusSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
}

// MissingResult reports a reconciliation pass over store gaps.
type MissingResult struct {
	// ScanBound is the highest round the gap scan considered.
	ScanBound     int   `json:"scan_bound"`
	TotalMissing  int   `json:"total_missing"`
	MissingRounds []int `json:"missing_rounds,omitempty"`
	Updated       int   `json:"updated"`
	Partial       int   `json:"partial"`
	Skipped       int   `json:"skipped"`
	Failed        int   `json:"failed"`
	Stopped       bool  `json:"stopped"`
}

// LatestResult reports a catch-up pass against the newest published round.
type LatestResult struct {
	Latest   int          `json:"latest"`
	MaxLocal int          `json:"max_local"`
	UpToDate bool         `json:"up_to_date"`
	Range    *RangeResult `json:"range,omitempty"`
}

// SyncRound brings a single round up to date. Work already satisfied by the
// store is skipped, so repeated calls are cheap and write nothing new.
func (s *Syncer) SyncRound(ctx context.Context, round int, scope Scope) RoundResult {
	res := RoundResult{Round: round, Status: StatusSkipped}
	if round < 1 {
		res.Status = StatusFailed
		res.Err = fmt.Errorf("round must be positive, got %d", round)
		return res
	}

	wantDraw := scope == ScopeDraw || scope == ScopeBoth
	wantShops := scope == ScopeShops || scope == ScopeBoth

	written := 0
	preexisting := 0
	failed := 0

	if wantDraw {
		outcome, err := s.syncDraw(ctx, round)
		switch {
		case err != nil:
			failed++
			res.Err = err
		case outcome == unitWritten:
			written++
			res.DrawWritten = true
		case outcome == unitPreexisting:
			preexisting++
		}
	}

	if wantShops {
		count, outcome, err := s.syncShops(ctx, round)
		switch {
		case err != nil:
			failed++
			if res.Err == nil {
				res.Err = err
			}
		case outcome == unitWritten:
			written++
			res.ShopsWritten = true
			res.ShopCount = count
		case outcome == unitPreexisting:
			preexisting++
		}
	}

	// updated: everything requested was freshly written. partial: something
	// was written but the other half already existed or failed. skipped:
	// nothing was written and nothing failed.
	switch {
	case written == 0 && failed == 0:
		res.Status = StatusSkipped
	case written > 0 && failed == 0 && preexisting == 0:
		res.Status = StatusUpdated
	case written > 0:
		res.Status = StatusPartial
	default:
		res.Status = StatusFailed
	}

	s.log.DebugObj("round synced", "result", res)
	return res
}

// unitOutcome classifies what happened to one half (draw or shops) of a round.
type unitOutcome int

const (
	// unitNothing: nothing stored and nothing available upstream.
	unitNothing unitOutcome = iota
	unitWritten
	unitPreexisting
)

// syncDraw writes the round's draw unless it is already stored or not yet
// published.
func (s *Syncer) syncDraw(ctx context.Context, round int) (unitOutcome, error) {
	existing, err := s.store.GetDraw(ctx, round)
	if err != nil {
		return unitNothing, fmt.Errorf("read draw %d: %w", round, err)
	}
	if existing != nil {
		return unitPreexisting, nil
	}

	draw, err := s.fetcher.FetchRound(ctx, round)
	if err != nil {
		if errors.Is(err, upstream.ErrRoundNotFound) {
			// Not published yet; nothing to record, nothing failed.
			return unitNothing, nil
		}
		return unitNothing, fmt.Errorf("fetch round %d: %w", round, err)
	}

	if err := s.store.UpsertDraw(ctx, draw); err != nil {
		return unitNothing, fmt.Errorf("store draw %d: %w", round, err)
	}
	if s.notifier != nil {
		s.notifier.RoundSynced(ctx, *draw)
	}
	return unitWritten, nil
}

// syncShops writes the round's shop listings unless already present. An empty
// scrape result is not a failure; some rounds simply have no retailer data.
func (s *Syncer) syncShops(ctx context.Context, round int) (int, unitOutcome, error) {
	count, err := s.store.CountShops(ctx, round)
	if err != nil {
		return 0, unitNothing, fmt.Errorf("count shops %d: %w", round, err)
	}
	if count > 0 {
		return 0, unitPreexisting, nil
	}

	shops, err := s.fetcher.FetchShops(ctx, round)
	if err != nil {
		return 0, unitNothing, fmt.Errorf("fetch shops %d: %w", round, err)
	}
	if len(shops) == 0 {
		return 0, unitNothing, nil
	}

	if err := s.store.ReplaceShops(ctx, round, shops); err != nil {
		return 0, unitNothing, fmt.Errorf("store shops %d: %w", round, err)
	}
	return len(shops), unitWritten, nil
}

// SyncRange runs SyncRound sequentially over the inclusive range. A failed
// round is counted and the range continues; a stop request ends the range at
// the next round boundary.
func (s *Syncer) SyncRange(ctx context.Context, start, end int, scope Scope, hooks Hooks) (RangeResult, error) {
	if start < 1 || end < start {
		return RangeResult{}, fmt.Errorf("invalid range %d..%d", start, end)
	}

	result := RangeResult{Start: start, End: end, Total: end - start + 1}
	completed := 0
	for round := start; round <= end; round++ {
		if err := ctx.Err(); err != nil {
			result.Stopped = true
			break
		}
		if hooks.stopped() {
			result.Stopped = true
			break
		}

		res := s.SyncRound(ctx, round, scope)
		result.record(res)
		if res.Err != nil {
			s.log.WarnObj("round sync failed", "round", map[string]any{"round": round, "error": res.Err.Error()})
		}
		completed++
		hooks.progress(round, result.Total, completed, string(res.Status))
	}

	s.log.InfoObj("range sync finished", "result", result)
	return result, nil
}

// SyncMissing fills interior gaps: {1..max stored round} minus the stored
// rounds, ascending. Catching up past the max stored round is SyncToLatest's
// job. On an empty store the scan bound falls back to the newest published
// round, which makes SyncMissing a full backfill.
func (s *Syncer) SyncMissing(ctx context.Context, scope Scope, hooks Hooks) (MissingResult, error) {
	stored, err := s.store.AllRounds(ctx)
	if err != nil {
		return MissingResult{}, fmt.Errorf("list stored rounds: %w", err)
	}
	have := make(map[int]bool, len(stored))
	bound := 0
	for _, r := range stored {
		have[r] = true
		if r > bound {
			bound = r
		}
	}
	if bound == 0 {
		latest, ok := s.fetcher.FindLatest(ctx)
		if !ok {
			return MissingResult{}, nil
		}
		bound = latest
	}

	result := MissingResult{ScanBound: bound}
	for r := 1; r <= bound; r++ {
		if !have[r] {
			result.MissingRounds = append(result.MissingRounds, r)
		}
	}
	result.TotalMissing = len(result.MissingRounds)

	completed := 0
	for _, round := range result.MissingRounds {
		if err := ctx.Err(); err != nil {
			result.Stopped = true
			break
		}
		if hooks.stopped() {
			result.Stopped = true
			break
		}

		res := s.SyncRound(ctx, round, scope)
		switch res.Status {
		case StatusUpdated:
			result.Updated++
		case StatusPartial:
			result.Partial++
		case StatusSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
		if res.Err != nil {
			s.log.WarnObj("missing round sync failed", "round", map[string]any{"round": round, "error": res.Err.Error()})
		}
		completed++
		hooks.progress(round, result.TotalMissing, completed, string(res.Status))
	}

	s.log.InfoObj("missing sync finished", "result", result)
	return result, nil
}

// SyncToLatest catches the store up from its max round to the newest
// published round.
func (s *Syncer) SyncToLatest(ctx context.Context, scope Scope, hooks Hooks) (LatestResult, error) {
	latest, ok := s.fetcher.FindLatest(ctx)
	if !ok {
		return LatestResult{UpToDate: true}, nil
	}

	maxLocal, err := s.store.MaxRound(ctx)
	if err != nil {
		return LatestResult{}, fmt.Errorf("max stored round: %w", err)
	}

	result := LatestResult{Latest: latest, MaxLocal: maxLocal}
	if maxLocal >= latest {
		result.UpToDate = true
		s.log.InfoObj("store already current", "result", result)
		return result, nil
	}

	rangeResult, err := s.SyncRange(ctx, maxLocal+1, latest, scope, hooks)
	if err != nil {
		return result, err
	}
	result.Range = &rangeResult
	return result, nil
}
