package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/lottohub-kr/lottosync/internal/domain"
)

// Fanout dispatches events to all configured publishers.
type Fanout struct {
	publishers []Publisher
}

// NewFanout builds a dispatcher that fans out events across publishers.
func NewFanout(pubs []Publisher) *Fanout {
	cp := make([]Publisher, 0, len(pubs))
	for _, p := range pubs {
		if p == nil {
			continue
		}
		cp = append(cp, p)
	}
	return &Fanout{publishers: cp}
}

// Publish forwards the event to every registered publisher.
// It returns the number of publishers that successfully handled the event.
func (f *Fanout) Publish(ctx context.Context, evt Event) (int, error) {
	if f == nil || len(f.publishers) == 0 {
		return 0, nil
	}

	var errs []error
	successful := 0
	for _, p := range f.publishers {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s publisher[%s]: %w", p.Type(), p.ID(), err))
		} else {
			successful++
		}
	}
	return successful, errors.Join(errs...)
}

// Size returns the number of active publishers.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.publishers)
}

// SyncNotifier adapts the fanout to the orchestrator's notification hook.
// Delivery failures are logged, never propagated: a broken sink must not
// fail a sync run.
type SyncNotifier struct {
	fanout *Fanout
	source string
	log    Logger
}

func NewSyncNotifier(fanout *Fanout, source string, log Logger) *SyncNotifier {
	return &SyncNotifier{fanout: fanout, source: source, log: ensureLogger(log)}
}

// RoundSynced publishes a round-synced event to every sink.
func (n *SyncNotifier) RoundSynced(ctx context.Context, draw domain.Draw) {
	if n == nil || n.fanout.Size() == 0 {
		return
	}

	evt := NewEvent(draw, n.source)
	delivered, err := n.fanout.Publish(ctx, evt)
	if err != nil {
		n.log.WarnObj("round event delivery incomplete", "notify", map[string]any{
			"round":     draw.Round,
			"delivered": delivered,
			"error":     err.Error(),
		})
		return
	}
	n.log.DebugObj("round event delivered", "notify", map[string]any{
		"round":     draw.Round,
		"delivered": delivered,
	})
}
