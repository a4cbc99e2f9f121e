package notify

import (
	"strconv"
	"time"

	"github.com/lottohub-kr/lottosync/internal/domain"
)

// Event represents the payload published downstream after a round's draw is
// freshly stored.
type Event struct {
	Round    int       `json:"round"`
	DrawDate time.Time `json:"draw_date"`
	Numbers  []int     `json:"numbers"`
	Bonus    int       `json:"bonus"`
	SyncedAt time.Time `json:"synced_at"`
	Source   string    `json:"source"`
}

// NewEvent constructs an Event for the given draw.
func NewEvent(draw domain.Draw, source string) Event {
	return Event{
		Round:    draw.Round,
		DrawDate: draw.DrawDate,
		Numbers:  draw.Numbers[:],
		Bonus:    draw.Bonus,
		SyncedAt: time.Now().UTC(),
		Source:   source,
	}
}

// RoundAttr renders the round number for message attributes.
func (e Event) RoundAttr() string {
	return strconv.Itoa(e.Round)
}
