package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lottohub-kr/lottosync/internal/domain"
)

// Typed fetch failures. Callers distinguish "round not yet published" from a
// broken transport with errors.Is.
var (
	// ErrRoundNotFound means the upstream answered but has no such round.
	ErrRoundNotFound = errors.New("round not published")
	// ErrBadPayload means the round payload did not validate.
	ErrBadPayload = errors.New("malformed draw payload")
)

// drawPayload mirrors the operator's getLottoNumber JSON response.
type drawPayload struct {
	ReturnValue string `json:"returnValue"`
	DrwNo       int    `json:"drwNo"`
	DrwNoDate   string `json:"drwNoDate"`
	DrwtNo1     int    `json:"drwtNo1"`
	DrwtNo2     int    `json:"drwtNo2"`
	DrwtNo3     int    `json:"drwtNo3"`
	DrwtNo4     int    `json:"drwtNo4"`
	DrwtNo5     int    `json:"drwtNo5"`
	DrwtNo6     int    `json:"drwtNo6"`
	BnusNo      int    `json:"bnusNo"`

	TotSellAmnt    int64 `json:"totSellamnt"`
	FirstWinAmnt   int64 `json:"firstWinamnt"`
	FirstPrzwnerCo int64 `json:"firstPrzwnerCo"`
	ScndWinAmnt    int64 `json:"scndWinamnt"`
	ScndPrzwnerCo  int64 `json:"scndPrzwnerCo"`
	ThrdWinAmnt    int64 `json:"thrdWinamnt"`
	ThrdPrzwnerCo  int64 `json:"thrdPrzwnerCo"`
	FrthWinAmnt    int64 `json:"frthWinamnt"`
	FrthPrzwnerCo  int64 `json:"frthPrzwnerCo"`
	FifthWinAmnt   int64 `json:"fifthWinamnt"`
	FifthPrzwnerCo int64 `json:"fifthPrzwnerCo"`
}

const drawDateLayout = "2006-01-02"

// FetchRound retrieves and validates the draw record for one round.
func (c *Client) FetchRound(ctx context.Context, round int) (*domain.Draw, error) {
	url := c.baseURL + fmt.Sprintf(drawPathFmt, round)

	resp, err := c.http.Get(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch round %d: %w", round, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("round %d endpoint returned status %d body: %s",
			round, resp.StatusCode(), responseSnippet(resp.Body()))
	}

	var p drawPayload
	if err := json.Unmarshal(resp.Body(), &p); err != nil {
		return nil, fmt.Errorf("round %d: decode payload: %w", round, ErrBadPayload)
	}
	if p.ReturnValue != "success" {
		return nil, fmt.Errorf("round %d: %w", round, ErrRoundNotFound)
	}

	drawDate, err := time.Parse(drawDateLayout, p.DrwNoDate)
	if err != nil {
		return nil, fmt.Errorf("round %d: draw date %q: %w", round, p.DrwNoDate, ErrBadPayload)
	}

	draw := &domain.Draw{
		Round:      round,
		DrawDate:   drawDate,
		Numbers:    [domain.DrawNumbers]int{p.DrwtNo1, p.DrwtNo2, p.DrwtNo3, p.DrwtNo4, p.DrwtNo5, p.DrwtNo6},
		Bonus:      p.BnusNo,
		TotalSales: p.TotSellAmnt,
		Prizes: [domain.PrizeTiers]domain.PrizeTier{
			{Amount: p.FirstWinAmnt, Winners: p.FirstPrzwnerCo},
			{Amount: p.ScndWinAmnt, Winners: p.ScndPrzwnerCo},
			{Amount: p.ThrdWinAmnt, Winners: p.ThrdPrzwnerCo},
			{Amount: p.FrthWinAmnt, Winners: p.FrthPrzwnerCo},
			{Amount: p.FifthWinAmnt, Winners: p.FifthPrzwnerCo},
		},
	}
	if p.DrwNo != 0 && p.DrwNo != round {
		return nil, fmt.Errorf("round %d: payload carries round %d: %w", round, p.DrwNo, ErrBadPayload)
	}
	if err := draw.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrBadPayload)
	}
	return draw, nil
}

// Exists probes whether the round has been published. Transport failures
// count as "does not exist"; the retrying transport has already absorbed
// transient flakiness by the time this returns.
func (c *Client) Exists(ctx context.Context, round int) bool {
	_, err := c.FetchRound(ctx, round)
	return err == nil
}
