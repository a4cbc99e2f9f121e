package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/lottohub-kr/lottosync/internal/domain"
	"github.com/lottohub-kr/lottosync/internal/job"
	"github.com/lottohub-kr/lottosync/internal/logger"
	"github.com/lottohub-kr/lottosync/internal/store"
	"github.com/lottohub-kr/lottosync/internal/syncer"
)

// fakeCoordinator records start calls and can simulate a busy slot.
type fakeCoordinator struct {
	busy     bool
	stopped  bool
	lastOp   string
	progress domain.SyncProgress
}

func (f *fakeCoordinator) start(op string) (string, error) {
	if f.busy {
		return "", job.ErrSyncRunning
	}
	f.lastOp = op
	return "job-1", nil
}

func (f *fakeCoordinator) StartRound(round int, _ syncer.Scope) (string, error) {
	return f.start("round")
}

func (f *fakeCoordinator) StartRange(start, end int, _ syncer.Scope) (string, error) {
	if start < 1 || end < start {
		return "", errInvalidRange
	}
	return f.start("range")
}

func (f *fakeCoordinator) StartMissing(_ syncer.Scope) (string, error)  { return f.start("missing") }
func (f *fakeCoordinator) StartToLatest(_ syncer.Scope) (string, error) { return f.start("to_latest") }

func (f *fakeCoordinator) RequestStop() bool {
	f.stopped = true
	return f.busy
}

func (f *fakeCoordinator) Progress() domain.SyncProgress { return f.progress }

var errInvalidRange = &invalidRangeError{}

type invalidRangeError struct{}

func (*invalidRangeError) Error() string { return "invalid range" }

func newTestRouter(t *testing.T, coord Coordinator) (*gin.Engine, *store.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := store.NewMemoryStore()
	handler := NewHandler(coord, st, logger.NopLogger{})
	r := gin.New()
	handler.Register(r)
	return r, st
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStartRoundAccepted(t *testing.T) {
	coord := &fakeCoordinator{}
	r, _ := newTestRouter(t, coord)

	w := doRequest(r, http.MethodPost, "/api/sync/round/1190?scope=draw", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if coord.lastOp != "round" {
		t.Fatalf("lastOp = %q", coord.lastOp)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp["job_id"] != "job-1" {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestStartRoundRejectsBadInput(t *testing.T) {
	r, _ := newTestRouter(t, &fakeCoordinator{})

	if w := doRequest(r, http.MethodPost, "/api/sync/round/abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric round: status = %d", w.Code)
	}
	if w := doRequest(r, http.MethodPost, "/api/sync/round/5?scope=bogus", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bogus scope: status = %d", w.Code)
	}
}

func TestStartWhileBusyReturnsConflict(t *testing.T) {
	coord := &fakeCoordinator{busy: true}
	r, _ := newTestRouter(t, coord)

	w := doRequest(r, http.MethodPost, "/api/sync/missing", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestStartRangeBindsJSONBody(t *testing.T) {
	coord := &fakeCoordinator{}
	r, _ := newTestRouter(t, coord)

	w := doRequest(r, http.MethodPost, "/api/sync/range", `{"start":100,"end":200,"scope":"both"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	if w := doRequest(r, http.MethodPost, "/api/sync/range", `{"start":9,"end":3}`); w.Code != http.StatusBadRequest {
		t.Fatalf("descending range: status = %d", w.Code)
	}
}

func TestStopEndpoint(t *testing.T) {
	coord := &fakeCoordinator{busy: true}
	r, _ := newTestRouter(t, coord)

	w := doRequest(r, http.MethodPost, "/api/sync/stop", "")
	if w.Code != http.StatusOK || !coord.stopped {
		t.Fatalf("status = %d stopped=%v", w.Code, coord.stopped)
	}
}

func TestProgressSnapshot(t *testing.T) {
	coord := &fakeCoordinator{progress: domain.SyncProgress{
		JobID:           "job-9",
		IsRunning:       true,
		OperationType:   "range:1-10",
		CurrentRound:    4,
		TotalRounds:     10,
		CompletedRounds: 3,
		Status:          "updated",
	}}
	r, _ := newTestRouter(t, coord)

	w := doRequest(r, http.MethodGet, "/api/sync/progress", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["is_running"] != true || resp["completed_rounds"] != float64(3) {
		t.Fatalf("resp = %v", resp)
	}
}

func TestGetDrawAndShops(t *testing.T) {
	r, st := newTestRouter(t, &fakeCoordinator{})
	ctx := context.Background()

	draw := &domain.Draw{
		Round:   1190,
		Numbers: [domain.DrawNumbers]int{3, 7, 12, 25, 33, 45},
		Bonus:   19,
	}
	if err := st.UpsertDraw(ctx, draw); err != nil {
		t.Fatalf("seed draw: %v", err)
	}
	if err := st.ReplaceShops(ctx, 1190, []domain.WinningShop{
		{Round: 1190, Rank: 1, Name: "행운마트", Method: domain.MethodAuto},
	}); err != nil {
		t.Fatalf("seed shops: %v", err)
	}

	w := doRequest(r, http.MethodGet, "/api/draws/1190", "")
	if w.Code != http.StatusOK {
		t.Fatalf("draw status = %d", w.Code)
	}
	var got domain.Draw
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil || got.Bonus != 19 {
		t.Fatalf("draw body = %s", w.Body.String())
	}

	w = doRequest(r, http.MethodGet, "/api/draws/1190/shops", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "행운마트") {
		t.Fatalf("shops = %d %s", w.Code, w.Body.String())
	}

	if w := doRequest(r, http.MethodGet, "/api/draws/9999", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing draw: status = %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t, &fakeCoordinator{})
	if w := doRequest(r, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
