package upstream

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lottohub-kr/lottosync/internal/domain"
	"github.com/lottohub-kr/lottosync/pkg/httpclient"
)

// stubHTTPResponse implements httpclient.Response.
type stubHTTPResponse struct {
	body       []byte
	statusCode int
}

func (s stubHTTPResponse) Body() []byte    { return s.body }
func (s stubHTTPResponse) StatusCode() int { return s.statusCode }

// stubHTTPClient serves canned responses keyed by URL.
type stubHTTPClient struct {
	responses map[string]stubHTTPResponse
	err       error
	calls     int
}

func (s *stubHTTPClient) Get(_ context.Context, url string, _ map[string]string) (httpclient.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if resp, ok := s.responses[url]; ok {
		return resp, nil
	}
	return stubHTTPResponse{statusCode: 404}, nil
}

const testBaseURL = "http://upstream.test"

func drawURL(round int) string {
	return testBaseURL + fmt.Sprintf(drawPathFmt, round)
}

func successPayload(round int) []byte {
	return []byte(fmt.Sprintf(`{
		"returnValue": "success",
		"drwNo": %d,
		"drwNoDate": "2025-08-23",
		"drwtNo1": 3, "drwtNo2": 7, "drwtNo3": 12, "drwtNo4": 25, "drwtNo5": 33, "drwtNo6": 45,
		"bnusNo": 19,
		"totSellamnt": 111000000000,
		"firstWinamnt": 2400000000, "firstPrzwnerCo": 11
	}`, round))
}

func TestFetchRoundParsesSuccessPayload(t *testing.T) {
	client := &stubHTTPClient{responses: map[string]stubHTTPResponse{
		drawURL(1190): {body: successPayload(1190), statusCode: 200},
	}}
	c := NewClient(client, Options{BaseURL: testBaseURL})

	draw, err := c.FetchRound(context.Background(), 1190)
	if err != nil {
		t.Fatalf("FetchRound: %v", err)
	}
	if draw.Round != 1190 || draw.Bonus != 19 {
		t.Fatalf("unexpected draw %+v", draw)
	}
	want := [domain.DrawNumbers]int{3, 7, 12, 25, 33, 45}
	if draw.Numbers != want {
		t.Fatalf("numbers = %v, want %v", draw.Numbers, want)
	}
	if draw.DrawDate.Format("2006-01-02") != "2025-08-23" {
		t.Fatalf("draw date = %v", draw.DrawDate)
	}
	if draw.TotalSales != 111000000000 || draw.Prizes[0].Winners != 11 {
		t.Fatalf("prize metadata not carried: %+v", draw)
	}
}

func TestFetchRoundUnpublishedRound(t *testing.T) {
	client := &stubHTTPClient{responses: map[string]stubHTTPResponse{
		drawURL(9999): {body: []byte(`{"returnValue":"fail"}`), statusCode: 200},
	}}
	c := NewClient(client, Options{BaseURL: testBaseURL})

	_, err := c.FetchRound(context.Background(), 9999)
	if !errors.Is(err, ErrRoundNotFound) {
		t.Fatalf("err = %v, want ErrRoundNotFound", err)
	}
}

func TestFetchRoundRejectsInvalidNumbers(t *testing.T) {
	cases := map[string]string{
		"duplicate": `{"returnValue":"success","drwNoDate":"2025-08-23","drwtNo1":5,"drwtNo2":5,"drwtNo3":3,"drwtNo4":4,"drwtNo5":6,"drwtNo6":7,"bnusNo":9}`,
		"out of range": `{"returnValue":"success","drwNoDate":"2025-08-23","drwtNo1":1,"drwtNo2":2,"drwtNo3":3,"drwtNo4":4,"drwtNo5":5,"drwtNo6":46,"bnusNo":9}`,
		"bad bonus":    `{"returnValue":"success","drwNoDate":"2025-08-23","drwtNo1":1,"drwtNo2":2,"drwtNo3":3,"drwtNo4":4,"drwtNo5":5,"drwtNo6":6,"bnusNo":0}`,
		"bad date":     `{"returnValue":"success","drwNoDate":"23/08/2025","drwtNo1":1,"drwtNo2":2,"drwtNo3":3,"drwtNo4":4,"drwtNo5":5,"drwtNo6":6,"bnusNo":9}`,
		"not json":     `<html>blocked</html>`,
	}

	for name, body := range cases {
		client := &stubHTTPClient{responses: map[string]stubHTTPResponse{
			drawURL(10): {body: []byte(body), statusCode: 200},
		}}
		c := NewClient(client, Options{BaseURL: testBaseURL})

		_, err := c.FetchRound(context.Background(), 10)
		if !errors.Is(err, ErrBadPayload) {
			t.Fatalf("%s: err = %v, want ErrBadPayload", name, err)
		}
	}
}

func TestFetchRoundSurfacesTransportErrors(t *testing.T) {
	client := &stubHTTPClient{err: errors.New("connection reset")}
	c := NewClient(client, Options{BaseURL: testBaseURL})

	_, err := c.FetchRound(context.Background(), 1)
	if err == nil || errors.Is(err, ErrRoundNotFound) || errors.Is(err, ErrBadPayload) {
		t.Fatalf("transport error should not be typed as fetch validation: %v", err)
	}
}

func TestExists(t *testing.T) {
	client := &stubHTTPClient{responses: map[string]stubHTTPResponse{
		drawURL(5): {body: successPayload(5), statusCode: 200},
	}}
	c := NewClient(client, Options{BaseURL: testBaseURL})

	if !c.Exists(context.Background(), 5) {
		t.Fatalf("round 5 should exist")
	}
	if c.Exists(context.Background(), 6) {
		t.Fatalf("round 6 should not exist")
	}
}
