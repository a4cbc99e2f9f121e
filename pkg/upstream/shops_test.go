package upstream

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/text/encoding/korean"

	"github.com/lottohub-kr/lottosync/internal/domain"
)

func shopsURL(round, page int) string {
	url := testBaseURL + fmt.Sprintf(shopsPathFmt, round)
	if page > 1 {
		url += fmt.Sprintf("&nowPage=%d", page)
	}
	return url
}

// rank1Table renders the rank-1 table with its dedicated 구분 column.
func rank1Table(rows ...[4]string) string {
	var b strings.Builder
	b.WriteString(`<table class="tbl_data"><thead><tr><th>번호</th><th>상호명</th><th>구분</th><th>소재지</th><th>위치보기</th></tr></thead><tbody>`)
	for _, r := range rows {
		fmt.Fprintf(&b, `<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>보기</td></tr>`, r[0], r[1], r[2], r[3])
	}
	b.WriteString(`</tbody></table>`)
	return b.String()
}

// rank2Table renders the rank-2 table, which has no method column.
func rank2Table(rows ...[3]string) string {
	var b strings.Builder
	b.WriteString(`<table class="tbl_data"><thead><tr><th>번호</th><th>상호명</th><th>소재지</th><th>위치보기</th></tr></thead><tbody>`)
	for _, r := range rows {
		fmt.Fprintf(&b, `<tr><td>%s</td><td>%s</td><td>%s</td><td>보기</td></tr>`, r[0], r[1], r[2])
	}
	b.WriteString(`</tbody></table>`)
	return b.String()
}

func listingPage(tables ...string) []byte {
	navTable := `<table class="tbl_data"><tbody><tr><td>안내</td><td>회차</td></tr></tbody></table>`
	return []byte(`<html><body>` + navTable + strings.Join(tables, "") + `</body></html>`)
}

func TestFetchShopsParsesBothRanks(t *testing.T) {
	page1 := listingPage(
		rank1Table(
			[4]string{"1", "행운마트", "자동", "서울 마포구 월드컵로 1"},
			[4]string{"2", "대박복권방", "수동", "부산 해운대구 달맞이길 2"},
		),
		rank2Table(
			[3]string{"1", "초록슈퍼", "대전 서구 둔산로 3"},
		),
	)

	client := &stubHTTPClient{responses: map[string]stubHTTPResponse{
		shopsURL(1190, 1): {body: page1, statusCode: 200},
	}}
	c := NewClient(client, Options{BaseURL: testBaseURL})

	shops, err := c.FetchShops(context.Background(), 1190)
	if err != nil {
		t.Fatalf("FetchShops: %v", err)
	}
	if len(shops) != 3 {
		t.Fatalf("got %d shops, want 3: %+v", len(shops), shops)
	}
	if shops[0].Rank != 1 || shops[0].Name != "행운마트" || shops[0].Method != domain.MethodAuto {
		t.Fatalf("rank-1 row mismatch: %+v", shops[0])
	}
	if shops[2].Rank != 2 || shops[2].Name != "초록슈퍼" || shops[2].Method != "" {
		t.Fatalf("rank-2 row mismatch: %+v", shops[2])
	}
}

func TestFetchShopsStopsWhenPageRepeats(t *testing.T) {
	page1 := listingPage(
		rank1Table([4]string{"1", "행운마트", "자동", "서울"}),
		rank2Table([3]string{"1", "가맹점A", "서울 A로 1"}, [3]string{"2", "가맹점B", "서울 B로 2"}),
	)
	page2 := listingPage(
		rank1Table([4]string{"1", "행운마트", "자동", "서울"}),
		rank2Table([3]string{"3", "가맹점C", "서울 C로 3"}),
	)
	// Upstream pagination loops: page 3 repeats page 2's rows.
	page3 := listingPage(
		rank1Table([4]string{"1", "행운마트", "자동", "서울"}),
		rank2Table([3]string{"3", "가맹점C", "서울 C로 3"}),
	)

	client := &stubHTTPClient{responses: map[string]stubHTTPResponse{
		shopsURL(10, 1): {body: page1, statusCode: 200},
		shopsURL(10, 2): {body: page2, statusCode: 200},
		shopsURL(10, 3): {body: page3, statusCode: 200},
		shopsURL(10, 4): {body: listingPage(), statusCode: 200},
	}}
	c := NewClient(client, Options{BaseURL: testBaseURL})

	shops, err := c.FetchShops(context.Background(), 10)
	if err != nil {
		t.Fatalf("FetchShops: %v", err)
	}

	rank2 := 0
	seen := map[string]bool{}
	for _, s := range shops {
		key := fmt.Sprintf("%d|%s|%s", s.Rank, s.Name, s.Address)
		if seen[key] {
			t.Fatalf("duplicate shop stored: %+v", s)
		}
		seen[key] = true
		if s.Rank == 2 {
			rank2++
		}
	}
	if rank2 != 3 {
		t.Fatalf("got %d rank-2 shops, want 3", rank2)
	}
	// Pages 1..3 fetched, page 4 never requested.
	if client.calls != 3 {
		t.Fatalf("made %d listing requests, want 3", client.calls)
	}
}

func TestFetchShopsExtractsMethodTokenFromAddress(t *testing.T) {
	// No 구분 column anywhere: first data table is treated as rank 2 and the
	// method token rides inside the address text.
	page1 := listingPage(
		rank2Table(
			[3]string{"1", "노란편의점", "반자동 인천 남동구 구월로 5"},
			[3]string{"2", "파랑마트", "자동 경기 수원시 팔달로 6"},
		),
	)

	client := &stubHTTPClient{responses: map[string]stubHTTPResponse{
		shopsURL(7, 1): {body: page1, statusCode: 200},
	}}
	c := NewClient(client, Options{BaseURL: testBaseURL})

	shops, err := c.FetchShops(context.Background(), 7)
	if err != nil {
		t.Fatalf("FetchShops: %v", err)
	}
	if len(shops) != 2 {
		t.Fatalf("got %d shops, want 2", len(shops))
	}
	if shops[0].Method != domain.MethodSemiAuto || shops[0].Address != "인천 남동구 구월로 5" {
		t.Fatalf("semi-auto token not stripped: %+v", shops[0])
	}
	if shops[1].Method != domain.MethodAuto || shops[1].Address != "경기 수원시 팔달로 6" {
		t.Fatalf("auto token not stripped: %+v", shops[1])
	}
}

func TestFetchShopsDecodesEUCKRListing(t *testing.T) {
	// The operator serves listing pages in EUC-KR. Korean text must survive
	// the decode, including the method-token extraction from address cells.
	page1 := listingPage(
		rank1Table([4]string{"1", "행운마트", "자동", "서울 마포구 월드컵로 1"}),
		rank2Table([3]string{"1", "노란편의점", "반자동 인천 남동구 구월로 5"}),
	)
	encoded, err := korean.EUCKR.NewEncoder().Bytes(page1)
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	client := &stubHTTPClient{responses: map[string]stubHTTPResponse{
		shopsURL(900, 1): {body: encoded, statusCode: 200},
	}}
	c := NewClient(client, Options{BaseURL: testBaseURL})

	shops, err := c.FetchShops(context.Background(), 900)
	if err != nil {
		t.Fatalf("FetchShops: %v", err)
	}
	if len(shops) != 2 {
		t.Fatalf("got %d shops, want 2: %+v", len(shops), shops)
	}
	if shops[0].Rank != 1 || shops[0].Name != "행운마트" || shops[0].Method != domain.MethodAuto {
		t.Fatalf("rank-1 row mangled by decode: %+v", shops[0])
	}
	if shops[1].Method != domain.MethodSemiAuto || shops[1].Address != "인천 남동구 구월로 5" {
		t.Fatalf("semi-auto token not stripped after decode: %+v", shops[1])
	}
}

func TestFetchShopsFailedFirstPageIsNotFatal(t *testing.T) {
	client := &stubHTTPClient{responses: map[string]stubHTTPResponse{}}
	c := NewClient(client, Options{BaseURL: testBaseURL})

	shops, err := c.FetchShops(context.Background(), 42)
	if err != nil {
		t.Fatalf("page failure must degrade, not fail: %v", err)
	}
	if len(shops) != 0 {
		t.Fatalf("expected empty result, got %+v", shops)
	}
}

type recordingCache struct {
	pages [][2]int
}

func (r *recordingCache) SavePage(round, page int, _ []byte) error {
	r.pages = append(r.pages, [2]int{round, page})
	return nil
}

func TestFetchShopsSnapshotsPages(t *testing.T) {
	page1 := listingPage(
		rank1Table([4]string{"1", "행운마트", "자동", "서울"}),
		rank2Table([3]string{"1", "가맹점A", "서울 A로 1"}),
	)
	client := &stubHTTPClient{responses: map[string]stubHTTPResponse{
		shopsURL(3, 1): {body: page1, statusCode: 200},
	}}
	cache := &recordingCache{}
	c := NewClient(client, Options{BaseURL: testBaseURL, Cache: cache})

	if _, err := c.FetchShops(context.Background(), 3); err != nil {
		t.Fatalf("FetchShops: %v", err)
	}
	if len(cache.pages) == 0 || cache.pages[0] != [2]int{3, 1} {
		t.Fatalf("page snapshot not written: %+v", cache.pages)
	}
}
