package upstream

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/korean"

	"github.com/lottohub-kr/lottosync/internal/domain"
	"github.com/lottohub-kr/lottosync/internal/logger"
)

// The listing renders the rank-1 and rank-2 tables in one document. Rank 1
// carries a purchase-method (구분) column; rank 2 does not and paginates via
// the nowPage parameter.

const methodHeaderToken = "구분"

// 반자동 must be checked before 자동: the latter is a substring of the former.
var methodTokens = []string{domain.MethodSemiAuto, domain.MethodAuto, domain.MethodManual}

// FetchShops collects the winning retailers for a round across both ranks and
// all rank-2 pages. Page-level failures truncate the listing instead of
// failing the round; an empty result is not an error.
func (c *Client) FetchShops(ctx context.Context, round int) ([]domain.WinningShop, error) {
	doc, err := c.fetchListing(ctx, round, 1)
	if err != nil {
		logger.WarnObj("shop listing fetch failed", "listing_error", map[string]any{
			"round": round,
			"error": err.Error(),
		})
		return nil, nil
	}

	shops := make([]domain.WinningShop, 0, 16)
	seen := make(map[string]bool)

	// First data table: rank 1 when it carries a method column, otherwise the
	// upstream has collapsed the layout and it is already the rank-2 table.
	tables := doc.Find("table.tbl_data")
	if tables.Length() > 1 {
		table := tables.Eq(1)
		hasMethod := tableHasMethodColumn(table)
		rank := 1
		if !hasMethod {
			rank = 2
		}
		appendRows(table, round, rank, hasMethod, seen, &shops)
	}

	// Rank-2 table with pagination. Stop on: no table, no rows, no new rows
	// (upstream pagination loops back), or the page ceiling.
	for page := 1; page <= c.maxShopPages; page++ {
		cur := doc
		if page > 1 {
			cur, err = c.fetchListing(ctx, round, page)
			if err != nil {
				break
			}
		}

		pageTables := cur.Find("table.tbl_data")
		if pageTables.Length() <= 2 {
			break
		}
		if added := appendRows(pageTables.Eq(2), round, 2, false, seen, &shops); added == 0 {
			break
		}
	}

	return shops, nil
}

// fetchListing retrieves and parses one listing page, saving the raw body to
// the page cache when one is configured.
func (c *Client) fetchListing(ctx context.Context, round, page int) (*goquery.Document, error) {
	url := c.baseURL + fmt.Sprintf(shopsPathFmt, round)
	if page > 1 {
		url += fmt.Sprintf("&nowPage=%d", page)
	}

	resp, err := c.http.Get(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch shops round %d page %d: %w", round, page, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("shops round %d page %d returned status %d", round, page, resp.StatusCode())
	}

	body := resp.Body()
	if c.cache != nil {
		if err := c.cache.SavePage(round, page, body); err != nil {
			logger.WarnObj("raw page cache write failed", "rawcache_error", map[string]any{
				"round": round,
				"page":  page,
				"error": err.Error(),
			})
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(decodeListingBody(body)))
	if err != nil {
		return nil, fmt.Errorf("parse shops round %d page %d: %w", round, page, err)
	}
	return doc, nil
}

// decodeListingBody converts the operator's EUC-KR pages to UTF-8. Bodies that
// are already valid UTF-8 pass through untouched.
func decodeListingBody(body []byte) []byte {
	if utf8.Valid(body) {
		return body
	}
	decoded, err := korean.EUCKR.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return decoded
}

// tableHasMethodColumn inspects the header row for a purchase-method column.
func tableHasMethodColumn(table *goquery.Selection) bool {
	found := false
	table.Find("thead th").Each(func(_ int, th *goquery.Selection) {
		if strings.Contains(th.Text(), methodHeaderToken) {
			found = true
		}
	})
	return found
}

// appendRows parses a table body and appends rows not seen earlier in this
// run. Returns the number of rows actually added.
func appendRows(table *goquery.Selection, round, rank int, hasMethod bool, seen map[string]bool, out *[]domain.WinningShop) int {
	added := 0
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		shop, ok := parseShopRow(tr, round, rank, hasMethod)
		if !ok {
			return
		}
		key := shopKey(shop)
		if seen[key] {
			return
		}
		seen[key] = true
		*out = append(*out, shop)
		added++
	})
	return added
}

// shopKey identifies a row within one sync run. Keyed on rank+name+address
// rather than the display sequence, which is unreliable across pages.
func shopKey(s domain.WinningShop) string {
	return fmt.Sprintf("%d|%s|%s", s.Rank, s.Name, s.Address)
}

// parseShopRow extracts one retailer from a table row by column position.
// Rank-1 layout: 번호, 상호명, 구분, 소재지, 위치보기.
// Rank-2 layout: 번호, 상호명, 소재지, 위치보기; the method token, when
// present at all, is embedded in the address text.
func parseShopRow(tr *goquery.Selection, round, rank int, hasMethod bool) (domain.WinningShop, bool) {
	var cols []string
	tr.Find("td").Each(func(_ int, td *goquery.Selection) {
		cols = append(cols, collapseSpace(td.Text()))
	})
	if len(cols) < 2 {
		return domain.WinningShop{}, false
	}

	name := cols[1]
	if name == "" {
		return domain.WinningShop{}, false
	}

	shop := domain.WinningShop{
		Round:    round,
		Rank:     rank,
		Sequence: parseDigits(cols[0]),
		Name:     name,
	}

	if hasMethod && len(cols) >= 4 {
		shop.Method = cols[2]
		shop.Address = cols[3]
	} else if len(cols) >= 3 {
		address := cols[2]
		for _, token := range methodTokens {
			if strings.Contains(address, token) {
				shop.Method = token
				address = strings.TrimSpace(strings.Replace(address, token, "", 1))
				break
			}
		}
		shop.Address = address
	}

	return shop, true
}

// parseDigits pulls the integer out of a cell, ignoring decoration. Zero when
// the cell has no digits.
func parseDigits(s string) int {
	n := 0
	found := false
	for _, r := range s {
		if unicode.IsDigit(r) {
			n = n*10 + int(r-'0')
			found = true
		}
	}
	if !found {
		return 0
	}
	return n
}

// collapseSpace trims and squeezes runs of whitespace to single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
