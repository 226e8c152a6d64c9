package paging

import (
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumandas0/catalog/pkg/utils"
)

func identity(s string) string { return s }

func keys(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("svc.pipeline-%03d", i)
	}
	return out
}

func TestPaginate_ScrollForwardAndBack(t *testing.T) {
	for _, total := range []int{0, 1, 2, 7, 10, 23} {
		all := keys(total)
		for limit := 1; limit <= total+1; limit++ {
			t.Run(fmt.Sprintf("total=%d/limit=%d", total, limit), func(t *testing.T) {
				var forward []string
				var last Page[string]
				after := ""
				for {
					page, err := Paginate(all, identity, Request{Limit: limit, After: after})
					require.NoError(t, err)
					assert.Equal(t, total, page.Total)
					assert.LessOrEqual(t, len(page.Items), limit)
					forward = append(forward, page.Items...)
					last = page
					if page.After == "" {
						break
					}
					after = page.After
				}
				assert.Equal(t, all, append([]string{}, forward...))

				var backward []string
				backward = append(backward, last.Items...)
				before := last.Before
				for before != "" {
					page, err := Paginate(all, identity, Request{Limit: limit, Before: before})
					require.NoError(t, err)
					require.NotEmpty(t, page.After)
					backward = append(append([]string{}, page.Items...), backward...)
					before = page.Before
				}
				assert.Equal(t, all, append([]string{}, backward...))
			})
		}
	}
}

func TestPaginate_Cursors(t *testing.T) {
	all := keys(10)

	first, err := Paginate(all, identity, Request{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, all[0:3], first.Items)
	assert.Empty(t, first.Before)
	assert.NotEmpty(t, first.After)

	second, err := Paginate(all, identity, Request{Limit: 3, After: first.After})
	require.NoError(t, err)
	assert.Equal(t, all[3:6], second.Items)
	assert.NotEmpty(t, second.Before)
	assert.NotEmpty(t, second.After)

	back, err := Paginate(all, identity, Request{Limit: 3, Before: second.Before})
	require.NoError(t, err)
	assert.Equal(t, all[0:3], back.Items)
	assert.Empty(t, back.Before)
	assert.NotEmpty(t, back.After)

	whole, err := Paginate(all, identity, Request{Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, all, whole.Items)
	assert.Empty(t, whole.Before)
	assert.Empty(t, whole.After)
}

func TestPaginate_DeletedBoundary(t *testing.T) {
	all := keys(10)

	page, err := Paginate(all, identity, Request{Limit: 4})
	require.NoError(t, err)

	// The last record of the page disappears before the next request.
	remaining := append(append([]string{}, all[:3]...), all[4:]...)
	next, err := Paginate(remaining, identity, Request{Limit: 4, After: page.After})
	require.NoError(t, err)
	assert.Equal(t, all[4:8], next.Items)

	inserted := append([]string{"svc.pipeline-003a"}, all[4:]...)
	inserted = append(append([]string{}, all[:4]...), inserted...)
	next, err = Paginate(inserted, identity, Request{Limit: 2, After: page.After})
	require.NoError(t, err)
	assert.Equal(t, []string{"svc.pipeline-003a", all[4]}, next.Items)
}

func TestPaginate_EmptyStalePage(t *testing.T) {
	all := keys(3)
	page, err := Paginate(all, identity, Request{Limit: 1, Before: EncodeCursor("a", DirectionBefore)})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Empty(t, page.Before)
	assert.Empty(t, page.After)
	assert.Equal(t, 3, page.Total)
}

func TestPaginate_InvalidRequests(t *testing.T) {
	all := keys(5)
	after := EncodeCursor(all[1], DirectionAfter)
	before := EncodeCursor(all[3], DirectionBefore)

	tests := []struct {
		name     string
		req      Request
		wantCode string
		wantMsg  string
	}{
		{name: "both cursors", req: Request{Limit: 1, Before: before, After: after}, wantCode: utils.CodeInvalidCursorCombination, wantMsg: "Only one of before or after query parameter allowed"},
		{name: "both cursors named but empty", req: Request{Limit: 1, BothCursors: true}, wantCode: utils.CodeInvalidCursorCombination, wantMsg: "Only one of before or after query parameter allowed"},
		{name: "limit too small", req: Request{Limit: 0}, wantCode: utils.CodeInvalidLimit, wantMsg: "limit must be greater than or equal to 1"},
		{name: "negative limit", req: Request{Limit: -1}, wantCode: utils.CodeInvalidLimit, wantMsg: "limit must be greater than or equal to 1"},
		{name: "limit too large", req: Request{Limit: 1000001}, wantCode: utils.CodeInvalidLimit, wantMsg: "limit must be less than or equal to 1000000"},
		{name: "garbage cursor", req: Request{Limit: 1, After: "%%%"}, wantCode: utils.CodeInvalidInput, wantMsg: "invalid after cursor"},
		{name: "direction mismatch", req: Request{Limit: 1, After: before}, wantCode: utils.CodeInvalidInput, wantMsg: "invalid after cursor"},
		{name: "before used as after", req: Request{Limit: 1, Before: after}, wantCode: utils.CodeInvalidInput, wantMsg: "invalid before cursor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Paginate(all, identity, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, utils.Code(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	_, err := Paginate(all, identity, Request{Limit: MaxLimit})
	assert.NoError(t, err)
}

func TestCursor_RoundTrip(t *testing.T) {
	token := EncodeCursor("svc.a b/c", DirectionBefore)

	key, err := DecodeCursor(token, DirectionBefore)
	require.NoError(t, err)
	assert.Equal(t, "svc.a b/c", key)

	_, err = DecodeCursor(token, DirectionAfter)
	assert.Error(t, err)
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		want     Request
		wantCode string
	}{
		{name: "defaults", query: "", want: Request{Limit: 10}},
		{name: "explicit limit", query: "limit=3&after=abc", want: Request{Limit: 3, After: "abc"}},
		{name: "empty before alone", query: "before=", want: Request{Limit: 10}},
		{name: "both empty", query: "before=&after=", wantCode: utils.CodeInvalidCursorCombination},
		{name: "one empty one set", query: "before=&after=abc", wantCode: utils.CodeInvalidCursorCombination},
		{name: "non numeric limit", query: "limit=ten", wantCode: utils.CodeInvalidLimit},
		{name: "zero limit", query: "limit=0", wantCode: utils.CodeInvalidLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			got, err := ParseQuery(values, 10)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, utils.Code(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
