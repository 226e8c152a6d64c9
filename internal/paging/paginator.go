package paging

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/sumandas0/catalog/pkg/utils"
)

const (
	MinLimit = 1
	MaxLimit = 1000000
)

type Request struct {
	Limit       int
	Before      string
	After       string
	// BothCursors is set when the caller named both cursors, even empty ones.
	BothCursors bool
}

// ParseQuery reads limit, before and after from query parameters. An absent
// limit falls back to defaultLimit.
func ParseQuery(query url.Values, defaultLimit int) (Request, error) {
	req := Request{
		Limit:       defaultLimit,
		Before:      query.Get("before"),
		After:       query.Get("after"),
		BothCursors: query.Has("before") && query.Has("after"),
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return Request{}, utils.NewAppError(utils.CodeInvalidLimit, "limit must be an integer", utils.ErrInvalidLimit).
				WithDetail("limit", raw)
		}
		req.Limit = limit
	}
	return req, req.Validate()
}

func (r Request) Validate() error {
	if r.BothCursors || (r.Before != "" && r.After != "") {
		return utils.NewAppError(utils.CodeInvalidCursorCombination, "Only one of before or after query parameter allowed", utils.ErrInvalidCursorCombination)
	}
	if r.Limit < MinLimit {
		return utils.NewAppError(utils.CodeInvalidLimit, fmt.Sprintf("limit must be greater than or equal to %d", MinLimit), utils.ErrInvalidLimit).
			WithDetail("limit", r.Limit)
	}
	if r.Limit > MaxLimit {
		return utils.NewAppError(utils.CodeInvalidLimit, fmt.Sprintf("limit must be less than or equal to %d", MaxLimit), utils.ErrInvalidLimit).
			WithDetail("limit", r.Limit)
	}
	return nil
}

type Page[T any] struct {
	Items  []T
	Before string
	After  string
	Total  int
}

// Paginate slices sorted, which must be ordered ascending by keyOf with unique
// keys. Cursor boundaries are located by binary search, so a boundary whose
// record has since been deleted still positions the page correctly.
func Paginate[T any](sorted []T, keyOf func(T) string, req Request) (Page[T], error) {
	if err := req.Validate(); err != nil {
		return Page[T]{}, err
	}

	n := len(sorted)
	page := Page[T]{Total: n}

	var start, end int
	if req.Before != "" {
		boundary, err := DecodeCursor(req.Before, DirectionBefore)
		if err != nil {
			return Page[T]{}, err
		}
		end = sort.Search(n, func(i int) bool { return keyOf(sorted[i]) >= boundary })
		start = max(0, end-req.Limit)
	} else {
		if req.After != "" {
			boundary, err := DecodeCursor(req.After, DirectionAfter)
			if err != nil {
				return Page[T]{}, err
			}
			start = sort.Search(n, func(i int) bool { return keyOf(sorted[i]) > boundary })
		}
		end = min(start+req.Limit, n)
	}

	page.Items = sorted[start:end:end]
	if start == end {
		return page, nil
	}
	if start > 0 {
		page.Before = EncodeCursor(keyOf(sorted[start]), DirectionBefore)
	}
	if end < n {
		page.After = EncodeCursor(keyOf(sorted[end-1]), DirectionAfter)
	}
	return page, nil
}
