package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"catalogsync/internal/extract"

	"github.com/rs/zerolog/log"
)

// DefaultPageSizes is the step-down sequence used when none is configured.
var DefaultPageSizes = []int{50, 25, 10, 5}

// PageSource serves one list page. *Client implements it.
type PageSource interface {
	ListPage(ctx context.Context, page, size int) (*Response, error)
}

// PageSourceFunc adapts a function to PageSource.
type PageSourceFunc func(ctx context.Context, page, size int) (*Response, error)

func (f PageSourceFunc) ListPage(ctx context.Context, page, size int) (*Response, error) {
	return f(ctx, page, size)
}

// ListResult is everything one FetchAll walk collected.
type ListResult struct {
	Items []extract.Record
	Pages int
	// MalformedPages counts bodies that were neither an array nor an
	// {"items": [...]} object. Such a page counts as empty and ends the walk.
	MalformedPages int
	// InvalidItems counts list entries that were not JSON objects.
	InvalidItems int
	StepDowns    int
}

// Pager walks the list endpoint from page 1 until an empty page or the
// 404 end marker.
//
// A 504 makes the pager pause and retry the same catalog offset at the next
// smaller page size. The smaller size then sticks for the rest of the walk;
// the page number is recomputed from the offset so no item is skipped or
// fetched twice.
type Pager struct {
	src   PageSource
	sizes []int
	pause time.Duration
	sleep func(ctx context.Context, d time.Duration) error
}

func NewPager(src PageSource, sizes []int, pause time.Duration) *Pager {
	if len(sizes) == 0 {
		sizes = DefaultPageSizes
	}
	return &Pager{src: src, sizes: sizes, pause: pause, sleep: sleepCtx}
}

// FetchAll always restarts from page 1.
func (p *Pager) FetchAll(ctx context.Context) (*ListResult, error) {
	res := &ListResult{}
	sizeIdx := 0
	page := 1
	skip := 0 // leading items of the current page already collected

	for {
		size := p.sizes[sizeIdx]
		resp, err := p.src.ListPage(ctx, page, size)
		if err != nil {
			if StatusOf(err) == http.StatusGatewayTimeout && sizeIdx < len(p.sizes)-1 {
				sizeIdx++
				res.StepDowns++
				next := p.sizes[sizeIdx]
				offset := (page-1)*size + skip
				page, skip = offset/next+1, offset%next
				log.Warn().
					Int("size", size).
					Int("next_size", next).
					Int("offset", offset).
					Msg("erp: list page timed out, stepping down page size")
				if err := p.sleep(ctx, p.pause); err != nil {
					return res, err
				}
				continue
			}
			return res, err
		}
		if resp.End {
			break
		}

		raw, ok := decodePage(resp.Body)
		if !ok {
			res.MalformedPages++
			log.Warn().
				Int("page", page).
				Str("body", truncate(resp.Body, maxLoggedBody)).
				Msg("erp: unrecognized list page shape, treating as empty")
		}
		if skip > 0 {
			if skip >= len(raw) {
				raw = nil
			} else {
				raw = raw[skip:]
			}
			skip = 0
		}
		if len(raw) == 0 {
			break
		}

		res.Pages++
		for _, item := range raw {
			rec, err := extract.ParseRecord(item)
			if err != nil {
				res.InvalidItems++
				continue
			}
			res.Items = append(res.Items, rec)
		}
		page++
	}
	return res, nil
}

// decodePage accepts a bare array or an object with an "items" array.
func decodePage(body []byte) ([]json.RawMessage, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, false
	}
	switch body[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, false
		}
		return items, true
	case '{':
		var wrapped struct {
			Items *[]json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil || wrapped.Items == nil {
			return nil, false
		}
		return *wrapped.Items, true
	}
	return nil, false
}
