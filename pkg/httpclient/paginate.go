package httpclient

import (
	"context"
	"strconv"
)

// Conservative ceilings for paginated endpoints. The upstream APIs do not
// document a hard limit, so collection stops at whichever bound hits first.
const (
	DefaultMaxRecords = 5000
	DefaultMaxPages   = 50
)

// Page is one extracted page: its records and the next offset, or nil when
// the extractor sees no further cursor.
type Page struct {
	Records    []map[string]any
	NextOffset *int
}

// PageExtractor turns a raw payload into a Page. Implemented per source.
type PageExtractor func(raw *RawResult) (Page, error)

// Paginator drives repeated Engine executions in strict cursor order,
// concatenating records until an end condition.
type Paginator struct {
	Engine     *Engine
	OffsetKey  string // query parameter advanced between pages, e.g. "skip"
	MaxRecords int
	MaxPages   int
}

// Collect gathers all pages for the spec. Any page-level failure aborts the
// run and surfaces that failure; partial results are discarded so callers
// can tell "end of data" from "an error truncated the data".
func (p *Paginator) Collect(ctx context.Context, spec RequestSpec, policy Policy, extract PageExtractor) ([]map[string]any, *ClassifiedError) {
	maxRecords := p.MaxRecords
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	maxPages := p.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	var records []map[string]any
	current := spec

	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, transientErr(0, "deadline exceeded after %d pages", page)
		}

		raw, cerr := p.Engine.Execute(ctx, current, policy)
		if cerr != nil {
			return nil, cerr
		}

		extracted, err := extract(raw)
		if err != nil {
			return nil, terminalErr(raw.StatusCode, "malformed page %d: %v", page+1, err)
		}
		if len(extracted.Records) == 0 {
			break
		}

		records = append(records, extracted.Records...)
		if len(records) >= maxRecords {
			records = records[:maxRecords]
			break
		}
		if extracted.NextOffset == nil {
			break
		}
		current = current.WithParam(p.OffsetKey, strconv.Itoa(*extracted.NextOffset))
	}

	return records, nil
}
