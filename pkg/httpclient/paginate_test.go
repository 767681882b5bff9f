package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usdatahub/usdata-mcp/pkg/credentials"
)

// pagedServer serves records [0, total) in pages of pageSize keyed by the
// "skip" query parameter.
func pagedServer(t *testing.T, total, pageSize int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))

		var records []map[string]any
		for i := skip; i < total && i < skip+pageSize; i++ {
			records = append(records, map[string]any{"id": fmt.Sprintf("rec-%03d", i)})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"total":   total,
			"skip":    skip,
			"results": records,
		})
	}))
}

func extractPage(pageSize int) PageExtractor {
	return func(raw *RawResult) (Page, error) {
		var resp struct {
			Total   int              `json:"total"`
			Skip    int              `json:"skip"`
			Results []map[string]any `json:"results"`
		}
		if err := raw.Decode(&resp); err != nil {
			return Page{}, err
		}
		page := Page{Records: resp.Results}
		if next := resp.Skip + len(resp.Results); next < resp.Total && len(resp.Results) == pageSize {
			page.NextOffset = &next
		}
		return page, nil
	}
}

func testPaginator(ts *httptest.Server) (*Paginator, RequestSpec) {
	paginator := &Paginator{
		Engine: &Engine{
			Source: "test",
			Client: NewClient(WithHTTPClient(ts.Client())),
		},
		OffsetKey: "skip",
	}
	spec := NewRequest(http.MethodGet, ts.URL, "/").
		Timeout(5 * time.Second).
		Build(credentials.Credential{}, AuthScheme{Mode: AuthNone})
	return paginator, spec
}

func TestCollect_GathersPagesInOrder(t *testing.T) {
	ts := pagedServer(t, 5, 2) // pages of 2, 2, 1
	defer ts.Close()

	paginator, spec := testPaginator(ts)
	records, cerr := paginator.Collect(context.Background(), spec, fastPolicy(), extractPage(2))

	require.Nil(t, cerr)
	require.Len(t, records, 5)
	for i, rec := range records {
		assert.Equal(t, fmt.Sprintf("rec-%03d", i), rec["id"])
	}
}

func TestCollect_RecordCeilingTruncates(t *testing.T) {
	ts := pagedServer(t, 10, 4)
	defer ts.Close()

	paginator, spec := testPaginator(ts)
	paginator.MaxRecords = 6
	records, cerr := paginator.Collect(context.Background(), spec, fastPolicy(), extractPage(4))

	require.Nil(t, cerr)
	require.Len(t, records, 6)
	assert.Equal(t, "rec-005", records[5]["id"])
}

func TestCollect_PageCeilingStops(t *testing.T) {
	ts := pagedServer(t, 100, 2)
	defer ts.Close()

	paginator, spec := testPaginator(ts)
	paginator.MaxPages = 3
	records, cerr := paginator.Collect(context.Background(), spec, fastPolicy(), extractPage(2))

	require.Nil(t, cerr)
	assert.Len(t, records, 6)
}

func TestCollect_MidRunFailureDiscardsPartials(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 1 {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		next := 2
		json.NewEncoder(w).Encode(map[string]any{
			"total": 10, "skip": 0,
			"results": []map[string]any{{"id": "rec-000"}, {"id": "rec-001"}},
			"next":    next,
		})
	}))
	defer ts.Close()

	paginator, spec := testPaginator(ts)
	records, cerr := paginator.Collect(context.Background(), spec, fastPolicy(), extractPage(2))

	// The caller must not see the first page; a failed run yields no data.
	assert.Nil(t, records)
	require.NotNil(t, cerr)
	assert.Equal(t, http.StatusGone, cerr.StatusCode)
}

func TestCollect_EmptyFirstPage(t *testing.T) {
	ts := pagedServer(t, 0, 10)
	defer ts.Close()

	paginator, spec := testPaginator(ts)
	records, cerr := paginator.Collect(context.Background(), spec, fastPolicy(), extractPage(10))

	require.Nil(t, cerr)
	assert.Empty(t, records)
}
