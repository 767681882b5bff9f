package sec

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usdatahub/usdata-mcp/pkg/httpclient"
)

func testAdapter(t *testing.T, ts *httptest.Server) *Adapter {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseURL = ts.URL
	cfg.Timeout = 5 * time.Second
	cfg.Retry.BaseDelay = time.Millisecond
	return New(cfg, WithClient(httpclient.NewClient(httpclient.WithHTTPClient(ts.Client()))))
}

const tickersFixture = `{
	"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc.", "exchange": "Nasdaq"},
	"1": {"cik_str": 789019, "ticker": "MSFT", "title": "MICROSOFT CORP", "exchange": "Nasdaq"},
	"2": {"cik_str": 1318605, "ticker": "TSLA", "title": "Tesla, Inc.", "exchange": "Nasdaq"}
}`

const submissionsFixture = `{
	"name": "Apple Inc.",
	"sic": "3571",
	"sicDescription": "Electronic Computers",
	"filings": {
		"recent": {
			"accessionNumber": ["0000320193-24-000001", "0000320193-24-000002", "0000320193-24-000003"],
			"filingDate": ["2024-02-02", "2024-01-15", "2023-11-03"],
			"reportDate": ["2023-12-30", "", "2023-09-30"],
			"form": ["10-Q", "4", "10-K"],
			"primaryDocument": ["aapl-20231230.htm", "xslF345X05/form4.xml", "aapl-20230930.htm"],
			"primaryDocDescription": ["10-Q", "FORM 4", "10-K"]
		}
	}
}`

func TestNormalizeCIK(t *testing.T) {
	assert.Equal(t, "0000320193", NormalizeCIK("320193"))
	assert.Equal(t, "0000320193", NormalizeCIK("0000320193"))
	assert.Equal(t, "0000320193", NormalizeCIK("CIK 320-193"))
	assert.Equal(t, "0000000000", NormalizeCIK(""))
}

func TestSICCategory(t *testing.T) {
	assert.Equal(t, "Manufacturing", SICCategory("3571"))
	assert.Equal(t, "Finance, Insurance, and Real Estate", SICCategory("6021"))
	assert.Equal(t, "Agriculture, Forestry, and Fishing", SICCategory("0100"))
	assert.Equal(t, "", SICCategory("9999"))
	assert.Equal(t, "", SICCategory("not-a-code"))
}

func TestSearchCompany_MatchModes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/files/company_tickers.json", r.URL.Path)
		w.Write([]byte(tickersFixture))
	}))
	defer ts.Close()

	a := testAdapter(t, ts)

	t.Run("name substring", func(t *testing.T) {
		env := a.searchCompany(context.Background(), map[string]any{"query": "apple"})
		require.True(t, env.Success, env.ErrorText())
		require.Len(t, env.Data, 1)
		assert.Equal(t, "Apple Inc.", env.Data[0]["name"])
		assert.Equal(t, "0000320193", env.Data[0]["cik"])
		assert.Equal(t, "AAPL", env.Data[0]["ticker"])
		assert.Equal(t, 1, env.Metadata["count"])
	})

	t.Run("exact ticker", func(t *testing.T) {
		env := a.searchCompany(context.Background(), map[string]any{"query": "tsla"})
		require.True(t, env.Success, env.ErrorText())
		require.Len(t, env.Data, 1)
		assert.Equal(t, "Tesla, Inc.", env.Data[0]["name"])
	})

	t.Run("cik substring", func(t *testing.T) {
		env := a.searchCompany(context.Background(), map[string]any{"query": "789019"})
		require.True(t, env.Success, env.ErrorText())
		require.Len(t, env.Data, 1)
		assert.Equal(t, "MICROSOFT CORP", env.Data[0]["name"])
	})

	t.Run("no matches", func(t *testing.T) {
		env := a.searchCompany(context.Background(), map[string]any{"query": "zzzz"})
		require.True(t, env.Success, env.ErrorText())
		assert.Empty(t, env.Data)
		assert.Equal(t, 0, env.Metadata["count"])
	})
}

func TestCompanyFilings_JoinsColumns(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(submissionsFixture))
	}))
	defer ts.Close()

	a := testAdapter(t, ts)
	env := a.companyFilings(context.Background(), map[string]any{"cik": "320193"})

	require.True(t, env.Success, env.ErrorText())
	assert.Equal(t, "/submissions/CIK0000320193.json", gotPath)
	require.Len(t, env.Data, 3)

	first := env.Data[0]
	assert.Equal(t, "0000320193-24-000001", first["accession_number"])
	assert.Equal(t, "10-Q", first["form_type"])
	assert.Equal(t, "Quarterly Report", first["form_description"])
	assert.Equal(t, "2024-02-02", first["filing_date"])
	assert.Equal(t, "2023-12-30", first["report_date"])
	assert.Equal(t, "aapl-20231230.htm", first["primary_document"])
	assert.Equal(t,
		"https://www.sec.gov/Archives/edgar/data/320193/000032019324000001/0000320193-24-000001-index.htm",
		first["filing_url"])

	assert.Equal(t, "Apple Inc.", env.Metadata["company_name"])
	assert.Equal(t, "3571", env.Metadata["sic"])
	assert.Equal(t, "Electronic Computers", env.Metadata["sic_description"])
	assert.Equal(t, "Manufacturing", env.Metadata["industry_group"])
}

func TestCompanyFilings_FormTypeFilterAndCount(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(submissionsFixture))
	}))
	defer ts.Close()

	a := testAdapter(t, ts)

	t.Run("filter", func(t *testing.T) {
		env := a.companyFilings(context.Background(), map[string]any{
			"cik":       "320193",
			"form_type": "10-K",
		})
		require.True(t, env.Success, env.ErrorText())
		require.Len(t, env.Data, 1)
		assert.Equal(t, "10-K", env.Data[0]["form_type"])
		assert.Equal(t, "Annual Report", env.Data[0]["form_description"])
	})

	t.Run("count truncates", func(t *testing.T) {
		env := a.companyFilings(context.Background(), map[string]any{
			"cik":   "320193",
			"count": 1,
		})
		require.True(t, env.Success, env.ErrorText())
		require.Len(t, env.Data, 1)
		assert.Equal(t, "0000320193-24-000001", env.Data[0]["accession_number"])
	})
}

func TestCompanyFilings_UnknownCIK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer ts.Close()

	a := testAdapter(t, ts)
	env := a.companyFilings(context.Background(), map[string]any{"cik": "999"})

	require.False(t, env.Success)
	assert.Contains(t, env.ErrorText(), "TerminalHttpError: HTTP 404")
}

func TestInsiderTrades_SelectsForm4(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(submissionsFixture))
	}))
	defer ts.Close()

	a := testAdapter(t, ts)
	env := a.insiderTrades(context.Background(), map[string]any{"cik": "320193"})

	require.True(t, env.Success, env.ErrorText())
	require.Len(t, env.Data, 1)
	assert.Equal(t, "4", env.Data[0]["form_type"])
	assert.Equal(t, "Statement of Changes in Beneficial Ownership", env.Data[0]["form_description"])
	assert.Equal(t, "4", env.Metadata["form_type"])
}

func TestCompanyFacts_SingleRecord(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"cik": 320193, "entityName": "Apple Inc.", "facts": {"us-gaap": {}}}`))
	}))
	defer ts.Close()

	a := testAdapter(t, ts)
	env := a.companyFacts(context.Background(), map[string]any{"cik": "320193"})

	require.True(t, env.Success, env.ErrorText())
	assert.Equal(t, "/api/xbrl/companyfacts/CIK0000320193.json", gotPath)
	require.Len(t, env.Data, 1)
	assert.Equal(t, "Apple Inc.", env.Data[0]["entityName"])
}

func TestFormTypes_SortedListing(t *testing.T) {
	a := New(DefaultConfig())
	env := a.formTypes(context.Background(), nil)

	require.True(t, env.Success)
	require.Len(t, env.Data, len(CommonFormTypes))

	prev := ""
	for _, rec := range env.Data {
		form, ok := rec["form_type"].(string)
		require.True(t, ok)
		assert.Greater(t, form, prev)
		assert.Equal(t, CommonFormTypes[form], rec["description"])
		prev = form
	}
}

func TestFilingURL(t *testing.T) {
	assert.Equal(t,
		"https://www.sec.gov/Archives/edgar/data/1318605/000156459024000001/0001564590-24-000001-index.htm",
		filingURL("0001318605", "0001564590-24-000001"))
}
