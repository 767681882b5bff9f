package epa

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usdatahub/usdata-mcp/pkg/credentials"
	"github.com/usdatahub/usdata-mcp/pkg/httpclient"
)

func testCreds(t *testing.T, env map[string]string) *credentials.Store {
	t.Helper()
	return credentials.LoadFunc(func(name string) string { return env[name] }, CredentialSpecs()...)
}

func fullCreds(t *testing.T) *credentials.Store {
	t.Helper()
	return testCreds(t, map[string]string{
		"EPA_AQS_EMAIL": "analyst@example.gov",
		"EPA_AQS_KEY":   "aqs-secret",
	})
}

func testAdapter(t *testing.T, ts *httptest.Server, creds *credentials.Store) *Adapter {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseURL = ts.URL
	cfg.Timeout = 5 * time.Second
	cfg.Retry.BaseDelay = time.Millisecond
	return New(creds, cfg, WithClient(httpclient.NewClient(httpclient.WithHTTPClient(ts.Client()))))
}

const dailyFixture = `{
	"Header": [{"status": "Success", "rows": 2}],
	"Data": [
		{"state": "California", "county": "Sacramento", "parameter": "Ozone", "arithmetic_mean": 0.031, "date_local": "2023-06-01"},
		{"state": "California", "county": "Sacramento", "parameter": "Ozone", "arithmetic_mean": 0.035, "date_local": "2023-06-02"}
	]
}`

func dailyRequestArgs() map[string]any {
	return map[string]any{
		"param_code": "44201",
		"bdate":      "20230601",
		"edate":      "20230630",
		"state":      "06",
	}
}

func TestDailyAirQuality_StateScope(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Write([]byte(dailyFixture))
	}))
	defer ts.Close()

	a := testAdapter(t, ts, fullCreds(t))
	env := a.dailyAirQuality(context.Background(), dailyRequestArgs())

	require.True(t, env.Success, env.ErrorText())
	require.Len(t, env.Data, 2)
	assert.Equal(t, "2023-06-01", env.Data[0]["date_local"])
	assert.Equal(t, 2, env.Metadata["count"])
	assert.Equal(t, "44201", env.Metadata["param"])
	assert.Equal(t, "Ozone", env.Metadata["param_description"])

	assert.Equal(t, "/dailyData/byState", gotPath)
	assert.Equal(t, []string{"analyst@example.gov"}, gotQuery["email"])
	assert.Equal(t, []string{"aqs-secret"}, gotQuery["key"])
	assert.Equal(t, []string{"06"}, gotQuery["state"])
	assert.NotContains(t, gotQuery, "county")
}

func TestDailyAirQuality_CountyScope(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Write([]byte(dailyFixture))
	}))
	defer ts.Close()

	a := testAdapter(t, ts, fullCreds(t))
	args := dailyRequestArgs()
	args["county"] = "067"
	env := a.dailyAirQuality(context.Background(), args)

	require.True(t, env.Success, env.ErrorText())
	assert.Equal(t, "/dailyData/byCounty", gotPath)
	assert.Equal(t, []string{"067"}, gotQuery["county"])
}

func TestDailyAirQuality_MissingCredentials(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	defer ts.Close()

	t.Run("no email", func(t *testing.T) {
		creds := testCreds(t, map[string]string{"EPA_AQS_KEY": "aqs-secret"})
		env := testAdapter(t, ts, creds).dailyAirQuality(context.Background(), dailyRequestArgs())
		require.False(t, env.Success)
		assert.Equal(t, "ValidationError: missing credential: set EPA_AQS_EMAIL", env.ErrorText())
	})

	t.Run("no key", func(t *testing.T) {
		creds := testCreds(t, map[string]string{"EPA_AQS_EMAIL": "analyst@example.gov"})
		env := testAdapter(t, ts, creds).dailyAirQuality(context.Background(), dailyRequestArgs())
		require.False(t, env.Success)
		assert.Equal(t, "ValidationError: missing credential: set EPA_AQS_KEY", env.ErrorText())
	})
}

func TestDailyAirQuality_HeaderRejection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"Header": [{"status": "Failed", "error_msg": "Invalid state code"}],
			"Data": []
		}`))
	}))
	defer ts.Close()

	a := testAdapter(t, ts, fullCreds(t))
	env := a.dailyAirQuality(context.Background(), dailyRequestArgs())

	require.False(t, env.Success)
	assert.Contains(t, env.ErrorText(), "TerminalHttpError")
	assert.Contains(t, env.ErrorText(), "AQS request rejected: Invalid state code")
}

func TestDailyAirQuality_EmptyHeader(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Header": [], "Data": []}`))
	}))
	defer ts.Close()

	a := testAdapter(t, ts, fullCreds(t))
	env := a.dailyAirQuality(context.Background(), dailyRequestArgs())

	require.False(t, env.Success)
	assert.Contains(t, env.ErrorText(), "Unknown AQS error")
}

func TestCommonParameters_SortedListing(t *testing.T) {
	a := New(fullCreds(t), DefaultConfig())
	env := a.commonParameters(context.Background(), nil)

	require.True(t, env.Success)
	require.Len(t, env.Data, len(CommonParams))
	assert.Equal(t, len(CommonParams), env.Metadata["count"])

	prev := ""
	for _, rec := range env.Data {
		code, ok := rec["code"].(string)
		require.True(t, ok)
		assert.Greater(t, code, prev)
		assert.Equal(t, CommonParams[code], rec["description"])
		prev = code
	}
}
