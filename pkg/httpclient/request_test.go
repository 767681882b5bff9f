package httpclient

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usdatahub/usdata-mcp/pkg/credentials"
)

func TestBuild_CanonicalOrderIsDeterministic(t *testing.T) {
	// Two logically equal parameter sets supplied in different orders must
	// canonicalize to byte-identical query strings.
	a := NewRequest(http.MethodGet, "https://api.census.gov/data", "/2023/acs/acs5").
		Param("for", "state:06").
		Param("get", "NAME,B01003_001E").
		Build(credentials.Credential{}, AuthScheme{Mode: AuthNone})

	b := NewRequest(http.MethodGet, "https://api.census.gov/data", "/2023/acs/acs5").
		Param("get", "NAME,B01003_001E").
		Param("for", "state:06").
		Build(credentials.Credential{}, AuthScheme{Mode: AuthNone})

	assert.Equal(t, a.EncodeQuery(), b.EncodeQuery())
	assert.Equal(t, a.URL(), b.URL())
}

func TestBuild_DropsEmptyValues(t *testing.T) {
	spec := NewRequest(http.MethodGet, "https://example.org", "/v1").
		Param("present", "yes").
		Param("absent", "").
		ParamInt("zero", 0).
		ParamInt("limit", 10).
		Build(credentials.Credential{}, AuthScheme{Mode: AuthNone})

	assert.Equal(t, "limit=10&present=yes", spec.EncodeQuery())
}

func TestBuild_QueryParamCredential(t *testing.T) {
	cred := credentials.Credential{Source: "census", Name: "api_key", Value: "s3cret", Present: true}
	spec := NewRequest(http.MethodGet, "https://api.census.gov/data", "/2023/acs/acs5").
		Param("get", "NAME").
		Build(cred, AuthScheme{Mode: AuthQueryParam, Name: "key"})

	assert.Equal(t, "get=NAME&key=s3cret", spec.EncodeQuery())
}

func TestBuild_HeaderCredential(t *testing.T) {
	cred := credentials.Credential{Value: "tok", Present: true}
	spec := NewRequest(http.MethodGet, "https://example.org", "/v1").
		Build(cred, AuthScheme{Mode: AuthHeader, Name: "X-Api-Key"})

	assert.Equal(t, "tok", spec.Headers["X-Api-Key"])
	assert.Empty(t, spec.EncodeQuery())
}

func TestBuild_AbsentCredentialNotInjected(t *testing.T) {
	spec := NewRequest(http.MethodGet, "https://example.org", "/v1").
		Param("q", "x").
		Build(credentials.Credential{}, AuthScheme{Mode: AuthQueryParam, Name: "key"})

	assert.Equal(t, "q=x", spec.EncodeQuery())
}

func TestLogValue_MasksCredentials(t *testing.T) {
	cred := credentials.Credential{Value: "s3cret", Present: true}
	spec := NewRequest(http.MethodGet, "https://aqs.epa.gov/data/api", "/dailyData/byState").
		SecretParam("email", "ops@example.org").
		Param("state", "06").
		Build(cred, AuthScheme{Mode: AuthQueryParam, Name: "key"})

	rendered := spec.LogValue().String()
	assert.NotContains(t, rendered, "s3cret")
	assert.NotContains(t, rendered, "ops@example.org")
	assert.Contains(t, rendered, "key=***")
	assert.Contains(t, rendered, "email=***")
	assert.Contains(t, rendered, "state=06")

	// The secret still participates in the real query.
	assert.Contains(t, spec.EncodeQuery(), "key=s3cret")

	// Exercise the slog path too; a LogValuer must survive real handlers.
	logger := slog.New(slog.DiscardHandler)
	logger.Info("request", "spec", spec)
}

func TestWithParam_ReplacesAndAppends(t *testing.T) {
	spec := NewRequest(http.MethodGet, "https://api.fda.gov", "/drug/label.json").
		Param("search", "aspirin").
		ParamInt("skip", 0). // dropped
		ParamInt("limit", 100).
		Build(credentials.Credential{}, AuthScheme{Mode: AuthNone})

	// Appending a new key re-sorts.
	next := spec.WithParam("skip", "100")
	assert.Equal(t, "limit=100&search=aspirin&skip=100", next.EncodeQuery())

	// Replacing keeps position and does not duplicate.
	again := next.WithParam("skip", "200")
	assert.Equal(t, "limit=100&search=aspirin&skip=200", again.EncodeQuery())

	// The original spec is untouched.
	assert.Equal(t, "limit=100&search=aspirin", spec.EncodeQuery())
}

func TestEncodeQuery_EscapesValues(t *testing.T) {
	spec := NewRequest(http.MethodGet, "https://example.org", "/v1").
		Param("q", "new york").
		Build(credentials.Credential{}, AuthScheme{Mode: AuthNone})

	assert.Equal(t, "q=new+york", spec.EncodeQuery())
}

func TestTimeout_Default(t *testing.T) {
	spec := NewRequest(http.MethodGet, "https://example.org", "/v1").
		Build(credentials.Credential{}, AuthScheme{Mode: AuthNone})
	require.Equal(t, 30*time.Second, spec.Timeout)

	spec = NewRequest(http.MethodGet, "https://example.org", "/v1").
		Timeout(time.Minute).
		Build(credentials.Credential{}, AuthScheme{Mode: AuthNone})
	require.Equal(t, time.Minute, spec.Timeout)
}
