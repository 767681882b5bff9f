package httpclient

import (
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/usdatahub/usdata-mcp/pkg/credentials"
)

// AuthMode selects how a credential is injected into a request.
type AuthMode int

const (
	AuthNone AuthMode = iota
	AuthQueryParam
	AuthHeader
)

// AuthScheme declares a source's credential placement, e.g.
// {AuthQueryParam, "key"} for the Census API.
type AuthScheme struct {
	Mode AuthMode
	Name string // query parameter name or header name
}

// Param is one (key, value) query parameter.
type Param struct {
	Key   string
	Value string
}

// RequestSpec is one canonical request descriptor. It is immutable once
// built; every call attempt reuses the same spec.
type RequestSpec struct {
	Method  string
	BaseURL string
	Path    string
	Query   []Param // canonical order: sorted by key, ties by insertion order
	Headers map[string]string
	Body    any // marshaled to JSON when non-nil
	Timeout time.Duration

	secretKeys []string // query keys whose values must never be logged
}

// Builder accumulates parameters and produces a canonical RequestSpec.
type Builder struct {
	method  string
	baseURL string
	path    string
	params  []Param
	secrets []string
	headers map[string]string
	body    any
	timeout time.Duration
}

// NewRequest starts a builder for the given method, base URL and path.
func NewRequest(method, baseURL, path string) *Builder {
	return &Builder{
		method:  method,
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    path,
		headers: map[string]string{},
		timeout: 30 * time.Second,
	}
}

// Param appends a query parameter. Empty values are dropped, which is how
// absent optional arguments stay out of the canonical form.
func (b *Builder) Param(key, value string) *Builder {
	if value == "" {
		return b
	}
	b.params = append(b.params, Param{Key: key, Value: value})
	return b
}

// ParamInt appends an integer query parameter. Zero is dropped.
func (b *Builder) ParamInt(key string, value int) *Builder {
	if value == 0 {
		return b
	}
	return b.Param(key, strconv.Itoa(value))
}

// SecretParam appends a query parameter whose value is masked in logs.
// Used by sources that take more than one credential in the query string.
func (b *Builder) SecretParam(key, value string) *Builder {
	if value == "" {
		return b
	}
	b.params = append(b.params, Param{Key: key, Value: value})
	b.secrets = append(b.secrets, key)
	return b
}

// Header sets a request header.
func (b *Builder) Header(key, value string) *Builder {
	if value != "" {
		b.headers[key] = value
	}
	return b
}

// Body sets a JSON request body (used by the BLS POST API).
func (b *Builder) Body(body any) *Builder {
	b.body = body
	return b
}

// Timeout overrides the per-attempt timeout.
func (b *Builder) Timeout(d time.Duration) *Builder {
	if d > 0 {
		b.timeout = d
	}
	return b
}

// Build canonicalizes the accumulated parameters and injects the credential
// according to the scheme. The credential value participates in the request
// but is excluded from all diagnostic output.
func (b *Builder) Build(cred credentials.Credential, scheme AuthScheme) RequestSpec {
	spec := RequestSpec{
		Method:  b.method,
		BaseURL: b.baseURL,
		Path:    b.path,
		Headers: make(map[string]string, len(b.headers)+1),
		Body:    b.body,
		Timeout: b.timeout,
	}
	for k, v := range b.headers {
		spec.Headers[k] = v
	}
	spec.secretKeys = append(spec.secretKeys, b.secrets...)

	params := make([]Param, len(b.params))
	copy(params, b.params)

	if cred.Present {
		switch scheme.Mode {
		case AuthQueryParam:
			params = append(params, Param{Key: scheme.Name, Value: cred.Value})
			spec.secretKeys = append(spec.secretKeys, scheme.Name)
		case AuthHeader:
			spec.Headers[scheme.Name] = cred.Value
		}
	}

	// Stable sort keeps insertion order for duplicate keys, so logically
	// equal parameter sets always canonicalize to the same sequence.
	sort.SliceStable(params, func(i, j int) bool {
		return params[i].Key < params[j].Key
	})
	spec.Query = params
	return spec
}

// URL renders the full request URL including the encoded query string.
func (s RequestSpec) URL() string {
	u := s.BaseURL + s.Path
	if q := s.EncodeQuery(); q != "" {
		u += "?" + q
	}
	return u
}

// EncodeQuery renders the query string in canonical order.
func (s RequestSpec) EncodeQuery() string {
	var sb strings.Builder
	for i, p := range s.Query {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.Value))
	}
	return sb.String()
}

// WithParam returns a copy of the spec with one parameter replaced (or
// appended), re-canonicalized. Used by the pagination assembler to advance
// the offset without mutating the original spec.
func (s RequestSpec) WithParam(key, value string) RequestSpec {
	out := s
	out.Query = make([]Param, 0, len(s.Query)+1)
	replaced := false
	for _, p := range s.Query {
		if p.Key == key {
			out.Query = append(out.Query, Param{Key: key, Value: value})
			replaced = true
			continue
		}
		out.Query = append(out.Query, p)
	}
	if !replaced {
		out.Query = append(out.Query, Param{Key: key, Value: value})
		sort.SliceStable(out.Query, func(i, j int) bool {
			return out.Query[i].Key < out.Query[j].Key
		})
	}
	return out
}

// LogValue implements slog.LogValuer. Credential-bearing query values are
// masked so request specs are safe to log at any level.
func (s RequestSpec) LogValue() slog.Value {
	masked := make([]string, 0, len(s.Query))
	for _, p := range s.Query {
		v := p.Value
		for _, secret := range s.secretKeys {
			if p.Key == secret {
				v = "***"
				break
			}
		}
		masked = append(masked, p.Key+"="+v)
	}
	return slog.GroupValue(
		slog.String("method", s.Method),
		slog.String("url", s.BaseURL+s.Path),
		slog.String("query", strings.Join(masked, "&")),
	)
}
