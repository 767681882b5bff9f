// Package credentials resolves per-source API keys from the environment.
//
// The store is built once at process start and is read-only afterwards.
// A source whose required credential is absent does not crash the process;
// every call for that source fails with a validation error before any
// request is built.
package credentials

import (
	"fmt"
	"os"
	"strings"
)

// Spec names the environment entry backing one credential of a source.
// A source may declare more than one (EPA needs both email and key).
type Spec struct {
	Source   string // source id, e.g. "census"
	Name     string // credential name within the source, e.g. "api_key"
	EnvVar   string // environment variable holding the value
	Required bool
}

// Credential is a resolved secret. Value is empty when the entry was absent.
type Credential struct {
	Source  string
	Name    string
	Value   string
	Present bool
}

// Store holds resolved credentials for all sources.
type Store struct {
	specs map[string][]Spec
	creds map[string]Credential // keyed by source + "/" + name
}

// Load resolves all specs against the environment and returns the
// immutable store. Missing required entries are recorded, not fatal.
func Load(specs ...Spec) *Store {
	return LoadFunc(os.Getenv, specs...)
}

// LoadFunc is Load with an injectable environment, for tests.
func LoadFunc(getenv func(string) string, specs ...Spec) *Store {
	s := &Store{
		specs: map[string][]Spec{},
		creds: map[string]Credential{},
	}
	for _, spec := range specs {
		value := strings.TrimSpace(getenv(spec.EnvVar))
		s.specs[spec.Source] = append(s.specs[spec.Source], spec)
		s.creds[credKey(spec.Source, spec.Name)] = Credential{
			Source:  spec.Source,
			Name:    spec.Name,
			Value:   value,
			Present: value != "",
		}
	}
	return s
}

// Resolve returns the named credential for a source.
// The error names the env var for a missing required entry, never the value.
func (s *Store) Resolve(source, name string) (Credential, error) {
	cred, ok := s.creds[credKey(source, name)]
	if !ok {
		return Credential{}, fmt.Errorf("no credential %q declared for source %q", name, source)
	}
	if !cred.Present {
		for _, spec := range s.specs[source] {
			if spec.Name == name && spec.Required {
				return Credential{}, fmt.Errorf("missing credential: set %s", spec.EnvVar)
			}
		}
	}
	return cred, nil
}

// Check verifies that every required credential of a source resolved.
// Adapters call this before building any request.
func (s *Store) Check(source string) error {
	for _, spec := range s.specs[source] {
		if !spec.Required {
			continue
		}
		if cred := s.creds[credKey(spec.Source, spec.Name)]; !cred.Present {
			return fmt.Errorf("missing credential: set %s", spec.EnvVar)
		}
	}
	return nil
}

func credKey(source, name string) string {
	return source + "/" + name
}
