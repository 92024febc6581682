package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrConfiguration means the tenant's provider settings cannot be used;
	// it is returned before any network call.
	ErrConfiguration = errors.New("llm: configuration error")
	ErrRateLimited   = errors.New("llm: rate limited")
	ErrAuthInvalid   = errors.New("llm: invalid credentials")
	ErrUnavailable   = errors.New("llm: provider unavailable")
)

// ProviderError carries the classification of a failed provider call.
// errors.Is matches it against its Kind sentinel.
type ProviderError struct {
	Kind       error
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Provider != "" {
		fmt.Fprintf(&b, " (%s", e.Provider)
		if e.StatusCode > 0 {
			fmt.Fprintf(&b, " status %d", e.StatusCode)
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Is(target error) bool {
	return target == e.Kind
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func configurationError(provider, format string, args ...any) error {
	return &ProviderError{Kind: ErrConfiguration, Provider: provider, Err: fmt.Errorf(format, args...)}
}

func unavailable(provider string, err error) error {
	return &ProviderError{Kind: ErrUnavailable, Provider: provider, Err: err}
}

// classifyStatus maps an HTTP status and provider error text onto the
// failure taxonomy.
func classifyStatus(provider string, status int, message string, err error) error {
	kind := ErrUnavailable
	switch {
	case status == http.StatusTooManyRequests:
		kind = ErrRateLimited
	case status == http.StatusUnauthorized:
		kind = ErrAuthInvalid
	case status == http.StatusBadRequest && mentionsAPIKey(message):
		kind = ErrAuthInvalid
	}
	return &ProviderError{Kind: kind, Provider: provider, StatusCode: status, Err: err}
}

func mentionsAPIKey(message string) bool {
	m := strings.ToLower(message)
	for _, needle := range []string{"api key", "api_key", "apikey", "x-api-key"} {
		if strings.Contains(m, needle) {
			return true
		}
	}
	return false
}

// Kind reports the sentinel an error was classified as, or nil.
func Kind(err error) error {
	for _, k := range []error{ErrConfiguration, ErrRateLimited, ErrAuthInvalid, ErrUnavailable} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
