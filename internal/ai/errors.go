package ai

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingCredentials is returned by provider factories when no API key or
// credential chain is configured.
var ErrMissingCredentials = errors.New("missing credentials")

type UnsupportedProviderError struct {
	Provider string
	Valid    []string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported provider %q, available providers: %s", e.Provider, strings.Join(e.Valid, ", "))
}

type UnsupportedModelError struct {
	Provider Provider
	Model    string
	Valid    []string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("unsupported model %q for provider %q, available models: %s", e.Model, e.Provider, strings.Join(e.Valid, ", "))
}
