// Package translate validates translation requests, prompts a text-generation
// provider and classifies failures. It also exposes the gateway over HTTP and
// the bus.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	ErrValidation  = errors.New("translate: invalid request")
	ErrRateLimited = errors.New("translate: rate limited")
	ErrProvider    = errors.New("translate: provider failure")
)

// ValidationError describes the offending field of a rejected request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Request is a single translation request. SourceLang may be empty, in which
// case the provider is told to detect the language.
type Request struct {
	Text       string `json:"text"`
	TargetLang string `json:"targetLang"`
	SourceLang string `json:"sourceLang,omitempty"`
}

type Result struct {
	Translated string `json:"translated"`
}

// Translator turns a Request into a Result. Errors match ErrValidation,
// ErrRateLimited or ErrProvider.
type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(ctx context.Context, req Request) (Result, error)

func (f TranslatorFunc) Translate(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// Validate checks the structural rules: text non-empty and a target language
// code of 2 to 5 characters.
func Validate(req Request) error {
	if req.Text == "" {
		return &ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if n := utf8.RuneCountInString(req.TargetLang); n < 2 || n > 5 {
		return &ValidationError{Field: "targetLang", Reason: "must be 2 to 5 characters"}
	}
	return nil
}

type clientKey struct{}

// WithClientKey attaches the rate-limit key of the caller to ctx.
func WithClientKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, clientKey{}, key)
}

// ClientKey returns the key set by WithClientKey, or "local".
func ClientKey(ctx context.Context) string {
	if key, ok := ctx.Value(clientKey{}).(string); ok && key != "" {
		return key
	}
	return localClientKey
}

const localClientKey = "local"

// keyFromForwardedFor picks the first address of an X-Forwarded-For value.
func keyFromForwardedFor(header string) string {
	first, _, _ := strings.Cut(header, ",")
	if first = strings.TrimSpace(first); first != "" {
		return first
	}
	return localClientKey
}
