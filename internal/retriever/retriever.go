// Package retriever fetches raw "People Also Ask" question text for a topic.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/paaexplorer/internal/config"
)

// ErrUnknownMode is returned by New for an unrecognised retriever mode.
var ErrUnknownMode = errors.New("unknown retriever mode")

// Retriever returns up to limit raw candidate strings for a topic, in page order.
// Strings are unfiltered; the caller normalizes and drops unusable ones.
// An empty result is not an error.
type Retriever interface {
	Retrieve(ctx context.Context, topic, locale string, limit int) ([]string, error)
}

// Closer is implemented by retrievers holding external resources.
type Closer interface {
	Close() error
}

// New builds the retriever selected by cfg.Mode.
func New(cfg config.RetrieverConfig, logger *zap.Logger) (Retriever, error) {
	switch strings.ToLower(cfg.Mode) {
	case "", "browser":
		return NewBrowserRetriever(cfg, logger), nil
	case "demo":
		return NewDemoRetriever(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode)
	}
}

// Close releases r's resources when it holds any.
func Close(r Retriever) error {
	if c, ok := r.(Closer); ok {
		return c.Close()
	}
	return nil
}

// Language returns the language part of a locale such as "en-US".
func Language(locale string) string {
	lang, _, _ := strings.Cut(locale, "-")
	lang, _, _ = strings.Cut(lang, "_")
	if lang == "" {
		return "en"
	}
	return strings.ToLower(lang)
}

// SearchURL builds the results page address for topic.
func SearchURL(base, topic, locale string) string {
	q := url.Values{}
	q.Set("q", topic)
	q.Set("hl", Language(locale))
	q.Set("gl", "us")
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}
