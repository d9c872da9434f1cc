package recurrence

import (
	"context"
	"time"
)

// Provider computes occurrences for a rule. Implementations must be safe for
// concurrent use.
type Provider interface {
	// Name identifies the provider in logs
	Name() string
	// Next returns the first occurrence strictly after ref. An error means the
	// provider could not handle the rule; the caller may retry elsewhere.
	Next(start time.Time, rule Rule, ref time.Time) (Occurrence, error)
	// Check reports whether the provider could build the rule at all
	Check(rule Rule) error
}

// ProviderFactory acquires a provider. It is called at most once per Calculator.
type ProviderFactory func(ctx context.Context) (Provider, error)

// BasicProvider is the built-in provider backed by FindNext. It never fails.
type BasicProvider struct{}

func (BasicProvider) Name() string { return "basic" }

func (BasicProvider) Next(start time.Time, rule Rule, ref time.Time) (Occurrence, error) {
	return FindNext(start, rule, ref), nil
}

func (BasicProvider) Check(Rule) error { return nil }

// BasicProviderFactory always yields the built-in provider
func BasicProviderFactory(context.Context) (Provider, error) {
	return BasicProvider{}, nil
}

// DefaultProviderFactory yields the RFC 5545 provider backed by rrule-go
func DefaultProviderFactory(context.Context) (Provider, error) {
	return NewRRuleProvider(), nil
}
