package recurrence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cyp0633/librecur/internal/datetime"
	"github.com/samber/mo"
)

// Calculator computes next occurrences with the richest provider available and
// falls back to FindNext whenever that provider cannot handle a rule.
// It is safe for concurrent use.
type Calculator struct {
	factory ProviderFactory
	logger  *slog.Logger
	now     func() time.Time
	cache   *Cache

	once     sync.Once
	provider Provider
}

// Option represents a configuration option for the Calculator
type Option func(*Calculator)

// WithLogger sets the logger for the calculator
func WithLogger(logger *slog.Logger) Option {
	return func(c *Calculator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithProviderFactory replaces DefaultProviderFactory
func WithProviderFactory(factory ProviderFactory) Option {
	return func(c *Calculator) {
		if factory != nil {
			c.factory = factory
		}
	}
}

// WithClock sets the source of "now" for NextFromNow
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithConfig enables or disables result caching
func WithConfig(config Config) Option {
	return func(c *Calculator) {
		if c.cache != nil {
			c.cache.Close()
			c.cache = nil
		}
		if config.CacheEnabled {
			c.cache = NewCache(config.CacheConfig)
		}
	}
}

// NewCalculator creates a calculator. Without options it uses the rrule-go
// provider, no cache and a discarding logger.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{
		factory: DefaultProviderFactory,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Next returns the first occurrence of rule strictly after ref. It never fails:
// provider errors are answered by FindNext with the same arguments.
func (c *Calculator) Next(ctx context.Context, start time.Time, rule Rule, ref time.Time) Occurrence {
	p := c.resolve(ctx)

	if c.cache != nil {
		if result, ok := c.cache.Get(p.Name(), start, rule, ref); ok {
			return result
		}
	}

	result := c.compute(p, start, rule, ref)

	if c.cache != nil {
		c.cache.Set(p.Name(), start, rule, ref, result)
	}
	return result
}

// NextFromNow is Next with the calculator's clock as reference
func (c *Calculator) NextFromNow(ctx context.Context, start time.Time, rule Rule) Occurrence {
	return c.Next(ctx, start, rule, c.now())
}

// NextOption is Next without the reason, for callers that only need a date
func (c *Calculator) NextOption(ctx context.Context, start time.Time, rule Rule, ref time.Time) mo.Option[time.Time] {
	return c.Next(ctx, start, rule, ref).Option()
}

// Upcoming returns up to n successive occurrences after ref, in order
func (c *Calculator) Upcoming(ctx context.Context, start time.Time, rule Rule, ref time.Time, n int) []time.Time {
	dates := make([]time.Time, 0, max(n, 0))
	cursor := ref
	for len(dates) < n {
		if ctx.Err() != nil {
			break
		}
		occ := c.Next(ctx, start, rule, cursor)
		if !occ.Found || !occ.Date.After(cursor) {
			break
		}
		dates = append(dates, occ.Date)
		cursor = occ.Date
	}
	return dates
}

// Validate runs the package-level Validate and, when the rule is usable,
// asks the provider to build it as well. Provider complaints are logged only;
// the returned messages are exactly those of Validate.
func (c *Calculator) Validate(ctx context.Context, p PartialRule) []string {
	errs := Validate(p)

	rule, ok := ruleFromPartial(p)
	if !ok {
		return errs
	}

	provider := c.resolve(ctx)
	if err := safeCheck(provider, rule); err != nil {
		c.logger.Debug("provider rejected recurrence rule",
			"provider", provider.Name(),
			"frequency", rule.Frequency,
			"error", err)
	}
	return errs
}

// ProviderName reports which provider serves this calculator
func (c *Calculator) ProviderName(ctx context.Context) string {
	return c.resolve(ctx).Name()
}

// Close releases the cache, if any
func (c *Calculator) Close() {
	if c.cache != nil {
		c.cache.Close()
	}
}

// CacheStats returns statistics of the result cache, zero when caching is off
func (c *Calculator) CacheStats() CacheStats {
	if c.cache == nil {
		return CacheStats{}
	}
	return c.cache.Stats()
}

func (c *Calculator) compute(p Provider, start time.Time, rule Rule, ref time.Time) Occurrence {
	if _, ok := p.(BasicProvider); ok {
		c.warnIgnoredByRules(rule)
		return FindNext(start, rule, ref)
	}

	result, err := safeNext(p, start, rule, ref)
	if err == nil {
		return result
	}

	if errors.Is(err, ErrUnsupportedFrequency) {
		c.logger.Debug("frequency not handled by provider, using basic calculation",
			"provider", p.Name(), "frequency", rule.Frequency)
	} else {
		c.logger.Warn("provider failed, using basic calculation",
			"provider", p.Name(), "error", err)
		c.warnIgnoredByRules(rule)
	}
	return FindNext(start, rule, ref)
}

func (c *Calculator) warnIgnoredByRules(rule Rule) {
	if rule.HasByRules() {
		c.logger.Warn("basic calculation ignores byWeekDay and byMonthDay",
			"byWeekDay", rule.ByWeekDay, "byMonthDay", rule.ByMonthDay)
	}
}

// resolve acquires the provider once for the calculator's lifetime
func (c *Calculator) resolve(ctx context.Context) Provider {
	c.once.Do(func() {
		c.provider = c.acquire(ctx)
	})
	return c.provider
}

func (c *Calculator) acquire(ctx context.Context) Provider {
	type result struct {
		provider Provider
		err      error
	}

	if err := ctx.Err(); err != nil {
		c.logger.Warn("recurrence provider acquisition cancelled, using basic calculation", "error", err)
		return BasicProvider{}
	}

	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("provider factory panicked: %v", r)}
			}
		}()
		p, err := c.factory(ctx)
		done <- result{provider: p, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			c.logger.Warn("recurrence provider unavailable, using basic calculation", "error", r.err)
			return BasicProvider{}
		}
		if r.provider == nil {
			c.logger.Warn("recurrence provider factory returned nil, using basic calculation")
			return BasicProvider{}
		}
		c.logger.Debug("recurrence provider ready", "provider", r.provider.Name())
		return r.provider
	case <-ctx.Done():
		c.logger.Warn("recurrence provider acquisition cancelled, using basic calculation", "error", ctx.Err())
		return BasicProvider{}
	}
}

func safeNext(p Provider, start time.Time, rule Rule, ref time.Time) (occ Occurrence, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider %s panicked: %v", p.Name(), r)
		}
	}()
	return p.Next(start, rule, ref)
}

func safeCheck(p Provider, rule Rule) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider %s panicked: %v", p.Name(), r)
		}
	}()
	return p.Check(rule)
}

// ruleFromPartial builds a rule worth checking against a provider. Partial
// rules that already fail frequency validation, or use custom, are skipped.
func ruleFromPartial(p PartialRule) (Rule, bool) {
	if !p.Frequency.Supported() {
		return Rule{}, false
	}

	rule := Rule{
		Frequency:   p.Frequency,
		Occurrences: p.Occurrences,
		ByWeekDay:   p.ByWeekDay,
		ByMonthDay:  p.ByMonthDay,
	}
	if p.Interval != nil {
		rule.Interval = *p.Interval
	}
	if p.EndDate != "" {
		if end, err := datetime.Parse(p.EndDate); err == nil {
			rule.EndDate = &end
		}
	}
	return rule, true
}
