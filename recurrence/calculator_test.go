package recurrence

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBroken = errors.New("provider broken")

type failingProvider struct {
	checkErr error
	calls    atomic.Int32
}

func (p *failingProvider) Name() string { return "failing" }

func (p *failingProvider) Next(time.Time, Rule, time.Time) (Occurrence, error) {
	p.calls.Add(1)
	return Occurrence{}, errBroken
}

func (p *failingProvider) Check(Rule) error { return p.checkErr }

type panickingProvider struct{}

func (panickingProvider) Name() string { return "panicking" }

func (panickingProvider) Next(time.Time, Rule, time.Time) (Occurrence, error) {
	panic("boom")
}

func (panickingProvider) Check(Rule) error { panic("boom") }

func factoryFor(p Provider) ProviderFactory {
	return func(context.Context) (Provider, error) { return p, nil }
}

func debugLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Cases shared by the fallback tests
func fallbackCases() []struct {
	name string
	rule Rule
	ref  time.Time
} {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	return []struct {
		name string
		rule Rule
		ref  time.Time
	}{
		{name: "daily", rule: Rule{Frequency: Daily, Interval: 1}, ref: start.Add(23 * time.Hour)},
		{name: "weekly by weekday", rule: Rule{Frequency: Weekly, Interval: 1, ByWeekDay: []int{1}}, ref: start},
		{name: "monthly rollover", rule: Rule{Frequency: Monthly, Interval: 1}, ref: start.AddDate(0, 0, 40)},
		{name: "yearly with count", rule: Rule{Frequency: Yearly, Interval: 2, Occurrences: intPtr(1)}, ref: start.AddDate(3, 0, 0)},
		{name: "past end date", rule: Rule{Frequency: Daily, Interval: 1, EndDate: timePtr(start.Add(time.Hour))}, ref: start.AddDate(0, 0, 2)},
		{name: "custom", rule: Rule{Frequency: Custom, Interval: 1}, ref: start},
		{name: "negative interval", rule: Rule{Frequency: Daily, Interval: -1}, ref: start},
	}
}

func TestCalculator_DefaultProvider(t *testing.T) {
	ctx := context.Background()
	calc := NewCalculator()
	defer calc.Close()

	assert.Equal(t, "rrule", calc.ProviderName(ctx))

	// Thursday; the rich provider honours the Monday constraint
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	occ := calc.Next(ctx, start, Rule{Frequency: Weekly, Interval: 1, ByWeekDay: []int{1}}, start)
	require.True(t, occ.Found)
	assert.True(t, time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC).Equal(occ.Date))

	// Custom cannot be mapped and falls back to the basic answer
	occ = calc.Next(ctx, start, Rule{Frequency: Custom, Interval: 1}, start)
	assert.False(t, occ.Found)
	assert.Equal(t, ReasonUnsupported, occ.Reason)
}

func TestCalculator_FallbackMatchesBasic(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	factories := map[string]ProviderFactory{
		"provider errors": factoryFor(&failingProvider{}),
		"provider panics": factoryFor(panickingProvider{}),
		"factory errors": func(context.Context) (Provider, error) {
			return nil, errors.New("not installed")
		},
		"factory returns nil": func(context.Context) (Provider, error) { return nil, nil },
		"factory panics": func(context.Context) (Provider, error) {
			panic("import failed")
		},
		"basic provider": BasicProviderFactory,
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			calc := NewCalculator(WithProviderFactory(factory))
			for _, tc := range fallbackCases() {
				got := calc.Next(context.Background(), start, tc.rule, tc.ref)
				assert.Equal(t, FindNext(start, tc.rule, tc.ref), got, tc.name)
			}
		})
	}
}

func TestCalculator_ProviderNameAfterFailure(t *testing.T) {
	calc := NewCalculator(WithProviderFactory(func(context.Context) (Provider, error) {
		return nil, errors.New("not installed")
	}))
	assert.Equal(t, "basic", calc.ProviderName(context.Background()))
}

func TestCalculator_FactoryCalledOnce(t *testing.T) {
	var calls atomic.Int32
	provider := &failingProvider{}
	calc := NewCalculator(WithProviderFactory(func(context.Context) (Provider, error) {
		calls.Add(1)
		return provider, nil
	}))

	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			occ := calc.Next(context.Background(), start, Rule{Frequency: Daily, Interval: 1}, start.AddDate(0, 0, i))
			assert.True(t, occ.Found)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(20), provider.calls.Load(), "each call tries the provider before falling back")
}

func TestCalculator_ProviderAcquisitionCancelled(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	hung := func(ctx context.Context) (Provider, error) {
		<-block
		return NewRRuleProvider(), nil
	}

	t.Run("already cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calc := NewCalculator(WithProviderFactory(hung))
		assert.Equal(t, "basic", calc.ProviderName(ctx))
	})

	t.Run("timeout while waiting", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		calc := NewCalculator(WithProviderFactory(hung))
		start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
		rule := Rule{Frequency: Daily, Interval: 1}

		occ := calc.Next(ctx, start, rule, start)
		assert.Equal(t, FindNext(start, rule, start), occ)
		assert.Equal(t, "basic", calc.ProviderName(context.Background()), "the outcome is kept")
	})
}

func TestCalculator_Cache(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)

	cached := NewCalculator(WithConfig(DefaultConfig))
	defer cached.Close()
	uncached := NewCalculator(WithConfig(DisabledCacheConfig))
	defer uncached.Close()

	for _, tc := range fallbackCases() {
		first := cached.Next(ctx, start, tc.rule, tc.ref)
		second := cached.Next(ctx, start, tc.rule, tc.ref)
		assert.Equal(t, first, second, tc.name)
		assert.Equal(t, uncached.Next(ctx, start, tc.rule, tc.ref), first, tc.name)
	}

	assert.Equal(t, len(fallbackCases()), cached.CacheStats().TotalEntries)
	assert.Zero(t, uncached.CacheStats().TotalEntries)
}

func TestCalculator_DefaultAgreesWithBasic(t *testing.T) {
	ctx := context.Background()
	calc := NewCalculator()
	defer calc.Close()

	start := time.Date(2026, 1, 1, 10, 0, 0, 123_456_789, time.UTC)
	rules := []Rule{
		{Frequency: Daily, Interval: 1},
		{Frequency: Weekly, Interval: 2},
		{Frequency: Monthly, Interval: 1},
		{Frequency: Yearly, Interval: 1},
	}
	for _, rule := range rules {
		ref := start.AddDate(0, 0, 20).Add(-time.Hour)
		got := calc.Next(ctx, start, rule, ref)
		want := FindNext(start, rule, ref)
		require.True(t, got.Found, rule.Frequency)
		assert.True(t, want.Date.Equal(got.Date), "%s: rrule %v, basic %v", rule.Frequency, got.Date, want.Date)
	}

	// Too large for either calculation; must still return
	occ := calc.Next(ctx, start, Rule{Frequency: Weekly, Interval: 1 << 62}, start.AddDate(0, 0, 3))
	assert.False(t, occ.Found)
	assert.Equal(t, ReasonInvalid, occ.Reason)
}

func TestCalculator_NextFromNow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	calc := NewCalculator(WithClock(func() time.Time { return now }))

	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	occ := calc.NextFromNow(context.Background(), start, Rule{Frequency: Monthly, Interval: 1})
	require.True(t, occ.Found)
	assert.True(t, time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC).Equal(occ.Date))

	next, ok := calc.NextOption(context.Background(), start, Rule{Frequency: Monthly, Interval: 1}, now).Get()
	require.True(t, ok)
	assert.True(t, occ.Date.Equal(next))
	assert.True(t, calc.NextOption(context.Background(), start, Rule{Frequency: Custom}, now).IsAbsent())
}

func TestCalculator_Upcoming(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	t.Run("basic stepping", func(t *testing.T) {
		calc := NewCalculator(WithProviderFactory(BasicProviderFactory))
		dates := calc.Upcoming(ctx, start, Rule{Frequency: Weekly, Interval: 2}, start, 3)
		require.Len(t, dates, 3)
		for i, d := range dates {
			assert.True(t, start.AddDate(0, 0, 14*(i+1)).Equal(d), "index %d", i)
		}
	})

	t.Run("rich provider stops at count", func(t *testing.T) {
		calc := NewCalculator()
		dates := calc.Upcoming(ctx, start, Rule{Frequency: Daily, Interval: 1, Occurrences: intPtr(3)}, start, 10)
		require.Len(t, dates, 2)
		assert.True(t, start.AddDate(0, 0, 1).Equal(dates[0]))
		assert.True(t, start.AddDate(0, 0, 2).Equal(dates[1]))
	})

	t.Run("nothing requested", func(t *testing.T) {
		calc := NewCalculator()
		assert.Empty(t, calc.Upcoming(ctx, start, Rule{Frequency: Daily, Interval: 1}, start, 0))
		assert.Empty(t, calc.Upcoming(ctx, start, Rule{Frequency: Custom}, start, 5))
	})
}

func TestCalculator_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("provider complaints are swallowed", func(t *testing.T) {
		var buf bytes.Buffer
		provider := &failingProvider{checkErr: errBroken}
		calc := NewCalculator(WithProviderFactory(factoryFor(provider)), WithLogger(debugLogger(&buf)))

		errs := calc.Validate(ctx, PartialRule{Frequency: Daily, Interval: intPtr(1), EndDate: "2026-12-31"})
		assert.Empty(t, errs)
		assert.NotNil(t, errs)
		assert.Contains(t, buf.String(), "provider rejected recurrence rule")
	})

	t.Run("basic errors are returned unchanged", func(t *testing.T) {
		calc := NewCalculator(WithProviderFactory(factoryFor(panickingProvider{})))
		p := PartialRule{Frequency: Weekly, Interval: intPtr(0), Occurrences: intPtr(-1)}
		assert.Equal(t, Validate(p), calc.Validate(ctx, p))
	})

	t.Run("rich provider accepts a valid rule", func(t *testing.T) {
		calc := NewCalculator()
		assert.Empty(t, calc.Validate(ctx, PartialRule{Frequency: Monthly, ByMonthDay: []int{1, 15}}))
		assert.Equal(t, []string{MsgMissingFrequency}, calc.Validate(ctx, PartialRule{}))
	})
}

func TestCalculator_Logging(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	calc := NewCalculator(WithProviderFactory(factoryFor(&failingProvider{})), WithLogger(debugLogger(&buf)))

	calc.Next(ctx, start, Rule{Frequency: Weekly, Interval: 1, ByWeekDay: []int{2}}, start)

	out := buf.String()
	assert.Contains(t, out, "recurrence provider ready")
	assert.Contains(t, out, "provider failed, using basic calculation")
	assert.Contains(t, out, "basic calculation ignores byWeekDay and byMonthDay")
}
