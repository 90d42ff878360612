package strategy

import (
	"math"
	"testing"
	"time"

	"marlin/internal/config"
	"marlin/internal/domain"
	"marlin/internal/indicator"
)

// flatThenJump builds n bars of constant price followed by a step up, which
// forces a golden cross shortly after the step.
func flatThenJump(n, jumpAt int, base, jumpTo float64) []domain.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, n)
	for i := range bars {
		px := base
		if i >= jumpAt {
			px = jumpTo
		}
		bars[i] = domain.Bar{
			Symbol:    "TEST",
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      px,
			High:      px + 1,
			Low:       px - 1,
			Close:     px,
			Volume:    100,
		}
	}
	return bars
}

func firstSignal(s Strategy, bars []domain.Bar, dir domain.Direction) (int, domain.Signal) {
	for i := range bars {
		sig := s.Evaluate(bars, i)
		if sig.Direction == dir {
			return i, sig
		}
	}
	return -1, domain.FlatSignal()
}

func TestSMACrossGoldenCross(t *testing.T) {
	bars := flatThenJump(120, 80, 100, 110)
	s := NewSMACross(20, 50, 14, 1.0, 2.0)

	i, sig := firstSignal(s, bars, domain.Long)
	if i < 0 {
		t.Fatal("expected a long signal after the step up")
	}
	if i < 80 {
		t.Errorf("long signal at bar %d, before the step at 80", i)
	}

	// Stop and target sit at ATR multiples from the signal close.
	atr := indicator.ATR(bars, 14)[i]
	close := bars[i].Close
	if math.Abs(sig.StopPrice-(close-atr)) > 1e-9 {
		t.Errorf("stop = %v, want %v", sig.StopPrice, close-atr)
	}
	if math.Abs(sig.TargetPrice-(close+2*atr)) > 1e-9 {
		t.Errorf("target = %v, want %v", sig.TargetPrice, close+2*atr)
	}
}

func TestSMACrossDeathCrossExits(t *testing.T) {
	bars := flatThenJump(160, 80, 110, 100) // step down
	s := NewSMACross(20, 50, 14, 1.0, 2.0)

	i, sig := firstSignal(s, bars, domain.Short)
	if i < 0 {
		t.Fatal("expected a short signal after the step down")
	}
	if !sig.Exit {
		t.Error("death cross signal should carry the exit flag")
	}
}

func TestSMACrossWarmupIsFlat(t *testing.T) {
	bars := flatThenJump(120, 80, 100, 110)
	s := NewSMACross(20, 50, 14, 1.0, 2.0)

	for i := 0; i < s.Warmup(); i++ {
		if sig := s.Evaluate(bars, i); sig.Direction != domain.Flat || sig.Exit {
			t.Fatalf("Evaluate(%d) inside warmup = %+v, want flat", i, sig)
		}
	}
}

// The signal at bar i must not depend on any bar after i: evaluating against
// the truncated history and against a future mutated to garbage must both
// reproduce the full-history signal.
func TestNoLookAhead(t *testing.T) {
	bars := flatThenJump(140, 80, 100, 110)
	cfg := config.Default().Strategy

	pool, err := PoolFromConfig(cfg, true)
	if err != nil {
		t.Fatal(err)
	}

	for _, s := range pool {
		for _, i := range []int{60, 82, 100, 120} {
			full := s.Evaluate(bars, i)

			truncated := append([]domain.Bar{}, bars[:i+1]...)
			if got := s.Evaluate(truncated, i); got != full {
				t.Errorf("%s: Evaluate with future withheld at %d = %+v, want %+v",
					s.Name(), i, got, full)
			}

			mutated := append([]domain.Bar{}, bars...)
			for j := i + 1; j < len(mutated); j++ {
				mutated[j].Open = 1e6
				mutated[j].High = 2e6
				mutated[j].Low = 0.5
				mutated[j].Close = 1e6
			}
			if got := s.Evaluate(mutated, i); got != full {
				t.Errorf("%s: Evaluate with future mutated at %d = %+v, want %+v",
					s.Name(), i, got, full)
			}
		}
	}
}

func TestLongOnlySuppressesShorts(t *testing.T) {
	bars := flatThenJump(160, 80, 110, 100)
	s := LongOnly(NewSMACross(20, 50, 14, 1.0, 2.0))

	for i := range bars {
		sig := s.Evaluate(bars, i)
		if sig.Direction == domain.Short {
			t.Fatalf("long-only strategy emitted a short at bar %d", i)
		}
	}

	// The death cross must still surface as an exit.
	found := false
	for i := range bars {
		if sig := s.Evaluate(bars, i); sig.Exit {
			found = true
			if sig.StopPrice != 0 || sig.TargetPrice != 0 {
				t.Error("suppressed short should not carry entry levels")
			}
			break
		}
	}
	if !found {
		t.Error("long-only wrapper dropped the exit flag")
	}
}

func TestAlligatorEntersInTrend(t *testing.T) {
	// An accelerating uptrend lines up lips > teeth > jaw.
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, 120)
	px := 100.0
	for i := range bars {
		if i > 40 {
			px *= 1.01
		}
		bars[i] = domain.Bar{
			Symbol:    "TEST",
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      px,
			High:      px * 1.005,
			Low:       px * 0.995,
			Close:     px,
			Volume:    100,
		}
	}

	s := NewAlligator(14, 1.0, 2.0)
	i, sig := firstSignal(s, bars, domain.Long)
	if i < 0 {
		t.Fatal("expected a long entry once the trend structure forms")
	}
	if i <= 40 {
		t.Errorf("entry at bar %d, before the trend started", i)
	}
	if sig.StopPrice >= bars[i].Close {
		t.Errorf("long stop %v should sit below the entry close %v", sig.StopPrice, bars[i].Close)
	}
	if sig.TargetPrice <= bars[i].Close {
		t.Errorf("long target %v should sit above the entry close %v", sig.TargetPrice, bars[i].Close)
	}
}

func TestRSIRecoverySignal(t *testing.T) {
	// Sell off hard, then bounce: RSI dips under 30 and recovers through it.
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []domain.Bar
	px := 100.0
	for i := 0; i < 60; i++ {
		switch {
		case i < 30:
			px -= 1.5
		default:
			px += 2.0
		}
		bars = append(bars, domain.Bar{
			Symbol:    "TEST",
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      px,
			High:      px + 1,
			Low:       px - 1,
			Close:     px,
			Volume:    100,
		})
	}

	s := NewRSIReversal(14, 30, 70, 14, 1.0, 2.0)
	i, _ := firstSignal(s, bars, domain.Long)
	if i < 30 {
		t.Fatalf("expected the long entry during the recovery, got bar %d", i)
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	s := NewSMACross(20, 50, 14, 1.0, 2.0)

	r.Register(s)

	got, ok := r.Get("sma")
	if !ok {
		t.Fatal("Get returned false for registered strategy")
	}
	if got.Name() != "sma" {
		t.Errorf("Get returned strategy with Name() = %q, want %q", got.Name(), "sma")
	}

	if _, ok := r.Get("nonexistent"); ok {
		t.Error("Get returned true for unregistered strategy")
	}
}

func TestRegistryFromConfig(t *testing.T) {
	r, err := NewRegistryFromConfig(config.Default().Strategy, false)
	if err != nil {
		t.Fatal(err)
	}

	names := r.List()
	if len(names) != len(Names) {
		t.Fatalf("List returned %d names, want %d", len(names), len(Names))
	}
	for i, want := range Names {
		if names[i] != want {
			t.Errorf("List[%d] = %q, want %q", i, names[i], want)
		}
	}
}

func TestFromConfigUnknown(t *testing.T) {
	if _, err := FromConfig("hodl", config.Default().Strategy, false); err == nil {
		t.Fatal("FromConfig should fail for unknown strategy name")
	}
}
