package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// relógio manual para não depender de sleeps nos testes da máquina de estados
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)}
}

func withClock(b *Breaker, c *fakeClock) *Breaker { b.now = c.Now; return b }

var errBoom = errors.New("boom")

func failingCall(counter *int) func(context.Context) error {
	return func(context.Context) error {
		*counter++
		return errBoom
	}
}

func okCall(counter *int) func(context.Context) error {
	return func(context.Context) error {
		*counter++
		return nil
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	clock := newFakeClock()
	b := withClock(New("database", DefaultConfig()), clock)

	calls := 0
	for i := 0; i < 5; i++ {
		err := b.Execute(context.Background(), failingCall(&calls))
		require.ErrorIs(t, err, errBoom, "erro original deve ser propagado intacto")
	}

	require.Equal(t, StateOpen, b.State())
	require.Equal(t, 5, calls)

	// aberto: a dependência não é invocada
	err := b.Execute(context.Background(), failingCall(&calls))
	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	require.Equal(t, "database", openErr.Name)
	require.Equal(t, 5, calls)
}

func TestBreaker_SuccessInClosedResetsFailureStreak(t *testing.T) {
	clock := newFakeClock()
	b := withClock(New("database", DefaultConfig()), clock)

	calls := 0
	for i := 0; i < 4; i++ {
		_ = b.Execute(context.Background(), failingCall(&calls))
	}
	require.NoError(t, b.Execute(context.Background(), okCall(&calls)))

	// a sequência quebrou: mais 4 falhas ainda não abrem
	for i := 0; i < 4; i++ {
		_ = b.Execute(context.Background(), failingCall(&calls))
	}
	require.Equal(t, StateClosed, b.State())

	_ = b.Execute(context.Background(), failingCall(&calls))
	require.Equal(t, StateOpen, b.State())
}

func TestBreaker_HalfOpenProbeAfterTimeout(t *testing.T) {
	clock := newFakeClock()
	b := withClock(New("openai", DefaultConfig()), clock)

	calls := 0
	for i := 0; i < 5; i++ {
		_ = b.Execute(context.Background(), failingCall(&calls))
	}
	require.Equal(t, StateOpen, b.State())

	// antes do timeout: rejeita sem invocar
	clock.Advance(59 * time.Second)
	err := b.Execute(context.Background(), okCall(&calls))
	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	require.Equal(t, 5, calls)

	// depois do timeout (medido da última falha): sondagem passa
	clock.Advance(2 * time.Second)
	require.NoError(t, b.Execute(context.Background(), okCall(&calls)))
	require.Equal(t, StateHalfOpen, b.State())
	require.Equal(t, 6, calls)

	// segundo sucesso consecutivo fecha
	require.NoError(t, b.Execute(context.Background(), okCall(&calls)))
	require.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	b := withClock(New("openai", DefaultConfig()), clock)

	calls := 0
	for i := 0; i < 5; i++ {
		_ = b.Execute(context.Background(), failingCall(&calls))
	}
	clock.Advance(61 * time.Second)

	require.NoError(t, b.Execute(context.Background(), okCall(&calls)))
	require.Equal(t, StateHalfOpen, b.State())

	// uma única falha em HALF_OPEN reabre
	_ = b.Execute(context.Background(), failingCall(&calls))
	require.Equal(t, StateOpen, b.State())

	// e o novo período de espera conta a partir dessa falha
	clock.Advance(30 * time.Second)
	err := b.Execute(context.Background(), okCall(&calls))
	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
}

func TestBreaker_OpenAIScenarioWithLowThreshold(t *testing.T) {
	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.FailureThreshold = 2
	b := withClock(New("openai", cfg), clock)

	calls := 0
	_ = b.Execute(context.Background(), failingCall(&calls))
	_ = b.Execute(context.Background(), failingCall(&calls))
	require.Equal(t, StateOpen, b.State())

	clock.Advance(1 * time.Second)
	err := b.Execute(context.Background(), failingCall(&calls))
	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	require.Equal(t, 2, calls, "dependência não pode ser invocada com circuito aberto")
}

func TestBreaker_ResetForcesClosed(t *testing.T) {
	clock := newFakeClock()
	b := withClock(New("database", DefaultConfig()), clock)

	calls := 0
	for i := 0; i < 5; i++ {
		_ = b.Execute(context.Background(), failingCall(&calls))
	}
	require.Equal(t, StateOpen, b.State())

	b.Reset()
	require.Equal(t, StateClosed, b.State())
	require.NoError(t, b.Execute(context.Background(), okCall(&calls)))
}

func TestBreaker_StatsReportFailureRateFromLog(t *testing.T) {
	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.FailureThreshold = 100 // não queremos abrir neste teste
	b := withClock(New("database", cfg), clock)

	calls := 0
	for i := 0; i < 3; i++ {
		_ = b.Execute(context.Background(), failingCall(&calls))
	}
	// sucesso zera a sequência, mas o log continua acumulando
	require.NoError(t, b.Execute(context.Background(), okCall(&calls)))

	st := b.Stats()
	require.Equal(t, "database", st.Name)
	require.Equal(t, "closed", st.State)
	require.Equal(t, 4, st.Tracked)
	require.InDelta(t, 0.75, st.FailureRate, 1e-9)
	require.Zero(t, st.Failures, "sucesso em CLOSED zera o contador de falhas")
}

func TestBreaker_RollingLogIsBounded(t *testing.T) {
	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.FailureThreshold = 1000
	cfg.LogCapacity = 10
	b := withClock(New("database", cfg), clock)

	calls := 0
	for i := 0; i < 50; i++ {
		_ = b.Execute(context.Background(), failingCall(&calls))
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Execute(context.Background(), okCall(&calls)))
	}

	st := b.Stats()
	require.Equal(t, 10, st.Tracked)
	require.InDelta(t, 0.5, st.FailureRate, 1e-9, "anel guarda só as últimas 10 amostras")
}

func TestBreaker_OnStateChangeFiresOncePerTransition(t *testing.T) {
	clock := newFakeClock()
	cfg := DefaultConfig()

	type change struct{ from, to State }
	var changes []change
	cfg.OnStateChange = func(name string, from, to State) {
		changes = append(changes, change{from, to})
	}
	b := withClock(New("database", cfg), clock)

	calls := 0
	for i := 0; i < 7; i++ {
		_ = b.Execute(context.Background(), failingCall(&calls))
	}

	require.Equal(t, []change{{StateClosed, StateOpen}}, changes)
}
