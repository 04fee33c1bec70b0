package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"droidsweep/internal/platform/errors"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, cooldown time.Duration, probes int) (*CircuitBreaker, *clock) {
	c := &clock{t: time.Unix(1700000000, 0)}
	cb := NewCircuitBreaker(threshold, cooldown, probes)
	cb.now = c.now
	return cb, c
}

var errBoom = errors.Wrap(errors.ErrServiceUnavailable, "boom")

func fail() error { return errBoom }
func ok() error   { return nil }

func TestCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(0, 0, 0)
	assert.Equal(t, 5, cb.threshold)
	assert.Equal(t, 60*time.Second, cb.cooldown)
	assert.Equal(t, 1, cb.maxProbes)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute, 1)

	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.False(t, called)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, errors.IsNetwork(err))
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Minute, 1)
	_ = cb.Execute(fail)
	_ = cb.Execute(ok)
	_ = cb.Execute(fail)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	cb, c := newTestBreaker(1, time.Minute, 1)
	_ = cb.Execute(fail)
	assert.Equal(t, StateOpen, cb.State())

	c.advance(30 * time.Second)
	assert.False(t, cb.Allow())

	// probe falla: vuelve a abrir
	c.advance(31 * time.Second)
	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	// probe ok: cierra
	c.advance(time.Minute)
	assert.NoError(t, cb.Execute(ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	cb, c := newTestBreaker(1, time.Second, 2)
	_ = cb.Execute(fail)
	c.advance(2 * time.Second)

	assert.True(t, cb.Allow())
	assert.True(t, cb.Allow())
	assert.False(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.RecordSuccess()
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_IgnoredErrors(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Minute, 1)
	err := cb.Execute(func() error { return errors.ErrNotFound }, errors.IsNotFound)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_CancelDoesNotCount(t *testing.T) {
	cb, c := newTestBreaker(1, time.Minute, 1)
	err := cb.Execute(func() error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())

	_ = cb.Execute(fail)
	c.advance(2 * time.Minute)
	_ = cb.Execute(func() error { return context.Canceled })
	// la prueba se devolvió, se puede volver a probar
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Hour, 1)
	_ = cb.Execute(fail)
	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.NoError(t, cb.Execute(ok))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
