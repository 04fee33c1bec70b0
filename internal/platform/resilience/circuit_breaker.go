// internal/platform/resilience/circuit_breaker.go
package resilience

import (
	"context"
	"sync"
	"time"

	"droidsweep/internal/platform/errors"
)

// ErrCircuitOpen lo devuelve Execute mientras el breaker rechaza llamadas. Es
// un error de red de tipo service-unavailable.
var ErrCircuitOpen = errors.Wrap(errors.ErrServiceUnavailable, "circuit breaker is open")

// State representa el estado del circuit breaker.
type State int

const (
	StateClosed   State = iota // operación normal
	StateOpen                  // rechazando llamadas
	StateHalfOpen              // probando si el servicio volvió
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker deja de llamar a un servicio remoto tras varios fallos
// seguidos. Pasado Cooldown deja pasar Probes llamadas: un fallo lo vuelve a
// abrir y Probes éxitos lo cierran.
type CircuitBreaker struct {
	mu       sync.Mutex
	state    State
	failures int
	probes   int
	passed   int
	openedAt time.Time

	threshold int
	cooldown  time.Duration
	maxProbes int
	now       func() time.Time
}

// NewCircuitBreaker crea un breaker. Los valores cero toman los defaults: 5
// fallos, 60s de cooldown, 1 prueba.
func NewCircuitBreaker(threshold int, cooldown time.Duration, probes int) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	if probes <= 0 {
		probes = 1
	}
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		maxProbes: probes,
		now:       time.Now,
	}
}

// Execute ejecuta fn salvo que el breaker esté abierto. Los errores para los
// que ignore devuelve true cuentan como éxito (ej: un 404 esperado).
func (cb *CircuitBreaker) Execute(fn func() error, ignore ...func(error) bool) error {
	if !cb.Allow() {
		return ErrCircuitOpen
	}
	err := fn()
	if err == nil || ignored(err, ignore) {
		cb.RecordSuccess()
		return err
	}
	// una cancelación del caller no dice nada del servicio
	if errors.Is(err, context.Canceled) {
		cb.release()
		return err
	}
	cb.RecordFailure()
	return err
}

func ignored(err error, ignore []func(error) bool) bool {
	for _, f := range ignore {
		if f(err) {
			return true
		}
	}
	return false
}

// Allow indica si una llamada puede pasar y la contabiliza.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return false
		}
		cb.state = StateHalfOpen
		cb.probes, cb.passed = 0, 0
		fallthrough
	case StateHalfOpen:
		if cb.probes >= cb.maxProbes {
			return false
		}
		cb.probes++
		return true
	}
	return false
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.passed++
		if cb.passed >= cb.maxProbes {
			cb.state = StateClosed
			cb.failures = 0
		}
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.threshold {
			cb.open()
		}
	case StateHalfOpen:
		cb.open()
	}
}

// release devuelve una prueba half-open que no llegó a resolverse.
func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen && cb.probes > 0 {
		cb.probes--
	}
}

func (cb *CircuitBreaker) open() {
	cb.state = StateOpen
	cb.openedAt = cb.now()
	cb.failures = 0
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset vuelve al estado cerrado.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures, cb.probes, cb.passed = 0, 0, 0
}
