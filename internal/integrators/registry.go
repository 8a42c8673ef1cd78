package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/popsim/internal/dynamo"
)

const (
	MethodRK45  = "rk45"
	MethodRK4   = "rk4"
	MethodEuler = "euler"
)

var registry = map[string]func() dynamo.Integrator{
	MethodRK45:  func() dynamo.Integrator { return NewRK45() },
	MethodRK4:   func() dynamo.Integrator { return NewRK4() },
	MethodEuler: func() dynamo.Integrator { return NewEuler() },
}

// New returns a fresh integrator for the named method. Integrators hold
// scratch state, so each concurrent run needs its own.
func New(name string) (dynamo.Integrator, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", dynamo.ErrUnknownMethod, name, Names())
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
