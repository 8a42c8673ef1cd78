package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/popsim/internal/dynamo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constant struct{}

func (c *constant) StateDim() int                                 { return 1 }
func (c *constant) Derive(x dynamo.State, t float64) dynamo.State { return dynamo.State{0} }

func TestRK45_EnergyConservation(t *testing.T) {
	integrator := NewRK45()
	dyn := &harmonicOscillator{}
	x0 := dynamo.State{1.0, 0.0}

	initialEnergy := dyn.Energy(x0)
	x := x0.Clone()
	dt := 0.01

	for i := 0; i < 10000; i++ {
		x = integrator.Step(dyn, x, float64(i)*dt, dt)
	}

	finalEnergy := dyn.Energy(x)
	drift := math.Abs(finalEnergy-initialEnergy) / initialEnergy

	if drift > 1e-6 {
		t.Errorf("RK45 energy drift too high: %e", drift)
	}
}

func TestRK45_AdaptiveStep(t *testing.T) {
	integrator := NewRK45()
	dyn := &harmonicOscillator{}

	x, newDt, accepted := integrator.StepAdaptive(dyn, dynamo.State{1.0, 0.0}, 0, 0.1, 1e-8)

	require.True(t, accepted)
	assert.True(t, x.IsValid())
	assert.Greater(t, newDt, 0.0)
}

func TestRK45_RejectsOversizedStep(t *testing.T) {
	integrator := NewRK45()
	dyn := &harmonicOscillator{}

	_, newDt, accepted := integrator.StepAdaptive(dyn, dynamo.State{1.0, 0.0}, 0, 5.0, 1e-10)

	assert.False(t, accepted)
	assert.Less(t, newDt, 5.0)
}

func TestRK45_ZeroDerivativeIsExact(t *testing.T) {
	x, newDt, accepted := NewRK45().StepAdaptive(&constant{}, dynamo.State{50000}, 0, 10, 1e-6)

	require.True(t, accepted)
	assert.Equal(t, dynamo.State{50000}, x)
	assert.Equal(t, 100.0, newDt)
}

func TestRK45_VsRK4_Accuracy(t *testing.T) {
	rk4 := NewRK4()
	rk45 := NewRK45()
	dyn := &harmonicOscillator{}

	x4 := dynamo.State{1.0, 0.0}
	x45 := dynamo.State{1.0, 0.0}
	dt := 0.1

	for i := 0; i < 100; i++ {
		x4 = rk4.Step(dyn, x4, float64(i)*dt, dt)
		x45 = rk45.Step(dyn, x45, float64(i)*dt, dt)
	}

	e4 := dyn.Energy(x4)
	e45 := dyn.Energy(x45)

	t.Logf("RK4 final: [%.6f, %.6f]", x4[0], x4[1])
	t.Logf("RK45 final: [%.6f, %.6f]", x45[0], x45[1])

	if math.Abs(e45-0.5) > math.Abs(e4-0.5) {
		t.Log("Warning: RK45 not more accurate than RK4 for this case")
	}
}
