// Package region generates synthetic regional population records.
package region

import (
	"encoding/json"
	"fmt"
)

// Region is one synthetic record. Values are immutable once generated;
// WithFinalPopulation returns a copy.
type Region struct {
	Name              string
	InitialPopulation int
	BirthRate         float64
	DeathRate         float64
	// MigrationRate is reported but does not enter the growth model.
	MigrationRate float64

	final    float64
	hasFinal bool
}

// FinalPopulation reports the simulated end state, if one is attached.
func (r Region) FinalPopulation() (float64, bool) {
	return r.final, r.hasFinal
}

func (r Region) WithFinalPopulation(v float64) Region {
	r.final = v
	r.hasFinal = true
	return r
}

// NetGrowthRate is the intrinsic growth rate used by the simulator.
func (r Region) NetGrowthRate() float64 {
	return r.BirthRate - r.DeathRate
}

func (r Region) String() string {
	if r.hasFinal {
		return fmt.Sprintf("%s(P0=%d r=%.4f final=%.1f)", r.Name, r.InitialPopulation, r.NetGrowthRate(), r.final)
	}
	return fmt.Sprintf("%s(P0=%d r=%.4f)", r.Name, r.InitialPopulation, r.NetGrowthRate())
}

type regionJSON struct {
	Name              string   `json:"region"`
	InitialPopulation int      `json:"initial_population"`
	BirthRate         float64  `json:"birth_rate"`
	DeathRate         float64  `json:"death_rate"`
	MigrationRate     float64  `json:"migration_rate"`
	FinalPopulation   *float64 `json:"final_population,omitempty"`
}

func (r Region) MarshalJSON() ([]byte, error) {
	out := regionJSON{
		Name:              r.Name,
		InitialPopulation: r.InitialPopulation,
		BirthRate:         r.BirthRate,
		DeathRate:         r.DeathRate,
		MigrationRate:     r.MigrationRate,
	}
	if r.hasFinal {
		v := r.final
		out.FinalPopulation = &v
	}
	return json.Marshal(out)
}

func (r *Region) UnmarshalJSON(data []byte) error {
	var in regionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Region{
		Name:              in.Name,
		InitialPopulation: in.InitialPopulation,
		BirthRate:         in.BirthRate,
		DeathRate:         in.DeathRate,
		MigrationRate:     in.MigrationRate,
	}
	if in.FinalPopulation != nil {
		*r = r.WithFinalPopulation(*in.FinalPopulation)
	}
	return nil
}
