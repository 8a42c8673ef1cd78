// Package export writes runs as CSV, JSON and rendered charts.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/san-kum/popsim/internal/growth"
	"github.com/san-kum/popsim/internal/region"
)

var RegionHeader = []string{
	"region",
	"initial_population",
	"birth_rate",
	"death_rate",
	"migration_rate",
	"final_population",
}

var TrajectoryHeader = []string{"region", "time", "population"}

var ErrMalformedCSV = errors.New("export: malformed csv")

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteRegionsCSV writes one row per region. A region without a final
// population gets an empty final_population cell.
func WriteRegionsCSV(w io.Writer, regions []region.Region) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RegionHeader); err != nil {
		return err
	}

	for _, r := range regions {
		final := ""
		if v, ok := r.FinalPopulation(); ok {
			final = formatFloat(v)
		}
		row := []string{
			r.Name,
			strconv.Itoa(r.InitialPopulation),
			formatFloat(r.BirthRate),
			formatFloat(r.DeathRate),
			formatFloat(r.MigrationRate),
			final,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func ReadRegionsCSV(r io.Reader) ([]region.Region, error) {
	records, err := readAll(r, RegionHeader)
	if err != nil {
		return nil, err
	}

	regions := make([]region.Region, 0, len(records))
	for i, rec := range records {
		line := i + 2
		pop, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: initial_population: %v", ErrMalformedCSV, line, err)
		}
		floats := make([]float64, 3)
		for j := range floats {
			floats[j], err = strconv.ParseFloat(rec[2+j], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %s: %v", ErrMalformedCSV, line, RegionHeader[2+j], err)
			}
		}

		reg := region.Region{
			Name:              rec[0],
			InitialPopulation: pop,
			BirthRate:         floats[0],
			DeathRate:         floats[1],
			MigrationRate:     floats[2],
		}
		if rec[5] != "" {
			final, err := strconv.ParseFloat(rec[5], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: final_population: %v", ErrMalformedCSV, line, err)
			}
			reg = reg.WithFinalPopulation(final)
		}
		regions = append(regions, reg)
	}
	return regions, nil
}

// WriteTrajectoriesCSV writes trajectories in long form, one row per region
// and grid point.
func WriteTrajectoriesCSV(w io.Writer, names []string, trajs []*growth.Trajectory) error {
	if len(names) != len(trajs) {
		return fmt.Errorf("export: %d names for %d trajectories", len(names), len(trajs))
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(TrajectoryHeader); err != nil {
		return err
	}
	for i, traj := range trajs {
		for j := range traj.Population {
			row := []string{names[i], formatFloat(traj.Times[j]), formatFloat(traj.Population[j])}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadTrajectoriesCSV groups rows by region in order of first appearance.
// Solver statistics and metrics are not part of the CSV form.
func ReadTrajectoriesCSV(r io.Reader) ([]string, []*growth.Trajectory, error) {
	records, err := readAll(r, TrajectoryHeader)
	if err != nil {
		return nil, nil, err
	}

	var names []string
	var trajs []*growth.Trajectory
	index := make(map[string]int)

	for i, rec := range records {
		t, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: line %d: time: %v", ErrMalformedCSV, i+2, err)
		}
		p, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: line %d: population: %v", ErrMalformedCSV, i+2, err)
		}

		idx, ok := index[rec[0]]
		if !ok {
			idx = len(trajs)
			index[rec[0]] = idx
			names = append(names, rec[0])
			trajs = append(trajs, &growth.Trajectory{})
		}
		trajs[idx].Times = append(trajs[idx].Times, t)
		trajs[idx].Population = append(trajs[idx].Population, p)
	}
	return names, trajs, nil
}

func readAll(r io.Reader, header []string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	got, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedCSV)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}
	for i := range header {
		if got[i] != header[i] {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrMalformedCSV, i+1, got[i], header[i])
		}
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}
	return records, nil
}
