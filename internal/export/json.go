package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/san-kum/popsim/internal/growth"
	"github.com/san-kum/popsim/internal/region"
)

// Document is the JSON form of a stored run.
type Document struct {
	ID           string           `json:"id,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	Seed         int64            `json:"seed"`
	Capacity     float64          `json:"capacity"`
	Method       string           `json:"method"`
	Grid         []float64        `json:"grid"`
	Regions      []region.Region  `json:"regions"`
	Trajectories []TrajectoryJSON `json:"trajectories"`
}

type TrajectoryJSON struct {
	Region      string             `json:"region"`
	Population  []float64          `json:"population"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	Steps       int                `json:"steps"`
	Rejected    int                `json:"rejected"`
	Evaluations int                `json:"evaluations"`
}

// TrajectoriesJSON pairs each trajectory with its region name.
func TrajectoriesJSON(regions []region.Region, trajs []*growth.Trajectory) []TrajectoryJSON {
	out := make([]TrajectoryJSON, len(trajs))
	for i, t := range trajs {
		name := ""
		if i < len(regions) {
			name = regions[i].Name
		}
		out[i] = TrajectoryJSON{
			Region:      name,
			Population:  t.Population,
			Metrics:     t.Metrics,
			Steps:       t.Steps,
			Rejected:    t.Rejected,
			Evaluations: t.Evaluations,
		}
	}
	return out
}

func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func ReadJSON(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode run document: %w", err)
	}
	return doc, nil
}
