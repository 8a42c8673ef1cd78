// Package storage persists pipeline runs. Two backends are provided: a
// directory per run holding JSON metadata and CSV tables, and a single
// SQLite database.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/san-kum/popsim/internal/experiment"
	"github.com/san-kum/popsim/internal/growth"
	"github.com/san-kum/popsim/internal/region"
)

var (
	ErrRunNotFound  = errors.New("storage: run not found")
	ErrAmbiguousRun = errors.New("storage: run reference matches more than one run")
)

const (
	KindFile   = "file"
	KindSQLite = "sqlite"
)

// TrajectoryStats are the per-region solver figures that the CSV tables do
// not carry.
type TrajectoryStats struct {
	Steps       int                `json:"steps"`
	Rejected    int                `json:"rejected"`
	Evaluations int                `json:"evaluations"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

type RunMetadata struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Seed      int64             `json:"seed"`
	Regions   int               `json:"regions"`
	Capacity  float64           `json:"capacity"`
	Method    string            `json:"method"`
	Tolerance float64           `json:"tolerance"`
	Workers   int               `json:"workers"`
	Grid      []float64         `json:"grid"`
	Bounds    region.Bounds     `json:"bounds"`
	Stats     []TrajectoryStats `json:"stats"`
}

type Run struct {
	Meta         RunMetadata
	Regions      []region.Region
	Trajectories []*growth.Trajectory
}

// NewRun captures a pipeline result. ID and CreatedAt are assigned on Save.
func NewRun(res *experiment.Result) *Run {
	stats := make([]TrajectoryStats, len(res.Trajectories))
	for i, t := range res.Trajectories {
		stats[i] = TrajectoryStats{
			Steps:       t.Steps,
			Rejected:    t.Rejected,
			Evaluations: t.Evaluations,
			Metrics:     t.Metrics,
		}
	}

	return &Run{
		Meta: RunMetadata{
			Seed:      res.Config.Seed,
			Regions:   len(res.Regions),
			Capacity:  res.Config.Capacity,
			Method:    res.Config.Method,
			Tolerance: res.Config.Tolerance,
			Workers:   res.Config.Workers,
			Grid:      res.Grid,
			Bounds:    res.Config.Bounds,
			Stats:     stats,
		},
		Regions:      res.Regions,
		Trajectories: res.Trajectories,
	}
}

// Names returns the region names in trajectory order.
func (r *Run) Names() []string {
	names := make([]string, len(r.Regions))
	for i, reg := range r.Regions {
		names[i] = reg.Name
	}
	return names
}

// attachStats copies the stored solver figures onto loaded trajectories.
func (r *Run) attachStats() {
	for i, t := range r.Trajectories {
		if i >= len(r.Meta.Stats) {
			return
		}
		s := r.Meta.Stats[i]
		t.Steps = s.Steps
		t.Rejected = s.Rejected
		t.Evaluations = s.Evaluations
		t.Metrics = s.Metrics
	}
}

type Store interface {
	Init() error
	// Save assigns the run an ID and creation time and persists it.
	Save(ctx context.Context, run *Run) (string, error)
	// List returns metadata for every stored run, newest first.
	List(ctx context.Context) ([]RunMetadata, error)
	Load(ctx context.Context, id string) (*Run, error)
	Close() error
}

// Open returns an initialised store of the given kind rooted at dir.
func Open(kind, dir string, clock clockwork.Clock) (Store, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	var s Store
	switch kind {
	case KindFile, "":
		s = NewFileStore(dir, clock)
	case KindSQLite:
		var err error
		s, err = NewSQLiteStore(dir, clock)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("storage: unknown store kind %q", kind)
	}

	if err := s.Init(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func newRunID(now time.Time) string {
	return fmt.Sprintf("run_%s_%s", now.UTC().Format("20060102T150405"), uuid.NewString()[:8])
}

func stamp(run *Run, clock clockwork.Clock) {
	now := clock.Now().UTC()
	run.Meta.ID = newRunID(now)
	run.Meta.CreatedAt = now
	run.Meta.Regions = len(run.Regions)
}

func sortNewestFirst(runs []RunMetadata) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID > runs[j].ID
	})
}

// Resolve maps a run reference to a stored ID. "latest" names the newest
// run. Otherwise ref must equal an ID or be a prefix of exactly one.
func Resolve(ctx context.Context, s Store, ref string) (string, error) {
	runs, err := s.List(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("%w: store is empty", ErrRunNotFound)
	}
	if ref == "latest" || ref == "" {
		return runs[0].ID, nil
	}

	var matches []string
	for _, r := range runs {
		if r.ID == ref {
			return r.ID, nil
		}
		if strings.HasPrefix(r.ID, ref) {
			matches = append(matches, r.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s (%d matches)", ErrAmbiguousRun, ref, len(matches))
	}
}
