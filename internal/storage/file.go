package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"

	"github.com/san-kum/popsim/internal/export"
)

const (
	metadataFile     = "metadata.json"
	regionsFile      = "regions.csv"
	trajectoriesFile = "trajectories.csv"
)

// FileStore keeps each run in its own directory under baseDir.
type FileStore struct {
	baseDir string
	clock   clockwork.Clock
}

func NewFileStore(baseDir string, clock clockwork.Clock) *FileStore {
	return &FileStore{baseDir: baseDir, clock: clock}
}

func (s *FileStore) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) Save(ctx context.Context, run *Run) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	stamp(run, s.clock)
	runDir := filepath.Join(s.baseDir, run.Meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	err := writeFile(filepath.Join(runDir, metadataFile), func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(run.Meta)
	})
	if err == nil {
		err = writeFile(filepath.Join(runDir, regionsFile), func(f *os.File) error {
			return export.WriteRegionsCSV(f, run.Regions)
		})
	}
	if err == nil {
		err = writeFile(filepath.Join(runDir, trajectoriesFile), func(f *os.File) error {
			return export.WriteTrajectoriesCSV(f, run.Names(), run.Trajectories)
		})
	}
	if err != nil {
		_ = os.RemoveAll(runDir)
		return "", fmt.Errorf("save run %s: %w", run.Meta.ID, err)
	}

	return run.Meta.ID, nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *FileStore) List(ctx context.Context) ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.loadMetadata(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sortNewestFirst(runs)
	return runs, nil
}

func (s *FileStore) loadMetadata(id string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, id, metadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", id, err)
	}
	return &meta, nil
}

func (s *FileStore) Load(ctx context.Context, id string) (*Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" || filepath.Base(id) != id {
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}

	meta, err := s.loadMetadata(id)
	if err != nil {
		return nil, err
	}
	run := &Run{Meta: *meta}
	runDir := filepath.Join(s.baseDir, id)

	rf, err := os.Open(filepath.Join(runDir, regionsFile))
	if err != nil {
		return nil, err
	}
	defer rf.Close()
	if run.Regions, err = export.ReadRegionsCSV(rf); err != nil {
		return nil, fmt.Errorf("load %s regions: %w", id, err)
	}

	tf, err := os.Open(filepath.Join(runDir, trajectoriesFile))
	if err != nil {
		return nil, err
	}
	defer tf.Close()
	if _, run.Trajectories, err = export.ReadTrajectoriesCSV(tf); err != nil {
		return nil, fmt.Errorf("load %s trajectories: %w", id, err)
	}

	run.attachStats()
	return run, nil
}
