// Package results persists backtest runs below <artifacts_dir>/backtests.
package results

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-research/internal/backtest/engine"
	"github.com/rxtech-lab/argo-research/internal/logger"
	"github.com/rxtech-lab/argo-research/pkg/errors"
	"github.com/rxtech-lab/argo-research/pkg/marketdata/reader"
	"github.com/rxtech-lab/argo-research/pkg/marketdata/writer"
	"github.com/rxtech-lab/argo-research/pkg/utils"
)

const (
	// EquityFile holds the equity curve of a run.
	EquityFile = "equity.parquet"
	// ManifestFile describes how a run was produced.
	ManifestFile = "run.yaml"

	runDirLayout = "2006-01-02_150405"
	dateColumn   = "date"
	equityColumn = "equity"
)

// Manifest is written next to the equity curve of every run.
type Manifest struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	CreatedAt   time.Time         `yaml:"created_at"`
	Strategy    string            `yaml:"strategy"`
	Parameters  map[string]string `yaml:"parameters,omitempty"`
	Field       string            `yaml:"field"`
	Instruments []string          `yaml:"instruments"`
	Start       string            `yaml:"start,omitempty"`
	End         string            `yaml:"end,omitempty"`
	FinalEquity float64           `yaml:"final_equity"`
	// Version is the tool version that produced the run.
	Version     string            `yaml:"version"`
}

// Run is a created run directory.
type Run struct {
	ID  string
	Dir string
}

// Manager creates run directories under a root.
type Manager struct {
	root   string
	now    func() time.Time
	logger *logger.Logger
}

// NewManager creates a manager rooted at root, usually <artifacts_dir>/backtests.
func NewManager(root string, log *logger.Logger) *Manager {
	return &Manager{
		root:   root,
		now:    time.Now,
		logger: logger.OrNop(log),
	}
}

// MakeRunDir creates <root>/<YYYY-MM-DD_HHMMSS>_<name>. It never reuses a directory:
// when the name is taken it fails with ErrCodeRunDirExists.
func (m *Manager) MakeRunDir(name string) (Run, error) {
	if name == "" {
		return Run{}, errors.New(errors.ErrCodeInvalidParameter, "run name is required")
	}

	if err := os.MkdirAll(m.root, 0755); err != nil {
		return Run{}, errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to create %s", m.root)
	}

	dir := filepath.Join(m.root, m.now().Format(runDirLayout)+"_"+utils.SanitizeFileName(name))

	if err := os.Mkdir(dir, 0755); err != nil {
		if os.IsExist(err) {
			return Run{}, errors.Wrapf(errors.ErrCodeRunDirExists, err, "run directory %s already exists", dir)
		}

		return Run{}, errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to create run directory %s", dir)
	}

	run := Run{ID: uuid.New().String(), Dir: dir}

	m.logger.Info("Run directory created",
		zap.String("run_id", run.ID),
		zap.String("path", dir),
	)

	return run, nil
}

// SaveEquity writes the curve to <dir>/equity.parquet with a date and an equity column.
func SaveEquity(dir string, curve engine.EquityCurve) (path string, err error) {
	w := writer.NewDuckDBWriter(filepath.Join(dir, EquityFile))

	if err := w.Initialize([]writer.Column{
		{Name: dateColumn, Type: writer.ColumnDate},
		{Name: equityColumn, Type: writer.ColumnDouble},
	}); err != nil {
		return "", errors.Wrap(errors.ErrCodeStorageFailed, "failed to prepare equity file", err)
	}

	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = errors.Wrap(errors.ErrCodeStorageFailed, "failed to close equity writer", cerr)
		}
	}()

	for i, d := range curve.Dates {
		if err := w.Write(d, curve.Values[i]); err != nil {
			return "", errors.Wrap(errors.ErrCodeStorageFailed, "failed to write equity curve", err)
		}
	}

	path, err = w.Finalize()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeStorageFailed, "failed to write equity curve", err)
	}

	return path, nil
}

// LoadEquity reads a curve written by SaveEquity.
func LoadEquity(path string) (engine.EquityCurve, error) {
	r, err := reader.Open(path)
	if err != nil {
		return engine.EquityCurve{}, err
	}
	defer r.Close()

	dates, values, err := r.ReadFloat64(dateColumn, []string{equityColumn}, reader.Filter{}) //nolint:exhaustruct // whole curve
	if err != nil {
		return engine.EquityCurve{}, err
	}

	curve := engine.EquityCurve{Dates: dates, Values: make([]float64, len(values))}
	for i, row := range values {
		curve.Values[i] = row[0]
	}

	return curve, nil
}

// SaveManifest writes <dir>/run.yaml.
func SaveManifest(dir string, manifest Manifest) error {
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageFailed, "failed to encode run manifest", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeStorageFailed, "failed to write run manifest", err)
	}

	return nil
}

// LoadManifest reads <dir>/run.yaml.
func LoadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return Manifest{}, errors.Wrap(errors.ErrCodeDataNotFound, "failed to read run manifest", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, errors.Wrap(errors.ErrCodeSchemaError, "failed to decode run manifest", err)
	}

	return manifest, nil
}
