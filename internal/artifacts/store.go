// Package artifacts persists and restores trained model bundles as a
// directory of JSON documents. A bundle is immutable once written;
// each training run replaces the directory atomically and loading is
// all-or-nothing.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/drug-risk-ml-server/internal/domain"
	"github.com/drug-risk-ml-server/internal/features"
	"github.com/drug-risk-ml-server/internal/ml"
)

const (
	ensembleFile = "ensemble_model.json"
	singleFile   = "single_model.json"
	scalerFile   = "scaler.json"
	columnsFile  = "feature_columns.json"
	metadataFile = "metadata.json"
)

// Bundle is a complete servable artifact set.
type Bundle struct {
	Members  []ml.CandidateScore
	Single   ml.Classifier
	Scaler   *features.Scaler
	Metadata domain.BundleMetadata
}

// Store reads and writes bundles under one artifact directory.
type Store struct {
	dir string
	log *logrus.Logger
}

// NewStore creates an artifact store rooted at dir.
func NewStore(dir string, logger *logrus.Logger) *Store {
	return &Store{dir: dir, log: logger}
}

// Dir returns the artifact directory path.
func (s *Store) Dir() string {
	return s.dir
}

// serializedModel is the on-disk form of one classifier.
type serializedModel struct {
	Name   string          `json:"name"`
	Score  float64         `json:"score"`
	Params json.RawMessage `json:"params"`
}

// Save writes the bundle to a staging directory and swaps it into
// place, so a crash mid-write never leaves a half-written bundle at
// the servable path.
func (s *Store) Save(bundle *Bundle) error {
	staging := fmt.Sprintf("%s.staging-%s", s.dir, uuid.New().String()[:8])
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	members := make([]serializedModel, len(bundle.Members))
	for i, m := range bundle.Members {
		params, err := json.Marshal(m.Model)
		if err != nil {
			return fmt.Errorf("serializing ensemble member %s: %w", m.ModelName, err)
		}
		members[i] = serializedModel{Name: m.ModelName, Score: m.Score, Params: params}
	}

	singleParams, err := json.Marshal(bundle.Single)
	if err != nil {
		return fmt.Errorf("serializing single model: %w", err)
	}
	single := serializedModel{Name: bundle.Single.Name(), Params: singleParams}

	files := map[string]interface{}{
		ensembleFile: members,
		singleFile:   single,
		scalerFile:   bundle.Scaler,
		columnsFile:  bundle.Metadata.FeatureColumns,
		metadataFile: bundle.Metadata,
	}
	for name, doc := range files {
		if err := writeJSON(filepath.Join(staging, name), doc); err != nil {
			return err
		}
	}

	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("removing previous bundle: %w", err)
	}
	if err := os.Rename(staging, s.dir); err != nil {
		return fmt.Errorf("activating new bundle: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"dir":     s.dir,
		"members": len(bundle.Members),
		"columns": len(bundle.Metadata.FeatureColumns),
	}).Info("Artifact bundle saved")
	return nil
}

// Load reads a complete bundle. Any missing or unreadable file fails
// the whole load; a partially usable bundle is never returned.
func (s *Store) Load() (*Bundle, error) {
	var members []serializedModel
	if err := readJSON(filepath.Join(s.dir, ensembleFile), &members); err != nil {
		return nil, loadError(ensembleFile, err)
	}

	bundle := &Bundle{}
	for _, m := range members {
		model, err := decodeModel(m.Name, m.Params)
		if err != nil {
			return nil, loadError(ensembleFile, err)
		}
		bundle.Members = append(bundle.Members, ml.CandidateScore{
			ModelName: m.Name,
			Model:     model,
			Score:     m.Score,
		})
	}

	var single serializedModel
	if err := readJSON(filepath.Join(s.dir, singleFile), &single); err != nil {
		return nil, loadError(singleFile, err)
	}
	singleModel, err := decodeModel(single.Name, single.Params)
	if err != nil {
		return nil, loadError(singleFile, err)
	}
	bundle.Single = singleModel

	scaler := features.NewScaler()
	if err := readJSON(filepath.Join(s.dir, scalerFile), scaler); err != nil {
		return nil, loadError(scalerFile, err)
	}
	scaler.MarkFitted()
	bundle.Scaler = scaler

	var columns []string
	if err := readJSON(filepath.Join(s.dir, columnsFile), &columns); err != nil {
		return nil, loadError(columnsFile, err)
	}

	if err := readJSON(filepath.Join(s.dir, metadataFile), &bundle.Metadata); err != nil {
		return nil, loadError(metadataFile, err)
	}
	// The standalone manifest is authoritative.
	bundle.Metadata.FeatureColumns = columns

	s.log.WithFields(logrus.Fields{
		"dir":     s.dir,
		"members": len(bundle.Members),
		"columns": len(columns),
	}).Info("Artifact bundle loaded")
	return bundle, nil
}

// decodeModel reconstructs a concrete classifier from its name and
// serialized parameters.
func decodeModel(name string, params json.RawMessage) (ml.Classifier, error) {
	var model ml.Classifier
	switch name {
	case "xgb", "gb":
		model = &ml.GradientBoosting{}
	case "rf":
		model = &ml.RandomForest{}
	case "lr":
		model = &ml.LogisticRegression{}
	case "svm":
		model = &ml.KernelSVM{}
	case "mlp":
		model = &ml.MLP{}
	default:
		return nil, fmt.Errorf("unknown model name %q", name)
	}
	if err := json.Unmarshal(params, model); err != nil {
		return nil, fmt.Errorf("deserializing model %s: %w", name, err)
	}
	return model, nil
}

func loadError(file string, err error) error {
	return domain.NewPipelineError(domain.ErrKindArtifactLoad, "load_bundle",
		fmt.Errorf("%s: %w", file, err), "")
}

func writeJSON(path string, doc interface{}) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
