package features

import (
	"math"

	"github.com/drug-risk-ml-server/internal/domain"
)

// Scaler standardizes feature columns to zero mean and unit variance.
// It is fit once on the training split and then applied, frozen, to
// the test split and every inference row.
type Scaler struct {
	Means   []float64 `json:"means"`
	Stddevs []float64 `json:"stddevs"`
	fitted  bool
}

// NewScaler creates an unfitted scaler.
func NewScaler() *Scaler {
	return &Scaler{}
}

// Fit computes per-column means and standard deviations. A column with
// zero variance gets stddev 1 so transforming it yields 0 instead of
// NaN.
func (s *Scaler) Fit(matrix [][]float64) error {
	if len(matrix) == 0 {
		return domain.NewPipelineError(domain.ErrKindInvalidInput, "scaler_fit",
			nil, "cannot fit scaler on an empty matrix")
	}

	cols := len(matrix[0])
	n := float64(len(matrix))

	s.Means = make([]float64, cols)
	s.Stddevs = make([]float64, cols)

	for _, row := range matrix {
		for j, v := range row {
			s.Means[j] += v
		}
	}
	for j := range s.Means {
		s.Means[j] /= n
	}

	for _, row := range matrix {
		for j, v := range row {
			d := v - s.Means[j]
			s.Stddevs[j] += d * d
		}
	}
	for j := range s.Stddevs {
		s.Stddevs[j] = math.Sqrt(s.Stddevs[j] / n)
		if s.Stddevs[j] == 0 {
			s.Stddevs[j] = 1
		}
	}

	s.fitted = true
	return nil
}

// Transform standardizes rows using the fitted parameters.
func (s *Scaler) Transform(matrix [][]float64) ([][]float64, error) {
	if !s.fitted && len(s.Means) == 0 {
		return nil, domain.NewPipelineError(domain.ErrKindInvalidInput, "scaler_transform",
			nil, "scaler has not been fitted")
	}

	out := make([][]float64, len(matrix))
	for i, row := range matrix {
		out[i] = s.TransformRow(row)
	}
	return out, nil
}

// TransformRow standardizes a single row.
func (s *Scaler) TransformRow(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		if j < len(s.Means) {
			out[j] = (v - s.Means[j]) / s.Stddevs[j]
		}
	}
	return out
}

// FitTransform fits on the matrix and returns its standardized form.
func (s *Scaler) FitTransform(matrix [][]float64) ([][]float64, error) {
	if err := s.Fit(matrix); err != nil {
		return nil, err
	}
	return s.Transform(matrix)
}

// MarkFitted restores the fitted flag after deserialization.
func (s *Scaler) MarkFitted() {
	s.fitted = len(s.Means) > 0
}
