package inference

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/abhisek/essaygrade/internal/features"
)

// Scaler holds the per-slot standardisation parameters the backend model
// was trained with.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// IdentityScaler leaves features unchanged.
func IdentityScaler() *Scaler {
	s := &Scaler{Mean: make([]float64, features.Size), Scale: make([]float64, features.Size)}
	for i := range s.Scale {
		s.Scale[i] = 1
	}
	return s
}

// LoadScaler reads parameters from a JSON file. A missing file yields the
// identity scaler so a fresh install can still reach the backend.
func LoadScaler(path string) (*Scaler, error) {
	if path == "" {
		return IdentityScaler(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return IdentityScaler(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read scaler: %w", err)
	}
	var s Scaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scaler %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scaler %s: %w", path, err)
	}
	return &s, nil
}

// Save writes the parameters as JSON.
func (s *Scaler) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks lengths and finiteness.
func (s *Scaler) Validate() error {
	if len(s.Mean) != features.Size || len(s.Scale) != features.Size {
		return fmt.Errorf("expected %d mean and scale values, got %d and %d",
			features.Size, len(s.Mean), len(s.Scale))
	}
	for i := range s.Mean {
		if !finite(s.Mean[i]) || !finite(s.Scale[i]) {
			return fmt.Errorf("slot %d has a non-finite parameter", i)
		}
	}
	return nil
}

// Apply standardises each slot as (f-mean)/scale. A zero scale is treated as 1.
func (s *Scaler) Apply(v features.Vector) []float64 {
	out := make([]float64, features.Size)
	for i, f := range v {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (f - s.Mean[i]) / scale
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
