package models

// ModelInfo is the static metadata attached to a loaded predictor.
type ModelInfo struct {
	Name            string             `json:"name" yaml:"name"`
	Type            string             `json:"type" yaml:"type"`
	Version         string             `json:"version,omitempty" yaml:"version"`
	Source          string             `json:"source"`
	SequenceLength  int                `json:"sequence_length,omitempty" yaml:"sequence_length"`
	Features        []string           `json:"features,omitempty" yaml:"features"`
	Hyperparameters map[string]float64 `json:"hyperparameters,omitempty" yaml:"hyperparameters"`
	Loaded          bool               `json:"loaded"`
}

type HealthStatus struct {
	Status  string          `json:"status"`
	Service string          `json:"service"`
	Models  map[string]bool `json:"models"`
}
