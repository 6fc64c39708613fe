// Package config provides configuration loading and management for vesselseg.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"vesselseg/pkg/loss"
	"vesselseg/pkg/transform"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Data parameters
	Data struct {
		// Root is the dataset directory containing magn/ and mask/ subdirs.
		Root string `yaml:"root"`

		// Scheme is the colormap used to convert grayscale scans to RGB.
		Scheme string `yaml:"scheme"`

		// Phase selects train or val preprocessing.
		Phase string `yaml:"phase"`
	} `yaml:"data"`

	// Transform parameters
	Transform struct {
		// Size is the square output size of the per-slice transforms.
		Size int `yaml:"size"`

		// BlurKernel and BlurSigma configure the Gaussian anti-aliasing
		// stage of the input pipeline.
		BlurKernel int     `yaml:"blurKernel"`
		BlurSigma  float64 `yaml:"blurSigma"`

		// LowPercentile and HighPercentile bound the clip-and-scale
		// intensity normalization.
		LowPercentile  float64 `yaml:"lowPercentile"`
		HighPercentile float64 `yaml:"highPercentile"`

		// PreSmoothSigma optionally smooths each raw slice before
		// evaluation; zero disables it.
		PreSmoothSigma float64 `yaml:"preSmoothSigma"`
	} `yaml:"transform"`

	// Loss hyperparameters
	Loss struct {
		Alpha     float64   `yaml:"alpha"`
		Beta      float64   `yaml:"beta"`
		Gamma     float64   `yaml:"gamma"`
		Epsilon   float64   `yaml:"epsilon"`
		CEWeights []float64 `yaml:"ceWeights"`
	} `yaml:"loss"`

	// Model parameters
	Model struct {
		// NumClasses is the classifier output width; 2 for
		// background/vessel.
		NumClasses int `yaml:"numClasses"`

		// WeightsPath points at a trained weights blob; empty loads none.
		WeightsPath string `yaml:"weightsPath"`

		// Device places batches and model parameters (cpu or cuda).
		Device string `yaml:"device"`
	} `yaml:"model"`

	// Output parameters
	Output struct {
		// MasksDir receives the per-slice PNG renderings.
		MasksDir string `yaml:"masksDir"`

		// AnimationPath receives the animated GIF; empty skips it.
		AnimationPath string `yaml:"animationPath"`

		// FPS is the animation frame rate.
		FPS int `yaml:"fps"`

		// Verbose enables debug logging.
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Data.Root = "data/val"
	cfg.Data.Scheme = "grey"
	cfg.Data.Phase = string(transform.PhaseVal)

	cfg.Transform.Size = 50
	cfg.Transform.BlurKernel = transform.DefaultBlurKernel
	cfg.Transform.BlurSigma = transform.DefaultBlurSigma
	cfg.Transform.LowPercentile = transform.DefaultLowPercentile
	cfg.Transform.HighPercentile = transform.DefaultHighPercentile
	cfg.Transform.PreSmoothSigma = 0

	cfg.Loss.Alpha = loss.DefaultAlpha
	cfg.Loss.Beta = loss.DefaultBeta
	cfg.Loss.Gamma = loss.DefaultGamma
	cfg.Loss.Epsilon = loss.DefaultEpsilon
	cfg.Loss.CEWeights = []float64{0.5, 0.5}

	cfg.Model.NumClasses = 2
	cfg.Model.Device = "cpu"

	cfg.Output.MasksDir = "images/masks"
	cfg.Output.AnimationPath = "images/segmentation_animation.gif"
	cfg.Output.FPS = 10
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the
// specified path.
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
