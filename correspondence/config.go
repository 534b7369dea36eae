package correspondence

import (
	"encoding/json"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Defaults for Config.
const (
	DefaultNumAttempts          = 1024
	DefaultDepthScale           = 1000.0
	DefaultOcclusionMargin      = 0.003
	DefaultFOVEpsilon           = 1e-3
	DefaultNearThresholdPx      = 1.0
	DefaultPerturbStdDevPx      = 10.0
	DefaultPhotometricThreshold = 4.0
	DefaultMinMaskFraction      = 0.01
	DefaultNonMatchesPerMatch   = 100
)

// Config tunes correspondence generation. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	// NumAttempts is how many pixels of image A are sampled per call. Most attempts do not
	// survive pruning.
	NumAttempts int `json:"num_attempts"`
	// DepthScale converts raw depth values to meters (raw / DepthScale).
	DepthScale float64 `json:"depth_scale"`
	// OcclusionMargin is the tolerance, in meters, before a closer B surface counts as occluding.
	OcclusionMargin float64 `json:"occlusion_margin"`
	// FOVEpsilon shrinks the far image border to avoid rounding onto a nonexistent pixel.
	FOVEpsilon float64 `json:"fov_epsilon"`
	// NearThresholdPx flags non-match candidates this close, on either axis, to their match.
	NearThresholdPx float64 `json:"near_threshold_px"`
	// PerturbStdDevPx is the standard deviation of the offset applied to flagged candidates.
	PerturbStdDevPx float64 `json:"perturb_std_dev_px"`
	// PhotometricThreshold is the largest summed squared channel difference a match may have.
	PhotometricThreshold float64 `json:"photometric_threshold"`
	// PhotometricCheck enables the color filter when both views carry color.
	PhotometricCheck bool `json:"photometric_check"`
	// MinMaskFraction is the smallest mask coverage a view may have to build a training pair.
	MinMaskFraction float64 `json:"min_mask_fraction"`
	// SampleMatchesOnMask restricts A samples to A's mask when it has one.
	SampleMatchesOnMask bool `json:"sample_matches_on_mask"`
	// NonMatchesPerMatch is how many non-matches a training pair draws per match.
	NonMatchesPerMatch int `json:"non_matches_per_match"`
}

// DefaultConfig returns the configuration used by the training pipeline.
func DefaultConfig() Config {
	return Config{
		NumAttempts:          DefaultNumAttempts,
		DepthScale:           DefaultDepthScale,
		OcclusionMargin:      DefaultOcclusionMargin,
		FOVEpsilon:           DefaultFOVEpsilon,
		NearThresholdPx:      DefaultNearThresholdPx,
		PerturbStdDevPx:      DefaultPerturbStdDevPx,
		PhotometricThreshold: DefaultPhotometricThreshold,
		PhotometricCheck:     true,
		MinMaskFraction:      DefaultMinMaskFraction,
		SampleMatchesOnMask:  true,
		NonMatchesPerMatch:   DefaultNonMatchesPerMatch,
	}
}

// Validate reports every invalid field at once.
func (cfg *Config) Validate() error {
	var errs error
	if cfg.NumAttempts <= 0 {
		errs = multierr.Append(errs, errors.Errorf("num_attempts must be positive, got %d", cfg.NumAttempts))
	}
	if cfg.DepthScale <= 0 {
		errs = multierr.Append(errs, errors.Errorf("depth_scale must be positive, got %v", cfg.DepthScale))
	}
	if cfg.OcclusionMargin < 0 {
		errs = multierr.Append(errs, errors.Errorf("occlusion_margin cannot be negative, got %v", cfg.OcclusionMargin))
	}
	if cfg.FOVEpsilon < 0 || cfg.FOVEpsilon >= 1 {
		errs = multierr.Append(errs, errors.Errorf("fov_epsilon must be in [0, 1), got %v", cfg.FOVEpsilon))
	}
	if cfg.NearThresholdPx < 0 {
		errs = multierr.Append(errs, errors.Errorf("near_threshold_px cannot be negative, got %v", cfg.NearThresholdPx))
	}
	if cfg.PerturbStdDevPx < 0 {
		errs = multierr.Append(errs, errors.Errorf("perturb_std_dev_px cannot be negative, got %v", cfg.PerturbStdDevPx))
	}
	if cfg.PhotometricThreshold < 0 {
		errs = multierr.Append(errs, errors.Errorf("photometric_threshold cannot be negative, got %v", cfg.PhotometricThreshold))
	}
	if cfg.MinMaskFraction < 0 || cfg.MinMaskFraction > 1 {
		errs = multierr.Append(errs, errors.Errorf("min_mask_fraction must be in [0, 1], got %v", cfg.MinMaskFraction))
	}
	if cfg.NonMatchesPerMatch <= 0 {
		errs = multierr.Append(errs, errors.Errorf("non_matches_per_match must be positive, got %d", cfg.NonMatchesPerMatch))
	}
	return errs
}

// NewConfigFromAttributes decodes an attribute map, e.g. parsed JSON, on top of
// DefaultConfig. Unknown keys are errors.
func NewConfigFromAttributes(attrs map[string]interface{}) (*Config, error) {
	cfg := DefaultConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &cfg,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error creating config decoder")
	}
	if err := decoder.Decode(attrs); err != nil {
		return nil, errors.Wrap(err, "error decoding correspondence config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid correspondence config")
	}
	return &cfg, nil
}

// LoadConfigFile reads a JSON object of attributes from disk.
func LoadConfigFile(fn string) (*Config, error) {
	//nolint:gosec
	data, err := os.ReadFile(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading config file %q", fn)
	}
	var attrs map[string]interface{}
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, errors.Wrapf(err, "error parsing config file %q", fn)
	}
	return NewConfigFromAttributes(attrs)
}
