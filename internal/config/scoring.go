package config

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/the-proof-must-flow/internal/common"
	"github.com/Veraticus/the-proof-must-flow/internal/ledger"
	"github.com/Veraticus/the-proof-must-flow/internal/location"
	"github.com/Veraticus/the-proof-must-flow/internal/preference"
	"github.com/Veraticus/the-proof-must-flow/internal/reference"
)

// weightTolerance is how far a weight table may drift from summing to 1.
const weightTolerance = 1e-9

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverS3     = "s3"
)

// LocationConfig holds the location-domain limits and gate.
type LocationConfig struct {
	Weights                map[string]float64 `mapstructure:"weights"`
	AllowedLevels          []int              `mapstructure:"allowed_hierarchy_levels"`
	MaxSpeed               float64            `mapstructure:"max_speed"`
	MaxWalkSpeed           float64            `mapstructure:"max_walk_speed"`
	MaxRunSpeed            float64            `mapstructure:"max_run_speed"`
	SpanWindowDays         float64            `mapstructure:"span_window_days"`
	PassThreshold          float64            `mapstructure:"pass_threshold"`
	AlternatePassThreshold float64            `mapstructure:"alternate_pass_threshold"`
}

// PreferenceConfig holds the preference-domain floors and gate.
type PreferenceConfig struct {
	Weights        map[string]float64 `mapstructure:"weights"`
	MinAverageTime float64            `mapstructure:"min_average_time"`
	MinCharTime    float64            `mapstructure:"min_char_time"`
	MinQuality     float64            `mapstructure:"min_quality"`
	ScoreVolume    float64            `mapstructure:"score_volume"`
}

// ProofConfig holds the output settings.
type ProofConfig struct {
	MaxRecords int `mapstructure:"max_records"`
	DLPID      int `mapstructure:"dlp_id"`
}

// StoreConfig selects and configures the object store.
type StoreConfig struct {
	Driver     string        `mapstructure:"driver"`
	SQLitePath string        `mapstructure:"sqlite_path"`
	Region     string        `mapstructure:"region"`
	Endpoint   string        `mapstructure:"endpoint"`
	Profile    string        `mapstructure:"profile"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ObjectConfig locates one object.
type ObjectConfig struct {
	Bucket string `mapstructure:"bucket"`
	Key    string `mapstructure:"key"`
}

// ReferenceConfig locates the poisoned reference.
type ReferenceConfig struct {
	Bucket   string        `mapstructure:"bucket"`
	Key      string        `mapstructure:"key"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Scoring is the validated configuration passed to the engine.
type Scoring struct {
	Location   LocationConfig   `mapstructure:"location"`
	Preference PreferenceConfig `mapstructure:"preference"`
	Store      StoreConfig      `mapstructure:"store"`
	Ledger     ObjectConfig     `mapstructure:"ledger"`
	Reference  ReferenceConfig  `mapstructure:"reference"`
	Proof      ProofConfig      `mapstructure:"proof"`
}

// DefaultLocationWeights weighs the seven location checks equally.
func DefaultLocationWeights() map[string]float64 {
	weights := make(map[string]float64, len(location.Names))
	for _, name := range location.Names {
		weights[name] = 1.0 / float64(len(location.Names))
	}
	return weights
}

// DefaultPreferenceWeights returns the default preference weight table.
func DefaultPreferenceWeights() map[string]float64 {
	return map[string]float64{
		preference.NameTimeMinimums:      0.2,
		preference.NameTimeCorrelation:   0.2,
		preference.NameTimeDistribution:  0.1,
		preference.NameRepeatAnswers:     0.15,
		preference.NameBothSides:         0.15,
		preference.NameModelDistribution: 0.05,
		preference.NamePoisonData:        0.15,
	}
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	loc := location.DefaultConfig()
	v.SetDefault("location.max_speed", loc.MaxSpeed)
	v.SetDefault("location.allowed_hierarchy_levels", loc.AllowedLevels)
	v.SetDefault("location.max_walk_speed", loc.MaxWalkSpeed)
	v.SetDefault("location.max_run_speed", loc.MaxRunSpeed)
	v.SetDefault("location.span_window_days", 60.0)
	v.SetDefault("location.pass_threshold", 0.9)
	v.SetDefault("location.alternate_pass_threshold", 0.0)
	v.SetDefault("location.weights", toAnyMap(DefaultLocationWeights()))

	pref := preference.DefaultConfig()
	v.SetDefault("preference.min_average_time", pref.MinAverageTime)
	v.SetDefault("preference.min_char_time", pref.MinCharTime)
	v.SetDefault("preference.min_quality", 0.0)
	v.SetDefault("preference.score_volume", 100.0)
	v.SetDefault("preference.weights", toAnyMap(DefaultPreferenceWeights()))

	v.SetDefault("proof.max_records", 105)
	v.SetDefault("proof.dlp_id", 0)

	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.sqlite_path", DefaultStorePath())
	v.SetDefault("store.region", "")
	v.SetDefault("store.endpoint", "")
	v.SetDefault("store.profile", "")
	v.SetDefault("store.timeout", 10*time.Second)

	led := ledger.DefaultOptions()
	v.SetDefault("ledger.bucket", led.Bucket)
	v.SetDefault("ledger.key", led.Key)

	ref := reference.DefaultOptions()
	v.SetDefault("reference.bucket", ref.Bucket)
	v.SetDefault("reference.key", ref.Key)
	v.SetDefault("reference.cache_ttl", ref.CacheTTL)
}

// Default returns the default configuration.
func Default() *Scoring {
	cfg, err := Load(viper.New())
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

// Load reads the scoring configuration from v, filling in defaults, and
// validates it.
func Load(v *viper.Viper) (*Scoring, error) {
	SetDefaults(v)

	var cfg Scoring
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	cfg.Store.SQLitePath = ExpandPath(cfg.Store.SQLitePath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every bound, and that each weight table covers exactly its
// checks and sums to 1.
func (s *Scoring) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	loc := s.Location
	check(loc.MaxSpeed > 0, "location.max_speed must be positive")
	check(loc.MaxWalkSpeed > 0, "location.max_walk_speed must be positive")
	check(loc.MaxRunSpeed > 0, "location.max_run_speed must be positive")
	check(len(loc.AllowedLevels) > 0, "location.allowed_hierarchy_levels must not be empty")
	check(loc.SpanWindowDays > 0, "location.span_window_days must be positive")
	check(unit(loc.PassThreshold), "location.pass_threshold must be in [0,1]")
	check(unit(loc.AlternatePassThreshold), "location.alternate_pass_threshold must be in [0,1]")
	errs = append(errs, validateWeights("location.weights", loc.Weights, location.Names)...)

	pref := s.Preference
	check(pref.MinAverageTime >= 0, "preference.min_average_time must not be negative")
	check(pref.MinCharTime >= 0, "preference.min_char_time must not be negative")
	check(unit(pref.MinQuality), "preference.min_quality must be in [0,1]")
	check(pref.ScoreVolume > 0, "preference.score_volume must be positive")
	errs = append(errs, validateWeights("preference.weights", pref.Weights, preference.Names)...)

	check(s.Proof.MaxRecords > 0, "proof.max_records must be positive")

	switch s.Store.Driver {
	case DriverSQLite:
		check(s.Store.SQLitePath != "", "store.sqlite_path is required for the sqlite driver")
	case DriverS3:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of %s, %s", s.Store.Driver, DriverSQLite, DriverS3))
	}
	check(s.Store.Timeout > 0, "store.timeout must be positive")

	check(s.Ledger.Bucket != "" && s.Ledger.Key != "", "ledger.bucket and ledger.key are required")
	check(s.Reference.Bucket != "" && s.Reference.Key != "", "reference.bucket and reference.key are required")
	check(s.Reference.CacheTTL >= 0, "reference.cache_ttl must not be negative")

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", common.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// PassThresholdFor returns the location gate for the given dialect.
func (l LocationConfig) PassThresholdFor(alternate bool) float64 {
	if alternate && l.AlternatePassThreshold > 0 {
		return l.AlternatePassThreshold
	}
	return l.PassThreshold
}

// Checks returns the limits the location checks run with.
func (l LocationConfig) Checks() location.Config {
	return location.Config{
		MaxSpeed:      l.MaxSpeed,
		AllowedLevels: slices.Clone(l.AllowedLevels),
		MaxWalkSpeed:  l.MaxWalkSpeed,
		MaxRunSpeed:   l.MaxRunSpeed,
	}
}

// Checks returns the floors the preference checks run with.
func (p PreferenceConfig) Checks() preference.Config {
	return preference.Config{
		MinAverageTime: p.MinAverageTime,
		MinCharTime:    p.MinCharTime,
	}
}

// LedgerOptions locates the hash ledger.
func (s *Scoring) LedgerOptions() ledger.Options {
	opts := ledger.DefaultOptions()
	opts.Bucket = s.Ledger.Bucket
	opts.Key = s.Ledger.Key
	opts.Timeout = s.Store.Timeout
	return opts
}

// ReferenceOptions locates the poisoned reference.
func (s *Scoring) ReferenceOptions() reference.Options {
	return reference.Options{
		Bucket:   s.Reference.Bucket,
		Key:      s.Reference.Key,
		Timeout:  s.Store.Timeout,
		CacheTTL: s.Reference.CacheTTL,
	}
}

func validateWeights(field string, weights map[string]float64, names []string) []error {
	var errs []error
	sum := 0.0
	for _, name := range names {
		w, ok := weights[name]
		if !ok {
			errs = append(errs, fmt.Errorf("%s.%s is missing", field, name))
			continue
		}
		if w < 0 {
			errs = append(errs, fmt.Errorf("%s.%s must not be negative", field, name))
		}
		sum += w
	}

	var unknown []string
	for name := range weights {
		if !slices.Contains(names, name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		errs = append(errs, fmt.Errorf("%s has unknown checks: %s", field, strings.Join(unknown, ", ")))
	}

	if math.Abs(sum-1.0) > weightTolerance {
		errs = append(errs, fmt.Errorf("%s must sum to 1, got %.12f", field, sum))
	}
	return errs
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}

func toAnyMap(m map[string]float64) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
