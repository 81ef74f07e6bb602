// Package conf holds the configuration for the eGrowtify analysis orchestrator.
// It defines the settings struct and functions to load settings from file and environment.
package conf

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled bool   // true to enable this log
	Path    string // path to log file
}

// BackendSettings contains connection settings for the eGrowtify backend.
type BackendSettings struct {
	BaseURL string        // base URL of the backend, e.g. http://localhost:5000
	Timeout time.Duration // per-request timeout
}

// ImageSettings constrains what images the intake accepts.
type ImageSettings struct {
	MaxSizeBytes  int64    // maximum accepted image size
	AcceptedTypes []string // accepted MIME subtypes
}

// AnalysisSettings contains analysis and quota related settings.
type AnalysisSettings struct {
	FreeAnalysesBasic    int     // free-trial allowance on the basic tier
	FreeAnalysesPremium  int     // free-trial allowance on the premium tier
	PricePerAnalysis     float64 // price of one purchased credit
	LowBalanceThreshold  int     // remaining credits at or below this raise a warning
	TrainingConfidence   float64 // results below this confidence prompt training
	UsageCacheTTLSeconds int     // how long usage-status responses may be served from cache
}

// Settings contains all configuration for the orchestrator.
type Settings struct {
	Debug bool // true to enable debug mode

	Main struct {
		Name string    // name of this node/client
		Log  LogConfig // main log settings
	}

	Backend  BackendSettings
	Image    ImageSettings
	Analysis AnalysisSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a Settings struct.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/egrowtify")

	viper.SetEnvPrefix("egrowtify")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config file is fine, defaults and env cover everything
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// ValidateSettings checks that required settings have sane values.
func ValidateSettings(settings *Settings) error {
	if settings.Backend.BaseURL == "" {
		return errors.New("backend.baseurl is required")
	}
	if settings.Backend.Timeout <= 0 {
		return errors.New("backend.timeout must be positive")
	}
	if settings.Image.MaxSizeBytes <= 0 {
		return errors.New("image.maxsizebytes must be positive")
	}
	if len(settings.Image.AcceptedTypes) == 0 {
		return errors.New("image.acceptedtypes must not be empty")
	}
	if settings.Analysis.FreeAnalysesBasic < 0 || settings.Analysis.FreeAnalysesPremium < 0 {
		return errors.New("free analysis allowances must not be negative")
	}
	if settings.Analysis.TrainingConfidence < 0 || settings.Analysis.TrainingConfidence > 100 {
		return errors.New("analysis.trainingconfidence must be between 0 and 100")
	}
	return nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				// Fall back to defaults when loading fails, matching the
				// orchestrator's must-not-block-the-UI posture.
				settingsMutex.Lock()
				settingsInstance = defaultSettings()
				settingsMutex.Unlock()
			}
		}
	})
	return GetSettings()
}

// SetTestSettings replaces the settings instance, for tests only.
func SetTestSettings(settings *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = settings
}
