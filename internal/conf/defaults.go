// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "eGrowtify")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/egrowtify.log")

	viper.SetDefault("backend.baseurl", "http://localhost:5000")
	viper.SetDefault("backend.timeout", 45*time.Second)

	viper.SetDefault("image.maxsizebytes", 10*1024*1024)
	viper.SetDefault("image.acceptedtypes", []string{"jpeg", "jpg", "png", "gif", "webp"})

	viper.SetDefault("analysis.freeanalysesbasic", 5)
	viper.SetDefault("analysis.freeanalysespremium", 10)
	viper.SetDefault("analysis.priceperanalysis", 20.00)
	viper.SetDefault("analysis.lowbalancethreshold", 2)
	viper.SetDefault("analysis.trainingconfidence", 50.0)
	viper.SetDefault("analysis.usagecachettlseconds", 15)
}

// defaultSettings returns a Settings populated with the package defaults,
// used when no config file or environment is available.
func defaultSettings() *Settings {
	s := &Settings{}
	s.Debug = false
	s.Main.Name = "eGrowtify"
	s.Main.Log = LogConfig{Enabled: true, Path: "logs/egrowtify.log"}
	s.Backend = BackendSettings{
		BaseURL: "http://localhost:5000",
		Timeout: 45 * time.Second,
	}
	s.Image = ImageSettings{
		MaxSizeBytes:  10 * 1024 * 1024,
		AcceptedTypes: []string{"jpeg", "jpg", "png", "gif", "webp"},
	}
	s.Analysis = AnalysisSettings{
		FreeAnalysesBasic:    5,
		FreeAnalysesPremium:  10,
		PricePerAnalysis:     20.00,
		LowBalanceThreshold:  2,
		TrainingConfidence:   50.0,
		UsageCacheTTLSeconds: 15,
	}
	return s
}
