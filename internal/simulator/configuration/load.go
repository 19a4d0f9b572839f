package configuration

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/sqlsimproject/sqlsim/internal/common/logging"
)

// Default values applied by applyDefaults when the corresponding keys are
// omitted from the configuration file.
const (
	DefaultGlobalDurationSeconds      = 300
	DefaultDataGenerationBatchSize    = 1000
	DefaultOutputDirectory            = "simulation_results"
	DefaultShutdownGracePeriodSeconds = 10
	DefaultMonitoringIntervalSeconds  = 5
	DefaultDBMSMetricFrequencySeconds = 60
	DefaultQueryWeight                = 1
	DefaultThinkTimeMinMs             = 50
	DefaultThinkTimeMaxMs             = 500
	DefaultParamGeneratorSampleSize   = 100
	DefaultWorkloadConcurrency        = 1
)

// Load reads, defaults and validates a simulation configuration from the YAML
// file at the given path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}

	config := &Config{Logging: logging.DefaultConfig()}
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.Wrapf(err, "unmarshalling config file %s", path)
	}

	applyDefaults(config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyDefaults(c *Config) {
	p := &c.Parameters
	if p.GlobalDurationSeconds == 0 {
		p.GlobalDurationSeconds = DefaultGlobalDurationSeconds
	}
	if p.DataGenerationBatchSize == 0 {
		p.DataGenerationBatchSize = DefaultDataGenerationBatchSize
	}
	if p.OutputDirectory == "" {
		p.OutputDirectory = DefaultOutputDirectory
	}
	if p.ShutdownGracePeriodSeconds == 0 {
		p.ShutdownGracePeriodSeconds = DefaultShutdownGracePeriodSeconds
	}

	if c.Monitoring.MonitoringIntervalSeconds == 0 {
		c.Monitoring.MonitoringIntervalSeconds = DefaultMonitoringIntervalSeconds
	}
	for i := range c.Monitoring.DBMSMetrics {
		if c.Monitoring.DBMSMetrics[i].FrequencySeconds == 0 {
			c.Monitoring.DBMSMetrics[i].FrequencySeconds = DefaultDBMSMetricFrequencySeconds
		}
	}

	for i := range c.Workloads {
		w := &c.Workloads[i]
		if w.Concurrency == 0 {
			w.Concurrency = DefaultWorkloadConcurrency
		}
		if w.DurationSeconds == 0 {
			w.DurationSeconds = c.Parameters.GlobalDurationSeconds
		}
		if w.ThinkTimeMinMs == 0 && w.ThinkTimeMaxMs == 0 {
			w.ThinkTimeMinMs = DefaultThinkTimeMinMs
			w.ThinkTimeMaxMs = DefaultThinkTimeMaxMs
		}
		for j := range w.Queries {
			q := &w.Queries[j]
			if q.Weight == 0 {
				q.Weight = DefaultQueryWeight
			}
			for k := range q.ParamGenerators {
				if q.ParamGenerators[k].SampleSize == 0 {
					q.ParamGenerators[k].SampleSize = DefaultParamGeneratorSampleSize
				}
			}
		}
	}
}
