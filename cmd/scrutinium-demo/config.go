package main

import (
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultChoices    = "Alice,Bob,Carol"
	defaultMethod     = "plurality"
	defaultVoterCount = 10
	defaultBatchSize  = 4
	defaultLogLevel   = "info"
	defaultLogOutput  = "stdout"
)

// Config holds the demo's simulation parameters.
type Config struct {
	Poll PollConfig
	Log  LogConfig
}

// PollConfig describes the poll the simulation creates and runs.
type PollConfig struct {
	Choices    []string `mapstructure:"choices"`
	Method     string   `mapstructure:"method"`
	VoterCount int      `mapstructure:"voterCount"`
	BatchSize  int      `mapstructure:"batchSize"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// loadConfig loads configuration from flags, environment variables, and
// defaults through a viper/pflag pipeline.
func loadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("poll.choices", strings.Split(defaultChoices, ","))
	v.SetDefault("poll.method", defaultMethod)
	v.SetDefault("poll.voterCount", defaultVoterCount)
	v.SetDefault("poll.batchSize", defaultBatchSize)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)

	flag.StringSliceP("poll.choices", "c", strings.Split(defaultChoices, ","), "comma-separated choice names")
	flag.StringP("poll.method", "m", defaultMethod, "voting method (plurality, approval, weighted, borda, ranked_choice, two_round, stv)")
	flag.IntP("poll.voterCount", "n", defaultVoterCount, "number of simulated voters")
	flag.IntP("poll.batchSize", "b", defaultBatchSize, "votes staged per batch flush")
	flag.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error)")
	flag.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")

	flag.CommandLine.SortFlags = false
	flag.Parse()

	v.SetEnvPrefix("SCRUTINIUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flag.CommandLine); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}
