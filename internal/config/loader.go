package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	configName = ".cloudimpact"
	configType = "yaml"

	envPrefix      = "CLOUDIMPACT"
	envKeySeparator = "_"

	// DefaultParallelCloneLimit is the materializer's worker pool cap.
	DefaultParallelCloneLimit = 8
	// DefaultGitOpTimeoutSeconds is the per-git-invocation wall clock limit.
	DefaultGitOpTimeoutSeconds = 120
	// DefaultContextLinesK is the ± snippet window size around a citation.
	DefaultContextLinesK = 2
	// DefaultMaxTokens bounds the assembled prompt's token count.
	DefaultMaxTokens = 6000
	// DefaultCacheDirName is used when cache_dir is unset.
	DefaultCacheDirName = ".cloudimpact-cache"
)

// LoadConfig loads configuration from file, environment variables, and
// defaults. If configPath is non-empty it is used as the explicit config
// file path; otherwise the file is searched in CWD and $HOME. A missing
// config file is not an error — defaults carry the run.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) && !errors.Is(readErr, os.ErrNotExist) {
			return nil, fmt.Errorf("config: read: %w", readErr)
		}
	}

	var cfg Config

	if err := viperCfg.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("workspace", "")
	viperCfg.SetDefault("cache_dir", DefaultCacheDirName)
	viperCfg.SetDefault("enable_cross_project", true)
	viperCfg.SetDefault("related_projects", []RelatedProjectSpec{})

	viperCfg.SetDefault("git.parallel_clone_limit", DefaultParallelCloneLimit)
	viperCfg.SetDefault("git.git_op_timeout_seconds", DefaultGitOpTimeoutSeconds)
	viperCfg.SetDefault("git.allow_branch_fallback", false)

	viperCfg.SetDefault("prompt.context_lines_k", DefaultContextLinesK)
	viperCfg.SetDefault("prompt.max_tokens", DefaultMaxTokens)

	viperCfg.SetDefault("observability.log_level", "info")
	viperCfg.SetDefault("observability.log_json", false)
	viperCfg.SetDefault("observability.enable_metrics", false)
	viperCfg.SetDefault("observability.enable_tracing", false)
	viperCfg.SetDefault("observability.otlp_endpoint", "")
}
