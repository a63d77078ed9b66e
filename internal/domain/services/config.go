package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

// ConfigService resolves the effective configuration from every source
type ConfigService struct {
	loader ports.ConfigLoader
	merger ports.ConfigMerger
}

// NewConfigService creates a new configuration service
func NewConfigService(loader ports.ConfigLoader, merger ports.ConfigMerger) *ConfigService {
	return &ConfigService{
		loader: loader,
		merger: merger,
	}
}

// LoadConfig merges, in increasing precedence: defaults, the global file,
// the local texdeck.toml (or an explicit file), environment and CLI flags.
func (s *ConfigService) LoadConfig(ctx context.Context, sources ports.ConfigSources) (*entities.Config, error) {
	configs := []*entities.Config{s.GetDefaultConfig()}

	if !sources.SkipGlobal {
		globalConfig, err := s.loader.LoadGlobal(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
		if globalConfig != nil {
			configs = append(configs, globalConfig)
		}
	}

	if sources.ExplicitPath != "" {
		fileConfig, err := s.loader.LoadFile(ctx, sources.ExplicitPath)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		configs = append(configs, fileConfig)
	} else if sources.WorkingDir != "" {
		localConfig, err := s.loader.LoadLocal(ctx, sources.WorkingDir)
		if err != nil {
			return nil, fmt.Errorf("loading local config: %w", err)
		}
		if localConfig != nil {
			configs = append(configs, localConfig)
		}
	}

	merged := s.merger.Merge(configs...)
	withEnv := s.merger.ApplyEnvVars(merged)
	final := s.merger.ApplyFlags(withEnv, sources.Flags)

	if err := s.ValidateConfig(final); err != nil {
		return nil, fmt.Errorf("final config validation: %w", err)
	}

	return final, nil
}

// GetDefaultConfig returns the default configuration
func (s *ConfigService) GetDefaultConfig() *entities.Config {
	// Merge with no arguments returns defaults; the domain layer cannot import the adapter's defaults
	return s.merger.Merge()
}

// ValidateConfig validates a configuration
func (s *ConfigService) ValidateConfig(config *entities.Config) error {
	if config == nil {
		return errors.New("config cannot be nil")
	}
	return config.Validate()
}

// CreateGlobalConfig writes the global configuration file with defaults
func (s *ConfigService) CreateGlobalConfig(ctx context.Context) (string, error) {
	path := s.loader.GetGlobalPath()
	if err := s.loader.CreateDefaults(ctx, path); err != nil {
		return "", err
	}
	return path, nil
}

// Ensure ConfigService implements ports.ConfigService
var _ ports.ConfigService = (*ConfigService)(nil)
