package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"bitget-trader/pkg/db"
)

// Config represents a strategy configuration entry in YAML.
type Config struct {
	ID         string             `yaml:"id"`
	Name       string             `yaml:"name"`
	Type       string             `yaml:"type"`
	Symbol     string             `yaml:"symbol"`
	Interval   string             `yaml:"interval"`
	Parameters map[string]float64 `yaml:"parameters"`
	IsActive   bool               `yaml:"is_active"`
}

// ConfigFile represents the top-level YAML structure.
type ConfigFile struct {
	Strategies []Config `yaml:"strategies"`
}

// LoadConfig reads strategies from a YAML file.
func LoadConfig(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return file.Strategies, nil
}

// Build instantiates the strategy a config entry describes.
func Build(cfg Config) (Strategy, error) {
	p := cfg.Parameters
	switch cfg.Type {
	case "rsi":
		return NewRSIReversal(cfg.Name, int(p["period"]), p["oversold"], p["overbought"],
			p["stop_loss_pct"], p["take_profit_pct"]), nil
	case "ema_cross":
		return NewEMACross(cfg.Name, int(p["fast"]), int(p["slow"]),
			p["stop_loss_pct"], p["take_profit_pct"]), nil
	case "volume_spike":
		return NewVolumeSpike(cfg.Name, int(p["lookback"]), p["multiplier"],
			p["stop_loss_pct"], p["take_profit_pct"]), nil
	default:
		return nil, fmt.Errorf("unknown strategy type %q", cfg.Type)
	}
}

// SyncConfigToDB upserts the configured strategies into the database so the
// API can report what is running.
func SyncConfigToDB(ctx context.Context, store *db.Store, configs []Config) error {
	for _, cfg := range configs {
		params, err := json.Marshal(cfg.Parameters)
		if err != nil {
			return fmt.Errorf("marshal parameters for %s: %w", cfg.Name, err)
		}
		inst := db.StrategyInstance{
			ID:           cfg.ID,
			Name:         cfg.Name,
			StrategyType: cfg.Type,
			Symbol:       cfg.Symbol,
			Interval:     cfg.Interval,
			Parameters:   string(params),
			IsActive:     cfg.IsActive,
		}
		if err := store.UpsertStrategyInstance(ctx, inst); err != nil {
			return fmt.Errorf("sync strategy %s: %w", cfg.Name, err)
		}
	}
	return nil
}
