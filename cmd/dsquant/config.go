package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mingshine10000/DeepSpeed/quantize"
)

// benchConfig is the YAML description of a benchmark session.
type benchConfig struct {
	Session   string       `yaml:"session"`
	Warmup    int          `yaml:"warmup"`
	Runs      int          `yaml:"runs"`
	Modes     []string     `yaml:"modes"`
	Bits      []int        `yaml:"bits"`
	Shapes    []benchShape `yaml:"shapes"`
	Perf      bool         `yaml:"perf"`
	ColdCache bool         `yaml:"cold_cache"`
}

type benchShape struct {
	Groups        int `yaml:"groups"`
	ElemsPerGroup int `yaml:"elems_per_group"`
}

func defaultBenchConfig() benchConfig {
	return benchConfig{
		Session: "quantize",
		Warmup:  2,
		Runs:    10,
		Modes:   []string{"symmetric", "asymmetric", "integer-symmetric"},
		Bits:    []int{8, 4},
		Shapes: []benchShape{
			{Groups: 64, ElemsPerGroup: 512},
			{Groups: 256, ElemsPerGroup: 2048},
		},
	}
}

// loadBenchConfig reads a session config file over the defaults, so a
// config only needs the fields it wants to change.
func loadBenchConfig(path string) (benchConfig, error) {
	cfg := defaultBenchConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.Session == "" {
		cfg.Session = "quantize"
	}
	if cfg.Runs <= 0 {
		cfg.Runs = 10
	}
	return cfg, nil
}

func parseMode(name string) (quantize.Mode, error) {
	switch name {
	case "symmetric":
		return quantize.ModeSymmetric, nil
	case "asymmetric":
		return quantize.ModeAsymmetric, nil
	case "integer-symmetric":
		return quantize.ModeIntegerSymmetric, nil
	}
	return 0, fmt.Errorf("unknown mode %q", name)
}
