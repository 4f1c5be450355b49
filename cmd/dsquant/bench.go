package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	deepspeed "github.com/mingshine10000/DeepSpeed"
	"github.com/mingshine10000/DeepSpeed/quantize"
)

func benchCmd() *cobra.Command {
	var (
		configPath string
		perf       bool
		cold       bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run quantization benchmarks and log a JSON session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadBenchConfig(configPath)
			if err != nil {
				return err
			}
			if perf {
				cfg.Perf = true
			}
			if cold {
				cfg.ColdCache = true
			}

			fmt.Println("=== dsquant bench ===")
			fmt.Println(deepspeed.GetCPUInfo())
			fmt.Println()

			if err := deepspeed.InitBenchmarkLogger(cfg.Session); err != nil {
				return err
			}

			for _, shape := range cfg.Shapes {
				for _, bits := range cfg.Bits {
					for _, modeName := range cfg.Modes {
						mode, err := parseMode(modeName)
						if err != nil {
							return err
						}
						if err := runBench(cfg, shape, mode, bits); err != nil {
							return err
						}
					}
				}
			}

			return deepspeed.PrintBenchmarkSummary()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML session config")
	cmd.Flags().BoolVar(&perf, "perf", false, "collect hardware counters around the timed runs (linux)")
	cmd.Flags().BoolVar(&cold, "cold", false, "skip warmup and flush CPU caches before the timed runs")
	return cmd
}

var coldBuf []byte

// flushCaches walks a buffer larger than any L3 slice so the timed
// runs start from DRAM rather than warm cache lines.
func flushCaches() {
	const size = 64 << 20
	if coldBuf == nil {
		coldBuf = make([]byte, size)
	}
	for i := 0; i < len(coldBuf); i += 64 {
		coldBuf[i]++
	}
}

func runBench(cfg benchConfig, shape benchShape, mode quantize.Mode, bits int) error {
	name := fmt.Sprintf("Quantize/%s_%dbit/%dx%d", mode, bits, shape.Groups, shape.ElemsPerGroup)
	slog.Debug("benchmark starting", "name", name, "warmup", cfg.Warmup, "runs", cfg.Runs)

	total := shape.Groups * shape.ElemsPerGroup
	input, err := deepspeed.Malloc(total * 2)
	if err != nil {
		return err
	}
	defer deepspeed.Free(input)

	output, err := deepspeed.Malloc(total * bits / 8)
	if err != nil {
		return err
	}
	defer deepspeed.Free(output)

	params, err := deepspeed.Malloc(shape.Groups * mode.ParamSlots() * 4)
	if err != nil {
		return err
	}
	defer deepspeed.Free(params)

	rng := rand.New(rand.NewSource(1))
	half := input.Float16()
	for i := 0; i < total; i++ {
		half.SetFloat32(i, rng.Float32()*2-1)
	}

	opts := quantize.Options{Mode: mode, Bits: bits}
	run := func() error {
		if err := quantize.Quantize(output, params, input, shape.Groups, shape.ElemsPerGroup, opts); err != nil {
			return err
		}
		return deepspeed.Synchronize()
	}

	if cfg.ColdCache {
		flushCaches()
	} else {
		for i := 0; i < cfg.Warmup; i++ {
			if err := run(); err != nil {
				deepspeed.LogBenchmarkFail(name, err)
				return err
			}
		}
	}

	mon := deepspeed.NewPerfMonitor()
	counting := false
	if cfg.Perf {
		if err := mon.Start(); err != nil {
			slog.Debug("hardware counters unavailable", "err", err)
		} else {
			counting = true
		}
	}

	start := time.Now()
	for i := 0; i < cfg.Runs; i++ {
		if err := run(); err != nil {
			deepspeed.LogBenchmarkFail(name, err)
			return err
		}
	}
	elapsed := time.Since(start)

	nsPerOp := float64(elapsed.Nanoseconds()) / float64(cfg.Runs)
	mbPerSec := float64(total*2) / 1e6 / (nsPerOp / 1e9)
	deepspeed.LogBenchmarkPass(name, nsPerOp, mbPerSec, int64(cfg.Runs))

	slog.Info("benchmark complete", "name", name,
		"ns_per_op", int64(nsPerOp), "mb_per_sec", fmt.Sprintf("%.1f", mbPerSec))

	if counting {
		counters := mon.Stop()
		counters.Duration = elapsed
		fmt.Print(counters)
		instrs, llc := counters.PerElement(uint64(total) * uint64(cfg.Runs))
		fmt.Printf("  Instr/element:  %.2f\n  LLC miss/elem:  %.4f\n", instrs, llc)
	}
	return nil
}
