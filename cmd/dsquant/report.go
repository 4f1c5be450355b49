package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	deepspeed "github.com/mingshine10000/DeepSpeed"
)

func reportCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize a logged benchmark session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return deepspeed.PrintBenchmarkSummary()
			}
			return printSession(file)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "session file (default: latest)")
	return cmd
}

func printSession(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var results []deepspeed.BenchmarkResult
	if err := json.Unmarshal(data, &results); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	fmt.Printf("Benchmark session %s (%d results)\n", filepath.Base(path), len(results))
	fmt.Printf("%-48s %14s %12s  %s\n", "NAME", "NS/OP", "MB/S", "STATUS")
	for _, r := range results {
		if r.Status == "pass" {
			fmt.Printf("%-48s %14.0f %12.2f  ok\n", r.Name, r.NsPerOp, r.MBPerSec)
			continue
		}
		fmt.Printf("%-48s %14s %12s  %s: %s\n", r.Name, "-", "-", r.Status, r.Error)
	}
	return nil
}
