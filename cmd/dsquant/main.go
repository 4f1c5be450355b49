// Command dsquant benchmarks and verifies the group quantization
// kernels.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	deepspeed "github.com/mingshine10000/DeepSpeed"
)

var verbose bool

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dsquant",
		Short: "Group quantization benchmark and verification tool",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SilenceUsage = true

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		benchCmd(),
		verifyCmd(),
		reportCmd(),
		versionCmd(),
	)

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build version",
		Run: func(cmd *cobra.Command, args []string) {
			version, sum := deepspeed.Version()
			fmt.Printf("dsquant %s %s\n", version, sum)
		},
	}
}

func main() {
	if err := NewCLI().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
