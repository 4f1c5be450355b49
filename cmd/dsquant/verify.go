package main

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/spf13/cobra"

	deepspeed "github.com/mingshine10000/DeepSpeed"
	"github.com/mingshine10000/DeepSpeed/quantize"
)

func verifyCmd() *cobra.Command {
	var (
		groups   int
		elems    int
		modeName string
		bits     int
		seed     int64
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Quantize, dequantize, and check the round-trip error bound",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := parseMode(modeName)
			if err != nil {
				return err
			}
			if elems <= 0 || elems%deepspeed.HalfsPerLoad != 0 {
				return fmt.Errorf("elems must be a positive multiple of %d", deepspeed.HalfsPerLoad)
			}
			return runVerify(groups, elems, mode, bits, seed)
		},
	}

	cmd.Flags().IntVar(&groups, "groups", 64, "number of groups")
	cmd.Flags().IntVar(&elems, "elems", 512, "elements per group")
	cmd.Flags().StringVar(&modeName, "mode", "symmetric", "quantization mode")
	cmd.Flags().IntVar(&bits, "bits", 8, "bit width (4 or 8)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "data seed")
	return cmd
}

func runVerify(groups, elems int, mode quantize.Mode, bits int, seed int64) error {
	total := groups * elems
	slog.Debug("verify starting", "groups", groups, "elems", elems, "mode", mode, "bits", bits)

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

	params, err := deepspeed.Malloc(groups * mode.ParamSlots() * 4)
	if err != nil {
		return err
	}
	defer deepspeed.Free(params)

	recon, err := deepspeed.Malloc(total * 2)
	if err != nil {
		return err
	}
	defer deepspeed.Free(recon)

	rng := rand.New(rand.NewSource(seed))
	inHalf := input.Float16()
	for i := 0; i < total; i++ {
		inHalf.SetFloat32(i, rng.Float32()*8-4)
	}

	opts := quantize.Options{Mode: mode, Bits: bits}
	if err := quantize.Quantize(output, params, input, groups, elems, opts); err != nil {
		return err
	}
	if err := quantize.Dequantize(recon, params, output, groups, elems, opts); err != nil {
		return err
	}
	if err := deepspeed.Synchronize(); err != nil {
		return err
	}

	qMax := float32(int32(1)<<(bits-1) - 1)
	table := params.Float32()
	outHalf := recon.Float16()

	failed := 0
	var worstErr, worstStep float32
	orig := make([]float32, elems)
	got := make([]float32, elems)

	for g := 0; g < groups; g++ {
		var step float32
		switch mode {
		case quantize.ModeAsymmetric:
			step = table[2*g]
		case quantize.ModeIntegerSymmetric:
			step = table[g] / qMax
		default:
			step = table[g]
		}
		if step > worstStep {
			worstStep = step
		}

		var groupMax float32
		for e := 0; e < elems; e++ {
			orig[e] = inHalf.GetFloat32(g*elems + e)
			got[e] = outHalf.GetFloat32(g*elems + e)
			if a := abs32(orig[e]); a > groupMax {
				groupMax = a
			}
		}

		// One quantization step, widened by the half-precision
		// rounding of the stored reconstruction.
		tol := deepspeed.QuantizationTolerance(step)
		tol.AbsTol += (groupMax + step) / 1024

		result := deepspeed.VerifyFloat32Array(orig, got, tol)
		if !result.IsAcceptable(tol) {
			failed++
			fmt.Printf("group %4d: %s\n", g, result.String())
		}
		if result.MaxAbsError > worstErr {
			worstErr = result.MaxAbsError
		}
	}

	fmt.Printf("%d groups x %d elements, %s %d-bit\n", groups, elems, mode, bits)
	fmt.Printf("largest quantization step: %g\n", worstStep)
	if failed > 0 {
		fmt.Printf("worst out-of-bound error: %g\n", worstErr)
		return fmt.Errorf("%d of %d groups exceeded the round-trip bound", failed, groups)
	}

	fmt.Println("PASS: every group reconstructs within one quantization step")
	return nil
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
