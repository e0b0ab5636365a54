package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/seq2seq/internal/logger"
	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/tensor"
)

func forwardCmd() *cli.Command {
	return &cli.Command{
		Name:      "forward",
		Usage:     "Run one forward pass on random inputs",
		ArgsUsage: "<model.s2s>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "batch", Value: 2, Usage: "batch size"},
			&cli.IntFlag{Name: "src-len", Value: 5, Usage: "source sequence length"},
			&cli.IntFlag{Name: "tgt-len", Value: 4, Usage: "target sequence length"},
			&cli.IntFlag{Name: "src-pad", Usage: "number of trailing padded source positions"},
			&cli.Uint64Flag{Name: "seed", Value: 1, Usage: "seed for the random inputs"},
		},
		Action: runForward,
	}
}

func runForward(ctx context.Context, cmd *cli.Command) error {
	log := logger.FromContext(ctx)

	if cmd.Args().Len() != 1 {
		return errors.New("expected exactly one snapshot path")
	}
	batch, srcLen, tgtLen := cmd.Int("batch"), cmd.Int("src-len"), cmd.Int("tgt-len")
	srcPad := cmd.Int("src-pad")
	if batch <= 0 || srcLen <= 0 || tgtLen <= 0 {
		return errors.New("batch, src-len and tgt-len must be positive")
	}
	if srcPad < 0 || srcPad > srcLen {
		return errors.Errorf("src-pad must be in [0, %d]", srcLen)
	}

	model, ckpt, err := nn.LoadModel(cmd.Args().First(), nn.LoadOptions{Logger: log})
	if err != nil {
		return err
	}
	dModel := ckpt.Config.DModel

	seed := cmd.Uint64("seed")
	rng := rand.New(rand.NewPCG(seed, seed+1))
	src := tensor.Randn(tensor.Shape{batch, srcLen, dModel}, rng)
	tgt := tensor.Randn(tensor.Shape{batch, tgtLen, dModel}, rng)

	lengths := make([]int, batch)
	for i := range lengths {
		lengths[i] = srcLen - srcPad
	}
	srcMask, err := nn.PaddingMask(lengths, srcLen)
	if err != nil {
		return err
	}

	start := time.Now()
	out, err := model.Forward(src, tgt, srcMask, nil)
	if err != nil {
		return errors.Wrap(err, "forward failed")
	}
	elapsed := time.Since(start)
	log.Debug("forward done", "elapsed", elapsed, "batch", batch, "src_len", srcLen, "tgt_len", tgtLen)

	mean, std := stat.MeanStdDev(out.Data(), nil)
	fmt.Printf("Output shape: %v\n", out.Shape())
	fmt.Printf("Mean:         %.6f\n", mean)
	fmt.Printf("Std:          %.6f\n", std)
	fmt.Printf("NaN:          %t\n", out.HasNaN())
	fmt.Printf("Elapsed:      %s\n", elapsed.Round(time.Microsecond))
	return nil
}
