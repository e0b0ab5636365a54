package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/born-ml/seq2seq/internal/logger"
	"github.com/born-ml/seq2seq/internal/nn"
	"github.com/born-ml/seq2seq/internal/serialization"
)

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create a freshly initialised model snapshot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML model config (defaults are used for unset fields)",
			},
			&cli.StringFlag{
				Name:     "out",
				Aliases:  []string{"o"},
				Usage:    "output .s2s path",
				Required: true,
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "initialisation seed, overrides the config file",
			},
			&cli.StringFlag{
				Name:  "dtype",
				Usage: "storage dtype (float64, float32, float16)",
				Value: serialization.DTypeFloat64,
			},
			&cli.StringMapFlag{
				Name:  "meta",
				Usage: "metadata key=value stored in the header",
			},
		},
		Action: runInit,
	}
}

func runInit(ctx context.Context, cmd *cli.Command) error {
	log := logger.FromContext(ctx)

	cfg, err := loadModelConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	if cmd.IsSet("seed") {
		cfg.Seed = cmd.Uint64("seed")
	}

	model, err := nn.NewTransformer(cfg, nn.WithLogger(log))
	if err != nil {
		return errors.Wrap(err, "failed to build model")
	}

	out := cmd.String("out")
	ckpt, err := nn.Save(model, out, nn.SaveOptions{
		DType:    cmd.String("dtype"),
		Metadata: cmd.StringMap("meta"),
		Logger:   log,
	})
	if err != nil {
		return err
	}

	info, err := os.Stat(out)
	if err != nil {
		return errors.Wrap(err, "failed to stat snapshot")
	}

	fmt.Printf("Wrote %s\n", out)
	fmt.Printf("  Snapshot:   %s\n", ckpt.Header.SnapshotID)
	fmt.Printf("  Parameters: %s\n", humanize.Comma(int64(nn.NumParameters(model))))
	fmt.Printf("  Tensors:    %d (%s)\n", len(ckpt.Header.Tensors), cmd.String("dtype"))
	fmt.Printf("  File size:  %s\n", humanize.Bytes(uint64(info.Size())))
	return nil
}
