package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/born-ml/seq2seq/internal/logger"
	"github.com/born-ml/seq2seq/internal/nn"
)

func inspectCmd() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the header of a .s2s snapshot",
		ArgsUsage: "<model.s2s>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print the header as JSON",
			},
			&cli.BoolFlag{
				Name:  "tensors",
				Usage: "list every tensor",
			},
			&cli.BoolFlag{
				Name:  "skip-checksum",
				Usage: "do not verify the data checksum",
			},
		},
		Action: runInspect,
	}
}

func runInspect(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return errors.New("expected exactly one snapshot path")
	}
	path := cmd.Args().First()

	ckpt, err := nn.ReadCheckpoint(path, nn.LoadOptions{
		SkipChecksumValidation: cmd.Bool("skip-checksum"),
		Logger:                 logger.FromContext(ctx),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		data, err := json.MarshalIndent(ckpt.Header, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal header")
		}
		fmt.Println(string(data))
		return nil
	}

	h := ckpt.Header
	cfg := ckpt.Config

	var params, bytes int64
	for _, meta := range h.Tensors {
		params += meta.NumElements()
		bytes += meta.Size
	}

	fmt.Printf("File:        %s\n", path)
	if info, err := os.Stat(path); err == nil {
		fmt.Printf("Size:        %s\n", humanize.Bytes(uint64(info.Size())))
	}
	fmt.Printf("Model:       %s (format v%d, written by %s)\n", h.ModelType, h.FormatVersion, h.WriterVersion)
	fmt.Printf("Snapshot:    %s\n", h.SnapshotID)
	fmt.Printf("Created:     %s (%s)\n", h.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Time(h.CreatedAt))
	fmt.Println()
	fmt.Println("Architecture:")
	fmt.Printf("  d_model:            %d\n", cfg.DModel)
	fmt.Printf("  num_heads:          %d (d_head %d)\n", cfg.NumHeads, cfg.HeadDim())
	fmt.Printf("  num_encoder_layers: %d\n", cfg.NumEncoderLayers)
	fmt.Printf("  num_decoder_layers: %d\n", cfg.NumDecoderLayers)
	fmt.Printf("  d_ff:               %d\n", cfg.FFNDim)
	fmt.Printf("  dropout:            %g\n", cfg.Dropout)
	fmt.Println()
	fmt.Printf("Parameters:  %s in %d tensors (%s)\n", humanize.Comma(params), len(h.Tensors), humanize.Bytes(uint64(bytes)))

	if len(h.Metadata) > 0 {
		keys := make([]string, 0, len(h.Metadata))
		for k := range h.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println()
		fmt.Println("Metadata:")
		for _, k := range keys {
			fmt.Printf("  %s: %s\n", k, h.Metadata[k])
		}
	}

	if cmd.Bool("tensors") {
		fmt.Println()
		fmt.Println("Tensors:")
		for _, meta := range h.Tensors {
			fmt.Printf("  %-60s %-8s %s\n", meta.Name, meta.DType, formatShape(meta.Shape))
		}
	}
	return nil
}

func formatShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
