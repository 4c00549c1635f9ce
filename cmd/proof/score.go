package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Veraticus/the-proof-must-flow/internal/cli"
	"github.com/Veraticus/the-proof-must-flow/internal/common"
	"github.com/Veraticus/the-proof-must-flow/internal/engine"
	"github.com/Veraticus/the-proof-must-flow/internal/model"
	"github.com/Veraticus/the-proof-must-flow/internal/proof"
	"github.com/Veraticus/the-proof-must-flow/internal/report"
)

const resultsFile = "results.json"

// fileResult is one scored input file.
type fileResult struct {
	Proof *model.ProofResponse `json:"proof"`
	File  string               `json:"file"`
}

func scoreCmd() *cobra.Command {
	var (
		inputDir    string
		outputDir   string
		output      string
		maxFindings int
	)

	cmd := &cobra.Command{
		Use:   "score [FILE...]",
		Short: "Score submissions and emit proof records",
		Long: `Score each JSON submission and print its proof record.

Files are taken from the arguments, or every *.json file in --input-dir
when no arguments are given. Use "-" to read a submission from stdin.`,
		Example: `  # Score everything the loader dropped into /input
  proof score --input-dir /input --output-dir /output

  # Inspect one file with findings
  proof score --output pretty trace.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "json" && output != "pretty" {
				return fmt.Errorf("%w: --output must be json or pretty", common.ErrInvalidConfig)
			}

			files := args
			if len(files) == 0 {
				var err error
				files, err = discoverInputs(inputDir)
				if err != nil {
					return err
				}
			}
			if len(files) == 0 {
				return common.NewUserError(fmt.Sprintf("No *.json submissions found in %s", inputDir), common.ErrNoInput)
			}

			svc, err := initServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			eng, err := engine.New(engine.Deps{Reference: svc.reference}, svc.cfg)
			if err != nil {
				return err
			}
			gen, err := proof.NewGenerator(eng, svc.ledger, svc.cfg)
			if err != nil {
				return err
			}

			var done atomic.Int64
			handler := cli.NewInterruptHandler(os.Stderr)
			ctx := handler.HandleInterrupts(cmd.Context(), func() (int, int) {
				return int(done.Load()), len(files)
			})

			formatter := report.NewFormatter()
			formatter.MaxFindings = maxFindings

			bar := newProgressBar(len(files), output == "pretty")
			results := make([]fileResult, 0, len(files))
			var pretty []string

			for _, file := range files {
				if ctx.Err() != nil {
					break
				}

				res, err := scoreFile(ctx, gen, file, svc.cfg.Proof.DLPID)
				if err != nil {
					return err
				}
				results = append(results, fileResult{File: file, Proof: res.Response})
				if output == "pretty" {
					pretty = append(pretty, formatter.Format(filepath.Base(file), res.Response, res.Evaluation.Report))
				}

				done.Add(1)
				if bar != nil {
					_ = bar.Add(1)
				}
			}

			if handler.WasInterrupted() {
				return context.Canceled
			}

			if outputDir != "" {
				if err := writeResults(outputDir, results); err != nil {
					return err
				}
			}

			if output == "pretty" {
				fmt.Println(cli.FormatTitle("Proof results"))
				fmt.Println(strings.Join(pretty, "\n\n"))
				if len(results) > 1 {
					fmt.Println()
					fmt.Println(batchSummary(results))
				}
				return nil
			}
			return printJSON(results)
		},
	}

	cmd.Flags().StringVarP(&inputDir, "input-dir", "i", "input", "Directory of *.json submissions")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Also write "+resultsFile+" into this directory")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format (json, pretty)")
	cmd.Flags().IntVar(&maxFindings, "max-findings", 5, "Findings shown per check in pretty output")

	return cmd
}

// scoreFile reads and scores one submission. An empty file yields an
// invalid proof rather than an error.
func scoreFile(ctx context.Context, gen *proof.Generator, path string, dlpID int) (*proof.Result, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}

	res, err := gen.Generate(ctx, data)
	if err != nil {
		if !errors.Is(err, common.ErrNoInput) {
			return nil, fmt.Errorf("failed to score %s: %w", path, err)
		}
		common.LogWarn("Submission is empty", common.Fields{"file": path})
		resp := model.NewProofResponse(dlpID)
		resp.Attributes["reason"] = "empty submission"
		return &proof.Result{Response: resp}, nil
	}

	slog.Debug("Scored file", "file", path, "valid", res.Response.Valid, "score", res.Response.Score)
	return res, nil
}

// batchSummary tallies a multi-file run for pretty output.
func batchSummary(results []fileResult) string {
	valid, total := 0, 0.0
	for _, r := range results {
		if r.Proof.Valid {
			valid++
		}
		total += r.Proof.Score
	}

	lines := []string{
		cli.SuccessStyle.Render(fmt.Sprintf("%s Valid:   %d", cli.SuccessIcon, valid)),
		cli.ErrorStyle.Render(fmt.Sprintf("%s Invalid: %d", cli.ErrorIcon, len(results)-valid)),
		fmt.Sprintf("%s Mean score: %.3f", cli.ChartIcon, total/float64(len(results))),
	}
	return cli.RenderBox(fmt.Sprintf("Scored %d submissions", len(results)), strings.Join(lines, "\n"))
}

// discoverInputs lists the *.json files in dir, sorted by name.
func discoverInputs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("Cannot read input directory %s", dir), err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func newProgressBar(total int, enabled bool) *progressbar.ProgressBar {
	if !enabled || total < 2 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Scoring submissions...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}

func writeResults(dir string, results []fileResult) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := marshalResults(results)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, resultsFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	slog.Info("Wrote results", "path", path, "files", len(results))
	return nil
}

func printJSON(results []fileResult) error {
	data, err := marshalResults(results)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(append(data, '\n'))
	return err
}

// marshalResults writes a single proof bare, the shape the reward pipeline
// reads, and several as a list.
func marshalResults(results []fileResult) ([]byte, error) {
	var v any = results
	if len(results) == 1 {
		v = results[0].Proof
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode results: %w", err)
	}
	return data, nil
}
