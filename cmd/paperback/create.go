package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tunnelmesh/paperback/internal/config"
	"github.com/tunnelmesh/paperback/internal/create"
	"github.com/tunnelmesh/paperback/internal/layout"
	"github.com/tunnelmesh/paperback/internal/render"
	"github.com/tunnelmesh/paperback/internal/symbol"
)

var (
	rowCount        int
	recoveryFactor  layout.RecoveryFactor
	errorCorrection symbol.Level
	moduleLength    float64
	paperSize       layout.PaperSize
	marginTop       float64
	marginRight     float64
	marginBottom    float64
	marginLeft      float64
	dpi             float64
)

func newCreateCmd() *cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create <input> <output>",
		Short: "Encode a file into printable pages",
		Long: `Encode a file into pages of QR codes.

Pages are written as PNG images named <output>-001.png, <output>-002.png and
so on. Print them at 100% scale.

Examples:
  paperback create secret.key secret
  paperback create -R 2x -e h notes.txt notes     # twice as much recovery data, level H
  paperback create -p letter -m 0.8 db.sqlite db  # letter paper, 0.8 mm modules`,
		Args: cobra.ExactArgs(2),
		RunE: runCreate,
	}
	addLayoutFlags(createCmd)
	createCmd.Flags().Float64Var(&dpi, "dpi", 300, "output resolution in dots per inch")

	return createCmd
}

// addLayoutFlags registers the flags that shape the layout plan.
func addLayoutFlags(cmd *cobra.Command) {
	defaults := config.Default().Create
	rowCount = defaults.RowCount
	recoveryFactor = defaults.RecoveryFactor
	errorCorrection = defaults.ErrorCorrection
	paperSize = defaults.PaperSize

	cmd.Flags().IntVarP(&rowCount, "row-count", "r", rowCount, "minimum number of QR codes per row")
	cmd.Flags().VarP(&recoveryFactor, "recovery-factor", "R", `extra recovery data: a percentage ("50%"), a multiple ("3x") or a page count ("2")`)
	cmd.Flags().VarP(&errorCorrection, "error-correction", "e", "minimum QR error correction level (l, m, q, h)")
	cmd.Flags().Float64VarP(&moduleLength, "module-length", "m", defaults.ModuleLength, "width of one QR module in mm")
	cmd.Flags().VarP(&paperSize, "paper-size", "p", "paper size (a4, letter)")
	cmd.Flags().Float64Var(&marginTop, "margin-top", defaults.MarginTop, "top margin in mm")
	cmd.Flags().Float64Var(&marginRight, "margin-right", defaults.MarginRight, "right margin in mm")
	cmd.Flags().Float64Var(&marginBottom, "margin-bottom", defaults.MarginBottom, "bottom margin in mm")
	cmd.Flags().Float64Var(&marginLeft, "margin-left", defaults.MarginLeft, "left margin in mm")
}

// createConfig returns the config file's create section with any flags set
// on the command line applied on top.
func createConfig(cmd *cobra.Command) (config.CreateConfig, error) {
	c := cfg.Create
	flags := cmd.Flags()
	if flags.Changed("row-count") {
		c.RowCount = rowCount
	}
	if flags.Changed("recovery-factor") {
		c.RecoveryFactor = recoveryFactor
	}
	if flags.Changed("error-correction") {
		c.ErrorCorrection = errorCorrection
	}
	if flags.Changed("module-length") {
		c.ModuleLength = moduleLength
	}
	if flags.Changed("paper-size") {
		c.PaperSize = paperSize
	}
	if flags.Changed("margin-top") {
		c.MarginTop = marginTop
	}
	if flags.Changed("margin-right") {
		c.MarginRight = marginRight
	}
	if flags.Changed("margin-bottom") {
		c.MarginBottom = marginBottom
	}
	if flags.Changed("margin-left") {
		c.MarginLeft = marginLeft
	}
	if flags.Changed("dpi") {
		c.DPI = dpi
	}
	return c, c.Validate()
}

// readInput reads the file to encode, refusing files over the configured limit.
func readInput(path string) ([]byte, error) {
	limit, err := cfg.MaxInputBytes()
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if uint64(info.Size()) > limit {
		return nil, fmt.Errorf("%s is %s, over the %s limit (max_input_size)",
			path, humanize.IBytes(uint64(info.Size())), humanize.IBytes(limit))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	start := time.Now()
	defer observe("create", start)
	m := appMetrics()

	inputPath, output := args[0], strings.TrimSuffix(args[1], ".png")

	createCfg, err := createConfig(cmd)
	if err != nil {
		return err
	}
	page, err := createCfg.PageConfig()
	if err != nil {
		return err
	}

	data, err := readInput(inputPath)
	if err != nil {
		return err
	}

	plan, err := create.Prepare(data, page, overrideCommit)
	if err != nil {
		return err
	}
	doc, err := create.Encode(data, plan, create.Options{BuildTag: overrideCommit})
	if err != nil {
		return err
	}
	syms, err := create.Symbolize(doc, symbol.NewQREncoder(), cfg.Workers)
	if err != nil {
		return err
	}
	m.ChunksEncoded.Add(float64(len(doc.Payloads) + 1))
	m.BytesEncoded.Add(float64(len(data)))

	pages, err := render.Pages(plan, syms, render.Options{DPI: createCfg.DPI, Workers: cfg.Workers, BuildTag: overrideCommit})
	if err != nil {
		return err
	}
	paths, err := render.WritePages(output, pages)
	if err != nil {
		return err
	}
	m.PagesRendered.Add(float64(len(paths)))

	log.Info().
		Str("document", plan.Identifier.String()).
		Str("document_id", plan.Hash.DocumentID()).
		Dur("elapsed", time.Since(start)).
		Msg("document created")

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Encoded %s (%s) as document %s (ID %s)\n",
		inputPath, humanize.IBytes(uint64(len(data))), plan.Identifier, plan.Hash.DocumentID())
	_, _ = fmt.Fprintf(out, "Wrote %d pages: %s ... %s\n", len(paths), paths[0], paths[len(paths)-1])
	_, _ = fmt.Fprintf(out, "Any %d of %d recovery shards restore the file (%d of %d pages when whole pages survive)\n",
		plan.DataShards, plan.RecoveryShards, plan.DataPages, plan.TotalPages)
	return nil
}
