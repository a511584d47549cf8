package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/tunnelmesh/paperback/internal/create"
	"github.com/tunnelmesh/paperback/internal/layout"
)

func newPlanCmd() *cobra.Command {
	planCmd := &cobra.Command{
		Use:   "plan <input>",
		Short: "Show the page layout for a file without creating it",
		Long: `Compute and print the layout that "paperback create" would use for a file:
QR version and error correction level, shard size and counts, and the number
of pages. Accepts the same layout flags as create.`,
		Args: cobra.ExactArgs(1),
		RunE: runPlan,
	}
	addLayoutFlags(planCmd)

	return planCmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	defer observe("plan", time.Now())

	createCfg, err := createConfig(cmd)
	if err != nil {
		return err
	}
	page, err := createCfg.PageConfig()
	if err != nil {
		return err
	}
	data, err := readInput(args[0])
	if err != nil {
		return err
	}

	plan, err := create.Prepare(data, page, overrideCommit)
	if err != nil {
		return err
	}
	printPlan(cmd.OutOrStdout(), plan, len(data))
	return nil
}

func printPlan(out io.Writer, plan *layout.Plan, size int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Document:\t%s\n", plan.Identifier)
	_, _ = fmt.Fprintf(w, "Document ID:\t%s\n", plan.Hash.DocumentID())
	_, _ = fmt.Fprintf(w, "Size:\t%s\n", humanize.IBytes(uint64(size)))
	_, _ = fmt.Fprintf(w, "Page:\t%gx%g mm\n", plan.PageWidth, plan.PageHeight)
	_, _ = fmt.Fprintf(w, "QR code:\tversion %d, level %s\n", plan.Version, plan.Level)
	_, _ = fmt.Fprintf(w, "Codes per page:\t%d (%dx%d)\n", plan.SymbolsPerPage(), plan.SymbolsPerRow, plan.SymbolsPerRow)
	_, _ = fmt.Fprintf(w, "Shard size:\t%d bytes\n", plan.ShardBytes)
	_, _ = fmt.Fprintf(w, "Data shards:\t%d\n", plan.DataShards)
	_, _ = fmt.Fprintf(w, "Recovery shards:\t%d\n", plan.RecoveryShards)
	_, _ = fmt.Fprintf(w, "Pages:\t%d (any %d needed)\n", plan.TotalPages, plan.DataPages)
	_ = w.Flush()
}
