package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tunnelmesh/paperback/internal/header"
	"github.com/tunnelmesh/paperback/internal/metrics"
	"github.com/tunnelmesh/paperback/internal/restore"
	"github.com/tunnelmesh/paperback/internal/scan"
)

var forceOverwrite bool

func newRestoreCmd() *cobra.Command {
	restoreCmd := &cobra.Command{
		Use:   "restore <output> <image>...",
		Short: "Restore a file from scanned pages",
		Long: `Restore a file from scanned images of its pages.

Images may be given in any order and may repeat. Unreadable codes and pages
are skipped; the file is restored as long as enough distinct shards were
found. The restored file is verified against the document hash before it is
written.

Examples:
  paperback restore secret.key scan-*.png
  paperback restore --force notes.txt page1.jpg page2.jpg`,
		Args: cobra.MinimumNArgs(2),
		RunE: runRestore,
	}
	restoreCmd.Flags().BoolVar(&forceOverwrite, "force", false, "overwrite the output file if it exists")

	return restoreCmd
}

func statusLabel(s scan.Status) string {
	switch s {
	case scan.StatusOK:
		return metrics.StatusOK
	case scan.StatusEmpty:
		return metrics.StatusEmpty
	default:
		return metrics.StatusFailed
	}
}

func runRestore(cmd *cobra.Command, args []string) error {
	start := time.Now()
	defer observe("restore", start)
	m := appMetrics()

	output, images := args[0], args[1:]
	force := cfg.Restore.Force
	if cmd.Flags().Changed("force") {
		force = forceOverwrite
	}

	chunks, results := scan.NewReader().ReadFiles(images, cfg.Workers)
	for _, res := range results {
		m.ImagesScanned.WithLabelValues(statusLabel(res.Status)).Inc()
	}
	m.ChunksDecoded.Add(float64(len(chunks)))

	collector := restore.NewCollector()
	for _, chunk := range chunks {
		if err := collector.Add(chunk); err != nil {
			// Unrelated QR codes on a scanned page are not fatal.
			if errors.Is(err, header.ErrFormat) {
				log.Warn().Err(err).Msg("skipping unrecognized symbol")
				continue
			}
			return err
		}
	}

	collected := collector.Stats()
	m.DuplicateShards.Add(float64(collected.Duplicates))
	log.Info().
		Int("images", len(images)).
		Int("chunks", collected.Chunks).
		Int("shards", collected.Shards).
		Int("duplicates", collected.Duplicates).
		Msg("images scanned")

	data, stats, err := collector.Reconstruct(overrideCommit)
	if err != nil {
		if errors.Is(err, restore.ErrInsufficientData) && collected.OriginalCount > 0 {
			return fmt.Errorf("%w: scan more pages (need %d distinct shards)", err, collected.OriginalCount)
		}
		return err
	}

	if err := restore.WriteFile(output, data, force); err != nil {
		if errors.Is(err, restore.ErrOverwriteRefused) {
			return fmt.Errorf("%w (use --force to overwrite)", err)
		}
		return err
	}
	m.BytesRestored.Add(float64(stats.Bytes))

	log.Info().
		Str("path", output).
		Str("size", humanize.IBytes(uint64(stats.Bytes))).
		Dur("elapsed", time.Since(start)).
		Msg("document restored")

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "%d bytes written to %s\n", stats.Bytes, output)
	_, _ = fmt.Fprintf(out, "got %d/%d recovery shards (%d needed)\n", stats.Shards, stats.RecoveryCount, stats.OriginalCount)
	return nil
}
