package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heimdex/clipflow/internal/catalog"
	"github.com/heimdex/clipflow/internal/export"
	"github.com/heimdex/clipflow/internal/manifest"
)

var (
	speedMode    string
	windowFrames int

	outDir     string
	seed       uint64
	reportPath string
	edlPath    string
	frameRate  float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [clip folder]",
	Short: "Extract clip motion into a manifest and score all transitions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ext, err := newExtractor()
		if err != nil {
			return err
		}
		svc := catalog.NewService(nil, ext, serviceConfig(app.settings), app.logger)

		path, _ := cmd.Flags().GetString("manifest")
		if path == "" {
			path = filepath.Join(args[0], catalog.DefaultManifestName)
		}
		workers, _ := cmd.Flags().GetInt("workers")
		summary, err := svc.AnalyzeFolder(cmd.Context(), path, catalog.AnalyzeOptions{
			Folder:    args[0],
			SpeedMode: speedMode,
			Window:    windowFrames,
			Workers:   workers,
		}, func(done, total int) {
			fmt.Fprintf(cmd.ErrOrStderr(), "\ranalyzed %d/%d", done, total)
		})
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Manifest:    %s\n", summary.ManifestPath)
		fmt.Fprintf(cmd.OutOrStdout(), "Analyzed:    %d of %d clips\n", summary.Analyzed, summary.Found)
		fmt.Fprintf(cmd.OutOrStdout(), "Transitions: %d\n", summary.Transitions)
		for _, f := range summary.Failed {
			fmt.Fprintf(cmd.OutOrStdout(), "Failed:      %s\n", f)
		}
		return nil
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Recompute every forward transition score of a manifest",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manifestPath, _ := cmd.Flags().GetString("manifest")
		m, err := manifest.Load(manifestPath)
		if err != nil {
			return err
		}
		n, _ := cmd.Flags().GetInt("workers")
		if n <= 0 {
			n = app.settings.Analysis.Workers
		}
		if err := m.AnalyzeAllTransitionsParallel(cmd.Context(), n); err != nil {
			return err
		}
		if err := m.Save(manifestPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Scored %d transitions across %d clips\n", len(m.Transitions()), m.Len())
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print manifest statistics as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manifestPath, _ := cmd.Flags().GetString("manifest")
		m, err := manifest.Load(manifestPath)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(m.Statistics())
	},
}

var sortCmd = &cobra.Command{
	Use:   "sort",
	Short: "Order the clips of a manifest for natural motion flow",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := catalog.NewService(nil, nil, serviceConfig(app.settings), app.logger)
		manifestPath, _ := cmd.Flags().GetString("manifest")

		opts := catalog.SortOptions{OutputDir: outDir}
		if cmd.Flags().Changed("seed") {
			opts.Seed = &seed
		}
		out, err := svc.SortManifest(cmd.Context(), manifestPath, opts)
		if out == nil {
			return err
		}

		w := cmd.OutOrStdout()
		for i, p := range out.Sequence {
			fmt.Fprintf(w, "%4d  %s\n", i+1, p)
		}
		fmt.Fprintf(w, "Score: %.3f (seed %d)\n", out.Score, out.Seed)
		if out.Materialized != nil {
			fmt.Fprintf(w, "Placed %d clips in %s, skipped %d\n",
				len(out.Materialized.Placed), outDir, len(out.Materialized.Skipped))
		}
		if err != nil {
			return err
		}

		if reportPath == "-" {
			if err := export.WriteReport(w, out.Report); err != nil {
				return err
			}
		} else if reportPath != "" {
			if err := export.WriteReportFile(reportPath, out.Report); err != nil {
				return err
			}
		}

		if edlPath != "" {
			m, err := manifest.Load(manifestPath)
			if err != nil {
				return err
			}
			title := export.SanitizeName(strings.TrimSuffix(filepath.Base(edlPath), filepath.Ext(edlPath)), 120)
			edl := export.GenerateEDL(catalog.BuildEDL(m, out.Sequence, out.Report), title, frameRate)
			if err := os.WriteFile(edlPath, []byte(edl), 0o644); err != nil {
				return fmt.Errorf("failed to write EDL: %w", err)
			}
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().String("manifest", "", "manifest file (default: <folder>/"+catalog.DefaultManifestName+")")
	analyzeCmd.Flags().StringVar(&speedMode, "speed", "", "analysis speed: fast, balanced, precise")
	analyzeCmd.Flags().Int("workers", 0, "transition scoring workers (0: one per CPU)")
	analyzeCmd.Flags().IntVar(&windowFrames, "window", 0, "sampled frames analysed at each clip end")

	scoreCmd.Flags().String("manifest", catalog.DefaultManifestName, "manifest file")
	scoreCmd.Flags().Int("workers", 0, "scoring workers (0: one per CPU)")

	statsCmd.Flags().String("manifest", catalog.DefaultManifestName, "manifest file")

	sortCmd.Flags().String("manifest", catalog.DefaultManifestName, "manifest file")
	sortCmd.Flags().StringVar(&outDir, "out", "", "write the sequence as sequence_NNNN files into this directory")
	sortCmd.Flags().Uint64Var(&seed, "seed", 0, "random seed for a reproducible order")
	sortCmd.Flags().StringVar(&reportPath, "report", "", "write the transition report to this file (- for stdout)")
	sortCmd.Flags().StringVar(&edlPath, "edl", "", "write a CMX3600 EDL of the sequence to this file")
	sortCmd.Flags().Float64Var(&frameRate, "frame-rate", 30, "EDL frame rate")
}
