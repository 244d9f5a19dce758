package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/lehigh-university-libraries/photogroup/internal/grouping"
	"github.com/lehigh-university-libraries/photogroup/internal/manifest"
	"github.com/lehigh-university-libraries/photogroup/internal/photos"
	"github.com/lehigh-university-libraries/photogroup/internal/results"
	"github.com/spf13/cobra"
)

func newGroupCmd(opts *rootOptions) *cobra.Command {
	var (
		dir          string
		manifestPath string
		threshold    float64
		output       string
		summary      bool
	)

	cmd := &cobra.Command{
		Use:   "group [photo]...",
		Short: "Group photos that show the same item",
		Long: `Fingerprints every photo and groups them greedily: each photo not yet
assigned starts a new group, and every later unassigned photo whose similarity
to that first photo is at least --threshold joins it.

Photos can be given as arguments, as every image in --dir, or via --manifest
(.txt with one path per line, .json with an array of {"id","path"} objects,
.jsonl with one such object per line, or .parquet).
Any unreadable photo aborts the whole run.`,
		Example: `  # Group photos in a directory
  photogroup group --dir ./shelf-3

  # Stricter grouping, YAML report
  photogroup group --dir ./shelf-3 --threshold 0.95 --output yaml --summary

  # Group from a manifest
  photogroup group --manifest photos.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				input  []grouping.Photo
				source string
			)

			switch {
			case manifestPath != "":
				loaded, err := manifest.NewLoader(manifestPath).Load()
				if err != nil {
					return fmt.Errorf("failed to load manifest: %w", err)
				}
				input, source = loaded, manifestPath
			case dir != "":
				paths, err := photos.List(dir)
				if err != nil {
					return err
				}
				input, source = pathsToPhotos(paths), dir
			default:
				input = pathsToPhotos(args)
			}

			if !cmd.Flags().Changed("threshold") {
				threshold = opts.cfg.Threshold
			}

			slog.Info("Grouping photos", "photos", len(input), "threshold", threshold, "source", source)

			groups, err := grouping.New(opts.cfg.Concurrency).Group(cmd.Context(), input, threshold)
			if err != nil {
				return err
			}

			if summary {
				report := results.NewGroupReport(groups, len(input), threshold, source, time.Now())
				return results.Write(cmd.OutOrStdout(), output, report)
			}
			return results.Write(cmd.OutOrStdout(), output, groups)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory of photos to group")
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Manifest file listing photos (.txt, .json, .jsonl, .parquet)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.9, "Minimum similarity (0-1) to the group's first photo")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format (json or yaml)")
	cmd.Flags().BoolVar(&summary, "summary", false, "Wrap groups in a report with run settings and counts")
	cmd.MarkFlagsMutuallyExclusive("dir", "manifest")

	return cmd
}

func pathsToPhotos(paths []string) []grouping.Photo {
	out := make([]grouping.Photo, len(paths))
	for i, p := range paths {
		out[i] = grouping.Photo{ID: p, Path: p}
	}
	return out
}
