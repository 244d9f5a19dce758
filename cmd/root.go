package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lehigh-university-libraries/photogroup/internal/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	verbose    bool
	cfg        *config.Config
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "photogroup",
		Short: "Group photos of the same item and sign storage URLs for them",
		Long: `Photogroup clusters photographs that show the same physical item using
perceptual (dHash) similarity, and issues time-limited signed URLs for
uploading and downloading photos to a Google Cloud Storage bucket.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config file (default ./photogroup.yaml)")
	cmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Verbose logging")

	cmd.AddCommand(newHashCmd())
	cmd.AddCommand(newGroupCmd(opts))
	cmd.AddCommand(newURLCmd(opts))
	cmd.AddCommand(newPhotosCmd())
	cmd.AddCommand(newServeCmd(opts))

	return cmd
}
