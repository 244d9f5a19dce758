package cmd

import (
	"fmt"

	"github.com/lehigh-university-libraries/photogroup/internal/fingerprint"
	"github.com/spf13/cobra"
)

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <photo>...",
		Short: "Print the perceptual fingerprint of each photo",
		Long: `Prints the 64-bit dHash fingerprint of each photo as a decimal number,
followed by the photo path. Processing stops at the first unreadable photo.`,
		Example: `  photogroup hash front.jpg back.jpg`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				f, err := fingerprint.HashFile(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", f, path)
			}
			return nil
		},
	}
}
