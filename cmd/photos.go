package cmd

import (
	"fmt"

	"github.com/lehigh-university-libraries/photogroup/internal/photos"
	"github.com/spf13/cobra"
)

func newPhotosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "photos",
		Short: "List photos and encode them as data URIs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <dir>",
		Short: "List image files in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := photos.List(args[0])
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "data <photo>",
		Short: "Print a photo as a base64 data URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri, err := photos.DataURI(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), uri)
			return nil
		},
	})

	return cmd
}
