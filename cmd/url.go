package cmd

import (
	"fmt"

	"github.com/lehigh-university-libraries/photogroup/internal/signedurl"
	"github.com/spf13/cobra"
)

func newURLCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "url",
		Short: "Issue signed upload and download URLs",
		Long: `Issues V2 signed URLs for Google Cloud Storage using the service account
key at credentialsPath (PHOTOGROUP_CREDENTIALS or GOOGLE_APPLICATION_CREDENTIALS).
The key file is read on every invocation.`,
	}

	cmd.AddCommand(newSignedURLCmd(opts, signedurl.Write, "upload", "PUT URL for a JPEG, valid for 15 minutes"))
	cmd.AddCommand(newSignedURLCmd(opts, signedurl.Read, "download", "GET URL, valid for 10 minutes"))

	return cmd
}

func newSignedURLCmd(opts *rootOptions, op signedurl.Operation, use, short string) *cobra.Command {
	var bucket string

	cmd := &cobra.Command{
		Use:     use + " <object>",
		Short:   short,
		Example: fmt.Sprintf("  photogroup url %s --bucket item-photos item-1/front.jpg", use),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if bucket == "" {
				bucket = opts.cfg.Bucket
			}
			if bucket == "" {
				return fmt.Errorf("--bucket is required (or set bucket in config)")
			}

			signer := signedurl.New(signedurl.FileCredentialProvider{Path: opts.cfg.CredentialsPath})
			u, err := signer.SignedURL(cmd.Context(), op, bucket, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		},
	}

	cmd.Flags().StringVarP(&bucket, "bucket", "b", "", "Bucket name (defaults to config bucket)")
	return cmd
}
