package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/magiclogon/faceid/internal/imagecodec"
)

func newEnrollCmd() *cobra.Command {
	var f imageFlags
	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Decode a base64 image and save it as the reference face for an id",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := referencePath(f.id)
			if err != nil {
				return err
			}
			img, err := f.decode()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(refDir, 0o755); err != nil {
				return fmt.Errorf("create reference dir: %w", err)
			}
			if err := imagecodec.SaveJPEG(path, img, imagecodec.DefaultJPEGQuality); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}
