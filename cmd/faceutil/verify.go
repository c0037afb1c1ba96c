package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/magiclogon/faceid/internal/app"
	"github.com/magiclogon/faceid/internal/imagecodec"
	"github.com/magiclogon/faceid/internal/upload"
)

func newVerifyCmd() *cobra.Command {
	var f imageFlags
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare a base64 probe image with the enrolled reference for an id",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runVerify(cmd, &f)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "verified=false error=%v\n", err)
			}
			return err
		},
	}
	f.register(cmd)
	return cmd
}

func runVerify(cmd *cobra.Command, f *imageFlags) error {
	ref, err := referencePath(f.id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(ref); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no reference image for %s", f.id)
	}

	img, err := f.decode()
	if err != nil {
		return err
	}
	data, err := imagecodec.EncodeJPEGBytes(img, imagecodec.DefaultJPEGQuality)
	if err != nil {
		return err
	}

	stager, err := upload.NewStager(cfg.Server.UploadDir)
	if err != nil {
		return err
	}
	probe, cleanup, err := stager.Stage(data, upload.SuffixProbe)
	defer cleanup()
	if err != nil {
		return err
	}

	eng, release, err := app.NewEngine(cfg.Engine)
	if err != nil {
		return err
	}
	defer release()

	result, err := eng.Compare(cmd.Context(), probe, ref)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "verified=%t distance=%v\n", result.Verified, result.Distance)
	return nil
}
