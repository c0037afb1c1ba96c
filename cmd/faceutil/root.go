package main

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/magiclogon/faceid/internal/config"
	"github.com/magiclogon/faceid/internal/imagecodec"
	"github.com/magiclogon/faceid/internal/observability"
	"github.com/magiclogon/faceid/internal/storage"
)

// Version is the application version.
const Version = "0.1.0"

var (
	cfg        *config.Config
	configPath string
	refDir     string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "faceutil",
		Short:         "Enroll and verify reference faces from base64 images",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			observability.SetupLogger(cfg.Logging.Level, "text")
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
	root.PersistentFlags().StringVar(&refDir, "dir", "face_db", "directory holding <id>.jpg reference images")

	root.AddCommand(newEnrollCmd(), newVerifyCmd(), newVersionCmd())
	return root
}

// imageFlags are shared by enroll and verify.
type imageFlags struct {
	id      string
	b64     string
	b64File string
}

func (f *imageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.id, "id", "", "employee id")
	cmd.Flags().StringVar(&f.b64, "b64", "", "base64 image payload (data URI prefix allowed)")
	cmd.Flags().StringVar(&f.b64File, "b64-file", "", "file containing the base64 payload")
	_ = cmd.MarkFlagRequired("id")
	cmd.MarkFlagsMutuallyExclusive("b64", "b64-file")
	cmd.MarkFlagsOneRequired("b64", "b64-file")
}

// payload returns the base64 text from whichever flag was set.
func (f *imageFlags) payload() (string, error) {
	if f.b64File == "" {
		return f.b64, nil
	}
	data, err := os.ReadFile(f.b64File)
	if err != nil {
		return "", fmt.Errorf("read payload file: %w", err)
	}
	return string(data), nil
}

func (f *imageFlags) decode() (image.Image, error) {
	p, err := f.payload()
	if err != nil {
		return nil, err
	}
	return imagecodec.DecodeBase64(p)
}

// referencePath is where enroll stores the reference image for id.
func referencePath(id string) (string, error) {
	if err := storage.ValidateKey(id); err != nil {
		return "", err
	}
	return filepath.Join(refDir, id+".jpg"), nil
}
