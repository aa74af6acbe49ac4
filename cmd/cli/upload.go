package main

import (
	"fmt"
	"path/filepath"

	"github.com/dvloznov/bankdata-pipeline/internal/gcs"
	"github.com/spf13/cobra"
)

func uploadCmd() *cobra.Command {
	var objectName string

	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a local export to the source bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			filePath := args[0]

			if cfg.Storage.Bucket == "" {
				return fmt.Errorf("storage.bucket is required (flag --bucket or BANKDATA_STORAGE_BUCKET)")
			}
			if objectName == "" {
				objectName = filepath.Base(filePath)
			}

			storage, err := gcs.NewGCSStorage(ctx, cfg.Storage.Bucket)
			if err != nil {
				return err
			}
			defer storage.Close()

			log.Info().
				Str("bucket", cfg.Storage.Bucket).
				Str("object", objectName).
				Str("file", filePath).
				Msg("Uploading file to GCS")

			if err := storage.UploadFile(ctx, objectName, filePath); err != nil {
				return err
			}

			fmt.Printf("Uploaded %s to %s\n", filePath, gcs.ObjectURI(cfg.Storage.Bucket, objectName))
			return nil
		},
	}

	cmd.Flags().StringVar(&objectName, "object", "", "object name (defaults to the file name)")
	return cmd
}
