package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"academy_backend/internal/feature/attendance/usecase"
	"academy_backend/internal/kiosk"
)

var photoCmd = &cobra.Command{
	Use:   "photo <file>",
	Short: "Run attendance from an existing photo (JPEG, PNG or WebP)",
	Args:  cobra.ExactArgs(1),
	RunE:  runPhoto,
}

func init() {
	rootCmd.AddCommand(photoCmd)
}

func runPhoto(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read photo: %w", err)
	}

	return runWorkflow(nil, func(*kiosk.Runner) kiosk.Acquire {
		return func(ctx context.Context, w *usecase.Workflow) error {
			return w.UploadPhoto(ctx, data)
		}
	})
}
