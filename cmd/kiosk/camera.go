package main

import (
	"context"

	"github.com/spf13/cobra"

	"academy_backend/internal/feature/attendance/adapters/devicecamera"
	"academy_backend/internal/feature/attendance/usecase"
	"academy_backend/internal/kiosk"
)

var cameraCmd = &cobra.Command{
	Use:   "camera",
	Short: "Take the group photo with the local camera",
	Long: `Open the local video device, wait for Enter and capture one frame.

Devices are tried in order; set CAMERA_DEVICES (e.g. "1,0") or --devices to
prefer the rear camera.

Examples:
  kiosk camera --tenant academy-1
  kiosk camera --tenant academy-1 --devices 0 --class noite-gi`,
	RunE: runCamera,
}

func init() {
	rootCmd.AddCommand(cameraCmd)
	cameraCmd.Flags().String("devices", "", "Comma-separated video devices in priority order")
}

func runCamera(cmd *cobra.Command, args []string) error {
	devices := devicecamera.LoadDevices()
	if s, _ := cmd.Flags().GetString("devices"); s != "" {
		devices = devicecamera.ParseDevices(s)
	}

	return runWorkflow(devicecamera.NewProvider(devices), func(r *kiosk.Runner) kiosk.Acquire {
		return func(ctx context.Context, w *usecase.Workflow) error {
			if err := w.StartCamera(ctx); err != nil {
				return err
			}
			if err := r.Pause("Pressione Enter para capturar... "); err != nil {
				return err
			}
			return w.Capture(ctx)
		}
	})
}
