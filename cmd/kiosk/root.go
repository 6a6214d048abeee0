package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	tenantID string
	classID  string
)

var rootCmd = &cobra.Command{
	Use:   "kiosk",
	Short: "Face-recognition attendance for the academy front desk",
	Long: `Kiosk runs one attendance round in the terminal: take a group photo with the
local camera (or load a file), send it to the recognition service, classify the
faces that were not recognized and commit the attendance record.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&tenantID, "tenant", os.Getenv("KIOSK_TENANT_ID"), "Academy (tenant) ID")
	rootCmd.PersistentFlags().StringVar(&classID, "class", "", "Class ID to attach to the record")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
