package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	jwtmw "academy_backend/internal/platform/jwt"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an operator token for the browser front desk",
	Long: `Sign a JWT with JWT_SECRET carrying the operator and tenant, for use as
"Authorization: Bearer <token>" against /v1/attendance.`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().String("operator", "", "Operator ID (sub claim)")
	tokenCmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	secret := os.Getenv(jwtmw.EnvKeyJWTSecret)
	if secret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	operator, _ := cmd.Flags().GetString("operator")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	token, err := jwtmw.NewGenerator(secret, ttl).GenerateToken(operator, tenantID)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
