package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/refbase-dev/refbase-admin/internal/vault"
)

var flagToken string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the daemon auth token",
	Long: `Seal the auth token into the data directory.

Subsequent commands send it as a bearer token. REFBASE_TOKEN overrides
the stored token when set.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored auth token",
	RunE:  runLogout,
}

func init() {
	loginCmd.Flags().StringVar(&flagToken, "token", "", "auth token issued for the daemon")
	loginCmd.MarkFlagRequired("token")

	rootCmd.AddCommand(loginCmd, logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return err
	}
	sealed, err := vault.SealToken(flagToken, sealKey())
	if err != nil {
		return err
	}
	if err := os.WriteFile(tokenPath(cfg), []byte(sealed), 0o600); err != nil {
		return err
	}
	fmt.Println("token stored")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := os.Remove(tokenPath(cfg)); err != nil && !os.IsNotExist(err) {
		return err
	}
	fmt.Println("token removed")
	return nil
}
