package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage admin accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an admin account for the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runAdminCreate,
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminCreateCmd)

	adminCreateCmd.Flags().String("username", "", "Admin username")
	adminCreateCmd.Flags().String("password", "", "Admin password (at least 6 characters)")
	_ = adminCreateCmd.MarkFlagRequired("username")
	_ = adminCreateCmd.MarkFlagRequired("password")
}

func runAdminCreate(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	username := mustGetString(cmd, "username")
	if err := a.adminService().CreateAdmin(cmd.Context(), username, mustGetString(cmd, "password")); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Admin %s created\n", username)
	return nil
}
