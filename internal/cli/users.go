package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/facegate/internal/facegate/gallery"
	"github.com/BrandonDHaskell/facegate/internal/facegate/service"
	"github.com/BrandonDHaskell/facegate/internal/facegate/store"
	"github.com/BrandonDHaskell/facegate/internal/facegate/types"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage enrolled identities",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities",
	Args:  cobra.NoArgs,
	RunE:  runUsersList,
}

var usersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Enroll a person from a reference photo",
	Long: `Enroll a person. The photo must contain a face; it is stored in the faces
directory as <key>.jpg and the gallery is regenerated.`,
	Example: `  facegate users add --name "Ada Lovelace" --image ada.jpg
  facegate users add --key ada --name "Ada Lovelace" --image ada.png --status inactive`,
	Args: cobra.NoArgs,
	RunE: runUsersAdd,
}

var usersSetStatusCmd = &cobra.Command{
	Use:   "set-status KEY active|inactive",
	Short: "Activate or deactivate an identity",
	Args:  cobra.ExactArgs(2),
	RunE:  runUsersSetStatus,
}

var usersRenameCmd = &cobra.Command{
	Use:   "rename KEY NAME",
	Short: "Change an identity's display name",
	Args:  cobra.ExactArgs(2),
	RunE:  runUsersRename,
}

var usersRemoveCmd = &cobra.Command{
	Use:     "remove KEY",
	Aliases: []string{"rm"},
	Short:   "Delete an identity and its reference photo",
	Args:    cobra.ExactArgs(1),
	RunE:    runUsersRemove,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersListCmd, usersAddCmd, usersSetStatusCmd, usersRenameCmd, usersRemoveCmd)

	usersListCmd.Flags().StringP("output", "o", "table", "Output format: table, json or yaml")
	usersListCmd.Flags().StringP("query", "q", "", "Only identities whose name or key contains this text")

	usersAddCmd.Flags().String("key", "", "Identity key (derived from the name when empty)")
	usersAddCmd.Flags().String("name", "", "Display name")
	usersAddCmd.Flags().String("status", "active", "Initial status: active or inactive")
	usersAddCmd.Flags().String("image", "", "Reference photo (JPEG or PNG)")
	_ = usersAddCmd.MarkFlagRequired("name")
	_ = usersAddCmd.MarkFlagRequired("image")
}

// identityCommand opens the app with a gallery store suitable for
// commands that may rebuild it.
func identityCommand(cmd *cobra.Command) (*app, *service.IdentityService, error) {
	a, err := newApp(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	gs := gallery.NewStore(a.cfg.GalleryPath, gallery.Empty, a.logger)
	return a, a.identityService(gs), nil
}

func runUsersList(cmd *cobra.Command, _ []string) error {
	a, svc, err := identityCommand(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	users, err := svc.List(cmd.Context(), mustGetString(cmd, "query"))
	if err != nil {
		return err
	}

	return writeOutput(cmd.OutOrStdout(), mustGetString(cmd, "output"), users, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "KEY\tNAME\tSTATUS\tCREATED\tLAST ACCESS")
		for _, u := range users {
			last := "-"
			if u.LastAccessAt != nil {
				last = u.LastAccessAt.Local().Format(time.DateTime)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				u.Key, u.Name, u.Status, u.CreatedAt.Local().Format(time.DateTime), last)
		}
	})
}

func runUsersAdd(cmd *cobra.Command, _ []string) error {
	status, err := types.ParseStatus(mustGetString(cmd, "status"))
	if err != nil {
		return err
	}
	data, err := os.ReadFile(mustGetString(cmd, "image"))
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	a, svc, err := identityCommand(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ident, err := svc.Enroll(cmd.Context(), service.EnrollRequest{
		Key:    mustGetString(cmd, "key"),
		Name:   mustGetString(cmd, "name"),
		Status: status,
		Image:  data,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Enrolled %s (%s) as %s\n", ident.Name, ident.Key, ident.Status)
	return nil
}

func runUsersSetStatus(cmd *cobra.Command, args []string) error {
	status, err := types.ParseStatus(args[1])
	if err != nil {
		return err
	}
	return updateIdentity(cmd, args[0], store.IdentityUpdate{Status: &status})
}

func runUsersRename(cmd *cobra.Command, args []string) error {
	name := args[1]
	return updateIdentity(cmd, args[0], store.IdentityUpdate{Name: &name})
}

func updateIdentity(cmd *cobra.Command, key string, upd store.IdentityUpdate) error {
	a, svc, err := identityCommand(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ident, err := svc.Update(cmd.Context(), key, upd)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: name=%q status=%s\n", ident.Key, ident.Name, ident.Status)
	return nil
}

func runUsersRemove(cmd *cobra.Command, args []string) error {
	a, svc, err := identityCommand(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := svc.Remove(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
	return nil
}
