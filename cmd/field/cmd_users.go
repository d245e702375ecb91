package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cnsr/cta-inspection/internal/models"
)

type usersCreateFlags struct {
	email     string
	password  string
	firstName string
	lastName  string
	role      string
	center    string
}

var usersCreateOpts usersCreateFlags

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage accounts (admin only)",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	Args:  cobra.NoArgs,
	RunE:  runUsersList,
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE:  runUsersCreate,
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersDelete,
}

func init() {
	f := usersCreateCmd.Flags()
	f.StringVar(&usersCreateOpts.email, "email", "", "account email")
	f.StringVar(&usersCreateOpts.password, "password", "", "initial password")
	f.StringVar(&usersCreateOpts.firstName, "first-name", "", "first name")
	f.StringVar(&usersCreateOpts.lastName, "last-name", "", "last name")
	f.StringVar(&usersCreateOpts.role, "role", string(models.RoleTechnician), "technicien, superviseur or admin")
	f.StringVar(&usersCreateOpts.center, "center", "", "inspection center of the account")
	_ = usersCreateCmd.MarkFlagRequired("email")
	_ = usersCreateCmd.MarkFlagRequired("password")

	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersCreateCmd)
	usersCmd.AddCommand(usersDeleteCmd)
}

func runUsersList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sess, err := current.requireSession(ctx)
	if err != nil {
		return err
	}
	users, err := current.api.ListUsers(ctx, sess.Token)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNOM\tRÔLE\tCENTRE\tACTIF")
	for _, u := range users {
		active := "oui"
		if !u.IsActive {
			active = "non"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", u.ID.Hex(), u.Email, u.DisplayName(), u.Role, u.Center, active)
	}
	return tw.Flush()
}

func runUsersCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sess, err := current.requireSession(ctx)
	if err != nil {
		return err
	}
	role := models.Role(usersCreateOpts.role)
	if !models.IsValidRole(role) {
		return fmt.Errorf("unknown role %q", usersCreateOpts.role)
	}

	user, err := current.api.CreateUser(ctx, sess.Token, models.CreateUserRequest{
		Email:     usersCreateOpts.email,
		Password:  usersCreateOpts.password,
		FirstName: usersCreateOpts.firstName,
		LastName:  usersCreateOpts.lastName,
		Role:      role,
		Center:    usersCreateOpts.center,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Compte %s créé (%s).\n", user.Email, user.Role)
	return nil
}

func runUsersDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sess, err := current.requireSession(ctx)
	if err != nil {
		return err
	}
	if err := current.api.DeleteUser(ctx, sess.Token, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Compte %s supprimé.\n", args[0])
	return nil
}
