package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type loginFlags struct {
	email    string
	password string
}

var loginOpts loginFlags

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and keep the session on this device",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := current.sessions.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Déconnecté.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().StringVar(&loginOpts.email, "email", "", "account email (prompted when empty)")
	loginCmd.Flags().StringVar(&loginOpts.password, "password", "", "account password (prompted when empty)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	email, password := loginOpts.email, loginOpts.password
	var err error
	if email == "" {
		if email, err = current.prompt.ask(ctx, "Email : "); err != nil {
			return err
		}
	}
	if password == "" {
		if password, err = current.prompt.ask(ctx, "Mot de passe : "); err != nil {
			return err
		}
	}

	sess, err := current.sessions.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Connecté en tant que %s (%s)\n", sess.User.DisplayName(), sess.User.Role)
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sess, err := current.requireSession(ctx)
	if err != nil {
		return err
	}
	// the stored token may have expired since login
	user, err := current.api.Verify(ctx, sess.Token)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s <%s>\n", user.DisplayName(), user.Email)
	fmt.Fprintf(out, "Rôle : %s\n", user.Role)
	if user.Center != "" {
		fmt.Fprintf(out, "Centre : %s\n", user.Center)
	}
	return nil
}
