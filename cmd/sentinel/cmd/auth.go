package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/danielcipriano1979/sentinel/apperr"
)

var (
	loginEmail    string
	loginPassword string
)

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(whoamiCmd)

	authLoginCmd.Flags().StringVar(&loginEmail, "email", "", "operator email (required)")
	authLoginCmd.Flags().StringVar(&loginPassword, "password", "", "operator password (prompted when omitted)")
	_ = authLoginCmd.MarkFlagRequired("email")
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Admin session management",
	Long:  "Commands for establishing, inspecting, and tearing down the stored admin session.",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the admin token",
	RunE:  runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored admin token",
	Long: `Clear the stored admin token. This is the only way the stored session is
invalidated; a rejected or expired token is reported by "auth status" but
never removed automatically.`,
	RunE: runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session and whether the server accepts it",
	RunE:  runAuthStatus,
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	password := loginPassword
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimSpace(line)
	}

	token, err := client.AdminLogin(cmd.Context(), loginEmail, password)
	if err != nil {
		if apperr.IsUnauthenticated(err) {
			return fmt.Errorf("invalid credentials")
		}
		return err
	}

	if err := tokens.Set(cmd.Context(), token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}

	color.Green("Signed in as %s", loginEmail)
	fmt.Printf("Token stored at %s\n", tokens.Path)
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	if err := tokens.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	color.Yellow("Signed out; stored token removed")
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	token, ok, err := tokens.Get(cmd.Context())
	if err != nil {
		return fmt.Errorf("read token store: %w", err)
	}

	fmt.Printf("Server:     %s\n", cfg.APIBaseURL)
	fmt.Printf("Token file: %s\n", tokens.Path)

	if !ok {
		color.Yellow("Session:    not signed in")
		return nil
	}

	principal, err := client.AdminMe(cmd.Context(), token)
	switch {
	case err == nil:
		color.Green("Session:    valid")
		fmt.Printf("Operator:   %s %s <%s>\n", principal.FirstName, principal.LastName, principal.Email)
	case apperr.IsUnauthenticated(err):
		// Stored but rejected. Deliberately left in place: only an explicit
		// logout removes it.
		color.Red("Session:    rejected by the server (run 'sentinel auth logout' to discard)")
	case apperr.IsTransient(err):
		color.Yellow("Session:    stored; server unreachable")
	default:
		return err
	}
	return nil
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the admin principal for the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, ok, err := tokens.Get(cmd.Context())
		if err != nil {
			return fmt.Errorf("read token store: %w", err)
		}
		if !ok {
			return fmt.Errorf("not signed in")
		}

		principal, err := client.AdminMe(cmd.Context(), token)
		if err != nil {
			if apperr.IsUnauthenticated(err) {
				return fmt.Errorf("stored session was rejected; sign in again")
			}
			return err
		}

		fmt.Printf("%s %s <%s>\n", principal.FirstName, principal.LastName, principal.Email)
		fmt.Printf("ID: %s\n", principal.ID)
		if principal.MFAEnabled {
			fmt.Println("MFA: enabled")
		}
		return nil
	},
}
