package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"launchpad/internal/api"
	"launchpad/internal/session"
	"launchpad/internal/token"
	"launchpad/pkg/templates"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	authName     string
	authEmail    string
	authPassword string
	logoutLocal  bool
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	Long: `Create an account. A verification mail is sent to the address; use
'launchpad verify' to send it again.`,
	Args: cobra.NoArgs,
	RunE: runSignup,
}

var verifyCmd = &cobra.Command{
	Use:   "verify [EMAIL]",
	Short: "Send the verification mail again",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runVerify,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in",
	Long: `Sign in through the console. The console keeps the refresh token in an
HTTP-only cookie stored in the local cookie database; later commands renew
their access token from it.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and end the session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and session diagnostics",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	signupCmd.Flags().StringVar(&authName, "name", "", "Display name")
	signupCmd.Flags().StringVar(&authEmail, "email", "", "Email address")
	signupCmd.Flags().StringVar(&authPassword, "password", "", "Password (prompted when omitted)")

	loginCmd.Flags().StringVar(&authEmail, "email", "", "Email address")
	loginCmd.Flags().StringVar(&authPassword, "password", "", "Password (prompted when omitted)")

	logoutCmd.Flags().BoolVar(&logoutLocal, "local", false, "Forget the local session even if the server call fails")
}

// promptCredentials asks for whatever was not passed as a flag
func promptCredentials(withName bool) error {
	if withName {
		if err := promptMissing(&authName, "Name"); err != nil {
			return err
		}
	}
	if err := promptMissing(&authEmail, "Email"); err != nil {
		return err
	}
	if authPassword == "" {
		if !isInteractive() {
			return errors.New("password is required")
		}
		password, err := readPassword("Password")
		if err != nil {
			return err
		}
		authPassword = password
	}
	return nil
}

// describe turns an action error into a message with its field errors
func describe(err error) string {
	var actionErr *api.ActionError
	if errors.As(err, &actionErr) {
		return actionErr.Error()
	}
	return err.Error()
}

func runSignup(cmd *cobra.Command, args []string) error {
	if err := promptCredentials(true); err != nil {
		return err
	}

	return withApp(func(a *app) error {
		if err := a.console.SignUp(cmd.Context(), authName, authEmail, authPassword); err != nil {
			return errors.New(describe(err))
		}
		printSuccess(fmt.Sprintf("Account created. Check %s for the verification mail.", authEmail))
		return nil
	})
}

func runVerify(cmd *cobra.Command, args []string) error {
	email := ""
	if len(args) == 1 {
		email = args[0]
	}
	if err := promptMissing(&email, "Email"); err != nil {
		return err
	}

	return withApp(func(a *app) error {
		if err := a.console.Verify(cmd.Context(), email); err != nil {
			return errors.New(describe(err))
		}
		printSuccess("Verification mail sent to " + email)
		return nil
	})
}

func runLogin(cmd *cobra.Command, args []string) error {
	if err := promptCredentials(false); err != nil {
		return err
	}

	return withApp(func(a *app) error {
		details, err := a.console.SignIn(cmd.Context(), authEmail, authPassword)
		if err != nil {
			return errors.New(describe(err))
		}
		a.session.SetFromLogin(details)

		printSuccess(fmt.Sprintf("Signed in as %s <%s>", details.User.Name, details.User.Email))
		if !details.User.IsVerified {
			printWarn("Your email is not verified yet; run 'launchpad verify' to resend the mail")
		}
		return nil
	})
}

func runLogout(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		ctx := cmd.Context()

		tok, err := a.requireSession(ctx)
		if err != nil {
			if logoutLocal {
				return forgetLocal(ctx, a)
			}
			return err
		}

		if err := a.console.Logout(ctx, tok.AccessToken, tok.SessionID); err != nil {
			if !logoutLocal {
				return fmt.Errorf("%s (use --local to forget the session anyway)", describe(err))
			}
			printWarn("Server logout failed: " + describe(err))
			return forgetLocal(ctx, a)
		}

		a.session.Invalidate()
		printSuccess("Signed out")
		return nil
	})
}

// forgetLocal drops the stored cookies and the in-memory session
func forgetLocal(ctx context.Context, a *app) error {
	a.session.Invalidate()
	if err := a.jar.Clear(ctx); err != nil {
		return err
	}
	printSuccess("Local session removed")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		if _, err := a.requireSession(cmd.Context()); err != nil {
			return err
		}

		r := a.queries.Profile(cmd.Context())
		if r.Err != nil {
			return fail("fetch profile", r.Err)
		}
		return printItem(templates.User, r.Data)
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		ctx := cmd.Context()

		heading("Configuration")
		source := a.cfg.Source
		if source == "" {
			source = "(defaults and environment)"
		}
		fmt.Printf("  Config file:  %s\n", source)
		fmt.Printf("  Backend:      %s\n", a.cfg.BackendURL)
		fmt.Printf("  Console:      %s\n", a.cfg.ConsoleURL)
		fmt.Printf("  Cookie store: %s\n", a.cfg.StorePath)
		fmt.Printf("  Renewal:      every %s\n", a.session.Interval())

		heading("Session")
		cookie, err := a.refreshCookie(ctx)
		switch {
		case err != nil:
			printWarn("Could not read cookie store: " + err.Error())
		case cookie == nil:
			fmt.Println("  Refresh cookie: none")
		case cookie.ExpiresAt != nil:
			fmt.Printf("  Refresh cookie: present, expires %s\n", humanize.Time(*cookie.ExpiresAt))
		default:
			fmt.Println("  Refresh cookie: present (session cookie)")
		}

		a.session.Renew(ctx)
		st := a.session.Status()
		fmt.Printf("  State:          %s\n", st.State)
		if st.State == session.StateSignedOut || st.Token == nil {
			if st.LastError != nil {
				fmt.Printf("  Last renewal:   failed: %v\n", st.LastError)
			}
			return nil
		}

		fmt.Printf("  Session ID:     %s\n", st.Token.SessionID)
		fmt.Printf("  Token expires:  %s\n", humanize.Time(st.Token.AccessTokenExpiresAt))
		if claims, err := token.Inspect(st.Token.AccessToken); err == nil {
			fmt.Printf("  Token subject:  %s\n", claims.Email)
			if claims.Expired(time.Now()) {
				printWarn("Access token is already expired")
			}
		} else {
			a.logger.Debug("Access token is not a readable JWT", "error", err)
		}
		return nil
	})
}
