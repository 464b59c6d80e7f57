package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"launchpad/internal/models"
	"launchpad/internal/queries"
	"launchpad/internal/security"
	"launchpad/internal/userenv"
	"launchpad/pkg/templates"

	"github.com/spf13/cobra"
)

var (
	watchInterval time.Duration
	deployEnvFile string
	deployEnv     []string
	deployWatch   bool
)

var deploymentsCmd = &cobra.Command{
	Use:     "deployments",
	Aliases: []string{"deployment", "d"},
	Short:   "Inspect deployments",
}

var deploymentsListCmd = &cobra.Command{
	Use:   "list SUBDOMAIN",
	Short: "List the deployments of a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeploymentsList,
}

var deploymentsShowCmd = &cobra.Command{
	Use:   "show DEPLOYMENT_ID",
	Short: "Show a deployment and its build log",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeploymentsShow,
}

var deploymentsWatchCmd = &cobra.Command{
	Use:   "watch DEPLOYMENT_ID",
	Short: "Follow a deployment's build log until it finishes",
	Long: `Follow a deployment's build log until it finishes. The access token is
renewed in the background while watching, so long builds keep working.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeploymentsWatch,
}

var deployCmd = &cobra.Command{
	Use:   "deploy SUBDOMAIN",
	Short: "Queue a new deployment of a project",
	Example: `  launchpad deploy blog-x
  launchpad deploy blog-x --env-file .env.production --env 'API_URL=https://api.example.com'
  launchpad deploy blog-x --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runDeploy,
}

func init() {
	deploymentsWatchCmd.Flags().DurationVar(&watchInterval, "interval", 3*time.Second, "Polling interval")
	deploymentsCmd.AddCommand(deploymentsListCmd, deploymentsShowCmd, deploymentsWatchCmd)

	deployCmd.Flags().StringVar(&deployEnvFile, "env-file", "", "Read environment variables from a dotenv file")
	deployCmd.Flags().StringArrayVarP(&deployEnv, "env", "e", nil, "Environment assignments, e.g. 'A=1 B=\"two words\"' (repeatable)")
	deployCmd.Flags().BoolVarP(&deployWatch, "watch", "w", false, "Follow the deployment until it finishes")
	deployCmd.Flags().DurationVar(&watchInterval, "interval", 3*time.Second, "Polling interval with --watch")
}

func runDeploymentsList(cmd *cobra.Command, args []string) error {
	subdomain := args[0]
	if err := security.ValidateSubdomain(subdomain); err != nil {
		return err
	}

	return withApp(func(a *app) error {
		if _, err := a.requireSession(cmd.Context()); err != nil {
			return err
		}

		r := a.queries.Deployments(cmd.Context(), subdomain)
		if r.Err != nil {
			return r.Err
		}
		if len(r.Data) == 0 {
			fmt.Println("No deployments yet. Start one with 'launchpad deploy " + subdomain + "'.")
			return nil
		}
		return printItems(templates.DeploymentRow, r.Data)
	})
}

func runDeploymentsShow(cmd *cobra.Command, args []string) error {
	id := args[0]
	if err := security.ValidateResourceID("deployment", id); err != nil {
		return err
	}

	return withApp(func(a *app) error {
		if _, err := a.requireSession(cmd.Context()); err != nil {
			return err
		}

		r := a.queries.Deployment(cmd.Context(), id)
		if r.Err != nil {
			return r.Err
		}
		if err := printItem(templates.DeploymentRow, r.Data.Deployment); err != nil {
			return err
		}
		return printItems(templates.LogLine, r.Data.VisibleLogs())
	})
}

func runDeploymentsWatch(cmd *cobra.Command, args []string) error {
	id := args[0]
	if err := security.ValidateResourceID("deployment", id); err != nil {
		return err
	}

	return withApp(func(a *app) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if _, err := a.requireSession(ctx); err != nil {
			return err
		}
		return watchDeployment(ctx, a, id)
	})
}

// watchDeployment polls a deployment, printing new log lines, until it
// reaches a terminal status or ctx ends.
func watchDeployment(ctx context.Context, a *app, id string) error {
	logTmpl, err := loadTemplate(templates.LogLine)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	printed := 0
	status := ""
	for {
		r := a.queries.Deployment(ctx, id)
		switch r.Status {
		case queries.StatusDisabled:
			// Renewal is in flight or failed; keep polling while it recovers
			a.logger.Debug("Waiting for session", "error", a.session.LastRenewError())
		case queries.StatusError:
			printWarn("Failed to fetch deployment: " + r.Err.Error())
		case queries.StatusSuccess:
			logs := r.Data.VisibleLogs()
			if printed > len(logs) {
				printed = 0
			}
			for _, l := range logs[printed:] {
				line, err := templates.Render(logTmpl, l)
				if err != nil {
					return err
				}
				fmt.Println(line)
			}
			printed = len(logs)

			d := r.Data.Deployment
			if d.Status != status {
				status = d.Status
				fmt.Printf("--- %s\n", statusColor(status))
			}
			if d.IsTerminal() {
				if d.Status == models.StatusFailed {
					return fmt.Errorf("deployment #%d failed", d.Sequence)
				}
				printSuccess(fmt.Sprintf("Deployment #%d finished", d.Sequence))
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func runDeploy(cmd *cobra.Command, args []string) error {
	subdomain := args[0]
	if err := security.ValidateSubdomain(subdomain); err != nil {
		return err
	}

	env, err := userenv.Build(deployEnvFile, deployEnv)
	if err != nil {
		return err
	}
	encoded, err := env.Encode()
	if err != nil {
		return err
	}

	return withApp(func(a *app) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if _, err := a.requireSession(ctx); err != nil {
			return err
		}

		r := a.queries.Project(ctx, subdomain)
		if r.Err != nil {
			return r.Err
		}
		if r.Data == nil {
			return errors.New("project not found")
		}

		resp, err := a.queries.Deploy(ctx, &r.Data.Project, encoded)
		if err != nil {
			return err
		}

		msg := "Deployment queued for " + subdomain
		if len(env) > 0 {
			msg += fmt.Sprintf(" with %d environment variables", len(env))
		}
		printSuccess(msg)
		if resp.DeploymentID == "" {
			return nil
		}
		fmt.Printf("  Deployment: %s\n", resp.DeploymentID)

		if !deployWatch {
			fmt.Printf("  Follow it:  launchpad deployments watch %s\n", resp.DeploymentID)
			return nil
		}
		return watchDeployment(ctx, a, resp.DeploymentID)
	})
}
