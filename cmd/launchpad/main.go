package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev" // Will be set during build

var rootCmd = &cobra.Command{
	Use:   "launchpad",
	Short: "Deploy GitHub repositories to your own subdomain",
	Long: `Launchpad is the command line client for the launchpad platform.

It signs you in, keeps your session alive, manages projects and their
deployments, and shows request analytics for deployed sites. The console
server (launchpad serve) holds the refresh credential between commands.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Global flags
var (
	configFile   string
	verbose      bool
	backendURL   string
	consoleURL   string
	storePath    string
	outputFormat string
)

// Custom usage template that encourages 'help' subcommand pattern
const usageTemplate = `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}{{$cmds := .Commands}}{{if eq (len .Groups) 0}}

Available Commands:{{range $cmds}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{else}}{{range $group := .Groups}}

{{.Title}}{{range $cmds}}{{if (and (eq .GroupID $group.ID) (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if not .AllChildCommandsHaveGroup}}

Additional Commands:{{range $cmds}}{{if (and (eq .GroupID "") (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasHelpSubCommands}}

Additional help topics:{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .CommandPath .CommandPathPadding}} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} help [command]" for more information about a command.{{end}}
`

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(err.Error())
		os.Exit(1)
	}
}

func init() {
	// Set custom usage template to encourage 'help' subcommand pattern
	rootCmd.SetUsageTemplate(usageTemplate)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", os.Getenv("LAUNCHPAD_CONFIG_FILE"), "Path to launchpad.yaml")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log requests and renewals to stderr")
	flags.StringVar(&backendURL, "backend", "", "Backend API base URL")
	flags.StringVar(&consoleURL, "console", "", "Console server base URL")
	flags.StringVar(&storePath, "store", "", "Path to the cookie database")
	flags.StringVar(&outputFormat, "format", "", "Go template for each printed item")

	rootCmd.AddGroup(
		&cobra.Group{ID: "session", Title: "Session Commands:"},
		&cobra.Group{ID: "projects", Title: "Project Commands:"},
		&cobra.Group{ID: "server", Title: "Server Commands:"},
	)

	// Register subcommands
	for _, cmd := range []*cobra.Command{signupCmd, verifyCmd, loginCmd, logoutCmd, whoamiCmd, statusCmd} {
		cmd.GroupID = "session"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{projectsCmd, deploymentsCmd, deployCmd, analyticsCmd} {
		cmd.GroupID = "projects"
		rootCmd.AddCommand(cmd)
	}
	serveCmd.GroupID = "server"
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// fail wraps an error with the action that failed
func fail(action string, err error) error {
	return fmt.Errorf("%s: %w", action, err)
}
