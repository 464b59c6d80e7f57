package main

import (
	"errors"
	"fmt"

	"launchpad/internal/github"
	"launchpad/internal/queries"
	"launchpad/internal/security"
	"launchpad/pkg/templates"

	"github.com/spf13/cobra"
)

var (
	projectsFilter  string
	projectsLimit   int
	projectsAll     bool
	createSkipCheck bool
	createGitHubAPI string
	deleteAssumeYes bool
)

var projectsCmd = &cobra.Command{
	Use:     "projects",
	Aliases: []string{"project", "p"},
	Short:   "Manage projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your projects",
	Long: `List your projects a page at a time. In a terminal you are asked before
each further page is loaded; --all loads every page.`,
	Args: cobra.NoArgs,
	RunE: runProjectsList,
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create [NAME] [GITHUB_URL]",
	Short: "Create a project from a GitHub repository",
	Example: `  launchpad projects create blog https://github.com/ada/blog
  launchpad projects create blog https://github.com/ada/blog --skip-check`,
	Args: cobra.MaximumNArgs(2),
	RunE: runProjectsCreate,
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete PROJECT_ID",
	Short: "Delete a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectsDelete,
}

var projectsShowCmd = &cobra.Command{
	Use:   "show SUBDOMAIN",
	Short: "Show a project and its current deployment",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectsShow,
}

func init() {
	projectsListCmd.Flags().StringVarP(&projectsFilter, "name", "n", "", "Only projects whose name matches")
	projectsListCmd.Flags().IntVar(&projectsLimit, "limit", 0, "Page size (default from config)")
	projectsListCmd.Flags().BoolVar(&projectsAll, "all", false, "Load every page")

	projectsCreateCmd.Flags().BoolVar(&createSkipCheck, "skip-check", false, "Do not check that the repository exists")
	projectsCreateCmd.Flags().StringVar(&createGitHubAPI, "github-api", "", "GitHub API base URL")

	projectsDeleteCmd.Flags().BoolVarP(&deleteAssumeYes, "yes", "y", false, "Do not ask for confirmation")

	projectsCmd.AddCommand(projectsListCmd, projectsCreateCmd, projectsDeleteCmd, projectsShowCmd)
}

func runProjectsList(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		ctx := cmd.Context()
		if _, err := a.requireSession(ctx); err != nil {
			return err
		}

		limit := projectsLimit
		if limit <= 0 {
			limit = a.cfg.PageSize
		}

		tmpl, err := loadTemplate(templates.ProjectRow)
		if err != nil {
			return err
		}

		search := a.queries.SearchProjects(projectsFilter, limit)
		printed := 0
		for {
			r := search.FetchNextPage(ctx)
			if r.Status == queries.StatusError {
				return fail("get projects", r.Err)
			}
			if r.Status != queries.StatusSuccess {
				return errors.New("not signed in, run 'launchpad login' first")
			}

			for _, p := range r.Projects()[printed:] {
				line, err := templates.Render(tmpl, p)
				if err != nil {
					return err
				}
				fmt.Println(line)
				printed++
			}

			if !r.HasNextPage {
				break
			}
			if !projectsAll && (!isInteractive() || !confirm("Load more?")) {
				break
			}
		}

		if printed == 0 {
			if projectsFilter != "" {
				fmt.Printf("No projects match %q\n", projectsFilter)
			} else {
				fmt.Println("No projects yet. Create one with 'launchpad projects create'.")
			}
		}
		return nil
	})
}

func runProjectsCreate(cmd *cobra.Command, args []string) error {
	var name, gitURL string
	if len(args) > 0 {
		name = args[0]
	}
	if len(args) > 1 {
		gitURL = args[1]
	}
	if err := promptMissing(&name, "Project name"); err != nil {
		return err
	}
	if err := promptMissing(&gitURL, "GitHub URL"); err != nil {
		return err
	}

	return withApp(func(a *app) error {
		ctx := cmd.Context()
		if _, err := a.requireSession(ctx); err != nil {
			return err
		}

		if !createSkipCheck {
			if err := security.ValidateGitURL(gitURL); err != nil {
				return err
			}
			checker := github.NewRepoChecker(a.cfg.GitHubToken, a.logger)
			if createGitHubAPI != "" {
				if err := checker.SetBaseURL(createGitHubAPI); err != nil {
					return err
				}
			}
			repo, err := checker.Check(ctx, gitURL)
			if errors.Is(err, github.ErrRepoNotFound) {
				return fmt.Errorf("%w (private repositories need a GitHub token; --skip-check to create anyway)", err)
			}
			if err != nil {
				printWarn("Could not check repository: " + err.Error())
			} else {
				fmt.Printf("Repository %s (default branch %s)\n", repo.FullName, repo.DefaultBranch)
			}
		}

		project, err := a.queries.CreateProject(ctx, name, gitURL)
		if err != nil {
			return errors.New(describe(err))
		}

		printSuccess(fmt.Sprintf("Created project %s", project.Name))
		if project.SubDomain != "" {
			fmt.Printf("  Subdomain: %s\n", project.SubDomain)
			fmt.Printf("  Deploy it: launchpad deploy %s\n", project.SubDomain)
		}
		return nil
	})
}

func runProjectsDelete(cmd *cobra.Command, args []string) error {
	projectID := args[0]
	if err := security.ValidateResourceID("project", projectID); err != nil {
		return err
	}

	if !deleteAssumeYes {
		if !isInteractive() {
			return errors.New("refusing to delete without confirmation; pass --yes")
		}
		if !confirm(fmt.Sprintf("Delete project %s and all its deployments?", projectID)) {
			fmt.Println("Aborted")
			return nil
		}
	}

	return withApp(func(a *app) error {
		ctx := cmd.Context()
		if _, err := a.requireSession(ctx); err != nil {
			return err
		}
		if err := a.queries.DeleteProject(ctx, projectID); err != nil {
			return err
		}
		printSuccess("Deleted project " + projectID)
		return nil
	})
}

func runProjectsShow(cmd *cobra.Command, args []string) error {
	subdomain := args[0]
	if err := security.ValidateSubdomain(subdomain); err != nil {
		return err
	}

	return withApp(func(a *app) error {
		ctx := cmd.Context()
		if _, err := a.requireSession(ctx); err != nil {
			return err
		}

		r := a.queries.Project(ctx, subdomain)
		if r.Err != nil {
			return r.Err
		}
		if outputFormat != "" {
			return printItem(templates.ProjectRow, r.Data)
		}

		p := r.Data.Project
		heading(p.Name)
		fmt.Printf("  ID:         %s\n", p.ID)
		fmt.Printf("  Subdomain:  %s\n", p.SubDomain)
		fmt.Printf("  Repository: %s\n", p.GitURL)
		fmt.Printf("  Created:    %s\n", p.CreatedAt.Local().Format("2006-01-02 15:04"))

		d := r.Data.Deployment
		if d.Deployment.ID == "" {
			fmt.Println("\nNot deployed yet.")
			return nil
		}

		fmt.Println()
		heading("Current deployment")
		if err := printItem(templates.DeploymentRow, d.Deployment); err != nil {
			return err
		}
		if logs := d.VisibleLogs(); len(logs) > 0 {
			fmt.Println()
			return printItems(templates.LogLine, logs)
		}
		return nil
	})
}
