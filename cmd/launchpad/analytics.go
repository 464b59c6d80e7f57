package main

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"launchpad/internal/analytics"
	"launchpad/internal/security"
	"launchpad/pkg/templates"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	analyticsDays int
	analyticsFrom string
	analyticsTo   string
	analyticsAll  bool
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics SUBDOMAIN",
	Short: "Show daily request counts and response times",
	Example: `  launchpad analytics blog-x --days 30
  launchpad analytics blog-x --from 2026-01-01 --to 2026-01-31`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalytics,
}

func init() {
	analyticsCmd.Flags().IntVar(&analyticsDays, "days", 7, "Last N days (7, 30 or 90)")
	analyticsCmd.Flags().StringVar(&analyticsFrom, "from", "", "First day, YYYY-MM-DD")
	analyticsCmd.Flags().StringVar(&analyticsTo, "to", "", "Last day, YYYY-MM-DD")
	analyticsCmd.Flags().BoolVar(&analyticsAll, "all", false, "Every recorded request")
}

// analyticsRange resolves the range flags
func analyticsRange(now time.Time) (analytics.Range, error) {
	switch {
	case analyticsAll:
		return analytics.Range{}, nil
	case analyticsFrom != "" || analyticsTo != "":
		return analytics.ParseRange(analyticsFrom, analyticsTo)
	case !slices.Contains(analytics.Presets, analyticsDays):
		return analytics.Range{}, fmt.Errorf("--days must be one of %v", analytics.Presets)
	}
	return analytics.LastDays(analyticsDays, now), nil
}

func runAnalytics(cmd *cobra.Command, args []string) error {
	subdomain := args[0]
	if err := security.ValidateSubdomain(subdomain); err != nil {
		return err
	}
	rng, err := analyticsRange(time.Now())
	if err != nil {
		return err
	}

	return withApp(func(a *app) error {
		if _, err := a.requireSession(cmd.Context()); err != nil {
			return err
		}

		r := a.queries.Analytics(cmd.Context(), subdomain, rng)
		if r.Err != nil {
			return r.Err
		}

		stats := analytics.GroupByDate(r.Data)
		heading(fmt.Sprintf("%s: %s", subdomain, rng.Label()))
		if len(stats) == 0 {
			fmt.Println("No requests in this range.")
			return nil
		}
		if err := printItems(templates.AnalyticsRow, stats); err != nil {
			return err
		}

		total := 0
		for _, s := range stats {
			total += s.Count
		}
		fmt.Printf("\n%s requests over %s\n", humanize.Comma(int64(total)), pluralDays(len(stats)))
		return nil
	})
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return strconv.Itoa(n) + " days"
}
