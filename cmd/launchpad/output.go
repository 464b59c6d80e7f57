package main

import (
	"fmt"
	"os"
	"text/template"

	"launchpad/internal/models"
	"launchpad/pkg/templates"

	"github.com/mattn/go-isatty"
)

var (
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorReset  = "\033[0m"
)

func init() {
	// Disable colors when stdout is not a terminal
	fd := os.Stdout.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		colorGreen = ""
		colorRed = ""
		colorYellow = ""
		colorCyan = ""
		colorReset = ""
	}
}

// printSuccess prints a success message
func printSuccess(msg string) {
	fmt.Printf("%s[OK]%s %s\n", colorGreen, colorReset, msg)
}

// printError prints an error message to stderr
func printError(msg string) {
	fmt.Fprintf(os.Stderr, "%s[FAIL]%s %s\n", colorRed, colorReset, msg)
}

// printWarn prints a warning message
func printWarn(msg string) {
	fmt.Printf("%s[WARN]%s %s\n", colorYellow, colorReset, msg)
}

// statusColor colors a deployment status for the terminal
func statusColor(status string) string {
	padded := fmt.Sprintf("%-7s", status)
	switch status {
	case models.StatusSuccess:
		return colorGreen + padded + colorReset
	case models.StatusFailed:
		return colorRed + padded + colorReset
	case models.StatusQueued, models.StatusPending:
		return colorYellow + padded + colorReset
	}
	return padded
}

// loadTemplate resolves --format or the named built-in template
func loadTemplate(name string) (*template.Template, error) {
	return templates.Load(outputFormat, name, template.FuncMap{"status": statusColor})
}

// printItems renders each item on its own line
func printItems[T any](name string, items []T) error {
	tmpl, err := loadTemplate(name)
	if err != nil {
		return err
	}
	for _, item := range items {
		line, err := templates.Render(tmpl, item)
		if err != nil {
			return err
		}
		fmt.Println(line)
	}
	return nil
}

// printItem renders a single item
func printItem(name string, item any) error {
	tmpl, err := loadTemplate(name)
	if err != nil {
		return err
	}
	line, err := templates.Render(tmpl, item)
	if err != nil {
		return err
	}
	fmt.Println(line)
	return nil
}

// heading prints a section title
func heading(title string) {
	fmt.Printf("%s%s%s\n", colorCyan, title, colorReset)
}
