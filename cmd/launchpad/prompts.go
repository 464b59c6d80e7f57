package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

var stdin = bufio.NewReader(os.Stdin)

// readValue prompts for input with an optional default
func readValue(prompt, defaultValue string) string {
	if defaultValue != "" {
		fmt.Printf("%s [%s]: ", prompt, defaultValue)
	} else {
		fmt.Printf("%s: ", prompt)
	}

	input, err := stdin.ReadString('\n')
	if err != nil {
		return defaultValue
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return defaultValue
	}
	return input
}

// readPassword prompts without echoing
func readPassword(prompt string) (string, error) {
	fmt.Printf("%s: ", prompt)
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(data), nil
}

// confirm asks a yes/no question, defaulting to no
func confirm(prompt string) bool {
	answer := strings.ToLower(readValue(prompt+" [y/N]", ""))
	return answer == "y" || answer == "yes"
}

// isInteractive checks if stdin is a terminal
func isInteractive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// promptMissing fills *value from an interactive prompt when empty
func promptMissing(value *string, prompt string) error {
	if *value != "" {
		return nil
	}
	if !isInteractive() {
		return fmt.Errorf("%s is required", strings.ToLower(prompt))
	}
	*value = readValue(prompt, "")
	return nil
}
