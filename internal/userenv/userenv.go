// Package userenv builds the environment variables sent with a deployment.
package userenv

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"launchpad/internal/security"

	"github.com/joho/godotenv"
	"github.com/kballard/go-shellquote"
)

// Env maps variable names to values
type Env map[string]string

// FromFile reads a dotenv file
func FromFile(path string) (Env, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	return Env(values), nil
}

// ParseInline parses shell-style assignments such as
// `API_URL=https://x NAME="two words"`.
func ParseInline(s string) (Env, error) {
	words, err := shellquote.Split(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse env assignments: %w", err)
	}

	env := make(Env, len(words))
	for _, word := range words {
		key, value, found := strings.Cut(word, "=")
		if !found {
			return nil, fmt.Errorf("expected KEY=VALUE, got %q", word)
		}
		env[key] = value
	}
	return env, nil
}

// Build merges the env file (if any) with inline assignments; inline
// values win. Every key is validated.
func Build(file string, inline []string) (Env, error) {
	env := Env{}
	if file != "" {
		values, err := FromFile(file)
		if err != nil {
			return nil, err
		}
		env.Merge(values)
	}

	for _, s := range inline {
		values, err := ParseInline(s)
		if err != nil {
			return nil, err
		}
		env.Merge(values)
	}

	if err := env.Validate(); err != nil {
		return nil, err
	}
	return env, nil
}

// Merge copies other into e, overwriting existing keys
func (e Env) Merge(other Env) {
	for k, v := range other {
		e[k] = v
	}
}

// Validate checks every key
func (e Env) Validate() error {
	for _, key := range e.Keys() {
		if err := security.ValidateEnvKey(key); err != nil {
			return err
		}
	}
	return nil
}

// Keys returns the sorted variable names
func (e Env) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Encode returns the JSON object string the deploy endpoint expects, or
// "" for an empty env.
func (e Env) Encode() (string, error) {
	if len(e) == 0 {
		return "", nil
	}
	data, err := json.Marshal(map[string]string(e))
	if err != nil {
		return "", fmt.Errorf("failed to encode env: %w", err)
	}
	return string(data), nil
}
