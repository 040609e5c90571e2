package security

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// Safe patterns for validation
	servicePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	teamPattern    = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateServiceName ensures a service name is safe for use in file
// paths, CLI arguments, repository names, and DNS labels. Prevents
// command injection through names that reach terraform and kubectl.
func ValidateServiceName(name string) error {
	if name == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if len(name) > 63 {
		return fmt.Errorf("service name too long (maximum 63 characters)")
	}
	if !servicePattern.MatchString(name) {
		return fmt.Errorf("service name contains invalid characters (must start with a letter; only a-z, 0-9, - allowed)")
	}
	if strings.HasSuffix(name, "-") {
		return fmt.Errorf("service name cannot end with '-'")
	}
	return nil
}

// ValidateTeamName ensures a team name is safe for storage and display.
func ValidateTeamName(team string) error {
	if team == "" {
		return fmt.Errorf("team name cannot be empty")
	}
	if !teamPattern.MatchString(team) {
		return fmt.Errorf("team name contains invalid characters (only a-z, A-Z, 0-9, _, - allowed)")
	}
	return nil
}

// ValidateEnvironment ensures an environment value is one of the
// supported targets before it is interpolated into resource names.
func ValidateEnvironment(environment string) error {
	switch environment {
	case "dev", "staging", "prod":
		return nil
	}
	return fmt.Errorf("unknown environment %q (must be dev, staging, or prod)", environment)
}

// SanitizeWorkspacePath ensures target is inside the workspace base
// directory. Guards the per-service terraform directories against
// traversal through crafted names.
func SanitizeWorkspacePath(basePath, targetPath string) (string, error) {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}

	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve target path: %w", err)
	}

	relPath, err := filepath.Rel(absBase, absTarget)
	if err != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: target '%s' is outside base '%s'", absTarget, absBase)
	}

	return absTarget, nil
}
