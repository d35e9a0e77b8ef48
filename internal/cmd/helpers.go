package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"beads/internal/config"
	"beads/internal/issue"
)

// resolveActor determines the current actor identity, in priority order:
// BD_ACTOR (already folded into the config store by ApplyEnvOverrides),
// git config user.name, $USER, then "unknown".
func resolveActor(app *App) string {
	if app != nil {
		if actor := app.WS.Config().Actor(); actor != "" {
			return actor
		}
	}
	if out, err := exec.Command("git", "config", "user.name").Output(); err == nil {
		if name := strings.TrimSpace(string(out)); name != "" {
			return name
		}
	}
	return config.DefaultActor()
}

// resolveOwner returns the issue owner email, or "" if none can be found.
func resolveOwner() string {
	if email := os.Getenv("GIT_AUTHOR_EMAIL"); email != "" {
		return email
	}
	if out, err := exec.Command("git", "config", "user.email").Output(); err == nil {
		if email := strings.TrimSpace(string(out)); email != "" {
			return email
		}
	}
	return ""
}

// parseDepArg parses a "type:id" or bare "id" dependency argument, defaulting
// to DepBlocks when no type prefix is given.
func parseDepArg(input string) (issue.DepType, string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", "", fmt.Errorf("dependency cannot be empty")
	}
	depType := issue.DepBlocks
	depID := trimmed
	if strings.Contains(trimmed, ":") {
		parts := strings.SplitN(trimmed, ":", 2)
		typePart := strings.ToLower(strings.TrimSpace(parts[0]))
		idPart := strings.TrimSpace(parts[1])
		if typePart == "" || idPart == "" {
			return "", "", fmt.Errorf("invalid dependency %q (expected 'type:id' or 'id')", input)
		}
		depType = issue.DepType(typePart)
		depID = idPart
	}
	if !issue.ValidDepTypes[depType] {
		return "", "", fmt.Errorf("%w: %q", issue.ErrInvalidDepType, depType)
	}
	return depType, depID, nil
}

// parsePriorityArg accepts "0"-"4" or the word forms via issue.ParsePriority.
func parsePriorityArg(s string) (issue.Priority, error) {
	return issue.ParsePriority(s)
}

func parsePtrInt64(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return &n, nil
}
