package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strings"
)

// ResolveValue expands a credential or endpoint value:
//   - op://vault/item/field reads a 1Password secret with `op read`
//   - srv://_service._proto.domain/path resolves a DNS SRV record to an https URL
//   - $(cmd) runs cmd with sh and uses its trimmed output
//   - ${VAR} or $VAR reads the environment
//
// Anything else is returned unchanged.
func ResolveValue(value string) (string, error) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return "", nil
	case strings.HasPrefix(value, "op://"):
		return readOnePassword(value)
	case strings.HasPrefix(value, "srv://"):
		return lookupSRV(value)
	case strings.HasPrefix(value, "$(") && strings.HasSuffix(value, ")"):
		return runCommand(value[2 : len(value)-1])
	default:
		return expandEnv(value), nil
	}
}

// expandEnv handles a value that is exactly ${VAR} or $VAR.
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	if strings.HasPrefix(s, "$") && !strings.ContainsAny(s[1:], " $/") {
		return os.Getenv(s[1:])
	}
	return s
}

// readOnePassword accepts op://vault/item/field with an optional
// ?account= query.
func readOnePassword(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("1password: invalid reference %s: %w", ref, err)
	}
	clean := "op://" + u.Host + u.Path
	args := []string{"read", clean}
	if account := u.Query().Get("account"); account != "" {
		args = append(args, "--account", account)
	}
	out, err := exec.Command("op", args...).Output()
	if err != nil {
		return "", fmt.Errorf("1password: read %s: %s (is the op CLI installed and signed in?)", clean, commandError(err))
	}
	return strings.TrimSpace(string(out)), nil
}

func lookupSRV(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid srv reference: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("srv reference missing record: %s", ref)
	}
	_, addrs, err := net.LookupSRV("", "", u.Host)
	if err != nil {
		return "", fmt.Errorf("srv lookup %s: %w", u.Host, err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("no srv records for %s", u.Host)
	}
	// net sorts by priority and weight
	target := strings.TrimSuffix(addrs[0].Target, ".")
	return fmt.Sprintf("https://%s:%d%s", target, addrs[0].Port, u.Path), nil
}

func runCommand(cmd string) (string, error) {
	out, err := exec.Command("sh", "-c", cmd).Output()
	if err != nil {
		return "", fmt.Errorf("command failed: %s", commandError(err))
	}
	return strings.TrimSpace(string(out)), nil
}

func commandError(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return strings.TrimSpace(string(exitErr.Stderr))
	}
	return err.Error()
}
