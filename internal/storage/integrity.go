package storage

import (
	"fmt"
	"strings"
)

// IntegrityMode selects how the profile reference on log entries is kept.
type IntegrityMode string

const (
	// IntegrityEnforced cascades profile deletes to logs and rejects logs for
	// unknown profiles.
	IntegrityEnforced IntegrityMode = "enforced"
	// IntegritySoft keeps the reference unchecked; deleting a profile leaves its
	// logs behind until PruneOrphanLogs runs.
	IntegritySoft IntegrityMode = "soft"
)

func ParseIntegrityMode(s string) (IntegrityMode, error) {
	switch IntegrityMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", IntegrityEnforced:
		return IntegrityEnforced, nil
	case IntegritySoft:
		return IntegritySoft, nil
	default:
		return "", fmt.Errorf("invalid integrity mode %q (expected %q or %q)", s, IntegrityEnforced, IntegritySoft)
	}
}
