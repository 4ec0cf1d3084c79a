// Package unify builds the unified database from an ordered set of sources.
package unify

import (
	"strings"

	"dbunify/internal/domain"
)

// CollisionPolicy decides what happens when a source declares a table whose
// name already exists in the unified database.
type CollisionPolicy string

const (
	// PolicySkip reuses the existing table; rows from the later source are
	// inserted into it, dropping uniqueness conflicts.
	PolicySkip CollisionPolicy = "skip"
	// PolicyError fails the unification with a *domain.MergeError.
	PolicyError CollisionPolicy = "error"
	// PolicyRename creates the later table as <name>_<sourceIndex>.
	PolicyRename CollisionPolicy = "rename"
)

// ParsePolicy parses a policy name. The empty string selects PolicySkip.
func ParsePolicy(s string) (CollisionPolicy, error) {
	switch p := CollisionPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicySkip, nil
	case PolicySkip, PolicyError, PolicyRename:
		return p, nil
	default:
		return "", domain.ErrValidation("invalid collision policy %q: must be one of skip, error, rename", s)
	}
}
