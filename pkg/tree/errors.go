package tree

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is wrapped by every ConfigError so callers can test with errors.Is.
var ErrMalformed = errors.New("malformed hierarchy")

// Reason classifies a single hierarchy problem.
type Reason string

const (
	ReasonEmpty           Reason = "empty"
	ReasonDuplicateParent Reason = "duplicate-parent"
	ReasonDanglingParent  Reason = "dangling-parent"
	ReasonRootHasParent   Reason = "root-has-parent"
	ReasonMissingParent   Reason = "missing-parent"
	ReasonDuplicateNode   Reason = "duplicate-node"
	ReasonEmptyNodeID     Reason = "empty-node-id"
	ReasonDuplicateLevel  Reason = "duplicate-level"
	ReasonLeafWithChild   Reason = "leaf-with-child"
	ReasonSelfParent      Reason = "self-parent"
	ReasonUnreachable     Reason = "unreachable"
)

// Problem is one defect found while building a Model.
type Problem struct {
	Reason     Reason
	LevelIndex int    // -1 when not tied to a level
	NodeID     string // empty when not tied to a node
	Detail     string
}

func (p Problem) String() string {
	var sb strings.Builder
	if p.LevelIndex >= 0 {
		fmt.Fprintf(&sb, "level %d: ", p.LevelIndex)
	}
	sb.WriteString(p.Detail)
	return sb.String()
}

// ConfigError reports a hierarchy that cannot be navigated. It is returned by
// Build and carries every problem found, not just the first one.
type ConfigError struct {
	Problems []Problem
}

func (e *ConfigError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("%v: %s", ErrMalformed, e.Problems[0])
	}
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return fmt.Sprintf("%v: %d problems: %s", ErrMalformed, len(e.Problems), strings.Join(parts, "; "))
}

func (e *ConfigError) Unwrap() error {
	return ErrMalformed
}

// Has reports whether any problem carries the given reason.
func (e *ConfigError) Has(r Reason) bool {
	for _, p := range e.Problems {
		if p.Reason == r {
			return true
		}
	}
	return false
}

func (e *ConfigError) add(r Reason, level int, nodeID, format string, args ...any) {
	e.Problems = append(e.Problems, Problem{
		Reason:     r,
		LevelIndex: level,
		NodeID:     nodeID,
		Detail:     fmt.Sprintf(format, args...),
	})
}
