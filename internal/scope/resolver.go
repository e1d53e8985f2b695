// Package scope resolves which sibling instances of a recurring series an
// edit or delete touches.
package scope

import (
	"fmt"
	"sort"

	"planwise/tracking-engine/internal/models"
)

// Scope is the breadth of a series edit or delete.
type Scope string

const (
	ScopeThis   Scope = "this"
	ScopeFuture Scope = "future"
	ScopeAll    Scope = "all"
)

// ParseScope validates a wire-level scope string.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeThis, ScopeFuture, ScopeAll:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("invalid scope %q (expected this, future or all)", s)
	}
}

// Resolve picks the members of the instance's recurring group the scope
// covers, ordered by start time. An instance without a group id degrades to
// itself for every scope. Resolve performs no I/O; the siblings are whatever
// the caller loaded for the instance's group.
func Resolve(instance *models.Event, siblings []*models.Event, scope Scope) []*models.Event {
	if instance.GroupID() == "" || scope == ScopeThis {
		return []*models.Event{instance}
	}

	var resolved []*models.Event
	for _, sibling := range siblings {
		if sibling.GroupID() != instance.GroupID() {
			continue
		}
		if scope == ScopeFuture && sibling.StartTime.Before(instance.StartTime) {
			continue
		}
		resolved = append(resolved, sibling)
	}

	sort.Slice(resolved, func(i, j int) bool {
		return resolved[i].StartTime.Before(resolved[j].StartTime)
	})
	return resolved
}
