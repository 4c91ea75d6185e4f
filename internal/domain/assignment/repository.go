package assignment

import "context"

// Repository loads the raw assignment records produced by the substitution planner.
type Repository interface {
	LoadAssignments(ctx context.Context) ([]Record, error)
}
