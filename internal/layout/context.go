package layout

import (
	"context"

	"github.com/schoolprogress/schoolprogress/internal/session"
)

type stateContextKey struct{}

// ContextWithState stores the validated session state in ctx.
func ContextWithState(ctx context.Context, state session.State) context.Context {
	return context.WithValue(ctx, stateContextKey{}, state)
}

// StateFromContext returns the state stored by the shell mount check.
func StateFromContext(ctx context.Context) (session.State, bool) {
	state, ok := ctx.Value(stateContextKey{}).(session.State)
	return state, ok
}
