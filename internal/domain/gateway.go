package domain

import "context"

// Gateway performs calls against the messaging gateway's REST API.
type Gateway interface {
	Call(ctx context.Context, method string, params any) (any, error)
}
