package engine

import "fmt"

// NotFoundError covers absent containers, container types, restaurants and
// rebate mappings. A missing rebate mapping is a hard stop, never a
// zero-value fallback.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// InvalidStateError means the container is not in the state the operation
// requires. CurrentUses/MaxUses are set for usage-ceiling rejections so the
// client can explain the failure.
type InvalidStateError struct {
	Message     string
	CurrentUses int
	MaxUses     int
}

func (e *InvalidStateError) Error() string {
	return e.Message
}

// AuthorizationError means the requester is acting outside their scope:
// staff without a restaurant, or a customer touching a container they do
// not own.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string {
	return e.Message
}
