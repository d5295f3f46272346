package agent

import (
	"errors"
	"fmt"
)

// Common errors returned by the agent.
var (
	// ErrProvisionFailure is matched by every provisioning error.
	ErrProvisionFailure = errors.New("provisioning failed")

	// ErrStorageWrite is reported when a tier write fails. It never reaches
	// the requester.
	ErrStorageWrite = errors.New("tier write failed")

	// ErrUnhandledInterception is reported when request handling panicked;
	// the request was passed through to the network instead.
	ErrUnhandledInterception = errors.New("unhandled interception")

	// ErrStaleTiers is returned by Activate when tiers of another version
	// could not be listed or deleted. The agent serves regardless.
	ErrStaleTiers = errors.New("stale tiers not invalidated")

	// ErrInvalidTransition is returned for a lifecycle step out of order.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
)

// ProvisionError describes a failed provisioning run.
type ProvisionError struct {
	// Resource is the manifest member that failed, empty when the failure
	// was the static tier write.
	Resource string
	Err      error
}

// Error implements the error interface.
func (e *ProvisionError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("provisioning failed at %s: %v", e.Resource, e.Err)
	}
	return fmt.Sprintf("provisioning failed: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// Is makes every ProvisionError match ErrProvisionFailure.
func (e *ProvisionError) Is(target error) bool {
	return target == ErrProvisionFailure
}
