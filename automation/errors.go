package automation

import (
	"errors"
	"fmt"
)

// Error is the error type of every failure that aborts a run.
type Error struct {
	// See constants in this package for list of identifiers
	Identifier  string
	Description string
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Identifier, e.Description, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Identifier, e.Description)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func NewError(identifier string, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Identifier:  identifier,
		Description: fmt.Sprintf(format, args...),
		Cause:       cause,
	}
}

// IsError reports whether err or any error it wraps is an *Error with the given identifier.
func IsError(err error, identifier string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Identifier == identifier
}

// List of Error identifiers
const ConfigNotFound string = "CONFIGNOTFOUND"         // template or config file missing
const InsufficientCores string = "INSUFFICIENTCORES"   // topology cannot serve the process count
const ProcessFailedToStart string = "PROCFAILEDTOSTART" // pid marker without a live process
const StartupTimeout string = "STARTUPTIMEOUT"
const ShutdownTimeout string = "SHUTDOWNTIMEOUT"
const NoPrimaryDesignated string = "NOPRIMARY"
const AmbiguousReplicaSet string = "AMBIGUOUSREPLSET"
const AmbiguousPrimary string = "AMBIGUOUSPRIMARY" // several processes flagged connect-to
const PrimaryElectionTimeout string = "PRIMARYTIMEOUT"
const AgentNotRunning string = "AGENTNOTRUNNING"
const InvalidVersion string = "INVALIDVERSION"
const InvalidOptions string = "INVALIDOPTIONS"
