// Package exitcode maps command errors to process exit statuses.
package exitcode

import (
	"os"
	"strings"

	"github.com/felixgeelhaar/pmteam/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	Success = 0

	GeneralError = 1

	// UsageError covers bad flags and arguments as well as rejected requests
	// such as an empty message or a malformed mutation.
	UsageError = 2

	// Conflict indicates the target already exists
	Conflict = 3

	NotFound = 4

	// StorageError indicates the plan store could not be read or written
	StorageError = 5

	ConfigError = 6

	// Interrupted follows the shell convention for SIGINT
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with the code DetermineExitCode picks for err.
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode maps coded errors by code and falls back to matching
// cobra's usage messages.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	switch errors.CodeOf(err) {
	case errors.ErrCodeRunNotFound, errors.ErrCodeProjectNotFound:
		return NotFound
	case errors.ErrCodeEmptyRequest, errors.ErrCodeBadRequest, errors.ErrCodeInvalidMutation,
		errors.ErrCodeUnknownMode, errors.ErrCodeRunInvalid, errors.ErrCodeProjectInvalid,
		errors.ErrCodePlanInvalid:
		return UsageError
	case errors.ErrCodeProjectExists:
		return Conflict
	case errors.ErrCodeStoreRead, errors.ErrCodeStoreWrite, errors.ErrCodeStoreLock:
		return StorageError
	case errors.ErrCodeConfigRead, errors.ErrCodeConfigInvalid:
		return ConfigError
	}

	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "invalid flag") || strings.Contains(errMsg, "unknown command") ||
		strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "unknown shorthand flag") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "accepts") && strings.Contains(errMsg, "arg(s)") {
		return UsageError
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid arguments or request)"
	case Conflict:
		return "Already exists"
	case NotFound:
		return "Project or run not found"
	case StorageError:
		return "Plan store error"
	case ConfigError:
		return "Configuration error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
