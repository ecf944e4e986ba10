// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Input errors
	CodeInvalidInput         Code = "INVALID_INPUT"
	CodeDicePoolSizeInvalid  Code = "DICE_POOL_SIZE_INVALID"
	CodeSkillNegative        Code = "SKILL_NEGATIVE"
	CodeReferenceMissing     Code = "REFERENCE_MISSING"
	CodeRulesSettingsInvalid Code = "RULES_SETTINGS_INVALID"

	// Resource errors
	CodeMagazineMissing Code = "MAGAZINE_MISSING"
	CodeMagazineEmpty   Code = "MAGAZINE_EMPTY"
	CodeNothingToCommit Code = "NOTHING_TO_COMMIT"
	CodeMagazineChanged Code = "MAGAZINE_CHANGED"
	CodeWoundHealed     Code = "WOUND_ALREADY_HEALED"

	// Opposed test errors
	CodeOpposedCounterpartMissing Code = "OPPOSED_COUNTERPART_MISSING"
	CodeOpposedSessionNotFound    Code = "OPPOSED_SESSION_NOT_FOUND"
	CodeOpposedInvalidState       Code = "OPPOSED_INVALID_STATE"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInvalidInput,
		CodeDicePoolSizeInvalid,
		CodeSkillNegative,
		CodeReferenceMissing,
		CodeRulesSettingsInvalid:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeMagazineMissing,
		CodeMagazineEmpty,
		CodeNothingToCommit,
		CodeMagazineChanged,
		CodeWoundHealed,
		CodeOpposedInvalidState:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeOpposedCounterpartMissing,
		CodeOpposedSessionNotFound:
		return codes.NotFound

	default:
		return codes.Internal
	}
}
