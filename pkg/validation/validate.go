// Package validation implements the Validation Rules: a set of pure
// functions composing into one ordered check over a (Tag, Value, Quality)
// triple.
package validation

import (
	"github.com/cuemby/acquisitiond/pkg/types"
)

// Reason is the closed set of reasons a sample fails validation.
type Reason string

const (
	// ReasonInactiveTag means tag.IsActive was false.
	ReasonInactiveTag Reason = "InactiveTag"
	// ReasonTypeMismatch means the value's runtime kind does not match
	// the tag's logical DataType.
	ReasonTypeMismatch Reason = "TypeMismatch"
	// ReasonNotAllowed means the value is not among the tag's
	// AllowedValues.
	ReasonNotAllowed Reason = "NotAllowed"
	// ReasonOutOfRange means the value fell outside [MinValue, MaxValue].
	ReasonOutOfRange Reason = "OutOfRange"
	// ReasonBadQuality means the sample's OpcQuality was not Good.
	ReasonBadQuality Reason = "BadQuality"
)

// Result is the outcome of Validate.
type Result struct {
	OK     bool
	Reason Reason
}

func ok() Result { return Result{OK: true} }

func fail(reason Reason) Result { return Result{OK: false, Reason: reason} }

// Validate runs the ordered composite rule from the specification: the
// first failing check short-circuits the rest.
//
//  1. tag.IsActive, else ReasonInactiveTag.
//  2. Type check: value's runtime kind against tag.DataType. An unknown
//     logical type is accepted unconditionally.
//  3. Enumerated-values check, only if tag.AllowedValues is non-empty:
//     value rendered as text, compared case-insensitively.
//  4. Range check, only if AllowedValues is empty and at least one of
//     MinValue/MaxValue is set: value must be numeric and within the
//     inclusive bounds.
//  5. Quality check: quality must be Good.
//
// Enumerated values and range checks are mutually exclusive by
// construction (step 4 only runs when step 3 did not apply), matching
// the data model's invariant that a tag carries AllowedValues or
// (MinValue, MaxValue), never both.
func Validate(tag *types.Tag, value types.Value, quality types.OpcQuality) Result {
	if !tag.IsActive {
		return fail(ReasonInactiveTag)
	}

	if !value.MatchesDataType(tag.DataType) {
		return fail(ReasonTypeMismatch)
	}

	if len(tag.AllowedValues) > 0 {
		allowed := false
		for _, candidate := range tag.AllowedValues {
			if value.EqualFold(candidate) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fail(ReasonNotAllowed)
		}
	} else if tag.MinValue != nil || tag.MaxValue != nil {
		n, isNumeric := value.AsFloat64()
		if !isNumeric {
			return fail(ReasonOutOfRange)
		}
		if tag.MinValue != nil && n < *tag.MinValue {
			return fail(ReasonOutOfRange)
		}
		if tag.MaxValue != nil && n > *tag.MaxValue {
			return fail(ReasonOutOfRange)
		}
	}

	if !quality.IsGood() {
		return fail(ReasonBadQuality)
	}

	return ok()
}
