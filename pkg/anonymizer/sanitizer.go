// pkg/anonymizer/sanitizer.go
package anonymizer

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/medsendx/data-gateway/pkg/model"
)

// PolicyViolationError is returned when a sensitive field still holds
// an original value after all rules ran. It is fatal for the record,
// never for the batch.
type PolicyViolationError struct {
	Field string
	Value interface{}
}

// Error implements the error interface
func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("policy violation: sensitive field %q survived sanitization", e.Field)
}

// Sanitizer applies a Policy to individual records, producing new
// sanitized copies. The input record is never mutated, so a failed
// delivery can always be retried from the original.
type Sanitizer struct {
	logger *zap.Logger
}

// NewSanitizer creates a new Sanitizer instance
func NewSanitizer(logger *zap.Logger) (*Sanitizer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Sanitizer{logger: logger}, nil
}

// Sanitize applies every rule of the policy to a copy of the record's
// metadata, then verifies that no sensitive field survived. The call is
// idempotent: sanitizing an already-sanitized record is a no-op.
//
// Returns the sanitized record, the list of field changes actually
// performed (for the audit trail), and a *PolicyViolationError if
// verification fails.
func (s *Sanitizer) Sanitize(
	rec *model.Record,
	policy *Policy,
) (*model.SanitizedRecord, []model.SanitizationOperation, error) {
	if rec == nil {
		return nil, nil, errors.New("record cannot be nil")
	}
	if policy == nil {
		return nil, nil, errors.New("policy cannot be nil")
	}

	meta := rec.Meta.Clone()
	operations := make([]model.SanitizationOperation, 0)
	now := time.Now()

	for _, rule := range policy.Rules {
		switch rule.Action {
		case ActionRemove:
			original, existed := meta.Get(rule.Field)
			if !existed {
				continue
			}
			meta.Delete(rule.Field)
			operations = append(operations, model.SanitizationOperation{
				RecordID:      rec.ID,
				StationID:     rec.StationID,
				FieldName:     rule.Field,
				OriginalValue: original,
				NewValue:      "",
				Action:        rule.Action.String(),
				Reason:        "phi_removal",
				AppliedAt:     now,
			})

		case ActionReplace:
			original, existed := meta.Get(rule.Field)
			if existed && original == rule.Value {
				// Already holds the placeholder — idempotent no-op.
				continue
			}
			meta.Set(rule.Field, rule.Value)
			operations = append(operations, model.SanitizationOperation{
				RecordID:      rec.ID,
				StationID:     rec.StationID,
				FieldName:     rule.Field,
				OriginalValue: original,
				NewValue:      rule.Value,
				Action:        rule.Action.String(),
				Reason:        "phi_placeholder",
				AppliedAt:     now,
			})

		case ActionStampProvenance:
			original, existed := meta.Get(rule.Field)
			if existed && original == rule.Value {
				continue
			}
			meta.Set(rule.Field, rule.Value)
			operations = append(operations, model.SanitizationOperation{
				RecordID:      rec.ID,
				StationID:     rec.StationID,
				FieldName:     rule.Field,
				OriginalValue: original,
				NewValue:      rule.Value,
				Action:        rule.Action.String(),
				Reason:        "provenance_stamp",
				AppliedAt:     now,
			})
		}
	}

	// Verification pass: every sensitive field must be absent or hold
	// its known-safe placeholder. Surviving PHI is never ignored.
	for _, field := range policy.SensitiveFields {
		value, present := meta.Get(field)
		if !present {
			continue
		}
		placeholder, hasPlaceholder := policy.placeholderFor(field)
		if hasPlaceholder && value == placeholder {
			continue
		}

		s.logger.Error("Sensitive field survived sanitization",
			zap.String("recordID", rec.ID),
			zap.String("field", field))
		return nil, operations, &PolicyViolationError{Field: field, Value: value}
	}

	sanitized := &model.SanitizedRecord{
		Record: model.Record{
			ID:        rec.ID,
			Meta:      meta,
			Pixels:    rec.Pixels,
			StationID: rec.StationID,
		},
		Sanitized:  true,
		Provenance: policy.ProvenanceValue,
	}

	if len(operations) > 0 {
		s.logger.Debug("Sanitized record",
			zap.String("recordID", rec.ID),
			zap.Int("operations", len(operations)))
	}

	return sanitized, operations, nil
}
