// pkg/model/sanitization.go
package model

import (
	"time"
)

// SanitizationOperation describes a single metadata-field change made
// while de-identifying a record. Operations are collected per record
// and can be written to the audit tracking table for later review.
type SanitizationOperation struct {
	RecordID      string      // ID of the record the rule was applied to
	StationID     string      // Origin station of the record
	FieldName     string      // Metadata field that was changed
	OriginalValue interface{} // Value before the rule ran (may be nil)
	NewValue      string      // Value after the rule ran ("" for removals)
	Action        string      // Rule action performed (e.g., "remove")
	Reason        string      // Why the rule exists (e.g., "phi_removal")
	AppliedAt     time.Time   // When the rule ran
}
