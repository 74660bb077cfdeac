// pkg/anonymizer/policy.go
package anonymizer

import (
	"errors"
	"fmt"
)

// Action defines what a sanitization rule does to its field
type Action int

const (
	// ActionRemove deletes the field entirely
	ActionRemove Action = iota
	// ActionReplace overwrites the field with a neutral placeholder
	ActionReplace
	// ActionStampProvenance sets the field to the origin identifier,
	// independent of whether the field previously existed
	ActionStampProvenance
)

// String returns a string representation of the action
func (a Action) String() string {
	switch a {
	case ActionRemove:
		return "remove"
	case ActionReplace:
		return "replace"
	case ActionStampProvenance:
		return "stamp_provenance"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// Rule binds one metadata field to an action. Value is the placeholder
// for ActionReplace and the stamp for ActionStampProvenance.
type Rule struct {
	Field  string
	Action Action
	Value  string
}

// Policy is the declarative rule set applied to every record of a run.
// It is loaded once and never modified afterwards.
type Policy struct {
	Rules []Rule

	// SensitiveFields is the verification set: after sanitization every
	// field listed here must be absent or hold its configured placeholder.
	SensitiveFields []string

	// Placeholders maps replaced fields to their known-safe values.
	Placeholders map[string]string

	// ProvenanceField/ProvenanceValue identify the origin tag stamped
	// onto every sanitized record.
	ProvenanceField string
	ProvenanceValue string
}

// Validate checks the policy is internally consistent. A malformed
// policy is a construction-time failure — no record is processed.
func (p *Policy) Validate() error {
	if len(p.Rules) == 0 {
		return errors.New("policy must contain at least one rule")
	}

	for _, rule := range p.Rules {
		if rule.Field == "" {
			return errors.New("policy rule with empty field name")
		}
		if rule.Action == ActionReplace && rule.Value == "" {
			return fmt.Errorf("replace rule for %s has no placeholder value", rule.Field)
		}
		if rule.Action == ActionStampProvenance && rule.Value == "" {
			return fmt.Errorf("provenance rule for %s has no stamp value", rule.Field)
		}
	}

	// Every replaced sensitive field needs a placeholder entry so the
	// verification pass can tell a safe value from surviving PHI.
	for field, placeholder := range p.Placeholders {
		if field == "" || placeholder == "" {
			return errors.New("placeholder map contains an empty entry")
		}
	}

	return nil
}

// placeholderFor returns the known-safe value for a field, if any.
func (p *Policy) placeholderFor(field string) (string, bool) {
	v, ok := p.Placeholders[field]
	return v, ok
}

// phiRemovalFields is the removal list of the DICOM PS3.15 Annex E
// Basic Confidentiality Profile subset used by the fleet. Private
// vendor tags are handled separately by the ingestion boundary.
var phiRemovalFields = []string{
	"PatientName",
	"PatientID",
	"PatientBirthDate",
	"PatientSex",
	"PatientAge",
	"PatientAddress",
	"PatientTelephoneNumbers",
	"OtherPatientIDs",
	"OtherPatientNames",
	"OtherPatientIDsSequence",
	"ReferringPhysicianName",
	"ReferringPhysicianAddress",
	"ReferringPhysicianTelephoneNumbers",
	"InstitutionName",
	"InstitutionAddress",
	"InstitutionalDepartmentName",
	"PerformingPhysicianName",
	"OperatorsName",
	"NameOfPhysiciansReadingStudy",
	"RequestingPhysician",
	"ScheduledPerformingPhysicianName",
	"AccessionNumber",
	"StudyID",
	"DeviceSerialNumber",
	"RequestedProcedureID",
}

// dateReplacements shifts acquisition dates/times to neutral values so
// the record stays syntactically valid without leaking scheduling PHI.
var dateReplacements = map[string]string{
	"StudyDate":       "19000101",
	"SeriesDate":      "19000101",
	"AcquisitionDate": "19000101",
	"ContentDate":     "19000101",
	"StudyTime":       "000000",
	"SeriesTime":      "000000",
	"AcquisitionTime": "000000",
	"ContentTime":     "000000",
}

// DefaultPolicy builds the fleet's standard de-identification policy:
// the PS3.15 removal subset, neutral date/time placeholders, the
// de-identification markers, and a StationName provenance stamp for
// the given mobile unit.
func DefaultPolicy(stationName string) *Policy {
	rules := make([]Rule, 0, len(phiRemovalFields)+len(dateReplacements)+3)
	sensitive := make([]string, 0, len(phiRemovalFields)+len(dateReplacements))
	placeholders := make(map[string]string, len(dateReplacements))

	for _, field := range phiRemovalFields {
		rules = append(rules, Rule{Field: field, Action: ActionRemove})
		sensitive = append(sensitive, field)
	}

	// Deterministic rule order keeps operation logs stable between runs.
	for _, field := range []string{
		"StudyDate", "SeriesDate", "AcquisitionDate", "ContentDate",
		"StudyTime", "SeriesTime", "AcquisitionTime", "ContentTime",
	} {
		value := dateReplacements[field]
		rules = append(rules, Rule{Field: field, Action: ActionReplace, Value: value})
		sensitive = append(sensitive, field)
		placeholders[field] = value
	}

	// De-identification markers understood by downstream DICOM systems
	rules = append(rules,
		Rule{Field: "PatientIdentityRemoved", Action: ActionReplace, Value: "YES"},
		Rule{Field: "DeidentificationMethod", Action: ActionReplace, Value: "PS3.15 Annex E subset. No UID remap, no pixel scrub."},
		Rule{Field: "StationName", Action: ActionStampProvenance, Value: stationName},
	)
	placeholders["PatientIdentityRemoved"] = "YES"
	placeholders["DeidentificationMethod"] = "PS3.15 Annex E subset. No UID remap, no pixel scrub."

	return &Policy{
		Rules:           rules,
		SensitiveFields: sensitive,
		Placeholders:    placeholders,
		ProvenanceField: "StationName",
		ProvenanceValue: stationName,
	}
}
