package redact

// DefaultRules returns the built-in Safe Harbor rule set for scanned medical
// reports. Configuration may extend or replace individual entries by
// re-registering the same name.
//
// Priorities leave gaps so site-specific rules can slot between the labeled
// field rules (which anchor on the field caption and must run before the
// generic identifier rules) and the free-standing identifier rules.
func DefaultRules() []RuleSpec {
	return []RuleSpec{
		{
			Name:        "patient_name",
			Pattern:     `Patient Name[:\s]+[A-Za-z][A-Za-z \t.'-]+`,
			Replacement: "Patient Name: [ANONYMIZED]",
			Priority:    10,
		},
		{
			Name:        "patient_id",
			Pattern:     `Patient ID[:\s]+[A-Za-z0-9][A-Za-z0-9_-]*`,
			Replacement: "Patient ID: [ANONYMIZED]",
			Priority:    20,
		},
		{
			Name:        "hospital_name",
			Pattern:     `Hospital Name[:\s]+[A-Za-z][A-Za-z \t.'-]+`,
			Replacement: "Hospital Name: [ANONYMIZED]",
			Priority:    30,
		},
		{
			Name:        "clinician",
			Pattern:     `Clinician[:\s]+[A-Za-z][A-Za-z \t.'-]+`,
			Replacement: "Clinician: [ANONYMIZED]",
			Priority:    40,
		},
		{
			Name:            "date_of_birth",
			Pattern:         `(?:DOB|Date of Birth)[:\s]+\d{1,4}[/-]\d{1,2}[/-]\d{1,4}`,
			Replacement:     "DOB: [ANONYMIZED]",
			Priority:        50,
			CaseInsensitive: true,
		},
		{
			Name:        "mrn",
			Pattern:     `MRN[:\s#]+[A-Za-z0-9][A-Za-z0-9-]*`,
			Replacement: "MRN: [ANONYMIZED]",
			Priority:    60,
		},
		{
			Name:        "ssn",
			Pattern:     `\b\d{3}-\d{2}-\d{4}\b`,
			Replacement: "[SSN ANONYMIZED]",
			Priority:    70,
		},
		{
			Name:        "phone",
			Pattern:     `\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`,
			Replacement: "[PHONE ANONYMIZED]",
			Priority:    80,
		},
		{
			Name:        "email",
			Pattern:     `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
			Replacement: "[EMAIL ANONYMIZED]",
			Priority:    90,
		},
	}
}
