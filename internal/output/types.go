package output

// MetadataRecord is one de-identified document's structured metadata. The
// patient identifier is always the vault pseudonym, never the source
// identifier. Optional clinical fields are pointers so absent values stay
// absent in both JSON and parquet output.
type MetadataRecord struct {
	PatientID      string   `json:"patient_id" parquet:"patient_id"`
	Age            *int32   `json:"age,omitempty" parquet:"age,optional"`
	BMI            *float64 `json:"bmi,omitempty" parquet:"bmi,optional"`
	GestationalAge *string  `json:"gestational_age,omitempty" parquet:"gestational_age,optional"`
	Findings       []string `json:"findings,omitempty" parquet:"findings,list"`
}

// NewMetadataRecord builds a record from the extractor's field map, keyed by
// the vault pseudonym. Unknown fields are ignored.
func NewMetadataRecord(pseudonymID string, fields map[string]any) MetadataRecord {
	rec := MetadataRecord{PatientID: pseudonymID}

	if v, ok := fields["age"].(int); ok {
		age := int32(v)
		rec.Age = &age
	}
	if v, ok := fields["bmi"].(float64); ok {
		bmi := v
		rec.BMI = &bmi
	}
	if v, ok := fields["gestational_age"].(string); ok {
		ga := v
		rec.GestationalAge = &ga
	}
	if v, ok := fields["findings"].([]string); ok {
		rec.Findings = v
	}

	return rec
}
