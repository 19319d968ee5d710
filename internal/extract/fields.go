package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	ageRe      = regexp.MustCompile(`(?i)Age[:\-]?\s*(\d+)`)
	bmiRe      = regexp.MustCompile(`(?i)BMI[:\-]?\s*([0-9]+\.?[0-9]*)`)
	gestAgeRe  = regexp.MustCompile(`(?i)GA[:\-]?\s*(\d+\s*weeks?\s*\d*\s*days?)`)
	findingsRe = regexp.MustCompile(`(?is)Examination Findings\s*(.*?)\s*Conclusion`)
)

// AgeExtractor extracts the patient age, e.g. "Age: 33".
type AgeExtractor struct{}

func (AgeExtractor) Field() string { return "age" }

func (AgeExtractor) Extract(text string) (any, bool) {
	m := ageRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	age, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, false
	}
	return age, true
}

func (AgeExtractor) Valid(value any) bool {
	age, ok := value.(int)
	return ok && age >= 0 && age <= 120
}

// BMIExtractor extracts the body mass index, e.g. "BMI: 28.4".
type BMIExtractor struct{}

func (BMIExtractor) Field() string { return "bmi" }

func (BMIExtractor) Extract(text string) (any, bool) {
	m := bmiRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	bmi, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil, false
	}
	return bmi, true
}

func (BMIExtractor) Valid(value any) bool {
	bmi, ok := value.(float64)
	return ok && bmi >= 0 && bmi <= 100
}

// GestationalAgeExtractor extracts spans like "GA: 43 weeks 1 day".
type GestationalAgeExtractor struct{}

func (GestationalAgeExtractor) Field() string { return "gestational_age" }

func (GestationalAgeExtractor) Extract(text string) (any, bool) {
	m := gestAgeRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return strings.TrimSpace(m[1]), true
}

func (GestationalAgeExtractor) Valid(value any) bool {
	ga, ok := value.(string)
	return ok && ga != ""
}

// FindingsExtractor extracts the free-text block between the "Examination
// Findings" heading and the "Conclusion" heading, one finding per line.
type FindingsExtractor struct{}

func (FindingsExtractor) Field() string { return "findings" }

func (FindingsExtractor) Extract(text string) (any, bool) {
	m := findingsRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}

	var findings []string
	for _, line := range strings.Split(m[1], "\n") {
		if line = strings.TrimSpace(line); line != "" {
			findings = append(findings, line)
		}
	}
	if len(findings) == 0 {
		return nil, false
	}
	return findings, true
}

func (FindingsExtractor) Valid(value any) bool {
	_, ok := value.([]string)
	return ok
}
