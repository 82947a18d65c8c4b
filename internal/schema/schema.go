// Package schema validates and normalizes raw test case documents before
// they reach storage. Validation is a set of pure per-field functions
// composed into record-level checks that accumulate field errors instead of
// stopping at the first failure.
package schema

import (
	"fmt"
	"strings"
)

// Platforms lists the canonical platform values. Input matching is
// case-insensitive and the canonical casing is what gets stored.
var Platforms = []string{"LLM", "web", "mobile", "API"}

var requiredFields = []string{"vuln_id", "vuln_name", "platform"}

// Optional free-text fields, in document order.
var optionalStringFields = []string{
	"analysis_type",
	"owasp_ref",
	"compliance",
	"vuln_abstract",
	"description",
	"recommendation",
	"example",
}

// FieldError is one validation failure on a named field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is an ordered list of field errors. It implements error so
// validation results can flow through normal error returns.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return strings.Join(parts, "; ")
}

// NormalizePlatform matches v case-insensitively against the platform enum
// and returns the canonical casing.
func NormalizePlatform(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("platform must be a string")
	}
	t := strings.TrimSpace(s)
	for _, p := range Platforms {
		if strings.EqualFold(t, p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("platform must be one of %v", Platforms)
}

// NormalizeAutomated accepts a boolean or a yes/no style string and returns
// the boolean it stands for.
func NormalizeAutomated(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "yes", "y", "true", "1":
			return true, nil
		case "no", "n", "false", "0":
			return false, nil
		}
	}
	return false, fmt.Errorf("Automated must be boolean or 'yes'/'no'")
}

func normalizeCVSS(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, fmt.Errorf("cvss_score must be a number between 0.0 and 10.0")
	}
	if f < 0.0 || f > 10.0 {
		return 0, fmt.Errorf("cvss_score must be a number between 0.0 and 10.0")
	}
	return f, nil
}

// validateFields type-checks and normalizes every known field present in
// raw, copying accepted values into doc. Unknown fields are dropped.
// Presence of required fields is the caller's concern.
func validateFields(raw map[string]any, doc map[string]any) Errors {
	var errs Errors

	for _, f := range []string{"vuln_id", "vuln_name"} {
		v, ok := raw[f]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			errs = append(errs, FieldError{Field: f, Message: "Not a valid string."})
			continue
		}
		if strings.TrimSpace(s) == "" {
			errs = append(errs, FieldError{Field: f, Message: "String must not be empty."})
			continue
		}
		doc[f] = s
	}

	if v, ok := raw["platform"]; ok && v != nil {
		p, err := NormalizePlatform(v)
		if err != nil {
			errs = append(errs, FieldError{Field: "platform", Message: err.Error()})
		} else {
			doc["platform"] = p
		}
	}

	for _, f := range optionalStringFields {
		v, ok := raw[f]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			errs = append(errs, FieldError{Field: f, Message: "Not a valid string."})
			continue
		}
		doc[f] = s
	}

	if v, ok := raw["cvss_score"]; ok && v != nil {
		f, err := normalizeCVSS(v)
		if err != nil {
			errs = append(errs, FieldError{Field: "cvss_score", Message: err.Error()})
		} else {
			doc["cvss_score"] = f
		}
	}

	if v, ok := raw["Automated"]; ok && v != nil {
		b, err := NormalizeAutomated(v)
		if err != nil {
			errs = append(errs, FieldError{Field: "Automated", Message: err.Error()})
		} else {
			doc["Automated"] = b
		}
	}

	return errs
}

// Validate checks a full record: required fields must be present and every
// supplied field must pass its type/range check. On success it returns the
// normalized document containing only known fields.
func Validate(raw map[string]any) (map[string]any, error) {
	doc := make(map[string]any, len(raw))
	var errs Errors

	for _, f := range requiredFields {
		if v, ok := raw[f]; !ok || v == nil {
			errs = append(errs, FieldError{Field: f, Message: "Missing data for required field."})
		}
	}

	errs = append(errs, validateFields(raw, doc)...)

	if len(errs) > 0 {
		return nil, errs
	}
	return doc, nil
}

// ValidatePatch checks a partial update. Only vuln_id is required; every
// other supplied field is validated by the same per-field rules as a full
// record. The returned patch map never contains vuln_id.
func ValidatePatch(raw map[string]any) (string, map[string]any, error) {
	id, ok := raw["vuln_id"].(string)
	if !ok || strings.TrimSpace(id) == "" {
		return "", nil, Errors{{Field: "vuln_id", Message: "Missing data for required field."}}
	}

	patch := make(map[string]any, len(raw))
	errs := validateFields(raw, patch)
	delete(patch, "vuln_id")

	if len(errs) > 0 {
		return "", nil, errs
	}
	return id, patch, nil
}

// ValidateBatch validates each element independently and fails the whole
// batch if any element fails, keying errors by element index. Nothing is
// returned for a batch with any invalid element, so callers can never write
// a partial batch.
func ValidateBatch(items []map[string]any) ([]map[string]any, error) {
	docs := make([]map[string]any, 0, len(items))
	var errs Errors
	for i, item := range items {
		doc, err := Validate(item)
		if err != nil {
			ferrs, _ := err.(Errors)
			for _, fe := range ferrs {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("test_cases[%d].%s", i, fe.Field),
					Message: fe.Message,
				})
			}
			continue
		}
		docs = append(docs, doc)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return docs, nil
}
