package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const TEST_CASES = "test_cases"

// TestCase is one vulnerability test case document. Column names match the
// JSON field names so partial updates can be expressed directly as column
// maps. Optional scalars are pointers so absent and zero stay distinct.
type TestCase struct {
	DocID          string   `gorm:"column:doc_id;primaryKey" json:"doc_id"`
	VulnID         string   `gorm:"column:vuln_id;uniqueIndex:uniq_vuln_id" json:"vuln_id"`
	VulnName       string   `gorm:"column:vuln_name" json:"vuln_name"`
	Platform       string   `gorm:"column:platform;index" json:"platform"`
	AnalysisType   *string  `gorm:"column:analysis_type" json:"analysis_type,omitempty"`
	OwaspRef       *string  `gorm:"column:owasp_ref" json:"owasp_ref,omitempty"`
	Compliance     *string  `gorm:"column:compliance" json:"compliance,omitempty"`
	VulnAbstract   *string  `gorm:"column:vuln_abstract" json:"vuln_abstract,omitempty"`
	Description    *string  `gorm:"column:description" json:"description,omitempty"`
	Recommendation *string  `gorm:"column:recommendation" json:"recommendation,omitempty"`
	Example        *string  `gorm:"column:example" json:"example,omitempty"`
	CvssScore      *float64 `gorm:"column:cvss_score" json:"cvss_score,omitempty"`
	Automated      *bool    `gorm:"column:automated" json:"Automated,omitempty"`
}

func (TestCase) TableName() string {
	return TEST_CASES
}

// BeforeCreate assigns the store-owned document id, distinct from vuln_id.
func (t *TestCase) BeforeCreate(tx *gorm.DB) error {
	if t.DocID == "" {
		t.DocID = uuid.NewString()
	}
	return nil
}

// patchColumns maps updatable document field names to their columns.
// vuln_id is the lookup key and is never part of a patch.
var patchColumns = map[string]string{
	"vuln_name":      "vuln_name",
	"platform":       "platform",
	"analysis_type":  "analysis_type",
	"owasp_ref":      "owasp_ref",
	"compliance":     "compliance",
	"vuln_abstract":  "vuln_abstract",
	"description":    "description",
	"recommendation": "recommendation",
	"example":        "example",
	"cvss_score":     "cvss_score",
	"Automated":      "automated",
}

// PatchColumns converts a normalized patch keyed by document field names
// into a column map for an UPDATE.
func PatchColumns(patch map[string]any) map[string]any {
	cols := make(map[string]any, len(patch))
	for field, v := range patch {
		if col, ok := patchColumns[field]; ok {
			cols[col] = v
		}
	}
	return cols
}

// FromMap builds a TestCase from a normalized document map as produced by
// the schema validator.
func FromMap(doc map[string]any) TestCase {
	tc := TestCase{}
	if v, ok := doc["vuln_id"].(string); ok {
		tc.VulnID = v
	}
	if v, ok := doc["vuln_name"].(string); ok {
		tc.VulnName = v
	}
	if v, ok := doc["platform"].(string); ok {
		tc.Platform = v
	}
	tc.AnalysisType = optString(doc, "analysis_type")
	tc.OwaspRef = optString(doc, "owasp_ref")
	tc.Compliance = optString(doc, "compliance")
	tc.VulnAbstract = optString(doc, "vuln_abstract")
	tc.Description = optString(doc, "description")
	tc.Recommendation = optString(doc, "recommendation")
	tc.Example = optString(doc, "example")
	if v, ok := doc["cvss_score"].(float64); ok {
		tc.CvssScore = &v
	}
	if v, ok := doc["Automated"].(bool); ok {
		tc.Automated = &v
	}
	return tc
}

func optString(doc map[string]any, field string) *string {
	if v, ok := doc[field].(string); ok {
		return &v
	}
	return nil
}
