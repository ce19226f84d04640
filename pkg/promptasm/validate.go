package promptasm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/zlbkkk/cloudimpact/pkg/model"
)

// replySchema is the fixed JSON Schema LLM replies are validated against.
// It only constrains the required-field surface; unknown fields are
// tolerated (discarded on decode, never rejected here).
const replySchema = `{
	"type": "object",
	"required": ["risk_level", "change_intent", "functional_impact"],
	"properties": {
		"risk_level": {"type": "string"},
		"change_intent": {"type": "string"},
		"downstream_dependency": {"type": "array"},
		"cross_service_impact": {"type": "array"},
		"functional_impact": {"type": "string"},
		"test_strategy": {"type": "array", "items": {"type": "string"}}
	}
}`

// replyFields mirrors the subset of AnalysisReport the LLM is asked to
// produce; downstream_dependency/cross_service_impact are re-populated by
// the orchestrator from C2/C3's own output rather than trusted from the
// model, so only the narrative fields are decoded here.
type replyFields struct {
	RiskLevel        string   `json:"risk_level"`
	ChangeIntent     string   `json:"change_intent"`
	FunctionalImpact string   `json:"functional_impact"`
	TestStrategy     []string `json:"test_strategy"`
}

var schemaLoader = gojsonschema.NewStringLoader(replySchema)

// ValidateReply checks raw against the fixed AnalysisReport schema. On
// success it returns the decoded narrative fields and a nil error;
// schema violations are returned as a non-nil error whose message is
// suitable for use in RetryMessages.
func ValidateReply(raw []byte) (*replyFields, error) {
	documentLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("%w: promptasm: reply is not valid JSON: %w", model.ErrLLM, err)
	}

	if !result.Valid() {
		reasons := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			reasons = append(reasons, e.String())
		}

		return nil, fmt.Errorf("%w: promptasm: reply failed schema validation: %s", model.ErrLLM, strings.Join(reasons, "; "))
	}

	// Unknown fields are discarded by plain json.Unmarshal; DisallowUnknownFields
	// is deliberately not used -- unknown fields are discarded, not rejected.
	var fields replyFields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: promptasm: decode reply: %w", model.ErrLLM, err)
	}

	return &fields, nil
}

// MergeReport builds the final AnalysisReport for one file, combining the
// LLM's narrative fields with the engine's own downstream/cross-project
// findings.
func MergeReport(taskID, projectName, fileName, diff string, fields *replyFields,
	downstream, crossProject []model.Impact, state model.ValidationState,
) model.AnalysisReport {
	report := model.AnalysisReport{
		TaskID:               taskID,
		ProjectName:          projectName,
		FileName:             fileName,
		DiffContent:          diff,
		DownstreamDependency: downstream,
		CrossServiceImpact:   crossProject,
		ValidationState:      state,
	}

	if fields != nil {
		report.RiskLevel = fields.RiskLevel
		report.ChangeIntent = fields.ChangeIntent
		report.FunctionalImpact = fields.FunctionalImpact
		report.TestStrategy = fields.TestStrategy
	}

	return report
}
