package promptasm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlbkkk/cloudimpact/pkg/model"
	"github.com/zlbkkk/cloudimpact/pkg/promptasm"
)

func TestValidateReplyAcceptsWellShapedJSON(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"risk_level": "high",
		"change_intent": "modified point accrual logic",
		"functional_impact": "point totals may change for in-flight orders",
		"test_strategy": ["rerun PointManagerTest", "smoke test billing-service"],
		"unexpected_extra_field": "ignored"
	}`)

	fields, err := promptasm.ValidateReply(raw)
	require.NoError(t, err)
	assert.Equal(t, "high", fields.RiskLevel)
	assert.Len(t, fields.TestStrategy, 2)
}

func TestValidateReplyRejectsMissingRequiredField(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"risk_level": "low"}`)

	_, err := promptasm.ValidateReply(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrLLM)
}

func TestValidateReplyRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	_, err := promptasm.ValidateReply([]byte(`not json`))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrLLM)
}

func TestMergeReportCarriesValidationState(t *testing.T) {
	t.Parallel()

	fields, err := promptasm.ValidateReply([]byte(`{
		"risk_level": "medium",
		"change_intent": "x",
		"functional_impact": "y"
	}`))
	require.NoError(t, err)

	report := promptasm.MergeReport("task-1", "main", "Point.java", "diff", fields,
		[]model.Impact{{Project: "main", File: "Point.java", Line: 1}}, nil, model.ValidationOK)

	assert.Equal(t, "medium", report.RiskLevel)
	assert.Equal(t, model.ValidationOK, report.ValidationState)
	assert.Len(t, report.DownstreamDependency, 1)
}
