package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adventure-server/internal/domain"
)

func TestNormalizeRisk(t *testing.T) {
	tests := []struct {
		in   string
		want domain.RiskLevel
	}{
		{"high", domain.RiskHigh},
		{"High Risk", domain.RiskHigh},
		{"높음", domain.RiskHigh},
		{"상당한 위험이 따릅니다", domain.RiskHigh},
		{"medium", domain.RiskMedium},
		{"보통", domain.RiskMedium},
		{"low", domain.RiskLow},
		{"안전한 선택", domain.RiskLow},
		{"낮은", domain.RiskLow},
		{"", domain.RiskMedium},
		{"???", domain.RiskMedium},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeRisk(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeAlignment(t *testing.T) {
	tests := []struct {
		in   string
		want domain.MoralAlignment
	}{
		{"moral", domain.AlignmentMoral},
		{"Good", domain.AlignmentMoral},
		{"도덕적인 행동", domain.AlignmentMoral},
		{"immoral", domain.AlignmentImmoral},
		{"비도덕적", domain.AlignmentImmoral},
		{"나쁜 선택", domain.AlignmentImmoral},
		{"neutral", domain.AlignmentNeutral},
		{"중립", domain.AlignmentNeutral},
		{"", domain.AlignmentNeutral},
		{"unknown", domain.AlignmentNeutral},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeAlignment(tt.in), "input %q", tt.in)
	}
}

func TestDiversifyOptions_AllSameRisk(t *testing.T) {
	opts := map[string]domain.Option{
		"option1": {Text: "a", Risk: domain.RiskHigh, Alignment: domain.AlignmentMoral},
		"option2": {Text: "b", Risk: domain.RiskHigh, Alignment: domain.AlignmentNeutral},
		"option3": {Text: "c", Risk: domain.RiskHigh, Alignment: domain.AlignmentImmoral},
	}

	got := DiversifyOptions(opts)

	// Reassignment walks the sorted keys through low, medium, high.
	assert.Equal(t, domain.RiskLow, got["option1"].Risk)
	assert.Equal(t, domain.RiskMedium, got["option2"].Risk)
	assert.Equal(t, domain.RiskHigh, got["option3"].Risk)

	// Alignments were already distinct and stay put.
	assert.Equal(t, domain.AlignmentMoral, got["option1"].Alignment)
	assert.Equal(t, domain.AlignmentNeutral, got["option2"].Alignment)
	assert.Equal(t, domain.AlignmentImmoral, got["option3"].Alignment)
}

func TestDiversifyOptions_AllSameAlignment(t *testing.T) {
	opts := map[string]domain.Option{
		"option1": {Text: "a", Risk: domain.RiskLow, Alignment: domain.AlignmentNeutral},
		"option2": {Text: "b", Risk: domain.RiskMedium, Alignment: domain.AlignmentNeutral},
		"option3": {Text: "c", Risk: domain.RiskHigh, Alignment: domain.AlignmentNeutral},
	}

	got := DiversifyOptions(opts)

	assert.Equal(t, domain.AlignmentMoral, got["option1"].Alignment)
	assert.Equal(t, domain.AlignmentNeutral, got["option2"].Alignment)
	assert.Equal(t, domain.AlignmentImmoral, got["option3"].Alignment)
}

func TestDiversifyOptions_MixedSetUntouched(t *testing.T) {
	opts := map[string]domain.Option{
		"option1": {Text: "a", Risk: domain.RiskLow, Alignment: domain.AlignmentMoral},
		"option2": {Text: "b", Risk: domain.RiskMedium, Alignment: domain.AlignmentNeutral},
		"option3": {Text: "c", Risk: domain.RiskHigh, Alignment: domain.AlignmentNeutral},
	}

	got := DiversifyOptions(opts)
	assert.Equal(t, domain.RiskLow, got["option1"].Risk)
	assert.Equal(t, domain.RiskMedium, got["option2"].Risk)
	assert.Equal(t, domain.RiskHigh, got["option3"].Risk)
	assert.Equal(t, domain.AlignmentMoral, got["option1"].Alignment)
}

func TestDiversifyOptions_PartialOverlapUntouched(t *testing.T) {
	// Three of four options share a risk level, but one is already distinct;
	// the set has variety and nothing gets rewritten.
	opts := map[string]domain.Option{
		"option1": {Text: "a", Risk: domain.RiskHigh, Alignment: domain.AlignmentMoral},
		"option2": {Text: "b", Risk: domain.RiskHigh, Alignment: domain.AlignmentNeutral},
		"option3": {Text: "c", Risk: domain.RiskHigh, Alignment: domain.AlignmentImmoral},
		"option4": {Text: "d", Risk: domain.RiskLow, Alignment: domain.AlignmentNeutral},
	}

	got := DiversifyOptions(opts)
	assert.Equal(t, domain.RiskHigh, got["option1"].Risk)
	assert.Equal(t, domain.RiskHigh, got["option2"].Risk)
	assert.Equal(t, domain.RiskHigh, got["option3"].Risk)
	assert.Equal(t, domain.RiskLow, got["option4"].Risk)
}

func TestDiversifyOptions_TwoOptionsSkipped(t *testing.T) {
	opts := map[string]domain.Option{
		"option1": {Text: "a", Risk: domain.RiskHigh, Alignment: domain.AlignmentNeutral},
		"option2": {Text: "b", Risk: domain.RiskHigh, Alignment: domain.AlignmentNeutral},
	}
	got := DiversifyOptions(opts)
	assert.Equal(t, domain.RiskHigh, got["option1"].Risk)
	assert.Equal(t, domain.RiskHigh, got["option2"].Risk)
}

func TestNormalizeOptions_EndToEnd(t *testing.T) {
	opts := map[string]domain.Option{
		"option1": {Text: "sneak past", Risk: "상당한 위험", Alignment: "gibberish"},
		"option2": {Text: "talk it out", Risk: "pretty high", Alignment: ""},
		"option3": {Text: "charge in", Risk: "HIGH", Alignment: "???"},
	}

	got := NormalizeOptions(opts)
	require.Len(t, got, 3)

	// Every raw risk normalized to high, which trips diversification; every
	// raw alignment fell back to neutral, which trips it as well.
	assert.Equal(t, domain.RiskLow, got["option1"].Risk)
	assert.Equal(t, domain.RiskMedium, got["option2"].Risk)
	assert.Equal(t, domain.RiskHigh, got["option3"].Risk)
	assert.Equal(t, domain.AlignmentMoral, got["option1"].Alignment)
	assert.Equal(t, domain.AlignmentNeutral, got["option2"].Alignment)
	assert.Equal(t, domain.AlignmentImmoral, got["option3"].Alignment)

	assert.Equal(t, "sneak past", got["option1"].Text)
}
