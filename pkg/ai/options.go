package ai

import (
	"sort"
	"strings"

	"adventure-server/internal/domain"
)

// Risk and alignment keywords the models actually emit, in English and
// Korean. Matching is substring based because replies often embed the level
// in a longer phrase ("상당한 위험이 따릅니다").
var (
	highRiskWords   = []string{"high", "높음", "높은", "상당한", "큰 위험", "위험한"}
	mediumRiskWords = []string{"medium", "moderate", "중간", "보통", "적당한"}
	lowRiskWords    = []string{"low", "safe", "낮음", "낮은", "적은", "안전한"}

	moralWords   = []string{"moral", "good", "선한", "도덕적", "윤리적", "착한"}
	immoralWords = []string{"immoral", "evil", "악한", "비도덕적", "나쁜"}
	neutralWords = []string{"neutral", "중립"}
)

// NormalizeRisk maps a free-form risk label onto one of the three levels.
// Unknown labels default to medium.
func NormalizeRisk(raw string) domain.RiskLevel {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case containsAny(s, highRiskWords):
		return domain.RiskHigh
	case containsAny(s, lowRiskWords):
		return domain.RiskLow
	case containsAny(s, mediumRiskWords):
		return domain.RiskMedium
	default:
		return domain.RiskMedium
	}
}

// NormalizeAlignment maps a free-form alignment label onto moral, immoral
// or neutral. Unknown labels default to neutral.
func NormalizeAlignment(raw string) domain.MoralAlignment {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case containsAny(s, immoralWords):
		return domain.AlignmentImmoral
	case containsAny(s, moralWords):
		return domain.AlignmentMoral
	case containsAny(s, neutralWords):
		return domain.AlignmentNeutral
	default:
		return domain.AlignmentNeutral
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// NormalizeOptions rewrites every option's risk and alignment to canonical
// values and then spreads them out when the set is too uniform.
func NormalizeOptions(options map[string]domain.Option) map[string]domain.Option {
	out := make(map[string]domain.Option, len(options))
	for k, opt := range options {
		opt.Risk = NormalizeRisk(string(opt.Risk))
		opt.Alignment = NormalizeAlignment(string(opt.Alignment))
		out[k] = opt
	}
	return DiversifyOptions(out)
}

var (
	riskCycle  = []domain.RiskLevel{domain.RiskLow, domain.RiskMedium, domain.RiskHigh}
	alignCycle = []domain.MoralAlignment{domain.AlignmentMoral, domain.AlignmentNeutral, domain.AlignmentImmoral}
)

// DiversifyOptions reassigns risk levels round-robin when every option
// shares the same level, and likewise for alignment. A set that already has
// any variety is left alone. Assignment order follows the sorted option keys
// so the result is deterministic.
func DiversifyOptions(options map[string]domain.Option) map[string]domain.Option {
	if len(options) < 3 {
		return options
	}

	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	riskCounts := map[domain.RiskLevel]int{}
	alignCounts := map[domain.MoralAlignment]int{}
	for _, opt := range options {
		riskCounts[opt.Risk]++
		alignCounts[opt.Alignment]++
	}

	if maxCount(riskCounts) == len(options) {
		for i, k := range keys {
			opt := options[k]
			opt.Risk = riskCycle[i%len(riskCycle)]
			options[k] = opt
		}
	}
	if maxCount(alignCounts) == len(options) {
		for i, k := range keys {
			opt := options[k]
			opt.Alignment = alignCycle[i%len(alignCycle)]
			options[k] = opt
		}
	}
	return options
}

func maxCount[K comparable](counts map[K]int) int {
	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	return max
}
