package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/huangsam/kernscore/schema"
)

// ScoreComponents holds the clamped value of every rubric leaf.
type ScoreComponents [leafCount]int

// Get returns the value of one leaf.
func (c ScoreComponents) Get(l Leaf) int { return c[l] }

// Subtotal sums the leaves of one dimension.
func (c ScoreComponents) Subtotal(dimension string) int {
	sum := 0
	for l := range leafCount {
		if l.Dimension() == dimension {
			sum += c[l]
		}
	}
	return sum
}

// Total sums all fourteen leaves.
func (c ScoreComponents) Total() int {
	sum := 0
	for _, v := range c {
		sum += v
	}
	return sum
}

// Normalized is the trusted result of normalizing an oracle analysis.
type Normalized struct {
	Components ScoreComponents
	Breakdown  schema.ScoreBreakdown
	Total      int
}

// Normalize clamps every leaf of an analysis into its range, applies the
// category caps of its primary_category and recomputes subtotals and total.
// Subtotals and totals reported by the oracle are ignored.
func Normalize(a schema.Analysis) Normalized {
	breakdown := asObject(a["score_breakdown"])

	var c ScoreComponents
	for l := range leafCount {
		dim := asObject(breakdown[l.Dimension()])
		c[l] = clamp(toInt(dim[l.Name()]), l.Min(), l.Max())
	}
	if caps, ok := categoryCaps(stringField(a, "primary_category", "")); ok {
		for l := range leafCount {
			c[l] = min(c[l], caps[l])
		}
	}

	details := func(dim string) string {
		s, _ := asObject(breakdown[dim])["details"].(string)
		return s
	}
	bd := schema.ScoreBreakdown{
		Technical: schema.TechnicalScore{
			CodeVolume:           c[CodeVolume],
			SubsystemCriticality: c[SubsystemCriticality],
			CrossSubsystem:       c[CrossSubsystem],
			Subtotal:             c.Subtotal(TechnicalDimension),
			Details:              details(TechnicalDimension),
		},
		Impact: schema.ImpactScore{
			CategoryBase: c[CategoryBase],
			StableLTS:    c[StableLTS],
			UserImpact:   c[UserImpact],
			Novelty:      c[Novelty],
			Subtotal:     c.Subtotal(ImpactDimension),
			Details:      details(ImpactDimension),
		},
		Quality: schema.QualityScore{
			ReviewChain:    c[ReviewChain],
			MessageQuality: c[MessageQuality],
			Testing:        c[Testing],
			Atomicity:      c[Atomicity],
			Subtotal:       c.Subtotal(QualityDimension),
			Details:        details(QualityDimension),
		},
		Community: schema.CommunityScore{
			CrossOrg:   c[CrossOrg],
			Maintainer: c[Maintainer],
			Response:   c[Response],
			Subtotal:   c.Subtotal(CommunityDimension),
			Details:    details(CommunityDimension),
		},
	}
	return Normalized{Components: c, Breakdown: bd, Total: bd.Total()}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// asObject returns v as a JSON object, or nil.
func asObject(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case schema.Analysis:
		return m
	}
	return nil
}

// toNumber reads a JSON number, a numeric string or a Go number.
func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toInt converts a loosely-typed value to an int, rounding half away from zero.
// Anything unreadable is 0.
func toInt(v any) int {
	f, ok := toNumber(v)
	if !ok {
		return 0
	}
	const limit = 1 << 30
	return int(math.Round(max(-limit, min(limit, f))))
}

// stringField returns a[key] when it is a non-empty string.
func stringField(a map[string]any, key, def string) string {
	if s, ok := a[key].(string); ok && s != "" {
		return s
	}
	return def
}

// stringList returns a[key] as a list of strings and whether the key held a list.
func stringList(a map[string]any, key string) ([]string, bool) {
	raw, ok := a[key].([]any)
	if !ok {
		if list, ok := a[key].([]string); ok {
			return list, true
		}
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}
