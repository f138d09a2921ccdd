package core

import (
	"slices"

	"github.com/huangsam/kernscore/schema"
)

// IsValidAnalysis reports whether an analysis carries all four dimensions,
// each with a subtotal, and at least one positive subtotal.
func IsValidAnalysis(a schema.Analysis) bool {
	breakdown := asObject(a["score_breakdown"])
	if breakdown == nil {
		return false
	}
	positive := false
	for _, dim := range Dimensions {
		obj := asObject(breakdown[dim])
		if obj == nil {
			return false
		}
		subtotal, ok := obj["subtotal"]
		if !ok {
			return false
		}
		if f, ok := toNumber(subtotal); ok && f > 0 {
			positive = true
		}
	}
	return positive
}

// FallbackAnalysis is the deterministic analysis used when the oracle fails.
// All scores are zero; the classification fields are derived from the commit.
func FallbackAnalysis(commit *schema.RawCommit, kind schema.ErrorKind) schema.Analysis {
	prefix, touched := Subsystems(commit.Files)
	breakdown := map[string]any{}
	for _, dim := range Dimensions {
		breakdown[dim] = map[string]any{"subtotal": 0, "details": ""}
	}
	for l := range leafCount {
		breakdown[l.Dimension()].(map[string]any)[l.Name()] = 0
	}
	return schema.Analysis{
		"primary_category":     schema.FailedCategory,
		"secondary_categories": []any{},
		"cve_ids":              toAnyList(ExtractCVEIDs(commit.Subject + " " + commit.Body)),
		"fixes_tag":            ExtractFixesTag(commit.Body),
		"cc_stable":            IsCCStable(commit.Body),
		"subsystem_prefix":     prefix,
		"subsystems_touched":   toAnyList(touched),
		"subsystem_tier":       SubsystemTier(commit.Files),
		"score_breakdown":      breakdown,
		"reasoning":            "Agent analysis failed: " + string(kind),
		"flags":                []any{schema.AgentErrorFlag, kind.Flag()},
	}
}

func toAnyList(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

// BuildScoredCommit assembles the persisted record for a commit from its
// analysis. Scores always come from Normalize. Classification fields missing
// from the analysis are derived from the commit itself.
func BuildScoredCommit(commit *schema.RawCommit, a schema.Analysis, kind schema.ErrorKind, snippet string) schema.ScoredCommit {
	norm := Normalize(a)
	prefix, touched := Subsystems(commit.Files)
	derivedTier := SubsystemTier(commit.Files)

	flags, _ := stringList(a, "flags")
	flags = slices.Clone(flags)
	if flags == nil {
		flags = []string{}
	}
	if kind.Failed() && !slices.Contains(flags, kind.Flag()) {
		flags = append(flags, kind.Flag())
	}

	tier := derivedTier
	if t, ok := oracleTier(a["subsystem_tier"]); ok {
		tier = t
		if t != derivedTier && !kind.Failed() && !slices.Contains(flags, schema.TierMismatch) {
			flags = append(flags, schema.TierMismatch)
		}
	}

	secondary, ok := stringList(a, "secondary_categories")
	if !ok {
		secondary = []string{}
	}
	cves, ok := stringList(a, "cve_ids")
	if !ok {
		cves = ExtractCVEIDs(commit.Subject + " " + commit.Body)
	}
	if subs, ok := stringList(a, "subsystems_touched"); ok {
		touched = subs
	}
	fixes, ok := a["fixes_tag"].(string)
	if !ok {
		fixes = ExtractFixesTag(commit.Body)
	}
	ccStable, ok := a["cc_stable"].(bool)
	if !ok {
		ccStable = IsCCStable(commit.Body)
	}

	justification := stringField(a, "reasoning", "")
	if justification == "" {
		justification = stringField(a, "score_justification", "")
	}

	return schema.ScoredCommit{
		CommitHash:          commit.Hash,
		ShortHash:           commit.ShortHash(),
		AuthorName:          commit.AuthorName,
		AuthorEmail:         commit.AuthorEmail,
		AuthorCompany:       ExtractCompany(commit.AuthorEmail),
		AuthorDate:          commit.AuthorDate,
		CommitterName:       commit.CommitterName,
		CommitterEmail:      commit.CommitterEmail,
		CommitterCompany:    ExtractCompany(commit.CommitterEmail),
		CommitDate:          commit.CommitDate,
		Subject:             commit.Subject,
		PrimaryCategory:     stringField(a, "primary_category", schema.UnknownCategory),
		SecondaryCategories: secondary,
		CVEIDs:              cves,
		FixesTag:            fixes,
		CCStable:            ccStable,
		SubsystemPrefix:     stringField(a, "subsystem_prefix", prefix),
		SubsystemsTouched:   touched,
		SubsystemTier:       tier,
		FilesChanged:        commit.FilesChanged,
		Insertions:          commit.Insertions,
		Deletions:           commit.Deletions,
		Hunks:               commit.Hunks,
		ReviewChain:         ParseReviewChain(commit.Body),
		ScoreTotal:          norm.Total,
		ScoreTechnical:      norm.Breakdown.Technical.Subtotal,
		ScoreImpact:         norm.Breakdown.Impact.Subtotal,
		ScoreQuality:        norm.Breakdown.Quality.Subtotal,
		ScoreCommunity:      norm.Breakdown.Community.Subtotal,
		ScoreBreakdown:      norm.Breakdown,
		ScoreJustification:  justification,
		CodeSnippet:         snippet,
		Flags:               flags,
		Link:                LoreLink(commit.Hash),
		ErrorKind:           kind,
	}
}

// oracleTier accepts an integral tier in [1, 6].
func oracleTier(v any) (int, bool) {
	f, ok := toNumber(v)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	t := int(f)
	if t < MostCriticalTier || t > LeastCriticalTier {
		return 0, false
	}
	return t, true
}
