package core

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/huangsam/kernscore/internal/contract"
	"github.com/huangsam/kernscore/schema"
)

// summaryListSize is the length of the top and bottom commit lists.
const summaryListSize = 10

// scoreBucket is one band of the score distribution.
type scoreBucket struct {
	name string
	min  int
}

// scoreBuckets are ordered from the highest band down.
var scoreBuckets = []scoreBucket{
	{"90_100_exceptional", 90},
	{"70_89_high", 70},
	{"50_69_medium", 50},
	{"30_49_low", 30},
	{"10_29_minimal", 10},
	{"0_9_trivial", math.MinInt},
}

// ScoreBucket returns the distribution band of a total score.
func ScoreBucket(score int) string {
	for _, b := range scoreBuckets {
		if score >= b.min {
			return b.name
		}
	}
	return scoreBuckets[len(scoreBuckets)-1].name
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// GenerateSummary aggregates the scored commits of a version range.
func GenerateSummary(commits []schema.ScoredCommit, versionRange, companyFilter string) schema.Summary {
	s := schema.Summary{
		VersionRange:      versionRange,
		CompanyFilter:     companyFilter,
		TotalCommits:      len(commits),
		ScoreDistribution: map[string]int{},
		DimensionAverages: map[string]float64{},
		ByCategory:        map[string]schema.CountScore{},
		BySubsystem:       map[string]schema.CountScore{},
		ByTier:            map[string]schema.CountScore{},
		TopCommits:        []string{},
		BottomCommits:     []string{},
		FlagsSummary:      map[string]int{},
		FailuresByKind:    map[schema.ErrorKind]int{},
	}
	for _, b := range scoreBuckets {
		s.ScoreDistribution[b.name] = 0
	}
	if len(commits) == 0 {
		return s
	}

	var technical, impact, quality, community int
	for _, c := range commits {
		s.TotalScore += c.ScoreTotal
		s.ScoreDistribution[ScoreBucket(c.ScoreTotal)]++
		technical += c.ScoreTechnical
		impact += c.ScoreImpact
		quality += c.ScoreQuality
		community += c.ScoreCommunity
		addCountScore(s.ByCategory, c.PrimaryCategory, c.ScoreTotal)
		addCountScore(s.BySubsystem, c.SubsystemPrefix, c.ScoreTotal)
		addCountScore(s.ByTier, strconv.Itoa(c.SubsystemTier), c.ScoreTotal)
		for _, f := range c.Flags {
			s.FlagsSummary[f]++
		}
		if c.ErrorKind.Failed() {
			s.FailedCommits++
			s.FailuresByKind[c.ErrorKind]++
		}
	}

	n := float64(len(commits))
	s.AverageScore = round2(float64(s.TotalScore) / n)
	s.DimensionAverages[TechnicalDimension] = round2(float64(technical) / n)
	s.DimensionAverages[ImpactDimension] = round2(float64(impact) / n)
	s.DimensionAverages[QualityDimension] = round2(float64(quality) / n)
	s.DimensionAverages[CommunityDimension] = round2(float64(community) / n)
	finishAverages(s.ByCategory)
	finishAverages(s.BySubsystem)
	finishAverages(s.ByTier)

	ranked := RankByScore(commits)
	for _, c := range ranked[:min(summaryListSize, len(ranked))] {
		s.TopCommits = append(s.TopCommits, summaryLine(c))
	}
	for _, c := range ranked[max(0, len(ranked)-summaryListSize):] {
		s.BottomCommits = append(s.BottomCommits, summaryLine(c))
	}
	return s
}

// RankByScore returns a copy of commits ordered by total score, highest first.
// Equal scores keep their input order.
func RankByScore(commits []schema.ScoredCommit) []schema.ScoredCommit {
	ranked := slices.Clone(commits)
	slices.SortStableFunc(ranked, func(a, b schema.ScoredCommit) int {
		return cmp.Compare(b.ScoreTotal, a.ScoreTotal)
	})
	return ranked
}

func summaryLine(c schema.ScoredCommit) string {
	return fmt.Sprintf("%s: %s... (score: %d)", c.ShortHash, contract.Truncate(c.Subject, 50), c.ScoreTotal)
}

func addCountScore(m map[string]schema.CountScore, key string, score int) {
	cs := m[key]
	cs.Count++
	cs.TotalScore += score
	m[key] = cs
}

func finishAverages(m map[string]schema.CountScore) {
	for k, cs := range m {
		cs.AvgScore = round2(float64(cs.TotalScore) / float64(cs.Count))
		m[k] = cs
	}
}

// GenerateCompanySummary aggregates scored commits per author company.
func GenerateCompanySummary(commits []schema.ScoredCommit, versionRange string) schema.CompanySummary {
	stats := map[string]schema.CompanyStats{}
	for _, c := range commits {
		st, ok := stats[c.AuthorCompany]
		if !ok {
			st.Categories = map[string]int{}
		}
		st.CommitCount++
		st.TotalScore += c.ScoreTotal
		st.Categories[c.PrimaryCategory]++
		stats[c.AuthorCompany] = st
	}

	byCommits := make([]schema.CompanyRank, 0, len(stats))
	byScore := make([]schema.CompanyRank, 0, len(stats))
	for name, st := range stats {
		st.AvgScore = round2(float64(st.TotalScore) / float64(st.CommitCount))
		stats[name] = st
		byCommits = append(byCommits, schema.CompanyRank{Company: name, Value: st.CommitCount})
		byScore = append(byScore, schema.CompanyRank{Company: name, Value: st.TotalScore})
	}
	sortRanks(byCommits)
	sortRanks(byScore)

	return schema.CompanySummary{
		VersionRange:          versionRange,
		TotalCommits:          len(commits),
		Companies:             stats,
		TopCompaniesByCommits: byCommits,
		TopCompaniesByScore:   byScore,
	}
}

func sortRanks(ranks []schema.CompanyRank) {
	slices.SortFunc(ranks, func(a, b schema.CompanyRank) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Company, b.Company)
	})
}
