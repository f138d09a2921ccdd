package core

import "strings"

// Leaf identifies one of the fourteen scored rubric components.
type Leaf int

// Rubric leaves, grouped by dimension.
const (
	CodeVolume Leaf = iota
	SubsystemCriticality
	CrossSubsystem
	CategoryBase
	StableLTS
	UserImpact
	Novelty
	ReviewChain
	MessageQuality
	Testing
	Atomicity
	CrossOrg
	Maintainer
	Response
	leafCount
)

// Dimension names as they appear in score_breakdown.
const (
	TechnicalDimension = "technical"
	ImpactDimension    = "impact"
	QualityDimension   = "quality"
	CommunityDimension = "community"
)

// Dimensions lists the four required score_breakdown keys.
var Dimensions = []string{TechnicalDimension, ImpactDimension, QualityDimension, CommunityDimension}

type leafSpec struct {
	name      string
	dimension string
	max       int
}

var leafSpecs = [leafCount]leafSpec{
	CodeVolume:           {"code_volume", TechnicalDimension, 20},
	SubsystemCriticality: {"subsystem_criticality", TechnicalDimension, 10},
	CrossSubsystem:       {"cross_subsystem", TechnicalDimension, 10},
	CategoryBase:         {"category_base", ImpactDimension, 15},
	StableLTS:            {"stable_lts", ImpactDimension, 5},
	UserImpact:           {"user_impact", ImpactDimension, 5},
	Novelty:              {"novelty", ImpactDimension, 5},
	ReviewChain:          {"review_chain", QualityDimension, 8},
	MessageQuality:       {"message_quality", QualityDimension, 6},
	Testing:              {"testing", QualityDimension, 4},
	Atomicity:            {"atomicity", QualityDimension, 2},
	CrossOrg:             {"cross_org", CommunityDimension, 4},
	Maintainer:           {"maintainer", CommunityDimension, 3},
	Response:             {"response", CommunityDimension, 3},
}

// Name returns the JSON key of the leaf.
func (l Leaf) Name() string { return leafSpecs[l].name }

// Dimension returns the score_breakdown dimension holding the leaf.
func (l Leaf) Dimension() string { return leafSpecs[l].dimension }

// Min returns the lower bound of the leaf range.
func (l Leaf) Min() int { return 0 }

// Max returns the upper bound of the leaf range.
func (l Leaf) Max() int { return leafSpecs[l].max }

// AllLeaves returns every leaf in rubric order.
func AllLeaves() []Leaf {
	leaves := make([]Leaf, leafCount)
	for i := range leaves {
		leaves[i] = Leaf(i)
	}
	return leaves
}

// Category cap ceilings, applied after range clamping.
var (
	trivialCaps = ScoreComponents{
		CodeVolume: 1, SubsystemCriticality: 1, CrossSubsystem: 0,
		CategoryBase: 0, StableLTS: 0, UserImpact: 0, Novelty: 0,
		ReviewChain: 1, MessageQuality: 1, Testing: 0, Atomicity: 1,
		CrossOrg: 0, Maintainer: 0, Response: 0,
	}
	lowMaintenanceCaps = ScoreComponents{
		CodeVolume: 3, SubsystemCriticality: 4, CrossSubsystem: 0,
		CategoryBase: 3, StableLTS: 0, UserImpact: 1, Novelty: 0,
		ReviewChain: 3, MessageQuality: 3, Testing: 0, Atomicity: 2,
		CrossOrg: 2, Maintainer: 2, Response: 0,
	}
)

// Category cap limits on the grand total.
const (
	TrivialTotalCap        = 5
	LowMaintenanceTotalCap = 23
)

// categoryCaps returns the ceilings applying to a primary category, if any.
func categoryCaps(category string) (ScoreComponents, bool) {
	switch {
	case strings.HasPrefix(category, "TRIV-"):
		return trivialCaps, true
	case category == "MAINT-WARN" || category == "MAINT-NAMING":
		return lowMaintenanceCaps, true
	}
	return ScoreComponents{}, false
}
