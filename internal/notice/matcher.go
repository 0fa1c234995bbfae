package notice

import (
	"strings"

	"notice-push/internal/models"
)

const (
	upkindDog = "417000"
	upkindCat = "422400"
)

// Candidate is a notice reduced to the four matchable dimensions.
type Candidate struct {
	RegionCode   string
	SpeciesCode  string
	SexCode      string
	SizeCategory string
}

// Profile is a normalized interest profile. An empty set on a dimension is a
// wildcard.
type Profile struct {
	UserID  string
	Regions map[string]struct{}
	Species map[string]struct{}
	Sexes   map[string]struct{}
	Sizes   map[string]struct{}
}

// NormalizeSpecies maps upstream kind codes to species names.
func NormalizeSpecies(code string) string {
	code = strings.TrimSpace(code)
	switch code {
	case upkindDog:
		return "dog"
	case upkindCat:
		return "cat"
	}
	return strings.ToLower(code)
}

// NewCandidate builds the matching view of a notice. Region prefers uprCd over
// orgCd; species prefers the normalized upkind over kindCd.
func NewCandidate(n models.Notice) Candidate {
	region := strings.TrimSpace(n.UprCd)
	if region == "" {
		region = strings.TrimSpace(n.OrgCd)
	}

	species := NormalizeSpecies(n.Upkind)
	if species == "" {
		species = strings.ToLower(strings.TrimSpace(n.KindCd))
	}

	return Candidate{
		RegionCode:   strings.ToLower(region),
		SpeciesCode:  species,
		SexCode:      strings.ToLower(strings.TrimSpace(n.SexCd)),
		SizeCategory: strings.ToLower(strings.TrimSpace(n.SizeCategory)),
	}
}

func toSet(values []string, normalize func(string) string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		set[normalize(v)] = struct{}{}
	}
	return set
}

// NewProfile trims, drops blanks and lower-cases every member. Species members
// go through NormalizeSpecies so stored kind codes and names compare equal.
func NewProfile(row models.InterestProfileRow) Profile {
	return Profile{
		UserID:  row.UserID,
		Regions: toSet(row.Regions, strings.ToLower),
		Species: toSet(row.Species, NormalizeSpecies),
		Sexes:   toSet(row.Sexes, strings.ToLower),
		Sizes:   toSet(row.Sizes, strings.ToLower),
	}
}

// WildcardProfile matches every candidate.
func WildcardProfile(userID string) Profile {
	return Profile{UserID: userID}
}

func dimensionMatches(set map[string]struct{}, value string) bool {
	if len(set) == 0 {
		return true
	}
	_, ok := set[value]
	return ok
}

// Matches reports whether c satisfies every dimension of p.
func Matches(p Profile, c Candidate) bool {
	return dimensionMatches(p.Regions, c.RegionCode) &&
		dimensionMatches(p.Species, c.SpeciesCode) &&
		dimensionMatches(p.Sexes, c.SexCode) &&
		dimensionMatches(p.Sizes, c.SizeCategory)
}
