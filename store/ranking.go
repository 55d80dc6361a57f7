package store

import (
	"slices"

	"forgeboard/models"
)

// PodiumSize is the number of ideas shown on the podium.
const PodiumSize = 3

type RankedIdea struct {
	Rank int `json:"rank"`
	models.Idea
}

// Ranking is a filtered, vote-ordered view split into podium and listing.
type Ranking struct {
	Filter  models.Category `json:"filter"`
	Podium  []RankedIdea    `json:"podium"`
	Listing []RankedIdea    `json:"listing"`
	Total   int             `json:"total"`
}

// Rank filters ideas by category (CategoryAll keeps everything), orders them by votes
// descending and assigns contiguous ranks from 1. Ties keep their order in ideas. The input
// slice is not modified.
func Rank(ideas []models.Idea, filter models.Category) Ranking {
	if filter == "" {
		filter = models.CategoryAll
	}

	filtered := make([]models.Idea, 0, len(ideas))
	for _, idea := range ideas {
		if filter == models.CategoryAll || idea.Category == filter {
			filtered = append(filtered, idea)
		}
	}

	slices.SortStableFunc(filtered, func(a, b models.Idea) int {
		return b.Votes - a.Votes
	})

	r := Ranking{Filter: filter, Total: len(filtered), Podium: []RankedIdea{}, Listing: []RankedIdea{}}
	for i, idea := range filtered {
		ranked := RankedIdea{Rank: i + 1, Idea: idea}
		if i < PodiumSize {
			r.Podium = append(r.Podium, ranked)
		} else {
			r.Listing = append(r.Listing, ranked)
		}
	}
	return r
}

// All returns podium and listing as one ordered slice.
func (r Ranking) All() []RankedIdea {
	out := make([]RankedIdea, 0, r.Total)
	out = append(out, r.Podium...)
	return append(out, r.Listing...)
}
