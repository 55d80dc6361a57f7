package store

import "forgeboard/models"

type CategoryCount struct {
	Category models.Category `json:"category"`
	Count    int             `json:"count"`
	// Percent is the share of all ideas, rounded to whole percent.
	Percent int `json:"percent"`
}

type StatusCount struct {
	Status models.Status `json:"status"`
	Count  int           `json:"count"`
}

type Analytics struct {
	Categories []CategoryCount `json:"categories"`
	Statuses   []StatusCount   `json:"statuses"`
	TotalIdeas int             `json:"totalIdeas"`
	TotalVotes int             `json:"totalVotes"`
	Released   int             `json:"released"`
	Open       int             `json:"open"`
}

// Analyze recomputes the histograms and summary figures. Every category and status is
// present in enum order, zero-filled when unused.
func Analyze(ideas []models.Idea) Analytics {
	byCategory := make(map[models.Category]int)
	byStatus := make(map[models.Status]int)

	a := Analytics{TotalIdeas: len(ideas)}
	for _, idea := range ideas {
		byCategory[idea.Category]++
		byStatus[idea.Status]++
		a.TotalVotes += idea.Votes
	}
	a.Released = byStatus[models.StatusReleased]
	a.Open = byStatus[models.StatusOpen]

	for _, c := range models.Categories() {
		cc := CategoryCount{Category: c, Count: byCategory[c]}
		if a.TotalIdeas > 0 {
			cc.Percent = (cc.Count*100 + a.TotalIdeas/2) / a.TotalIdeas
		}
		a.Categories = append(a.Categories, cc)
	}
	for _, st := range models.Statuses() {
		a.Statuses = append(a.Statuses, StatusCount{Status: st, Count: byStatus[st]})
	}
	return a
}
