// Package seed provides the fixed idea collection every new board starts from.
package seed

import (
	"time"

	"forgeboard/models"
)

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

var initialIdeas = []models.Idea{
	{
		ID:          "1",
		Title:       "Guild Housing System",
		Description: "We need a place for guilds to hang out. Customizable furniture, trophy halls for raid achievements, and a shared stash.",
		Category:    models.CategoryContent,
		Votes:       1250,
		Status:      models.StatusPlanned,
		Author:      "DragonSlayer99",
		CreatedAt:   mustTime("2023-10-15T10:00:00Z"),
		ImageURL:    "https://picsum.photos/800/400",
	},
	{
		ID:          "2",
		Title:       "Fix the infinite loading screen in Valhalla",
		Description: "Every time I teleport to Valhalla zone, 50% of the time I get stuck on the loading screen. Please fix this critical bug.",
		Category:    models.CategoryBug,
		Votes:       890,
		Status:      models.StatusInProgress,
		Author:      "GlitchHunter",
		CreatedAt:   mustTime("2023-10-20T14:30:00Z"),
	},
	{
		ID:          "3",
		Title:       "One-click inventory sort",
		Description: "Managing inventory takes too long. Add a button to auto-sort items by type and rarity.",
		Category:    models.CategoryImprovements,
		Votes:       1100,
		Status:      models.StatusOpen,
		Author:      "LootGoblin",
		CreatedAt:   mustTime("2023-10-22T09:15:00Z"),
	},
	{
		ID:          "4",
		Title:       "Nerf the Shadow Assassin",
		Description: "The stealth duration is too long in PvP. It breaks the balance in arenas.",
		Category:    models.CategoryBalance,
		Votes:       450,
		Status:      models.StatusRejected,
		Author:      "PaladinMain",
		CreatedAt:   mustTime("2023-10-18T11:20:00Z"),
		DevNote:     "Stats show win rate is within 48-52%. Learn to use detection wards.",
	},
	{
		ID:          "5",
		Title:       "Dark Mode for Map UI",
		Description: "The current map is blindingly white at night. Please add a dark theme toggle.",
		Category:    models.CategoryUIUX,
		Votes:       320,
		Status:      models.StatusReleased,
		Author:      "NightOwl",
		CreatedAt:   mustTime("2023-10-05T16:45:00Z"),
	},
	{
		ID:          "6",
		Title:       "New Raid: The Frozen Citadel",
		Description: "Endgame players need more content. A 12-man raid with ice mechanics would be epic.",
		Category:    models.CategoryContent,
		Votes:       670,
		Status:      models.StatusOpen,
		Author:      "RaidLeader",
		CreatedAt:   mustTime("2023-10-25T08:00:00Z"),
		ImageURL:    "https://picsum.photos/800/401",
	},
	{
		ID:          "7",
		Title:       "Search bar in crafting menu",
		Description: "I can never find the recipe I need. A simple text search would save so much time.",
		Category:    models.CategoryImprovements,
		Votes:       540,
		Status:      models.StatusPlanned,
		Author:      "CrafterJoe",
		CreatedAt:   mustTime("2023-10-24T12:00:00Z"),
	},
}

// Ideas returns a fresh copy of the seed collection. Callers own the returned slice.
func Ideas() []models.Idea {
	out := make([]models.Idea, len(initialIdeas))
	copy(out, initialIdeas)
	return out
}
