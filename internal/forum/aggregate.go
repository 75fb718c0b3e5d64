package forum

import (
	"math"
	"sort"
)

// TagScore is a derived per-tag statistic; it has no independent lifecycle
// and is recomputed from authored questions on each profile read.
type TagScore struct {
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Posts  int    `json:"posts"`
	Points int    `json:"points"`
}

// BadgeCount tallies badge tiers across a user's authored content.
type BadgeCount struct {
	Gold   int `json:"gold"`
	Silver int `json:"silver"`
	Bronze int `json:"bronze"`
}

const topTagCount = 3

// TagScores computes the top three tags across the given questions. Per tag,
// posts counts the questions carrying it and points sums upvotes minus
// downvotes over those questions. The score rounds half away from zero,
// matching how the stats have always been presented. Ties break by tag name.
func TagScores(questions []PopulatedQuestion) []TagScore {
	type tagStats struct {
		posts  int
		points int
	}
	stats := map[string]tagStats{}

	for _, question := range questions {
		points := len(question.UpVotes) - len(question.DownVotes)
		for _, tag := range question.Tags {
			current := stats[tag.Name]
			current.posts++
			current.points += points
			stats[tag.Name] = current
		}
	}

	scores := make([]TagScore, 0, len(stats))
	for name, s := range stats {
		score := int(math.Round((float64(s.posts)*0.7 + float64(s.points)*0.3) * 5))
		scores = append(scores, TagScore{
			Name:   name,
			Score:  score,
			Posts:  s.posts,
			Points: s.points,
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Name < scores[j].Name
	})

	if len(scores) > topTagCount {
		scores = scores[:topTagCount]
	}
	return scores
}

// BadgeCounts assigns each question and answer at most one badge tier based
// on its own upvote count, evaluated gold first.
func BadgeCounts(questions []PopulatedQuestion, answers []PopulatedAnswer) BadgeCount {
	var badges BadgeCount
	tally := func(upvotes int) {
		switch {
		case upvotes >= 7:
			badges.Gold++
		case upvotes >= 5:
			badges.Silver++
		case upvotes >= 3:
			badges.Bronze++
		}
	}
	for _, question := range questions {
		tally(len(question.UpVotes))
	}
	for _, answer := range answers {
		tally(len(answer.UpVotes))
	}
	return badges
}

// Reputation sums upvotes minus downvotes across all authored items.
func Reputation(questions []PopulatedQuestion, answers []PopulatedAnswer) int {
	score := 0
	for _, question := range questions {
		score += len(question.UpVotes) - len(question.DownVotes)
	}
	for _, answer := range answers {
		score += len(answer.UpVotes) - len(answer.DownVotes)
	}
	return score
}
