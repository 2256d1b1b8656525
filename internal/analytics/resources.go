package analytics

import (
	"fmt"
	"strings"

	"pulseboard/internal/config"
	"pulseboard/internal/domain"
)

// Recommend flags workload imbalance across the project team and skill
// gaps against the project's required skills. Workload recommendations
// come out in team order, the skill-gap one last.
//
// Members are not tagged with skills, so skill-gap detection degrades
// to recommending review of the full required list whenever one is
// declared.
func Recommend(p domain.Project, tasks []domain.Task, users map[string]domain.User, cfg config.AnalyticsConfig) []domain.Recommendation {
	var recs []domain.Recommendation

	if len(p.Team) > 0 {
		counts := make([]int, len(p.Team))
		total := 0
		for i, m := range p.Team {
			for _, t := range tasks {
				if t.AssignedTo(m.UserID) {
					counts[i]++
				}
			}
			total += counts[i]
		}
		avg := float64(total) / float64(len(p.Team))
		for i, m := range p.Team {
			name := m.UserID
			if u, ok := users[m.UserID]; ok {
				name = u.FullName()
			}
			n := float64(counts[i])
			switch {
			case n > cfg.OverloadRatio*avg:
				recs = append(recs, domain.Recommendation{
					Type:     "workload_reduction",
					Priority: "high",
					Message:  fmt.Sprintf("%s has %d tasks, well above the team average of %.1f; consider redistributing work", name, counts[i], avg),
					UserID:   m.UserID,
				})
			case n < cfg.UnderloadRatio*avg:
				recs = append(recs, domain.Recommendation{
					Type:     "workload_increase",
					Priority: "medium",
					Message:  fmt.Sprintf("%s has %d tasks, well below the team average of %.1f; capacity available", name, counts[i], avg),
					UserID:   m.UserID,
				})
			}
		}
	}

	if len(p.RequiredSkills) > 0 {
		recs = append(recs, domain.Recommendation{
			Type:     "skill_gap",
			Priority: "medium",
			Message:  fmt.Sprintf("Review team coverage of required skills: %s", strings.Join(p.RequiredSkills, ", ")),
		})
	}
	return recs
}
