package analytics

import (
	"fmt"
	"time"

	"pulseboard/internal/config"
	"pulseboard/internal/domain"
)

// Risk signal weights. Each signal contributes its full weight when its
// threshold trips; the sum is clamped to [0,100].
const (
	budgetRiskWeight     = 25
	scheduleRiskWeight   = 30
	workloadRiskWeight   = 20
	qualityRiskWeight    = 15
	dependencyRiskWeight = 10

	budgetUtilizationThreshold = 80
	scheduleSlipMargin         = 10
	bugRateThreshold           = 0.3
	dependencyRateThreshold    = 0.4
)

// AssessRisk scores a project 0-100 from independent budget, schedule,
// workload, quality and dependency signals.
func AssessRisk(p domain.Project, tasks []domain.Task, cfg config.AnalyticsConfig, now time.Time) domain.RiskAssessment {
	score := 0.0
	var factors []string

	if p.Budget > 0 {
		utilization := p.ActualCost / p.Budget * 100
		if utilization > budgetUtilizationThreshold {
			score += budgetRiskWeight
			factors = append(factors, fmt.Sprintf("Budget utilization at %.1f%%", utilization))
		}
	}

	// Zero-duration projects have no meaningful expected progress.
	if duration := p.DurationDays(); duration != 0 {
		daysUntilDeadline := p.EndDate.Sub(now).Hours() / 24
		expected := 100 - (daysUntilDeadline/duration)*100
		if p.Progress < expected-scheduleSlipMargin {
			score += scheduleRiskWeight
			factors = append(factors, fmt.Sprintf("Progress at %.1f%% vs expected %.1f%%", p.Progress, expected))
		}
	}

	if teamSize := len(p.Team); teamSize > 0 {
		active := 0
		for _, t := range tasks {
			if t.Open() {
				active++
			}
		}
		perMember := float64(active) / float64(teamSize)
		if perMember > cfg.MaxActiveTasksPerMember {
			score += workloadRiskWeight
			factors = append(factors, fmt.Sprintf("%.1f active tasks per team member", perMember))
		}
	}

	if len(tasks) > 0 {
		withBugs, withDeps := 0, 0
		for _, t := range tasks {
			if t.Quality.BugsFound > 0 {
				withBugs++
			}
			if len(t.Dependencies) > 0 {
				withDeps++
			}
		}
		bugRate := float64(withBugs) / float64(len(tasks))
		if bugRate > bugRateThreshold {
			score += qualityRiskWeight
			factors = append(factors, fmt.Sprintf("%.1f%% of tasks have reported bugs", bugRate*100))
		}
		depRate := float64(withDeps) / float64(len(tasks))
		if depRate > dependencyRateThreshold {
			score += dependencyRiskWeight
			factors = append(factors, fmt.Sprintf("%.1f%% of tasks have dependencies", depRate*100))
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	if factors == nil {
		factors = []string{}
	}
	return domain.RiskAssessment{Score: score, Level: riskLevel(score), Factors: factors}
}

func riskLevel(score float64) string {
	switch {
	case score >= 70:
		return "Critical"
	case score >= 50:
		return "High"
	case score >= 30:
		return "Medium"
	}
	return "Low"
}
