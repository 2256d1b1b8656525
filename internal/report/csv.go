package report

import (
	"bytes"
	"encoding/csv"
	"strconv"
)

// CSV flattens the report: a metric/value summary section, a blank
// record, then a typed detail header and one row per entity.
func (r Report) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	var records [][]string
	switch {
	case r.ProjectSummary != nil:
		records = r.projectSummaryRecords()
	case r.TeamPerformance != nil:
		records = r.teamPerformanceRecords()
	case r.FinancialSummary != nil:
		records = r.financialSummaryRecords()
	}

	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func (r Report) projectSummaryRecords() [][]string {
	rep := r.ProjectSummary
	records := [][]string{
		{"metric", "value"},
		{"report_type", r.Type},
		{"start_date", r.Start.Format("2006-01-02")},
		{"end_date", r.End.Format("2006-01-02")},
		{"total_projects", strconv.Itoa(rep.TotalProjects)},
		{"total_budget", num(rep.TotalBudget)},
		{"total_actual_cost", num(rep.TotalActualCost)},
		{""},
		{"id", "name", "status", "progress", "budget", "actual_cost", "manager", "start_date", "end_date"},
	}
	for _, p := range rep.Projects {
		records = append(records, []string{
			p.ID, p.Name, p.Status, num(p.Progress), num(p.Budget), num(p.ActualCost),
			p.Manager, p.StartDate.Format("2006-01-02"), p.EndDate.Format("2006-01-02"),
		})
	}
	return records
}

func (r Report) teamPerformanceRecords() [][]string {
	rep := r.TeamPerformance
	records := [][]string{
		{"metric", "value"},
		{"report_type", r.Type},
		{"start_date", r.Start.Format("2006-01-02")},
		{"end_date", r.End.Format("2006-01-02")},
		{"total_members", strconv.Itoa(rep.TotalMembers)},
		{"completed_tasks", strconv.Itoa(rep.CompletedTasks)},
		{"average_productivity", num(rep.AverageProductivity)},
		{""},
		{"user_id", "name", "role", "department", "tasks_assigned", "tasks_completed", "completion_rate", "average_days"},
	}
	for _, m := range rep.Members {
		records = append(records, []string{
			m.UserID, m.Name, m.Role, m.Department,
			strconv.Itoa(m.TasksAssigned), strconv.Itoa(m.TasksCompleted),
			num(m.CompletionRate), num(m.AverageDays),
		})
	}
	return records
}

func (r Report) financialSummaryRecords() [][]string {
	rep := r.FinancialSummary
	records := [][]string{
		{"metric", "value"},
		{"report_type", r.Type},
		{"start_date", r.Start.Format("2006-01-02")},
		{"end_date", r.End.Format("2006-01-02")},
		{"total_budget", num(rep.TotalBudget)},
		{"total_actual_cost", num(rep.TotalActualCost)},
		{"total_variance", num(rep.TotalVariance)},
		{""},
		{"id", "name", "budget", "actual_cost", "variance"},
	}
	for _, p := range rep.Projects {
		records = append(records, []string{
			p.ID, p.Name, num(p.Budget), num(p.ActualCost), num(p.Variance),
		})
	}
	return records
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
