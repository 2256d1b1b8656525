package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pulseboard/internal/analytics"
	"pulseboard/internal/app"
	"pulseboard/internal/config"
	"pulseboard/internal/db"
	"pulseboard/internal/domain"
	"pulseboard/internal/engine"
	"pulseboard/internal/report"
	"pulseboard/internal/repo"
	"pulseboard/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "pb",
	Short: "Pulseboard CLI",
	Long: `Pulseboard tracks projects, tasks and people, and computes analytics on
top of them: completion forecasts, risk scores, resource recommendations
and exportable reports.

The workspace is the current directory: records live in
.pulseboard/pulseboard.db, tunables in pulseboard.yml.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PULSEBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().Bool("force", false, "force operation")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("force", rootCmd.PersistentFlags().Lookup("force"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(analyticsCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage workspace config"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default pulseboard.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(c)
		},
	})
	return cfg
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUpdateCmd())
	prj.AddCommand(projectDeleteCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var opts engine.ProjectCreateOptions
	var start, end string
	var team []string
	var skills []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if opts.StartDate, err = parseDate(start); err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			if opts.EndDate, err = parseDate(end); err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}
			for _, userID := range team {
				opts.Team = append(opts.Team, domain.TeamMember{UserID: userID, Allocation: 1})
			}
			opts.RequiredSkills = skills
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "project id (optional, UUID if omitted)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "project name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Status, "status", "", "status (defaults to Planning)")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "priority")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&opts.Budget, "budget", 0, "budget")
	cmd.Flags().StringVar(&opts.ManagerID, "manager-id", "", "manager user id")
	cmd.Flags().StringArrayVar(&team, "member", []string{}, "team member user id (repeatable)")
	cmd.Flags().StringArrayVar(&skills, "skill", []string{}, "required skill (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func projectListCmd() *cobra.Command {
	var f repo.ProjectFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListProjects(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Progress", "Budget", "Cost", "End"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Status, fmt.Sprintf("%.0f%%", p.Progress), p.Budget, p.ActualCost, p.EndDate.Format("2006-01-02")})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.MemberID, "member", "", "member user id filter")
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Repo.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func projectUpdateCmd() *cobra.Command {
	var status, name, priority, managerID string
	var end string
	var budget, actualCost, progress float64
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.ProjectUpdateOptions{ID: args[0], ActorID: viper.GetString("actor-id")}
			if cmd.Flags().Changed("name") {
				opts.Name = &name
			}
			if cmd.Flags().Changed("status") {
				opts.Status = &status
			}
			if cmd.Flags().Changed("priority") {
				opts.Priority = &priority
			}
			if cmd.Flags().Changed("manager-id") {
				opts.ManagerID = &managerID
			}
			if cmd.Flags().Changed("budget") {
				opts.Budget = &budget
			}
			if cmd.Flags().Changed("actual-cost") {
				opts.ActualCost = &actualCost
			}
			if cmd.Flags().Changed("progress") {
				opts.Progress = &progress
			}
			if cmd.Flags().Changed("end") {
				d, err := parseDate(end)
				if err != nil {
					return fmt.Errorf("invalid --end: %w", err)
				}
				opts.EndDate = &d
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.UpdateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name")
	cmd.Flags().StringVar(&status, "status", "", "status")
	cmd.Flags().StringVar(&priority, "priority", "", "priority")
	cmd.Flags().StringVar(&managerID, "manager-id", "", "manager user id")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&budget, "budget", 0, "budget")
	cmd.Flags().Float64Var(&actualCost, "actual-cost", 0, "actual cost")
	cmd.Flags().Float64Var(&progress, "progress", 0, "progress (0-100)")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteProject(ctx, args[0])
			})
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskDoneCmd())
	task.AddCommand(taskDeleteCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	var due string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if opts.DueDate, err = parseDate(due); err != nil {
				return fmt.Errorf("invalid --due: %w", err)
			}
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "task id (optional, UUID if omitted)")
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Status, "status", "", "status (defaults to To Do)")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "priority (defaults to Medium)")
	cmd.Flags().StringVar(&opts.Type, "type", "", "task type (defaults to Feature)")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringArrayVar(&opts.Assignees, "assignee", []string{}, "assignee user id (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Dependencies, "depends-on", []string{}, "dependency task id (repeatable)")
	cmd.Flags().Float64Var(&opts.EstimatedHours, "estimated-hours", 0, "estimated hours")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.Repo.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Assignees", "Due"})
				for _, t := range tasks {
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.Priority, strings.Join(t.Assignees, ","), t.DueDate.Format("2006-01-02")})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.AssigneeID, "assignee", "", "assignee filter")
	return cmd
}

func taskGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Repo.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var status, title, priority string
	var progress, actualHours float64
	var assignees, addDeps, removeDeps []string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TaskUpdateOptions{
				ID:         args[0],
				ActorID:    viper.GetString("actor-id"),
				Force:      viper.GetBool("force"),
				AddDeps:    addDeps,
				RemoveDeps: removeDeps,
			}
			if cmd.Flags().Changed("status") {
				opts.Status = &status
			}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("priority") {
				opts.Priority = &priority
			}
			if cmd.Flags().Changed("progress") {
				opts.Progress = &progress
			}
			if cmd.Flags().Changed("actual-hours") {
				opts.ActualHours = &actualHours
			}
			if cmd.Flags().Changed("assignee") {
				opts.AssigneesProvided = true
				opts.Assignees = assignees
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&priority, "priority", "", "priority")
	cmd.Flags().Float64Var(&progress, "progress", 0, "progress (0-100)")
	cmd.Flags().Float64Var(&actualHours, "actual-hours", 0, "actual hours")
	cmd.Flags().StringArrayVar(&assignees, "assignee", []string{}, "assignee user id (replaces set)")
	cmd.Flags().StringArrayVar(&addDeps, "add-depends-on", []string{}, "add dependency")
	cmd.Flags().StringArrayVar(&removeDeps, "remove-depends-on", []string{}, "remove dependency")
	return cmd
}

func taskDoneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Complete task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CompleteTask(ctx, args[0], viper.GetString("actor-id"), viper.GetBool("force"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteTask(ctx, args[0])
			})
		},
	}
	return cmd
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(userCreateCmd())
	user.AddCommand(userListCmd())
	user.AddCommand(userGetCmd())
	return user
}

func userCreateCmd() *cobra.Command {
	var opts engine.UserCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.CreateUser(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "user id (optional, UUID if omitted)")
	cmd.Flags().StringVar(&opts.Username, "username", "", "username")
	cmd.Flags().StringVar(&opts.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&opts.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&opts.Role, "role", "", "role (admin, manager, employee)")
	cmd.Flags().StringVar(&opts.Department, "department", "", "department")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func userListCmd() *cobra.Command {
	var role, department string
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := repo.UserFilters{Department: department, ActiveOnly: activeOnly}
			if role != "" {
				f.Roles = []string{role}
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				users, err := e.Repo.ListUsers(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Username", "Name", "Role", "Department"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Username, u.FullName(), u.Role, u.Department})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role filter")
	cmd.Flags().StringVar(&department, "department", "", "department filter")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "active users only")
	return cmd
}

func userGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.Repo.GetUser(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	return cmd
}

func analyticsCmd() *cobra.Command {
	an := &cobra.Command{Use: "analytics", Short: "Compute analytics"}
	an.AddCommand(analyticsProjectCmd())
	an.AddCommand(analyticsDashboardCmd())
	an.AddCommand(analyticsTeamCmd())
	return an
}

func analyticsProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project <id>",
		Short: "Per-project analytics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				svc := analytics.NewService(e.Repo, e.Config)
				rep, err := svc.ProjectAnalytics(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rep)
				}
				fmt.Printf("Project: %s (%s), %.0f%% complete\n", rep.Project.Name, rep.Project.Status, rep.Project.Progress)
				fmt.Printf("Velocity: %.2f tasks/day, forecast completion %s\n",
					rep.Metrics.Velocity, rep.Insights.CompletionPrediction.EstimatedDate.Format("2006-01-02"))
				fmt.Printf("Risk: %.0f (%s)\n", rep.Insights.RiskAssessment.Score, rep.Insights.RiskAssessment.Level)
				for _, f := range rep.Insights.RiskAssessment.Factors {
					fmt.Println("  -", f)
				}
				if len(rep.Insights.ResourceRecommendations) > 0 {
					fmt.Println("Recommendations:")
					for _, r := range rep.Insights.ResourceRecommendations {
						fmt.Printf("  [%s] %s\n", r.Priority, r.Message)
					}
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Member", "Assigned", "Completed", "Rate", "Hours"})
				for _, m := range rep.Team {
					tw.AppendRow(table.Row{m.Name, m.TasksAssigned, m.TasksCompleted, fmt.Sprintf("%.0f%%", m.CompletionRate), m.TotalHours})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func analyticsDashboardCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Workspace dashboard analytics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				svc := analytics.NewService(e.Repo, e.Config)
				d, err := svc.DashboardAnalytics(ctx, userID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(d)
				}
				o := d.Overview
				fmt.Printf("Projects: %d total, %d active, %d completed\n", o.TotalProjects, o.ActiveProjects, o.CompletedProjects)
				fmt.Printf("Tasks: %d total, %d completed (%.0f%%), %d overdue\n", o.TotalTasks, o.CompletedTasks, o.CompletionRate, o.OverdueTasks)
				fmt.Printf("Budget: %.2f spent of %.2f (%.1f%%)\n", d.Financial.TotalActualCost, d.Financial.TotalBudget, d.Financial.BudgetUtilization)
				if len(d.Insights.HighRiskProjects) > 0 {
					fmt.Println("High risk:")
					for _, p := range d.Insights.HighRiskProjects {
						fmt.Printf("  %s: %.0f (%s)\n", p.Name, p.Score, p.Level)
					}
				}
				if len(d.Insights.UpcomingDeadlines) > 0 {
					fmt.Println("Upcoming deadlines:")
					for _, dl := range d.Insights.UpcomingDeadlines {
						fmt.Printf("  %s: %s (%.0f days)\n", dl.Name, dl.EndDate.Format("2006-01-02"), dl.DaysLeft)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "narrow to a user's projects and tasks")
	return cmd
}

func analyticsTeamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Team analytics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				svc := analytics.NewService(e.Repo, e.Config)
				rep, err := svc.TeamAnalytics(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rep)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Name", "Role", "Assigned", "Completed", "Rate", "On Time", "Efficiency"})
				for _, m := range rep.Members {
					tw.AppendRow(table.Row{
						m.Name, m.Role, m.TasksAssigned, m.TasksCompleted,
						fmt.Sprintf("%.0f%%", m.CompletionRate),
						fmt.Sprintf("%.0f%%", m.OnTimeRate),
						fmt.Sprintf("%.0f%%", m.Efficiency),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func reportCmd() *cobra.Command {
	rep := &cobra.Command{Use: "report", Short: "Generate reports"}
	rep.AddCommand(reportGenerateCmd())
	return rep
}

func reportGenerateCmd() *cobra.Command {
	var reportType, start, end, format, out string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a report over a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := parseDate(start)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			endDate, err := parseDate(end)
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				gen := report.NewGenerator(e.Repo)
				rep, err := gen.Generate(ctx, report.Request{Type: reportType, Start: startDate, End: endDate})
				if err != nil {
					return err
				}
				if format == "" {
					format = e.Config.Reports.DefaultFormat
				}
				if format != "csv" {
					return printJSON(rep)
				}
				data, err := rep.CSV()
				if err != nil {
					return err
				}
				if out == "" {
					dir := e.Config.Reports.ExportDir
					if err := os.MkdirAll(dir, 0o755); err != nil {
						return err
					}
					out = dir + string(os.PathSeparator) + rep.Filename()
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return err
				}
				fmt.Println("wrote", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reportType, "type", "", "report type (project_summary, team_performance, financial_summary)")
	cmd.Flags().StringVar(&start, "start", "", "range start (YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVar(&end, "end", "", "range end (YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVar(&format, "format", "", "json or csv (defaults from config)")
	cmd.Flags().StringVar(&out, "out", "", "output file (csv only, defaults to export dir)")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Activity log"}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var projectID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.ListEvents(ctx, projectID, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&projectID, "project", "", "project filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, cfg, err := app.Open(workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			e := engine.New(conn, cfg)
			svc := analytics.NewService(e.Repo, cfg)
			gen := report.NewGenerator(e.Repo)
			handler, err := server.New(server.Config{Engine: e, Analytics: svc, Reports: gen, BasePath: basePath})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Pulseboard API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	conn, cfg, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, engine.New(conn, cfg))
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
