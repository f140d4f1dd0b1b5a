package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"shootboard/internal/domain"
	"shootboard/internal/engine"
)

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectUpdateCmd())
	prj.AddCommand(projectDeleteCmd())
	return prj
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *engine.Session) error {
				items := s.Engine().Store().Projects()
				if jsonOutput() {
					return printJSON(items)
				}
				tw := newTable("ID", "Client", "Director", "Creator", "Next shoot")
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Client, orDash(p.Director), orDash(p.AssignedCreator), nextShoot(p)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func projectShowCmd() *cobra.Command {
	var preShoot bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project with its task boards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *engine.Session) error {
				if !s.Open(args[0]) {
					return fmt.Errorf("project %s not found", args[0])
				}
				if preShoot {
					s.TogglePreShoot()
				}
				p, _ := s.CurrentProject()
				boards := map[domain.Category][]domain.Task{}
				for _, c := range s.Boards() {
					boards[c] = s.Board(c)
				}
				if jsonOutput() {
					return printJSON(projectView{Project: p, Boards: boards})
				}
				tw := newTable("Field", "Value")
				tw.AppendRows([]table.Row{
					{"ID", p.ID},
					{"Client", p.Client},
					{"Director", orDash(p.Director)},
					{"Creator", orDash(p.AssignedCreator)},
					{"Contract", orDash(p.ContractMonth)},
					{"Start", orDash(p.StartMonth)},
					{"Expiry", orDash(p.ExpiryMonth)},
					{"Next shoot", nextShoot(p)},
					{"Memo", orDash(p.Memo)},
				})
				tw.Render()
				for _, c := range s.Boards() {
					fmt.Printf("\n[%s]\n", c)
					printTasks(boards[c])
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&preShoot, "pre-shoot", false, "include the pre-shoot board")
	return cmd
}

type projectView struct {
	Project domain.Project                    `json:"project"`
	Boards  map[domain.Category][]domain.Task `json:"boards"`
}

type projectFlags struct {
	client, director, creator, contract, start, expiry, memo string
}

func (f *projectFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.client, "client", "", "client name")
	fs.StringVar(&f.director, "director", "", "director name")
	fs.StringVar(&f.creator, "creator", "", "assigned creator name")
	fs.StringVar(&f.contract, "contract-month", "", "contract month (YYYY-MM)")
	fs.StringVar(&f.start, "start-month", "", "start month (YYYY-MM)")
	fs.StringVar(&f.expiry, "expiry-month", "", "expiry month (YYYY-MM)")
	fs.StringVar(&f.memo, "memo", "", "free-form memo")
}

// apply copies the flags the user set onto p.
func (f *projectFlags) apply(fs *pflag.FlagSet, p domain.Project) domain.Project {
	set := func(name, v string, dst *string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	set("client", f.client, &p.Client)
	set("director", f.director, &p.Director)
	set("creator", f.creator, &p.AssignedCreator)
	set("contract-month", f.contract, &p.ContractMonth)
	set("start-month", f.start, &p.StartMonth)
	set("expiry-month", f.expiry, &p.ExpiryMonth)
	set("memo", f.memo, &p.Memo)
	return p
}

func projectCreateCmd() *cobra.Command {
	var f projectFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *engine.Session) error {
				p := f.apply(cmd.Flags(), domain.Project{})
				if err := s.Engine().SaveProject(ctx, p); err != nil {
					return err
				}
				fmt.Println("project created")
				return nil
			})
		},
	}
	f.register(cmd.Flags())
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func projectUpdateCmd() *cobra.Command {
	var f projectFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update project fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *engine.Session) error {
				p, ok := s.Engine().Store().Project(args[0])
				if !ok {
					return fmt.Errorf("project %s not found", args[0])
				}
				if err := s.Engine().SaveProject(ctx, f.apply(cmd.Flags(), p)); err != nil {
					return err
				}
				fmt.Println("project updated")
				return nil
			})
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete project and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *engine.Session) error {
				if err := s.Engine().DeleteProject(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("project deleted")
				return nil
			})
		},
	}
}

func nextShoot(p domain.Project) string {
	if engine.NextShootMissing(p.NextShootCount, p.NextShootDate) {
		return "未設定"
	}
	return fmt.Sprintf("#%s %s", p.NextShootCount, p.NextShootDate)
}

func taskCmd() *cobra.Command {
	t := &cobra.Command{Use: "task", Short: "Manage tasks"}
	t.AddCommand(taskListCmd())
	t.AddCommand(taskAddCmd())
	t.AddCommand(taskUpdateCmd())
	t.AddCommand(taskToggleCmd())
	t.AddCommand(taskDeleteCmd())
	return t
}

func taskListCmd() *cobra.Command {
	var projectID, category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *engine.Session) error {
				var tasks []domain.Task
				for _, t := range s.Engine().Store().Tasks() {
					if projectID != "" && t.ProjectID != projectID {
						continue
					}
					if category != "" && string(t.Category) != category {
						continue
					}
					tasks = append(tasks, t)
				}
				if jsonOutput() {
					return printJSON(tasks)
				}
				printTasks(tasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id filter")
	cmd.Flags().StringVar(&category, "category", "", "category filter (PRE_SHOOT, OP_EXEC, OP_PREP)")
	return cmd
}

func printTasks(tasks []domain.Task) {
	tw := newTable("ID", "Index", "Title", "Status", "Due", "Assignee")
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.ID, orDash(t.IndexLabel), t.Title, t.Status, orDash(t.DueDate), orDash(t.Assignee)})
	}
	tw.Render()
}

func taskAddCmd() *cobra.Command {
	var in engine.NewTask
	var category string
	cmd := &cobra.Command{
		Use:   "add <project-id>",
		Short: "Add a task to a project board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *engine.Session) error {
				if !s.Open(args[0]) {
					return fmt.Errorf("project %s not found", args[0])
				}
				in.Category = domain.Category(category)
				if err := s.AddTask(ctx, in); err != nil {
					return err
				}
				fmt.Println("task added")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", string(domain.CategoryOpExec), "board (PRE_SHOOT, OP_EXEC, OP_PREP)")
	cmd.Flags().StringVar(&in.Title, "title", "", "task title")
	cmd.Flags().StringVar(&in.IndexLabel, "index", "", "index label")
	cmd.Flags().StringVar(&in.DueDate, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&in.Status, "status", "", "initial status")
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var title, status, due, index, assignee string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := domain.Record{}
			for _, f := range []struct{ flag, column, value string }{
				{"title", "title", title},
				{"status", "status", status},
				{"due", "due_date", due},
				{"index", "index_label", index},
				{"assignee", "assignee", assignee},
			} {
				if cmd.Flags().Changed(f.flag) {
					fields[f.column] = f.value
				}
			}
			return withSession(cmd.Context(), func(ctx context.Context, s *engine.Session) error {
				if err := s.Engine().UpdateTask(ctx, args[0], fields); err != nil {
					return err
				}
				fmt.Println("task updated")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&status, "status", "", "status")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&index, "index", "", "index label")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee name")
	return cmd
}

func taskToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip a checklist task between TODO and DONE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *engine.Session) error {
				if err := s.Engine().ToggleTask(ctx, args[0]); err != nil {
					return err
				}
				t, _ := s.Engine().Store().Task(args[0])
				fmt.Printf("task %s is %s\n", t.ID, t.Status)
				return nil
			})
		},
	}
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *engine.Session) error {
				if err := s.Engine().DeleteTask(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("task deleted")
				return nil
			})
		},
	}
}

// personCmd builds the director and creator command trees.
func personCmd(roleName string) *cobra.Command {
	role := domain.ParseRole(roleName)
	cmd := &cobra.Command{Use: roleName, Short: fmt.Sprintf("Manage %ss", roleName)}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %ss", roleName),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *engine.Session) error {
				items := s.Engine().Store().People(role)
				if jsonOutput() {
					return printJSON(items)
				}
				tw := newTable("ID", "Name", "Email", "Note")
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, orDash(p.Email), orDash(p.Note)})
				}
				tw.Render()
				return nil
			})
		},
	})

	var name, email, note string
	register := func(fs *pflag.FlagSet) {
		fs.StringVar(&name, "name", "", "name")
		fs.StringVar(&email, "email", "", "email")
		fs.StringVar(&note, "note", "", "note")
	}
	apply := func(fs *pflag.FlagSet, p domain.Person) domain.Person {
		if fs.Changed("name") {
			p.Name = name
		}
		if fs.Changed("email") {
			p.Email = email
		}
		if fs.Changed("note") {
			p.Note = note
		}
		return p
	}

	add := &cobra.Command{
		Use:   "add",
		Short: fmt.Sprintf("Add a %s", roleName),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *engine.Session) error {
				if err := s.Engine().SavePerson(ctx, role, apply(cmd.Flags(), domain.Person{})); err != nil {
					return err
				}
				fmt.Println(roleName, "added")
				return nil
			})
		},
	}
	register(add.Flags())
	_ = add.MarkFlagRequired("name")
	cmd.AddCommand(add)

	update := &cobra.Command{
		Use:   "update <id>",
		Short: fmt.Sprintf("Update a %s", roleName),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *engine.Session) error {
				p, ok := s.Engine().Store().Person(role, args[0])
				if !ok {
					return fmt.Errorf("%s %s not found", roleName, args[0])
				}
				if err := s.Engine().SavePerson(ctx, role, apply(cmd.Flags(), p)); err != nil {
					return err
				}
				fmt.Println(roleName, "updated")
				return nil
			})
		},
	}
	register(update.Flags())
	cmd.AddCommand(update)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: fmt.Sprintf("Delete a %s no project is assigned to", roleName),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *engine.Session) error {
				if err := s.Engine().DeletePerson(ctx, role, args[0]); err != nil {
					return err
				}
				fmt.Println(roleName, "deleted")
				return nil
			})
		},
	})
	return cmd
}
