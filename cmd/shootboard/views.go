package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"shootboard/internal/app"
	"shootboard/internal/engine"
	"shootboard/internal/events"
	"shootboard/internal/export"
)

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Projects grouped by assigned creator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *engine.Session) error {
				groups := s.Dashboard()
				if jsonOutput() {
					return printJSON(groups)
				}
				tw := newTable("Creator", "Project", "Client", "Director", "Next shoot")
				for _, g := range groups {
					for _, p := range g.Projects {
						tw.AppendRow(table.Row{g.Creator.Name, p.ID, p.Client, orDash(p.Director), nextShoot(p)})
					}
					tw.AppendSeparator()
				}
				tw.Render()
				return nil
			})
		},
	}
}

func nextShootCmd() *cobra.Command {
	var count, date string
	var blur bool
	cmd := &cobra.Command{
		Use:   "next-shoot <project-id>",
		Short: "Edit the next shoot count and date with autosave",
		Long: `Edits go to the project right away and are saved after the autosave debounce.
With --blur the edit is saved immediately, as when leaving the field.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bus := events.NewBus()
			defer bus.Close()
			return withSessionBus(cmd.Context(), bus, func(ctx context.Context, s *engine.Session) error {
				if !s.Open(args[0]) {
					return fmt.Errorf("project %s not found", args[0])
				}
				a := s.Autosave()
				changes := bus.Subscribe()
				defer bus.Unsubscribe(changes)

				if cmd.Flags().Changed("count") {
					a.SetCount(count)
				}
				if cmd.Flags().Changed("date") {
					a.SetDate(date)
				}
				var err error
				switch {
				case !a.Pending():
				case blur:
					err = a.Blur(ctx)
				default:
					err = waitSaved(ctx, changes, args[0], s.Engine().Notifier())
				}
				if err != nil {
					return err
				}
				p, _ := s.CurrentProject()
				if jsonOutput() {
					return printJSON(p)
				}
				fmt.Printf("%s: next shoot %s\n", p.Client, nextShoot(p))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&count, "count", "", "shoot number")
	cmd.Flags().StringVar(&date, "date", "", "shoot date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&blur, "blur", false, "save immediately instead of waiting for the debounce")
	return cmd
}

// waitSaved follows the save-state signals of projectID until the debounced
// persist settles.
func waitSaved(ctx context.Context, changes <-chan events.Change, projectID string, n *engine.Notifier) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			if c.Type != events.SaveStateChanged || c.ProjectID != projectID {
				continue
			}
			fmt.Fprintln(os.Stderr, "autosave:", c.State)
			switch engine.SaveState(c.State) {
			case engine.StateSaved:
				return nil
			case engine.StateError:
				if msg, ok := n.Current(); ok {
					return fmt.Errorf("%s", msg)
				}
				return fmt.Errorf("next shoot save failed")
			}
		}
	}
}

func exportCmd() *cobra.Command {
	var toS3 bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON snapshot of every collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGateway(cmd.Context(), func(ctx context.Context, e *env, gw *app.Gateway) error {
				s, err := app.NewSession(ctx, gw, e.cfg, e.logger, nil)
				if err != nil {
					return err
				}
				var sink export.Sink
				if toS3 {
					c := e.cfg.Export.S3
					sink, err = export.NewS3Sink(ctx, export.S3Config{
						Bucket:          c.Bucket,
						Region:          c.Region,
						Endpoint:        c.Endpoint,
						Prefix:          c.Prefix,
						PathStyle:       c.PathStyle,
						AccessKeyID:     c.AccessKeyID,
						SecretAccessKey: c.SecretAccessKey,
					})
					if err != nil {
						return err
					}
				} else {
					dir := e.cfg.Export.Dir
					if !filepath.IsAbs(dir) {
						dir = filepath.Join(e.workspace, dir)
					}
					sink = export.DirSink{Dir: dir}
				}
				where, err := export.Write(ctx, sink, export.Take(s.Engine().Store(), time.Now()))
				if err != nil {
					return err
				}
				fmt.Println("exported to", where)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&toS3, "s3", false, "upload to the configured S3 bucket")
	return cmd
}
