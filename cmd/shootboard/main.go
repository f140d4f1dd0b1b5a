package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"shootboard/internal/app"
	"shootboard/internal/config"
	"shootboard/internal/db"
	"shootboard/internal/engine"
	"shootboard/internal/events"
)

var rootCmd = &cobra.Command{
	Use:   "shootboard",
	Short: "Shootboard CLI",
	Long: `Shootboard tracks video-production projects: clients, their director and creator,
the next shoot, and the task boards behind each project.
- Workspace: the .shootboard directory with the local database and shootboard.yml.
- Projects: one per client engagement; director and creator are referenced by name.
- Tasks: rows on the pre-shoot, posting (OP_EXEC) and prep boards of a project.
- Directors and creators: people that projects are assigned to. A person still
  named on a project cannot be deleted.
- Remote: with --remote (or remote.base_url) every command talks to a shootboard
  server instead of the local database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
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
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Println("error:", engine.UserMessage(err))
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SHOOTBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("remote", "", "shootboard server base url (overrides remote.base_url)")
	rootCmd.PersistentFlags().String("token", "", "bearer token for the remote server")
	rootCmd.PersistentFlags().String("log-level", "", "log level (overrides log.level)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("remote", rootCmd.PersistentFlags().Lookup("remote"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(personCmd("director"))
	rootCmd.AddCommand(personCmd("creator"))
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(nextShootCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- helpers ---

type env struct {
	workspace string
	cfg       *config.Config
	logger    *zap.Logger
}

func loadEnv() (*env, error) {
	workspace := viper.GetString("workspace")
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if v := viper.GetString("log-level"); v != "" {
		level = v
	}
	logger, err := config.NewLogger(cfg.Log.Env, level)
	if err != nil {
		return nil, err
	}
	return &env{workspace: workspace, cfg: cfg, logger: logger}, nil
}

func overrides() app.Overrides {
	return app.Overrides{RemoteURL: viper.GetString("remote"), Token: viper.GetString("token")}
}

func withGateway(ctx context.Context, fn func(context.Context, *env, *app.Gateway) error) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.logger.Sync()
	gw, err := app.OpenGateway(ctx, e.workspace, e.cfg, overrides(), e.logger)
	if err != nil {
		return err
	}
	defer gw.Close()
	return fn(ctx, e, gw)
}

// withSession loads the Store and runs fn. A failure returned by fn carries
// the message the notifier showed.
func withSession(ctx context.Context, fn func(context.Context, *engine.Session) error) error {
	return withSessionBus(ctx, nil, fn)
}

func withSessionBus(ctx context.Context, bus events.Publisher, fn func(context.Context, *engine.Session) error) error {
	return withGateway(ctx, func(ctx context.Context, e *env, gw *app.Gateway) error {
		s, err := app.NewSession(ctx, gw, e.cfg, e.logger, bus)
		if err != nil {
			return err
		}
		defer s.Autosave().Close()
		return fn(ctx, s)
	})
}

func jsonOutput() bool {
	return viper.GetBool("json")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row(header))
	return tw
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
