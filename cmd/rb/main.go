package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"riberry/internal/api"
	"riberry/internal/config"
	"riberry/internal/schema"
	"riberry/internal/session"
	"riberry/internal/store"
	"riberry/internal/stub"
)

var rootCmd = &cobra.Command{
	Use:   "rb",
	Short: "Riberry CLI",
	Long: `Riberry renders runnable application forms, submits jobs against
them, and watches job and execution status from the terminal.`,
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
	viper.SetEnvPrefix("RIBERRY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", defaultWorkspace(), "workspace directory")
	rootCmd.PersistentFlags().String("server", "", "server URL (overrides config)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func defaultWorkspace() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "riberry")
}

func registerCommands() {
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(formCmd())
	rootCmd.AddCommand(jobCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(stubCmd())
}

// --- session commands ---

func loginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and persist the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return fmt.Errorf("--username required")
			}
			if password == "" {
				fmt.Print("Password: ")
				scanner := bufio.NewScanner(os.Stdin)
				if scanner.Scan() {
					password = scanner.Text()
				}
				if err := scanner.Err(); err != nil {
					return err
				}
			}
			return withStores(cmd.Context(), func(ctx context.Context, env *appEnv) error {
				if err := env.users.Login(ctx, username, password); err != nil {
					return fmt.Errorf("login failed: %w", err)
				}
				fmt.Printf("Logged in as %s\n", username)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "user name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the persisted session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd.Context(), func(ctx context.Context, env *appEnv) error {
				if err := env.users.Logout(); err != nil {
					return err
				}
				fmt.Println("Logged out")
				return nil
			})
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current user profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd.Context(), func(ctx context.Context, env *appEnv) error {
				if err := env.users.Setup(ctx); err != nil {
					return err
				}
				if !env.users.LoggedIn() {
					return fmt.Errorf("not logged in; run rb login")
				}
				u := env.users.User()
				if viper.GetBool("json") {
					return printJSON(u)
				}
				fmt.Printf("User: %s (id %s)\n", u.UserName, u.ID)
				if u.Details != nil {
					fmt.Printf("Name: %s\nEmail: %s\nDepartment: %s\n", u.Details.Name, u.Details.Email, u.Details.Department)
				}
				for _, g := range u.Groups {
					fmt.Printf("Group: %s\n", g.Name)
				}
				return nil
			})
		},
	}
}

// --- dashboard ---

func dashboardCmd() *cobra.Command {
	var watch bool
	var intervalMS int
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show forms, own executions, and summary counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd.Context(), func(ctx context.Context, env *appEnv) error {
				interval := env.cfg.DashboardInterval()
				if intervalMS > 0 {
					interval = time.Duration(intervalMS) * time.Millisecond
				}
				ds := store.NewDashboardStore(env.client, interval)
				if !watch {
					if err := ds.Load(ctx); err != nil {
						return err
					}
					return renderDashboard(ds)
				}
				ds.OnChange(func() { _ = renderDashboard(ds) })
				ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer cancel()
				if err := ds.Setup(ctx); err != nil {
					return err
				}
				defer ds.TearDown()
				_ = renderDashboard(ds)
				<-ctx.Done()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep refreshing until interrupted")
	cmd.Flags().IntVar(&intervalMS, "interval-ms", 0, "refresh interval override")
	return cmd
}

func renderDashboard(ds *store.DashboardStore) error {
	if viper.GetBool("json") {
		return printJSON(map[string]any{
			"forms":      ds.Forms(),
			"executions": ds.Executions(),
			"summary":    ds.Summary(),
		})
	}
	sum := ds.Summary()
	fmt.Printf("Executions: received=%d ready=%d queued=%d active=%d success=%d failure=%d\n",
		sum.Received, sum.Ready, sum.Queued, sum.Active, sum.Success, sum.Failure)

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Form", "Application", "Interface", "Instance", "Online"})
	for _, f := range ds.Forms() {
		app, iface, inst, online := "", "", "", ""
		if f.Interface != nil {
			iface = f.Interface.Name
		}
		if f.Instance != nil {
			inst = f.Instance.Name
			online = fmt.Sprint(f.Instance.Heartbeat != nil)
			if f.Instance.Application != nil {
				app = f.Instance.Application.Name
			}
		}
		tw.AppendRow(table.Row{f.ID, app, iface, inst, online})
	}
	tw.Render()

	if execs := ds.Executions(); len(execs) > 0 {
		tw = table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"Execution", "Status", "Job", "Interface"})
		for _, e := range execs {
			jobName, iface := "", ""
			if e.Job != nil {
				jobName = e.Job.Name
				if e.Job.Interface != nil {
					iface = e.Job.Interface.Name
				}
			}
			tw.AppendRow(table.Row{e.ID, e.Status, jobName, iface})
		}
		tw.Render()
	}
	return nil
}

// --- forms ---

func formCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "form", Short: "Inspect forms"}
	cmd.AddCommand(formShowCmd())
	return cmd
}

func formShowCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "show <form-id>",
		Short: "Show one form and its jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd.Context(), func(ctx context.Context, env *appEnv) error {
				fs := store.NewFormStore(env.client, env.cfg.DetailInterval())
				if !watch {
					if err := fs.Load(ctx, args[0]); err != nil {
						return err
					}
					return renderForm(fs.Form())
				}
				fs.OnChange(func() { _ = renderForm(fs.Form()) })
				ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer cancel()
				if err := fs.Setup(ctx, args[0]); err != nil {
					return err
				}
				defer fs.TearDown()
				_ = renderForm(fs.Form())
				<-ctx.Done()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep refreshing until interrupted")
	return cmd
}

func renderForm(f *schema.Form) error {
	if f == nil {
		return nil
	}
	if viper.GetBool("json") {
		return printJSON(f)
	}
	fmt.Printf("Form %s\n", f.ID)
	if f.Interface != nil {
		fmt.Printf("Interface: %s (v%d)\n", f.Interface.Name, f.Interface.Version)
		if f.Interface.Document != "" {
			fmt.Println(f.Interface.Document)
		}
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Job", "Name", "Created", "Creator"})
	for _, j := range f.Jobs {
		creator := ""
		if j.Creator != nil {
			creator = j.Creator.UserName
			if j.Creator.Details != nil {
				creator = j.Creator.Details.Name
			}
		}
		tw.AppendRow(table.Row{j.ID, j.Name, j.Created, creator})
	}
	tw.Render()
	return nil
}

// --- jobs ---

func jobCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "job", Short: "Submit jobs"}
	cmd.AddCommand(jobCreateCmd())
	return cmd
}

func jobCreateCmd() *cobra.Command {
	var formID, name string
	var inputs, files []string
	var executeNow bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit a job against a form",
		RunE: func(cmd *cobra.Command, args []string) error {
			if formID == "" || name == "" {
				return fmt.Errorf("--form and --name required")
			}
			return withStores(cmd.Context(), func(ctx context.Context, env *appEnv) error {
				cs := store.NewCreateJobStore(env.client)
				if err := cs.Setup(ctx, formID); err != nil {
					return err
				}
				defer cs.TearDown()

				sub := store.Submission{
					Name:       name,
					Values:     map[string]any{},
					Files:      map[string]api.JobFile{},
					ExecuteNow: executeNow,
				}
				for _, kv := range inputs {
					k, v, ok := strings.Cut(kv, "=")
					if !ok {
						return fmt.Errorf("invalid --input %q, want name=value", kv)
					}
					sub.Values[k] = v
				}
				var open []*os.File
				defer func() {
					for _, f := range open {
						f.Close()
					}
				}()
				for _, kv := range files {
					k, path, ok := strings.Cut(kv, "=")
					if !ok {
						return fmt.Errorf("invalid --file %q, want name=path", kv)
					}
					f, err := os.Open(path)
					if err != nil {
						return err
					}
					open = append(open, f)
					sub.Files[k] = api.JobFile{FileName: filepath.Base(path), Content: f}
				}
				if err := cs.Submit(ctx, sub); err != nil {
					return err
				}
				fmt.Printf("Job %q submitted\n", name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&formID, "form", "", "form id")
	cmd.Flags().StringVar(&name, "name", "", "job name")
	cmd.Flags().StringArrayVar(&inputs, "input", []string{}, "input value name=value (repeatable)")
	cmd.Flags().StringArrayVar(&files, "file", []string{}, "input file name=path (repeatable)")
	cmd.Flags().BoolVar(&executeNow, "execute-now", false, "queue an execution immediately")
	return cmd
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show execution counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd.Context(), func(ctx context.Context, env *appEnv) error {
				envlp, err := env.client.JobSummary(ctx)
				if err != nil {
					return err
				}
				if err := envlp.Err(); err != nil {
					return err
				}
				sum, err := schema.DecodeJobSummary(envlp.Data)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sum)
				}
				fmt.Printf("received=%d ready=%d queued=%d active=%d success=%d failure=%d\n",
					sum.Received, sum.Ready, sum.Queued, sum.Active, sum.Success, sum.Failure)
				return nil
			})
		},
	}
}

// --- stub server ---

func stubCmd() *cobra.Command {
	var addr, secret string
	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Run a local stub backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			handler, err := stub.New(stub.Config{JWTSecret: secret})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			go func() {
				<-ctx.Done()
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				srv.Shutdown(shutdownCtx)
			}()
			fmt.Printf("Serving Riberry stub on http://%s (user demo/demo)\n", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:5000", "listen address")
	cmd.Flags().StringVar(&secret, "jwt-secret", "", "JWT signing secret")
	return cmd
}

// --- helpers ---

type appEnv struct {
	cfg    *config.Config
	creds  *session.FileStore
	client *api.Client
	users  *store.UserStore
}

func withStores(ctx context.Context, fn func(context.Context, *appEnv) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	if override := viper.GetString("server"); override != "" {
		cfg.Server.URL = override
	}
	creds, err := session.OpenFileStore(workspace)
	if err != nil {
		return err
	}
	defer creds.Close()
	client := api.New(cfg.Server.URL, creds)
	env := &appEnv{
		cfg:    cfg,
		creds:  creds,
		client: client,
		users:  store.NewUserStore(client, creds),
	}
	return fn(ctx, env)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
