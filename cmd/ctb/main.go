package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"creetonbiz/internal/checkout"
	"creetonbiz/internal/config"
	"creetonbiz/internal/db"
	"creetonbiz/internal/engine"
	"creetonbiz/internal/migrate"
	"creetonbiz/internal/payments"
	"creetonbiz/internal/repo"
	"creetonbiz/internal/server"
	"creetonbiz/internal/session"
	creetonbizsdk "creetonbiz/sdk/go"
)

var rootCmd = &cobra.Command{
	Use:   "ctb",
	Short: "CréeTonBiz CLI",
	Long: `CréeTonBiz takes a founder profile (sector, objective, skills) and turns it
into a validated business idea and a full launch kit: offer, business model,
brand identity, landing page, marketing plan, and action plan.

Most commands talk to the API server (ctb serve); auth state lives in the
workspace under .creetonbiz/session.`,
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
	viper.SetEnvPrefix("CTB")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("api", "http://127.0.0.1:8080/api", "API base URL")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("api", rootCmd.PersistentFlags().Lookup("api"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(meCmd())
	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(ideaCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(premiumCmd())
	rootCmd.AddCommand(deliverableCmd())
	rootCmd.AddCommand(billingCmd())
	rootCmd.AddCommand(adminCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write default config to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
}

func registerCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				password, err := readPassword("Password: ")
				if err != nil {
					return err
				}
				token, err := c.Register(ctx, email, password)
				if err != nil {
					return err
				}
				if err := s.Login(ctx, token.AccessToken); err != nil {
					return err
				}
				fmt.Println("registered and logged in as", email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func loginCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				password, err := readPassword("Password: ")
				if err != nil {
					return err
				}
				token, err := c.Login(ctx, email, password)
				if err != nil {
					return err
				}
				if err := s.Login(ctx, token.AccessToken); err != nil {
					return err
				}
				fmt.Println("logged in as", email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				if err := s.Logout(); err != nil {
					return err
				}
				fmt.Println("logged out")
				return nil
			})
		},
	}
}

func meCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the current account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				u, err := c.Me(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
}

func accountCmd() *cobra.Command {
	account := &cobra.Command{Use: "account", Short: "Manage the account"}

	passwordCmd := &cobra.Command{
		Use:   "password",
		Short: "Change password",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				current, err := readPassword("Current password: ")
				if err != nil {
					return err
				}
				next, err := readPassword("New password: ")
				if err != nil {
					return err
				}
				if err := c.ChangePassword(ctx, current, next); err != nil {
					return err
				}
				fmt.Println("password changed")
				return nil
			})
		},
	}

	var confirm bool
	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the account and all its data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("pass --yes to confirm account deletion")
			}
			return withLogin(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				if err := c.DeleteAccount(ctx); err != nil {
					return err
				}
				if err := s.Logout(); err != nil {
					return err
				}
				fmt.Println("account deleted")
				return nil
			})
		},
	}
	deleteCmd.Flags().BoolVar(&confirm, "yes", false, "confirm deletion")

	account.AddCommand(passwordCmd)
	account.AddCommand(deleteCmd)
	return account
}

func profileFlags(cmd *cobra.Command, p *creetonbizsdk.Profile) {
	cmd.Flags().StringVar(&p.Sector, "secteur", "", "business sector")
	cmd.Flags().StringVar(&p.Objective, "objectif", "", "objective")
	cmd.Flags().StringSliceVar(&p.Skills, "competences", nil, "skills (comma separated, optional)")
	_ = cmd.MarkFlagRequired("secteur")
	_ = cmd.MarkFlagRequired("objectif")
}

func ideaCmd() *cobra.Command {
	idea := &cobra.Command{Use: "idea", Short: "Generate and manage ideas"}

	var profile creetonbizsdk.Profile
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a business idea",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				i, err := c.GenerateIdea(ctx, profile)
				if err != nil {
					if creetonbizsdk.IsPaymentRequired(err) {
						fmt.Println("Free idea limit reached. Run 'ctb billing checkout --pack startnow' to continue.")
					}
					return err
				}
				return printJSONOrTable(i)
			})
		},
	}
	profileFlags(generateCmd, &profile)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List ideas",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				items, err := c.ListIdeas(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Sector", "Rating", "Created"})
				for _, i := range items {
					tw.AppendRow(table.Row{i.ID, i.Name, i.Sector, fmt.Sprintf("%.1f", i.Rating), i.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <idea-id>",
		Short: "Delete an idea",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				if err := c.DeleteIdea(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}

	idea.AddCommand(generateCmd)
	idea.AddCommand(listCmd)
	idea.AddCommand(deleteCmd)
	return idea
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectRenameCmd())
	prj.AddCommand(projectDeleteCmd())
	prj.AddCommand(projectConvertCmd())
	prj.AddCommand(projectPublishCmd())
	return prj
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				items, err := c.ListProjects(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Sector", "From Idea", "Created"})
				for _, p := range items {
					ideaID := ""
					if p.IdeaID != nil {
						ideaID = *p.IdeaID
					}
					tw.AppendRow(table.Row{p.ID, p.Title, p.Sector, ideaID, p.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func projectCreateCmd() *cobra.Command {
	var opts creetonbizsdk.CreateProjectOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				p, err := c.CreateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "project title")
	cmd.Flags().StringVar(&opts.Sector, "secteur", "", "business sector")
	cmd.Flags().StringVar(&opts.Objective, "objectif", "", "objective")
	cmd.Flags().StringSliceVar(&opts.Skills, "competences", nil, "skills")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func projectRenameCmd() *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "rename <project-id>",
		Short: "Rename a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				p, err := c.RenameProject(ctx, args[0], title)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				if err := c.DeleteProject(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

// projectConvertCmd is the one-click conversion: idea -> project -> all six
// premium deliverables, with step progress on the terminal.
func projectConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <idea-id>",
		Short: "Convert an idea into a project and generate its launch kit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				ideaID := args[0]
				ideas, err := c.ListIdeas(ctx)
				if err != nil {
					return err
				}
				var idea *creetonbizsdk.Idea
				for i := range ideas {
					if ideas[i].ID == ideaID {
						idea = &ideas[i]
						break
					}
				}
				if idea == nil {
					return fmt.Errorf("idea %s not found", ideaID)
				}

				projects, err := c.ListProjects(ctx)
				if err != nil {
					return err
				}
				if existing, ok := creetonbizsdk.FindConversion(projects, ideaID); ok {
					return fmt.Errorf("%w (project %s)", creetonbizsdk.ErrIdeaAlreadyConverted, existing.ID)
				}

				u, err := c.Me(ctx)
				if err != nil {
					return err
				}
				if u.Plan == "free" && u.StartnowCredits == 0 {
					return fmt.Errorf("converting needs a premium plan or a StartNow credit; run 'ctb billing checkout --pack startnow'")
				}

				p, err := c.CreateProject(ctx, creetonbizsdk.CreateProjectOptions{
					Title:     idea.Name,
					Sector:    idea.Sector,
					Objective: idea.Objective,
					Skills:    idea.Skills,
					IdeaID:    idea.ID,
				})
				if err != nil {
					return err
				}
				if err := s.Refresh(ctx); err != nil {
					return err
				}

				profile := creetonbizsdk.Profile{
					Sector:    idea.Sector,
					Objective: idea.Objective,
					Skills:    idea.Skills,
				}
				fmt.Printf("project %s created, generating launch kit\n", p.ID)
				deliverables, err := c.GenerateAllPremium(ctx, profile, p.ID, func(step string) {
					fmt.Printf("  -> %s\n", step)
				})
				if err != nil {
					return err
				}
				fmt.Printf("done: %d deliverables\n", len(deliverables))
				return printJSONOrTable(p)
			})
		},
	}
}

func projectPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <project-id>",
		Short: "Publish the project's landing page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				url, err := c.PublishLanding(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Println(url)
				return nil
			})
		},
	}
}

func premiumCmd() *cobra.Command {
	premium := &cobra.Command{Use: "premium", Short: "Generate premium deliverables"}

	var profile creetonbizsdk.Profile
	var projectID string
	generateCmd := &cobra.Command{
		Use:       "generate <kind>",
		Short:     "Generate one deliverable (offer, model, brand, landing, marketing, plan)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: creetonbizsdk.GenerationSteps,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				d, err := c.GeneratePremium(ctx, args[0], profile, projectID)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	profileFlags(generateCmd, &profile)
	generateCmd.Flags().StringVar(&projectID, "project", "", "project id")
	_ = generateCmd.MarkFlagRequired("project")

	var allProfile creetonbizsdk.Profile
	var allProjectID string
	allCmd := &cobra.Command{
		Use:   "all",
		Short: "Generate all six deliverables in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				deliverables, err := c.GenerateAllPremium(ctx, allProfile, allProjectID, func(step string) {
					fmt.Printf("  -> %s\n", step)
				})
				if err != nil {
					return err
				}
				fmt.Printf("done: %d deliverables\n", len(deliverables))
				return nil
			})
		},
	}
	profileFlags(allCmd, &allProfile)
	allCmd.Flags().StringVar(&allProjectID, "project", "", "project id")
	_ = allCmd.MarkFlagRequired("project")

	premium.AddCommand(generateCmd)
	premium.AddCommand(allCmd)
	return premium
}

func deliverableCmd() *cobra.Command {
	deliverable := &cobra.Command{Use: "deliverable", Short: "Browse deliverables"}

	var projectID, kind string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List deliverables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				items, err := c.ListDeliverables(ctx, projectID, kind)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Project", "Kind", "Title", "Created"})
				for _, d := range items {
					tw.AppendRow(table.Row{d.ID, d.ProjectID, d.Kind, d.Title, d.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	listCmd.Flags().StringVar(&projectID, "project", "", "filter by project id")
	listCmd.Flags().StringVar(&kind, "kind", "", "filter by kind (offer, model, brand, landing, marketing, plan)")

	showCmd := &cobra.Command{
		Use:   "show <deliverable-id>",
		Short: "Show a deliverable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				d, err := c.GetDeliverable(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}

	var out, format string
	downloadCmd := &cobra.Command{
		Use:   "download <deliverable-id>",
		Short: "Download the rendered deliverable file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				filename, body, err := c.DownloadDeliverable(ctx, args[0], format)
				if err != nil {
					return err
				}
				if out == "" {
					out = filename
				}
				if out == "" {
					out = args[0]
				}
				if err := os.WriteFile(out, body, 0o644); err != nil {
					return err
				}
				fmt.Println("wrote", out)
				return nil
			})
		},
	}
	downloadCmd.Flags().StringVarP(&out, "output", "o", "", "output path (defaults to the server filename)")
	downloadCmd.Flags().StringVar(&format, "format", "", "export format: auto, html, json, md, ics")

	deliverable.AddCommand(listCmd)
	deliverable.AddCommand(showCmd)
	deliverable.AddCommand(downloadCmd)
	return deliverable
}

func billingCmd() *cobra.Command {
	billing := &cobra.Command{Use: "billing", Short: "Plans and payment"}

	var pack string
	var wait bool
	checkoutCmd := &cobra.Command{
		Use:   "checkout",
		Short: "Start a checkout for a pack",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				flow := newCheckoutFlow(c, s)
				returnURL := ""
				var waitFn func() error
				if wait {
					var err error
					returnURL, waitFn, err = flow.ServeReturn(ctx, "")
					if err != nil {
						return err
					}
				}
				co, err := c.CreateCheckoutSession(ctx, pack, returnURL)
				if err != nil {
					return err
				}
				fmt.Println("open this URL to pay:")
				fmt.Println(" ", co.URL)
				if !wait {
					fmt.Printf("then run: ctb billing confirm %s\n", co.SessionID)
					return nil
				}
				fmt.Println("waiting for the payment redirect...")
				return waitFn()
			})
		},
	}
	checkoutCmd.Flags().StringVar(&pack, "pack", "", "pack: infinity or startnow")
	checkoutCmd.Flags().BoolVar(&wait, "wait", false, "wait for the redirect on a local listener")
	_ = checkoutCmd.MarkFlagRequired("pack")

	confirmCmd := &cobra.Command{
		Use:   "confirm <session-id>",
		Short: "Confirm a paid checkout session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				flow := newCheckoutFlow(c, s)
				if err := flow.Confirm(ctx, args[0]); err != nil {
					return err
				}
				if u := s.User(); u != nil {
					return printJSONOrTable(u)
				}
				return nil
			})
		},
	}

	portalCmd := &cobra.Command{
		Use:   "portal",
		Short: "Print the billing portal URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				url, err := c.BillingPortal(ctx)
				if err != nil {
					return err
				}
				fmt.Println(url)
				return nil
			})
		},
	}

	billing.AddCommand(checkoutCmd)
	billing.AddCommand(confirmCmd)
	billing.AddCommand(portalCmd)
	return billing
}

func newCheckoutFlow(c *creetonbizsdk.Client, s *session.Store) *checkout.Flow {
	flow := checkout.New(c, s)
	flow.Notify = func(level checkout.Level, message string) {
		prefix := "!"
		if level == checkout.LevelSuccess {
			prefix = "*"
		}
		fmt.Printf("%s %s\n", prefix, message)
	}
	return flow
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Inspect the activity log"}
	var limit int
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent events from the local database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r *repo.Repo) error {
				items, err := r.ListEvents(ctx, "", limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "User", "Entity", "Payload"})
				for _, e := range items {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.UserID, e.EntityKind + "/" + e.EntityID, e.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	tailCmd.Flags().IntVar(&limit, "limit", 50, "max events")
	log.AddCommand(tailCmd)
	return log
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if basePath != "" {
				cfg.Server.BasePath = basePath
			}
			if secret := os.Getenv("CTB_JWT_SECRET"); secret != "" {
				cfg.Auth.JWTSecret = secret
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret (or CTB_JWT_SECRET) is required for serving")
			}

			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}

			var provider payments.Provider
			if cfg.Stripe.SecretKey != "" {
				provider = payments.NewStripe(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
			} else {
				fmt.Println("stripe not configured, using the dev payment provider")
				provider = payments.NewDev()
			}

			e := engine.New(conn, cfg, provider)
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: cfg.Server.BasePath,
				Auth: server.AuthConfig{
					JWTSecret:     cfg.Auth.JWTSecret,
					TokenLifetime: time.Duration(cfg.Auth.TokenLifetimeHours) * time.Hour,
				},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving CréeTonBiz API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n",
				cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config)")
	return cmd
}

func adminCmd() *cobra.Command {
	admin := &cobra.Command{Use: "admin", Short: "Operator tools (admin accounts only)"}

	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "List all accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				users, err := c.AdminListUsers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Email", "Plan", "Credits", "Admin", "Stripe"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Email, u.Plan, u.StartnowCredits, u.IsAdmin, u.StripeLink})
				}
				tw.Render()
				return nil
			})
		},
	}

	var plan string
	var credits int
	var grantAdmin, cancelStripe bool
	setCmd := &cobra.Command{
		Use:   "set <user-id>",
		Short: "Change a user's plan, credits or admin flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogin(cmd.Context(), func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
				patch := creetonbizsdk.AdminUserPatch{CancelStripe: cancelStripe}
				if cmd.Flags().Changed("plan") {
					patch.Plan = &plan
				}
				if cmd.Flags().Changed("credits") {
					patch.StartnowCredits = &credits
				}
				if cmd.Flags().Changed("admin") {
					patch.IsAdmin = &grantAdmin
				}
				if patch.Plan == nil && patch.StartnowCredits == nil && patch.IsAdmin == nil && !patch.CancelStripe {
					return errors.New("nothing to change; pass --plan, --credits, --admin or --cancel-subscription")
				}
				u, err := c.AdminUpdateUser(ctx, args[0], patch)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	setCmd.Flags().StringVar(&plan, "plan", "", "plan: free, infinity or startnow")
	setCmd.Flags().IntVar(&credits, "credits", 0, "StartNow credits")
	setCmd.Flags().BoolVar(&grantAdmin, "admin", false, "grant or revoke admin access")
	setCmd.Flags().BoolVar(&cancelStripe, "cancel-subscription", false, "cancel the Stripe subscription first")

	admin.AddCommand(usersCmd)
	admin.AddCommand(setCmd)
	return admin
}

func withSession(ctx context.Context, fn func(context.Context, *creetonbizsdk.Client, *session.Store) error) error {
	workspace := viper.GetString("workspace")
	if err := os.MkdirAll(filepath.Join(workspace, ".creetonbiz"), 0o755); err != nil {
		return err
	}
	c := creetonbizsdk.New(viper.GetString("api"))
	s, err := session.Load(workspace, c)
	if err != nil {
		return err
	}
	return fn(ctx, c, s)
}

func withLogin(ctx context.Context, fn func(context.Context, *creetonbizsdk.Client, *session.Store) error) error {
	return withSession(ctx, func(ctx context.Context, c *creetonbizsdk.Client, s *session.Store) error {
		if !s.LoggedIn() {
			return fmt.Errorf("not logged in; run 'ctb login' first")
		}
		err := fn(ctx, c, s)
		if hint := authHint(err); hint != "" {
			fmt.Println(hint)
		}
		return err
	})
}

// authHint maps a rejected token (expired, revoked) to the login flow; the
// stored session is not proof the server still accepts it.
func authHint(err error) string {
	if creetonbizsdk.IsUnauthorized(err) {
		return "Session expired or invalid. Run 'ctb login' to sign in again."
	}
	return ""
}

func withRepo(ctx context.Context, fn func(context.Context, *repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.New(conn))
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		// Not an object; JSON is the only sensible rendering.
		return printJSON(v)
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Field", "Value"})
	for _, k := range keys {
		var s string
		if err := json.Unmarshal(fields[k], &s); err != nil {
			s = string(fields[k])
		}
		tw.AppendRow(table.Row{k, s})
	}
	tw.Render()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	// Non-interactive: read a line from stdin.
	var password string
	if _, err := fmt.Fscanln(os.Stdin, &password); err != nil {
		return "", err
	}
	return password, nil
}
