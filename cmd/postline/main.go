package main

import (
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

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"postline/internal/app"
	"postline/internal/config"
	"postline/internal/domain"
	"postline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "postline",
	Short: "Postline CLI",
	Long: `Postline serves posts stored in a Notion database.
- Posts: pages of the posts database, decoded into a fixed model and written back as property patches.
- Identity links: local user ids mapped to Notion user ids by email, kept in the workspace store.
- Completed posts: posts whose status equals posts.completion_status, listed per author.
- Config: postline.yml in the workspace, overridden by POSTLINE_* environment variables and flags.`,
	SilenceUsage: true,
}

// envAliases are accepted in addition to the POSTLINE_<SECTION>_<KEY> names.
var envAliases = map[string][]string{
	"notion.api_key":     {"NOTION_API_KEY"},
	"server.jwt_secret":  {"POSTLINE_JWT_SECRET"},
	"server.hook_secret": {"POSTLINE_HOOK_SECRET"},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("POSTLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	for _, key := range config.Keys {
		envs := []string{"POSTLINE_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))}
		envs = append(envs, envAliases[key]...)
		_ = viper.BindEnv(append([]string{key}, envs...)...)
	}
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("config", "", "config file (default <workspace>/postline.yml)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("user-id", "local-user", "local user id acting as the caller")
	rootCmd.PersistentFlags().String("email", "", "caller email address")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user-id", rootCmd.PersistentFlags().Lookup("user-id"))
	_ = viper.BindPFlag("email", rootCmd.PersistentFlags().Lookup("email"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(postsCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(tokenCmd())
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				cfg := a.Config
				if cfg.Server.JWTSecret == "" {
					return fmt.Errorf("server.jwt_secret (POSTLINE_JWT_SECRET) is required for bearer auth")
				}
				if cfg.Server.DevAuth {
					a.Logger.Warn("dev login is enabled; do not use in production")
				}
				handler, err := server.New(server.Config{
					Engine:   a.Engine,
					BasePath: cfg.Server.BasePath,
					Logger:   a.Logger.With("component", "http"),
					Auth: server.AuthConfig{
						JWTSecret:  cfg.Server.JWTSecret,
						HookSecret: cfg.Server.HookSecret,
						DevAuth:    cfg.Server.DevAuth,
						Logger:     a.Logger.With("component", "auth"),
					},
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				a.Logger.Info("serving postline api",
					"addr", cfg.Server.Addr,
					"base_path", cfg.Server.BasePath,
					"openapi", cfg.Server.BasePath+"/openapi.json",
					"docs", "/docs")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().String("addr", "", "listen address (server.addr)")
	cmd.Flags().String("base-path", "", "API base path (server.base_path)")
	cmd.Flags().Bool("dev-auth", false, "expose POST /auth/dev/login (server.dev_auth)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.base_path", cmd.Flags().Lookup("base-path"))
	_ = viper.BindPFlag("server.dev_auth", cmd.Flags().Lookup("dev-auth"))
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
		Long:  "Config lives in postline.yml; every key can be overridden by POSTLINE_<SECTION>_<KEY> (for example POSTLINE_NOTION_API_KEY).",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default postline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o600); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective config (secrets masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			masked := *cfg
			masked.Notion.APIKey = mask(masked.Notion.APIKey)
			masked.Server.JWTSecret = mask(masked.Server.JWTSecret)
			masked.Server.HookSecret = mask(masked.Server.HookSecret)
			if viper.GetBool("json") {
				return printJSON(masked)
			}
			out, err := yaml.Marshal(masked)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			var missing []string
			if err == nil {
				if check := cfg.Notion.RequirePosts(); check != nil {
					missing = append(missing, check.Error())
				}
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": errString(err), "warnings": missing})
			}
			if err != nil {
				return err
			}
			for _, m := range missing {
				fmt.Println("warning:", m)
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for --user-id and --email",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			caller := callerFromFlags()
			token, err := server.SignToken(cfg.Server.JWTSecret, caller.UserID, caller.Email, ttl)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]string{"token": token})
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime (0 for no expiry)")
	return cmd
}

// --- helpers ---

func configPath() string {
	if p := viper.GetString("config"); p != "" {
		return p
	}
	return config.Path(viper.GetString("workspace"))
}

// loadConfig reads the config file, if any, and overlays environment and
// flag values.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if p := viper.GetString("config"); p != "" {
		cfg, err = config.FromFile(p)
	} else {
		cfg, err = config.LoadOptional(viper.GetString("workspace"))
	}
	if err != nil {
		return nil, err
	}
	for _, key := range config.Keys {
		if !viper.IsSet(key) {
			continue
		}
		if err := cfg.Set(key, viper.GetString(key)); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg.Log, os.Stderr)
	a, err := app.Open(ctx, viper.GetString("workspace"), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func callerFromFlags() domain.Caller {
	return domain.Caller{
		UserID: strings.TrimSpace(viper.GetString("user-id")),
		Email:  strings.TrimSpace(viper.GetString("email")),
	}
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

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
