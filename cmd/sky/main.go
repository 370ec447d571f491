package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"skytrack/internal/config"
	"skytrack/internal/db"
	"skytrack/internal/domain"
	"skytrack/internal/engine"
	"skytrack/internal/lock"
	"skytrack/internal/logger"
	"skytrack/internal/metrics"
	"skytrack/internal/migrate"
	"skytrack/internal/ratelimit"
	"skytrack/internal/repo"
	"skytrack/internal/repo/postgres"
	"skytrack/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "sky",
	Short: "SkyTrack CLI",
	Long: `SkyTrack tracks scheduled flights, the planes they are bound to and the crew assigned to them.
- Flights move PROGRAMADO -> EMBARCANDO -> EN_VUELO -> ATERRIZADO; CANCELADO is the other exit. Landed and cancelled flights are frozen.
- A plane serves at most one active flight. Taking off marks it IN_FLIGHT; landing, cancelling or deleting the flight frees it.
- Crew are assigned per flight; members still on a roster cannot be deleted.
- Every change is written to the event log, view it with 'sky log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadEnv(viper.GetString("workspace"))
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SKYTRACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.Bool("json", false, "output JSON")
	flags.String("actor-id", "cli", "actor identifier recorded on events")
	flags.String("db-driver", "", "database driver (sqlite or postgres)")
	flags.String("db-dsn", "", "postgres DSN")
	flags.String("redis-addr", "", "redis address; switches the lock driver to redis")
	flags.String("log-level", "", "log level")
	for _, name := range []string{"workspace", "json", "actor-id", "db-driver", "db-dsn", "redis-addr", "log-level"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(planeCmd())
	rootCmd.AddCommand(flightCmd())
	rootCmd.AddCommand(crewCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(serveCmd())
}

// loadConfig reads skytrack.yml (defaults when absent) and layers flags and
// SKYTRACK_* variables on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Apply(viper.GetViper()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app bundles what one command needs; Close releases it in reverse order.
type app struct {
	Config  *config.Config
	Engine  engine.Engine
	Log     logger.Logger
	closers []func() error
}

func (r *app) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i]()
	}
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	rt := &app{Config: cfg, Log: log}
	rt.closers = append(rt.closers, func() error { _ = log.Sync(); return nil })

	store, err := openStore(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, store.Close)

	e := engine.New(store)
	e.Log = log
	switch cfg.Lock.Driver {
	case "redis":
		rl, err := lock.NewRedis(lock.RedisConfig{
			Addr:     cfg.Lock.Redis.Addr,
			Password: cfg.Lock.Redis.Password,
			DB:       cfg.Lock.Redis.DB,
			TTL:      cfg.Lock.Redis.TTL,
			Retry:    lock.DefaultRedisConfig().Retry,
			Prefix:   cfg.Lock.Redis.Prefix,
			Log:      log.With("component", "lock"),
		})
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect redis lock: %w", err)
		}
		rt.closers = append(rt.closers, rl.Close)
		e.Locker = rl
	default:
		e.Locker = lock.NewLocal()
	}
	rt.Engine = e
	return rt, nil
}

func openStore(ctx context.Context, cfg *config.Config) (repo.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		store, err := postgres.Open(ctx, postgres.Config{
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace"), Path: cfg.Database.Path})
		if err != nil {
			return nil, err
		}
		if _, err := migrate.Migrate(ctx, conn); err != nil {
			conn.Close()
			return nil, err
		}
		return repo.New(conn), nil
	}
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	rt, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt.Engine)
}

func actorID() string {
	return viper.GetString("actor-id")
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage skytrack.yml",
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
		Short: "Write a default skytrack.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
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
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			redacted := *cfg
			if redacted.Auth.JWTSecret != "" {
				redacted.Auth.JWTSecret = "***"
			}
			if redacted.Lock.Redis.Password != "" {
				redacted.Lock.Redis.Password = "***"
			}
			return printJSON(redacted)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := loadConfig()
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.Driver == "postgres" {
				store, err := openStore(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				fmt.Println("postgres schema up to date")
				return store.Close()
			}
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace"), Path: cfg.Database.Path})
			if err != nil {
				return err
			}
			defer conn.Close()
			version, err := migrate.Migrate(cmd.Context(), conn)
			if err != nil {
				return err
			}
			fmt.Printf("sqlite schema at version %d\n", version)
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo fleet, crew and flights",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Seed(ctx, actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				if res.Skipped {
					fmt.Println("planes already registered; seed skipped")
					return nil
				}
				fmt.Printf("seeded %d planes, %d crew members, %d flights, %d assignments\n",
					len(res.Planes), len(res.Crew), len(res.Flights), len(res.Assignments))
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every flight, plane and crew change, newest first.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var f repo.EventFilter
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "TS", "Type", "Entity", "Actor", "Payload")
				for _, evt := range items {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, fmt.Sprintf("%s:%d", evt.EntityKind, evt.EntityID), evt.ActorID, evt.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind (flight, plane, crew)")
	cmd.Flags().Int64Var(&f.EntityID, "entity-id", 0, "entity id")
	return cmd
}

func tokenCmd() *cobra.Command {
	var subject string
	var roles []string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token",
		Long:  "Signs an HS256 token with auth.jwt_secret. Meant for local testing; production tokens come from the identity provider.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			for _, r := range roles {
				if _, ok := cfg.Auth.Roles[r]; !ok {
					return fmt.Errorf("unknown role %q", r)
				}
			}
			if ttl == 0 {
				ttl = cfg.Auth.DevTokenTTL
			}
			tok, err := server.SignToken(authConfig(cfg), subject, roles, ttl)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"token": tok, "subject": subject, "roles": roles, "expires_in": ttl.String()})
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "actor id carried by the token")
	cmd.Flags().StringSliceVar(&roles, "role", []string{"ADMIN"}, "role (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default auth.dev_token_ttl)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func authConfig(cfg *config.Config) server.AuthConfig {
	return server.AuthConfig{
		JWTSecret: cfg.Auth.JWTSecret,
		Issuer:    cfg.Auth.Issuer,
		Audience:  cfg.Auth.Audience,
		Allows:    cfg.Allows,
	}
}

func serveCmd() *cobra.Command {
	var basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			rt, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()
			cfg := rt.Config
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret (or SKYTRACK_JWT_SECRET) is required for bearer auth")
			}
			if cmd.Flags().Changed("base-path") {
				cfg.Server.BasePath = basePath
			}

			var m *metrics.Metrics
			if cfg.Metrics.Enabled {
				m = metrics.New(cfg.Metrics.Namespace)
				rt.Engine.Metrics = m
			}
			var limiter *ratelimit.ClientLimiter
			if cfg.Server.RateLimit.Enabled {
				limiter = ratelimit.New(ratelimit.Config{
					RequestsPerSecond: cfg.Server.RateLimit.RPS,
					BurstSize:         cfg.Server.RateLimit.Burst,
				})
				go pruneLimiter(ctx, limiter, rt.Log)
			}
			handler, err := server.New(server.Config{
				Engine:   rt.Engine,
				BasePath: cfg.Server.BasePath,
				Auth:     authConfig(cfg),
				Log:      rt.Log,
				Metrics:  m,
				Limiter:  limiter,
			})
			if err != nil {
				return err
			}
			if d := server.NewWebhookDispatcher(rt.Engine, cfg.Webhooks, rt.Log); d != nil {
				go d.Run(ctx)
			}

			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      handler,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			rt.Log.Info("serving skytrack api",
				"addr", cfg.Server.Addr,
				"base_path", cfg.Server.BasePath,
				"db", cfg.Database.Driver,
				"lock", cfg.Lock.Driver,
			)
			fmt.Printf("Serving SkyTrack API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "", "listen address (default server.addr)")
	_ = viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	cmd.Flags().String("jwt-secret", "", "HS256 secret for bearer tokens")
	_ = viper.BindPFlag("jwt-secret", cmd.Flags().Lookup("jwt-secret"))
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

func pruneLimiter(ctx context.Context, l *ratelimit.ClientLimiter, log logger.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Prune(10 * time.Minute); n > 0 {
				log.Debug("pruned idle rate limiters", "count", n, "remaining", l.Len())
			}
		}
	}
}

func newTable(headers ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row(headers))
	return tw
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printFlights(items []domain.Flight) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable("ID", "Code", "Origin", "Destination", "Departure", "Arrival", "Status", "Plane", "State")
	for _, f := range items {
		tw.AppendRow(table.Row{
			f.ID, f.Code, f.Origin, f.Destination,
			f.DepartureTime.UTC().Format(time.RFC3339), f.ArrivalTime.UTC().Format(time.RFC3339),
			f.Status, optionalID(f.PlaneID), f.State,
		})
	}
	tw.Render()
	return nil
}

func printPlanes(items []domain.Plane) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable("ID", "Registration", "Model", "Status")
	for _, p := range items {
		tw.AppendRow(table.Row{p.ID, p.Registration, p.Model, p.Status})
	}
	tw.Render()
	return nil
}

func printCrew(items []domain.CrewMember) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable("ID", "Name", "Role", "State")
	for _, c := range items {
		tw.AppendRow(table.Row{c.ID, c.FullName, c.Role, c.State})
	}
	tw.Render()
	return nil
}

func printAssignments(items []domain.CrewAssignment) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable("Assignment", "Flight", "Crew", "Name", "Role")
	for _, a := range items {
		name, role := "", ""
		if a.CrewMember != nil {
			name, role = a.CrewMember.FullName, a.CrewMember.Role
		}
		tw.AppendRow(table.Row{a.ID, a.FlightID, a.CrewMemberID, name, role})
	}
	tw.Render()
	return nil
}

func optionalID(id *int64) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprint(*id)
}

func optionalString(cmd *cobra.Command, name, value string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}

func parseInstant(name, raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be RFC 3339 (e.g. 2024-06-01T10:00:00Z): %w", name, err)
	}
	return t, nil
}
