// Package main is ledgerctl, the operator CLI: schema migrations, demo data,
// balance rebuilds, audit history and development tokens.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"stockledger/internal/app"
	"stockledger/internal/config"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/domain/auth"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

const usage = `usage: ledgerctl [-config path] <command> [flags]

commands:
  migrate [up|down|status|version]   run schema migrations
  seed    [-moves N]                 create demo catalogs and moves
  rebuild                            re-project every balance from the ledger
  history -type T -id ID [-limit N]  print the audit trail of one entity
  token   -user U [-roles a,b] [-warehouses id1,id2] [-email E]
                                     sign a bearer token
`

// operator is the identity recorded in audit entries written by ledgerctl.
var operator = &appctx.UserContext{
	UserID:  "ledgerctl",
	Roles:   []string{auth.RoleAdmin},
	IsAdmin: true,
}

func main() {
	global := flag.NewFlagSet("ledgerctl", flag.ExitOnError)
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	configPath := global.String("config", os.Getenv("STOCKLEDGER_CONFIG"), "path to config file")
	_ = global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) == 0 {
		global.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: true,
		Encoding:    cfg.Log.Encoding,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx := logger.WithLogger(context.Background(), log)
	ctx = appctx.WithUser(ctx, operator)

	if err := run(ctx, cfg, args[0], args[1:]); err != nil {
		log.Errorw("command failed", "command", args[0], "error", err)
		log.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, cmd string, args []string) error {
	switch cmd {
	case "migrate":
		return runMigrate(ctx, cfg, args)
	case "seed":
		return runSeed(ctx, cfg, args)
	case "rebuild":
		return runRebuild(ctx, cfg)
	case "history":
		return runHistory(ctx, cfg, args)
	case "token":
		return runToken(cfg, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runMigrate(ctx context.Context, cfg config.Config, args []string) error {
	if cfg.Database.Driver != config.DriverPostgres {
		return errors.New("migrate needs the postgres driver")
	}
	command := postgres.MigrateUp
	if len(args) > 0 {
		command = args[0]
	}
	return postgres.Migrate(ctx, cfg.Database.DSN, command)
}

func runRebuild(ctx context.Context, cfg config.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Stock.RebuildBalances(ctx)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runHistory(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	entityType := fs.String("type", "", "entity type: item, warehouse, unit, partner, stock_move, stock_balance")
	entityID := fs.String("id", "", "entity id")
	limit := fs.Int("limit", 20, "maximum entries")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *entityType == "" || *entityID == "" {
		return errors.New("history needs -type and -id")
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.Storage.Audit.History(ctx, *entityType, *entityID, *limit)
	if err != nil {
		return err
	}
	return printJSON(entries)
}

func runToken(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	userID := fs.String("user", "", "user id")
	email := fs.String("email", "", "email")
	roles := fs.String("roles", "", "comma-separated roles")
	warehouses := fs.String("warehouses", "", "comma-separated warehouse ids")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not configured")
	}

	jwtCfg := auth.DefaultJWTConfig(cfg.Auth.JWTSecret)
	if cfg.Auth.Issuer != "" {
		jwtCfg.Issuer = cfg.Auth.Issuer
	}
	if cfg.Auth.TokenTTL > 0 {
		jwtCfg.AccessTokenTTL = cfg.Auth.TokenTTL
	}

	token, expiresAt, err := auth.NewJWTService(jwtCfg).GenerateAccessToken(auth.Subject{
		UserID:       *userID,
		Email:        *email,
		Roles:        splitList(*roles),
		WarehouseIDs: splitList(*warehouses),
	})
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"accessToken": token,
		"expiresAt":   expiresAt,
	})
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
