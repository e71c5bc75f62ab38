package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	jwttoken "leadtrack/internal/jwt_token"
	"leadtrack/internal/leads/schema"
	"leadtrack/internal/leads/service"
	"leadtrack/internal/platform/config"
	"leadtrack/internal/platform/logger"
	"leadtrack/internal/platform/postgres"
	"leadtrack/internal/recordstore/backend"
	"leadtrack/internal/tracking"
)

const commandTimeout = 30 * time.Second

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "leadtrackctl",
		Short:         "Operator tasks for the leadtrack service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
	}
	root.AddCommand(
		newHashTokenCommand(),
		newIssueTokenCommand(),
		newMigrateCommand(),
		newPingCommand(),
		newLookupCommand(),
	)
	return root
}

// newHashTokenCommand prints the ADMIN_TOKEN_HASH value for a bootstrap secret
// read from the first line of stdin.
func newHashTokenCommand() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-token",
		Short: "Hash a bootstrap admin secret read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("read secret: %w", err)
			}
			secret = strings.TrimRight(secret, "\r\n")
			if len(secret) < 16 {
				return errors.New("secret must be at least 16 characters")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
			if err != nil {
				return fmt.Errorf("hash secret: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return err
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}

func newIssueTokenCommand() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Sign an admin bearer token with the configured JWT key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if subject == "" {
				return errors.New("--subject is required")
			}
			if ttl == 0 {
				ttl = cfg.Auth.TokenTTL
			}
			svc := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
			token, err := svc.GenerateAdminToken(subject, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "operator the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to ADMIN_TOKEN_TTL)")
	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load(cmd)
			if err != nil {
				return err
			}
			if cfg.Store.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			pool, err := postgres.Connect(ctx, cfg.Store.DatabaseURL, postgres.DefaultPoolConfig())
			if err != nil {
				return err
			}
			defer pool.Close()
			version, err := postgres.Migrate(ctx, pool, log)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return err
		},
	}
}

func newPingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Read one row from the configured lead table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(ctx context.Context, leads *service.Service) error {
				if err := leads.Ping(ctx); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s table reachable\n", leads.Variant().Table())
				return err
			})
		},
	}
}

func newLookupCommand() *cobra.Command {
	var pay bool
	cmd := &cobra.Command{
		Use:   "lookup CPF",
		Short: "Print the tracking timeline a customer would see",
		Long: "Print the tracking timeline a customer would see. With --pay the customs fee\n" +
			"is then applied as the widget does, and the released timeline is printed.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, leads *service.Service) error {
				session := tracking.NewSession(tracking.NewTracker(leads))
				if _, err := session.Submit(ctx, args[0]); err != nil {
					return err
				}
				if pay {
					if _, err := session.Pay(ctx); err != nil {
						return err
					}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(session.Current())
			})
		},
	}
	cmd.Flags().BoolVar(&pay, "pay", false, "apply the customs fee after the lookup")
	return cmd
}

func load(cmd *cobra.Command) (config.Server, *slog.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Server{}, nil, err
	}
	return cfg, logger.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel), nil
}

// withService opens the configured store and runs fn against a lead service
// without cache or audit sink.
func withService(cmd *cobra.Command, fn func(ctx context.Context, leads *service.Service) error) error {
	cfg, log, err := load(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	variant, err := schema.ParseVariant(cfg.Store.SchemaVariant)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	store, closeStore, err := backend.Open(ctx, cfg.Store, variant, log)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(ctx, service.New(store, variant, service.WithLogger(log)))
}
