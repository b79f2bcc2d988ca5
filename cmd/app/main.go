package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/atvirokodosprendimai/mailroom/internal/adapters/notify"
	"github.com/atvirokodosprendimai/mailroom/internal/adapters/remotestore"
	"github.com/atvirokodosprendimai/mailroom/internal/app"
	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
	"github.com/atvirokodosprendimai/mailroom/internal/core/usecase"
)

func main() {
	// A missing .env is fine; variables may come from the environment.
	_ = godotenv.Load()

	log := logrus.New()
	cmd := &cli.Command{
		Name:  "mailroom",
		Usage: "Correspondence and company lifecycle tracker with an audit trail",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Sources: cli.EnvVars("MAILROOM_LOG_LEVEL"),
				Usage:   "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Sources: cli.EnvVars("MAILROOM_LOG_FORMAT"),
				Usage:   "Log format (text or json)",
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			return ctx, configureLogger(log, c.String("log-level"), c.String("log-format"))
		},
		Commands: []*cli.Command{
			serveCommand(log),
			exportAuditCommand(),
			setStatusCommand(),
			apiKeyCommand(log),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.WithError(err).Fatal("mailroom failed")
	}
}

func configureLogger(log *logrus.Logger, level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	log.SetLevel(lvl)
	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

func serveCommand(log *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the mailroom HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   ":8080",
				Sources: cli.EnvVars("MAILROOM_ADDR"),
				Usage:   "HTTP listen address",
			},
			&cli.StringFlag{
				Name:    "db-path",
				Value:   "./mailroom.sqlite",
				Sources: cli.EnvVars("MAILROOM_DB_PATH"),
				Usage:   "SQLite file path",
			},
			&cli.StringFlag{
				Name:    "photo-dir",
				Value:   "./photos",
				Sources: cli.EnvVars("MAILROOM_PHOTO_DIR"),
				Usage:   "Directory for correspondence photos; empty disables uploads",
			},
			&cli.BoolFlag{
				Name:    "debug-sql",
				Sources: cli.EnvVars("MAILROOM_DEBUG_SQL"),
				Usage:   "Log every SQL statement",
			},
			&cli.StringFlag{
				Name:    "bootstrap-api-key",
				Sources: cli.EnvVars("MAILROOM_BOOTSTRAP_API_KEY"),
				Usage:   "Optional API key to upsert at startup",
			},
			&cli.StringFlag{
				Name:    "bootstrap-key-name",
				Value:   "bootstrap",
				Sources: cli.EnvVars("MAILROOM_BOOTSTRAP_KEY_NAME"),
				Usage:   "Name for the bootstrap API key, recorded as audit actor",
			},
			&cli.StringSliceFlag{
				Name:    "cors-origin",
				Sources: cli.EnvVars("MAILROOM_CORS_ORIGINS"),
				Usage:   "Allowed browser origin (repeatable)",
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Sources: cli.EnvVars("MAILROOM_WEBHOOK_URL"),
				Usage:   "Outbox event webhook target URL",
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Sources: cli.EnvVars("MAILROOM_WEBHOOK_SECRET"),
				Usage:   "HMAC-SHA256 signing secret for outbound webhook requests",
			},
			&cli.BoolFlag{
				Name:    "auto-create-companies",
				Sources: cli.EnvVars("MAILROOM_AUTO_CREATE_COMPANIES"),
				Usage:   "Create unknown destination companies during intake",
			},
			&cli.DurationFlag{
				Name:    "refresh-delay",
				Value:   usecase.DefaultRefreshDelay,
				Sources: cli.EnvVars("MAILROOM_REFRESH_DELAY"),
				Usage:   "Delay before the company list is re-read from --upstream-url",
			},
			&cli.StringFlag{
				Name:    "upstream-url",
				Sources: cli.EnvVars("MAILROOM_UPSTREAM_URL"),
				Usage:   "Mailroom to re-read companies from after intake creates one",
			},
			&cli.StringFlag{
				Name:    "upstream-api-key",
				Sources: cli.EnvVars("MAILROOM_UPSTREAM_API_KEY"),
				Usage:   "API key for --upstream-url",
			},
			&cli.StringFlag{
				Name:    "smtp-host",
				Sources: cli.EnvVars("MAILROOM_SMTP_HOST"),
				Usage:   "SMTP relay for arrival notices; empty logs notices instead",
			},
			&cli.IntFlag{
				Name:    "smtp-port",
				Value:   587,
				Sources: cli.EnvVars("MAILROOM_SMTP_PORT"),
				Usage:   "SMTP relay port",
			},
			&cli.StringFlag{
				Name:    "smtp-username",
				Sources: cli.EnvVars("MAILROOM_SMTP_USERNAME"),
			},
			&cli.StringFlag{
				Name:    "smtp-password",
				Sources: cli.EnvVars("MAILROOM_SMTP_PASSWORD"),
			},
			&cli.StringFlag{
				Name:    "smtp-from",
				Sources: cli.EnvVars("MAILROOM_SMTP_FROM"),
				Usage:   "Sender address for arrival notices",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := app.Config{
				Addr:                c.String("addr"),
				DBPath:              c.String("db-path"),
				PhotoDir:            c.String("photo-dir"),
				Log:                 log,
				DebugSQL:            c.Bool("debug-sql"),
				BootstrapAPIKey:     c.String("bootstrap-api-key"),
				BootstrapKeyName:    c.String("bootstrap-key-name"),
				AllowedOrigins:      c.StringSlice("cors-origin"),
				WebhookURL:          c.String("webhook-url"),
				WebhookSecret:       c.String("webhook-secret"),
				AutoCreateCompanies: c.Bool("auto-create-companies"),
				RefreshDelay:        c.Duration("refresh-delay"),
				UpstreamURL:         c.String("upstream-url"),
				UpstreamAPIKey:      c.String("upstream-api-key"),
				SMTP: notify.SMTPConfig{
					Host:     c.String("smtp-host"),
					Port:     c.Int("smtp-port"),
					Username: c.String("smtp-username"),
					Password: c.String("smtp-password"),
					From:     c.String("smtp-from"),
				},
			}

			server, closer, err := app.NewServer(ctx, cfg)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}
			defer func() {
				if closeErr := closer.Close(); closeErr != nil {
					log.WithError(closeErr).Error("close resources")
				}
			}()

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.WithField("addr", cfg.Addr).Info("listening")
				if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				log.Info("shutting down")
				return shutdown(server)
			})
			return g.Wait()
		},
	}
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func remoteFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "url",
			Value:   "http://localhost:8080",
			Sources: cli.EnvVars("MAILROOM_URL"),
			Usage:   "Base URL of the mailroom API",
		},
		&cli.StringFlag{
			Name:     "api-key",
			Sources:  cli.EnvVars("MAILROOM_API_KEY"),
			Required: true,
			Usage:    "API key sent as X-API-Key",
		},
	}
}

func exportAuditCommand() *cli.Command {
	return &cli.Command{
		Name:  "export-audit",
		Usage: "Download the audit feed into an XLSX workbook",
		Flags: append(remoteFlags(),
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Value:   "audit.xlsx",
				Usage:   "Output file",
			},
			&cli.StringFlag{
				Name:  "entity",
				Usage: "Only entries for COMPANY or CORRESPONDENCE",
			},
			&cli.StringFlag{
				Name:  "action",
				Usage: "Only CREATE, UPDATE or DELETE entries",
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			client := remotestore.NewClient(c.String("url"), c.String("api-key"))
			entries, err := client.AuditEntries(ctx, domain.AuditFilter{
				EntityKind: domain.EntityKind(strings.ToUpper(c.String("entity"))),
				Action:     domain.Action(strings.ToUpper(c.String("action"))),
			})
			if err != nil {
				return err
			}

			f, err := os.Create(c.String("out"))
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			if err := usecase.WriteAuditWorkbook(f, entries); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close output: %w", err)
			}
			fmt.Fprintf(c.Root().Writer, "wrote %d audit entries to %s\n", len(entries), c.String("out"))
			return nil
		},
	}
}

func setStatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "set-status",
		Usage:     "Change the status of a correspondence",
		ArgsUsage: "<id> <status>",
		Flags:     remoteFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 2 {
				return fmt.Errorf("expected <id> <status>")
			}
			var id int64
			if _, err := fmt.Sscan(c.Args().Get(0), &id); err != nil {
				return fmt.Errorf("id must be integer: %w", err)
			}
			status, err := domain.ParseStatus(c.Args().Get(1))
			if err != nil {
				return err
			}

			client := remotestore.NewClient(c.String("url"), c.String("api-key"))
			corr, err := client.UpdateCorrespondence(ctx, id, remotestore.CorrespondenceUpdate{Status: status})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "correspondence %d is now %s\n", corr.ID, corr.Status)
			return nil
		},
	}
}

func apiKeyCommand(log *logrus.Logger) *cli.Command {
	dbFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "db-path",
			Value:   "./mailroom.sqlite",
			Sources: cli.EnvVars("MAILROOM_DB_PATH"),
			Usage:   "SQLite file path",
		}
	}
	withKeys := func(fn func(ctx context.Context, c *cli.Command, keys *usecase.AuthService) error) cli.ActionFunc {
		return func(ctx context.Context, c *cli.Command) error {
			keys, closer, err := app.OpenKeys(ctx, c.String("db-path"), log)
			if err != nil {
				return err
			}
			defer closer.Close()
			return fn(ctx, c, keys)
		}
	}

	return &cli.Command{
		Name:  "api-key",
		Usage: "Manage operator API keys in the local database",
		Commands: []*cli.Command{
			{
				Name:      "issue",
				Flags:     []cli.Flag{dbFlag()},
				Usage:     "Create a key, replacing any key with the same name",
				ArgsUsage: "<name>",
				Action: withKeys(func(ctx context.Context, c *cli.Command, keys *usecase.AuthService) error {
					token, err := keys.Issue(ctx, c.Args().First())
					if err != nil {
						return err
					}
					fmt.Fprintln(c.Root().Writer, token)
					return nil
				}),
			},
			{
				Name:      "revoke",
				Flags:     []cli.Flag{dbFlag()},
				Usage:     "Deactivate a key",
				ArgsUsage: "<name>",
				Action: withKeys(func(ctx context.Context, c *cli.Command, keys *usecase.AuthService) error {
					return keys.Revoke(ctx, c.Args().First())
				}),
			},
			{
				Name:  "list",
				Usage: "Show key names and last use",
				Flags: []cli.Flag{dbFlag()},
				Action: withKeys(func(ctx context.Context, c *cli.Command, keys *usecase.AuthService) error {
					list, err := keys.Keys(ctx)
					if err != nil {
						return err
					}
					w := c.Root().Writer
					for _, k := range list {
						lastUsed := "never"
						if k.LastUsedAt != nil {
							lastUsed = k.LastUsedAt.Format(time.RFC3339)
						}
						state := "active"
						if !k.Active {
							state = "revoked"
						}
						fmt.Fprintf(w, "%s\t%s\tcreated %s\tlast used %s\n", k.Name, state, k.CreatedAt.Format(time.RFC3339), lastUsed)
					}
					return nil
				}),
			},
		},
	}
}
