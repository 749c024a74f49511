package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"leaguestats/pkg/catalog"
	"leaguestats/pkg/formula"
	"leaguestats/pkg/logging"
	"leaguestats/pkg/ocr"
	"leaguestats/process"
	"leaguestats/process/report"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// bootstrap loads config, the logger and the database shared by every
// long-running command.
func bootstrap(ctx context.Context) (*app, error) {
	cfg := loadConfig()
	base := logging.Init(cfg.LogLevel, cfg.LogFormat, cfg.Production())
	log := logrus.NewEntry(base)

	db, err := initDB(cfg, log)
	if err != nil {
		return nil, err
	}
	recognizer := ocr.NewGuarded(
		ocr.NewTesseract(ocr.TesseractConfig{Language: cfg.OCRLanguage, Whitelist: ocr.StatChars}),
		cfg.guardOptions(),
		log,
	)
	return newApp(ctx, cfg, log, db, recognizer)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.CatalogPath != "" {
				if err := catalog.Watch(ctx, a.cfg.CatalogPath, a.catalogs, a.log.WithField("component", "catalog")); err != nil {
					a.log.WithError(err).Warn("catalog hot reload disabled")
				}
			}

			srv := &http.Server{
				Addr:              ":" + a.cfg.Port,
				Handler:           newHTTPHandler(a),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				a.log.WithField("addr", srv.Addr).Info("listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}
			a.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			cfg.AutoMigrate = true
			log := logrus.NewEntry(logging.Init(cfg.LogLevel, cfg.LogFormat, cfg.Production()))
			db, err := initDB(cfg, log)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migration completed")
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	var (
		dir     string
		workers int
		once    bool
		maxKeep int64
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Ingest screenshots dropped into a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if dir == "" {
				dir = a.cfg.WatchDir
			}
			if workers <= 0 {
				workers = a.cfg.Workers
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			w, err := process.New(process.Options{
				Dir:             dir,
				Workers:         workers,
				ArchiveMaxBytes: maxKeep,
			}, a.pipeline, a.uploads, a.log.WithField("component", "watch"))
			if err != nil {
				return err
			}
			if once {
				st, err := w.Scan(ctx)
				a.log.WithFields(logrus.Fields{
					"processed": st.Processed,
					"failed":    st.Failed,
					"deferred":  st.Deferred,
				}).Info("scan finished")
				return err
			}
			return w.Watch(ctx)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Directory to watch (default WATCH_DIR)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent screenshots (default WORKERS)")
	cmd.Flags().BoolVar(&once, "once", false, "Process what is there and exit")
	cmd.Flags().Int64Var(&maxKeep, "archive-max-bytes", 1<<20, "Downscale archived images above this size, 0 to keep originals")
	return cmd
}

func formulaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formula",
		Short: "Formula tools",
	}
	var catalogPath string
	check := &cobra.Command{
		Use:   "check <source>",
		Short: "Compile a formula against the stat catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if catalogPath == "" {
				catalogPath = loadConfig().CatalogPath
			}
			cat, err := catalog.LoadOrDefault(catalogPath)
			if err != nil {
				return err
			}
			return checkFormula(cmd.OutOrStdout(), args[0], cat)
		},
	}
	check.Flags().StringVar(&catalogPath, "catalog", "", "Catalog file (default CATALOG_PATH)")
	cmd.AddCommand(check)
	return cmd
}

// checkFormula prints the referenced fields, or the error with a caret under
// the offending position.
func checkFormula(w io.Writer, src string, cat *catalog.Catalog) error {
	compiled, err := formula.Compile(src, cat)
	if err != nil {
		var ferr *formula.Error
		if errors.As(err, &ferr) {
			fmt.Fprintln(w, src)
			fmt.Fprintln(w, strings.Repeat(" ", ferr.Pos)+"^")
		}
		return err
	}
	fmt.Fprintf(w, "ok, uses: %s\n", strings.Join(compiled.Fields, ", "))
	return nil
}

func tokenCmd() *cobra.Command {
	var (
		user string
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			tok, err := issueToken(cfg.JWTSecret, user, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Subject username")
	cmd.Flags().StringVar(&role, "role", "user", "Role claim (administrator for write access)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func reportCmd() *cobra.Command {
	var (
		name      string
		season    string
		team      string
		matches   []string
		formation string
		top       int
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a leaderboard for a stored formula",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := a.formulas.List(ctx)
			if err != nil {
				return err
			}
			for _, row := range rows {
				if !strings.EqualFold(row.Name, name) {
					continue
				}
				compiled, err := a.cache.Get(row.Source, a.catalogs.Load())
				if err != nil {
					return err
				}
				_, err = report.Leaderboard(ctx, cmd.OutOrStdout(), a.stats, a.engine, toFormula(row), compiled, report.Scope{
					MatchIDs:  matches,
					SeasonID:  season,
					TeamID:    team,
					Formation: formation,
					TopN:      top,
				})
				return err
			}
			return fmt.Errorf("formula %q not found", name)
		},
	}
	cmd.Flags().StringVar(&name, "formula", "", "Formula name")
	cmd.Flags().StringVar(&season, "season", "", "Season id")
	cmd.Flags().StringVar(&team, "team", "", "Team id, with --season")
	cmd.Flags().StringSliceVar(&matches, "match", nil, "Match ids (repeatable)")
	cmd.Flags().StringVar(&formation, "formation", "", "Formation for role scoping")
	cmd.Flags().IntVar(&top, "top", 10, "Rows to print, 0 for all")
	_ = cmd.MarkFlagRequired("formula")
	return cmd
}
