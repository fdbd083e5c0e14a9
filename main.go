package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dilipdevops/portfolio/internal/config"
	"github.com/dilipdevops/portfolio/internal/content"
	"github.com/dilipdevops/portfolio/internal/log"
	"github.com/dilipdevops/portfolio/internal/page"
	"github.com/dilipdevops/portfolio/internal/store"
	"github.com/dilipdevops/portfolio/internal/submission"
)

var (
	flagPort string
	flagDB   string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:           "portfolio",
	Short:         "DevOps portfolio site",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if flagPort != "" {
			cfg.Port = flagPort
		}
		if flagDB != "" {
			cfg.DBPath = flagDB
		}
		log.SetLevel(log.ParseLevel(cfg.LogLevel))
		return nil
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the site (default)",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the backup database and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		version, dirty, err := db.SchemaVersion(cmd.Context())
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{"db": cfg.DBPath, "version": version, "dirty": dirty}).Info("database migrated")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagPort, "port", "", "listen port (overrides PORT)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite file (overrides DB_PATH)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal("portfolio:", err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	site, err := content.Load(cfg.ContentPath)
	if err != nil {
		return err
	}
	contentStore := content.NewStore(site)

	pipeline := submission.New(
		submission.NewFormRelay(cfg.RelayEndpoint(), cfg.RelayTimeout),
		submission.NewKVLog(db, submission.ContactBackupKey),
		submission.NewKVLog(db, submission.InterviewBackupKey),
		submission.Config{NextURL: cfg.RelayNextURL, FallbackEmail: cfg.FallbackEmail},
	)

	pageCfg := page.DefaultConfig()
	pageCfg.ContactDecay = cfg.ContactDecay
	pageCfg.InterviewDecay = cfg.InterviewDecay
	pages := page.NewRegistry(contentStore, pipeline, pageCfg, cfg.PageTTL)

	var watcher *content.Watcher
	if cfg.ContentPath != "" {
		if watcher, err = content.NewWatcher(cfg.ContentPath, contentStore); err != nil {
			return err
		}
		watcher.OnReload(pages.Reconfigure)
	}

	g, gctx := errgroup.WithContext(ctx)

	app := &App{
		Pages:   pages,
		Content: contentStore,
		Health:  db,
		Done:    gctx.Done(),
	}
	handler, err := app.Router()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		// no WriteTimeout: event streams stay open for the life of a page
	}

	g.Go(func() error {
		log.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return pages.Run(gctx, time.Minute)
	})

	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx) })
	}

	err = g.Wait()
	log.Info("server stopped")
	return err
}
