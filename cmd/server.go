package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pdfview/pdfview/internal/config"
	"github.com/pdfview/pdfview/internal/db"
	"github.com/pdfview/pdfview/internal/frame"
	"github.com/pdfview/pdfview/internal/host"
	"github.com/pdfview/pdfview/internal/notifications"
	"github.com/pdfview/pdfview/internal/server"
	"github.com/pdfview/pdfview/internal/session"
	"github.com/pdfview/pdfview/internal/synctex"
	"github.com/pdfview/pdfview/internal/viewer"
)

const (
	shutdownTimeout  = 5 * time.Second
	notificationsTTL = 30 * 24 * time.Hour
)

var (
	serverPort    int
	serverNoWatch bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the pdfview daemon",
	Long: `Starts the pdfview daemon: the REST API used by the other commands,
the viewer pages with their WebSockets, and the file watchers that refresh
open documents. Viewers open when the daemon stopped are restored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(false)

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serverPort
		}

		dbPath := filepath.Join(cfg.DataDir, "state.db")
		database, err := db.Open(dbPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		notifStore := notifications.NewStore(database)
		dispatcher := notifications.NewDispatcher(notifStore, cfg.NotifyWebhook)
		if n, err := notifStore.Prune(context.Background(), time.Now().Add(-notificationsTTL)); err != nil {
			log.Printf("server: pruning notifications: %v", err)
		} else if n > 0 && verbose {
			log.Printf("server: pruned %d old notifications", n)
		}

		h := host.New(cfg, dispatcher)
		controller := viewer.NewController(viewer.Options{
			Config: cfg,
			Host:   h,
			Mapper: newMapper(cfg),
		})
		h.SetLookup(controller.FindByTag)

		srv := server.New(server.Config{
			Addr:     cfg.Address(),
			AllowAll: cfg.Debug,
		}, database)
		r := srv.Router()
		viewer.RegisterRoutes(r, controller)
		frame.RegisterRoutes(r, controller, frame.Options{
			PDFJSURL: cfg.Server.PDFJSURL,
			Keymap:   frame.DefaultKeymap,
		})
		notifications.RegisterRoutes(r, notifStore)

		sessions := session.NewStore(database)
		stopTracking := session.Track(controller, sessions)
		defer stopTracking()

		if !serverNoWatch {
			if stop, err := watchConfig(controller, h, dispatcher); err != nil {
				log.Printf("server: %v", err)
			} else if stop != nil {
				defer stop()
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return controller.Run(gctx)
		})
		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		fmt.Fprintf(os.Stderr, "pdfview server %s starting on %s\n", Version, cfg.BaseURL())
		fmt.Fprintf(os.Stderr, "  Database: %s\n", dbPath)

		restored, err := session.Restore(gctx, controller, sessions)
		if err != nil {
			log.Printf("server: restoring viewers: %v", err)
		}
		fmt.Fprintf(os.Stderr, "  Viewers restored: %d\n", len(restored))

		return g.Wait()
	},
}

// newMapper leaves the per-call timeout to the controller, which follows
// mapper_timeout_ms across config reloads.
func newMapper(cfg *config.Config) *synctex.Mapper {
	return synctex.NewMapper(cfg.SynctexPath, 0)
}

// watchConfig applies edits of the config file to the running daemon. It
// returns a nil stop function when there is no file to watch.
func watchConfig(c *viewer.Controller, h *host.Host, d *notifications.Dispatcher) (func(), error) {
	if _, err := os.Stat(cfgFile); err != nil {
		return nil, nil
	}
	return config.Watch(cfgFile, func(cfg *config.Config) {
		if err := c.UpdateConfig(cfg); err != nil {
			log.Printf("server: applying config: %v", err)
			return
		}
		h.SetConfig(cfg)
		d.SetWebhook(cfg.NotifyWebhook)
		log.Printf("server: reloaded %s", cfgFile)
	})
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 7410, "Port to listen on (overrides server.port)")
	serverCmd.Flags().BoolVar(&serverNoWatch, "no-watch", false, "Do not reload the config file when it changes")
	rootCmd.AddCommand(serverCmd)
}
