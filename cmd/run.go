package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/realDragonium/bungeespoof"
	"github.com/realDragonium/bungeespoof/api"
	"github.com/realDragonium/bungeespoof/config"
	"github.com/realDragonium/bungeespoof/internal/log"
	"github.com/realDragonium/bungeespoof/relay"
)

func newRunCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the spoofing relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runProxy(ctx, *configFile)
		},
	}
}

func runProxy(ctx context.Context, configPath string) error {
	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	logger, err := log.Init(cfg.Log)
	if err != nil {
		return err
	}
	logger.Infof("Starting up bungeespoof %s", version)

	store, err := config.NewPolicyStore(cfg.Policy)
	if err != nil {
		return err
	}
	session, err := newSession(cfg.Session)
	if err != nil {
		return err
	}
	resolver := newResolver(cfg)
	interceptor := bungeespoof.NewInterceptor(store.Reader(), session, resolver, bungeespoof.NewLogNotifier(logger))
	hooks := &bungeespoof.Hooks{}
	hooks.Register(interceptor)
	logger.Info(cfg.Policy.InfoString())

	loader.Watch(func(newCfg config.Config, err error) {
		if err != nil {
			logger.WithError(err).Warn("config change ignored")
			return
		}
		if err := store.Store(newCfg.Policy); err != nil {
			logger.WithError(err).Warn("config change ignored")
			return
		}
		logger.Infof("config file changed, %s", newCfg.Policy.InfoString())
	})

	r, err := relay.New(cfg.Relay, hooks, session, logger)
	if err != nil {
		return err
	}
	ln, upg, err := relay.Listen(cfg.Relay, logger)
	if err != nil {
		return err
	}

	if cfg.API.Enabled {
		readConfig := config.NewFileReader(configPath)
		reload := func() error {
			newCfg, err := readConfig()
			if err != nil {
				return err
			}
			return store.Store(newCfg.Policy)
		}
		adminAPI := api.NewAPI(store, reload, resolver, logger)
		go func() {
			if err := adminAPI.Run(cfg.API.Bind); err != nil {
				logger.WithError(err).Error("admin api stopped")
			}
		}()
		defer adminAPI.Close()
		logger.Infof("Admin api listening on %s", cfg.API.Bind)
	}

	go r.Serve(ctx, ln)
	logger.Infof("Relaying %s -> %s", cfg.Relay.ListenTo, cfg.Relay.ProxyTo)

	if upg == nil {
		<-ctx.Done()
		ln.Close()
		return nil
	}
	defer upg.Stop()
	if err := upg.Ready(); err != nil {
		return err
	}
	select {
	case <-upg.Exit():
	case <-ctx.Done():
	}
	ln.Close()
	waitForConnections(r, logger)
	return nil
}

func waitForConnections(r *relay.Relay, logger logrus.FieldLogger) {
	logger.Info("Waiting for all connections to be closed before shutting down")
	for r.ActiveConnections() > 0 {
		time.Sleep(time.Second)
	}
	logger.Info("All connections closed, shutting down process")
}
