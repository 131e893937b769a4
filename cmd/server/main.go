// Command server runs the meeting-bot control plane: the HTTP API, the
// lifecycle state machine, and the launch path that hands bots to either
// dedicated compute workers or the shared work queue.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/plugin/opentelemetry/tracing"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"

	"github.com/tbourn/go-meetbot-backend/internal/command"
	"github.com/tbourn/go-meetbot-backend/internal/config"
	httpapi "github.com/tbourn/go-meetbot-backend/internal/http"
	"github.com/tbourn/go-meetbot-backend/internal/http/handlers"
	"github.com/tbourn/go-meetbot-backend/internal/launcher"
	"github.com/tbourn/go-meetbot-backend/internal/observability"
	"github.com/tbourn/go-meetbot-backend/internal/provision"
	"github.com/tbourn/go-meetbot-backend/internal/queue"
	"github.com/tbourn/go-meetbot-backend/internal/repo"
	"github.com/tbourn/go-meetbot-backend/internal/sysutil"
)

func main() {
	// .env is optional; real deployments configure via the environment.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Info().
		Str("app", cfg.AppName).
		Str("version", cfg.AppVersion).
		Str("mode", cfg.DeploymentMode).
		Msg("starting")

	gin.SetMode(cfg.GinMode)

	ctx := context.Background()

	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, cfg.AppVersion)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			log.Fatal().Err(err).Msg("gorm tracing plugin failed")
		}
	}

	l, closeLaunch, err := buildLauncher(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("launcher setup failed")
	}

	bus, err := command.NewRedisBus(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("command bus setup failed")
	}

	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, l, bus, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if err := bus.Close(); err != nil {
		log.Error().Err(err).Msg("command bus close failed")
	}
	if closeLaunch != nil {
		if err := closeLaunch(); err != nil {
			log.Error().Err(err).Msg("launch path close failed")
		}
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
	log.Info().Msg("bye")
}

// buildLauncher constructs the launch path for the configured deployment
// mode. The returned close function releases mode-specific resources and
// may be nil.
func buildLauncher(cfg config.Config) (handlers.BotLauncher, func() error, error) {
	mode, err := launcher.ParseMode(cfg.DeploymentMode)
	if err != nil {
		return nil, nil, err
	}

	switch mode {
	case launcher.ModeIsolatedCompute:
		clientset, err := newKubernetesClient()
		if err != nil {
			return nil, nil, err
		}
		prov, err := provision.NewPodProvisioner(clientset, provision.Options{
			Namespace:     cfg.Worker.Namespace,
			Image:         cfg.Worker.Image,
			ConfigMapName: cfg.Worker.ConfigMapName,
			SecretName:    cfg.Worker.SecretName,
			Resources: provision.ResourceProfile{
				CPURequest:              cfg.Worker.CPURequest,
				MemoryRequest:           cfg.Worker.MemoryRequest,
				EphemeralStorageRequest: cfg.Worker.EphemeralStorageRequest,
				MemoryLimit:             cfg.Worker.MemoryLimit,
				EphemeralStorageLimit:   cfg.Worker.EphemeralStorageLimit,
			},
		})
		if err != nil {
			return nil, nil, err
		}
		l, err := launcher.New(mode, prov, nil)
		return l, nil, err

	default: // launcher.ModeSharedQueue
		qc, err := queue.NewClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		l, err := launcher.New(mode, nil, qc)
		return l, qc.Close, err
	}
}

// newKubernetesClient prefers in-cluster credentials and falls back to the
// local kubeconfig for development.
func newKubernetesClient() (kubernetes.Interface, error) {
	if restCfg, err := rest.InClusterConfig(); err == nil {
		return kubernetes.NewForConfig(restCfg)
	}

	path := sysutil.FirstNonEmpty(os.Getenv("KUBECONFIG"), filepath.Join(homedir.HomeDir(), ".kube", "config"))
	restCfg, err := clientcmd.BuildConfigFromFlags("", path)
	if err != nil {
		return nil, err
	}
	return kubernetes.NewForConfig(restCfg)
}
