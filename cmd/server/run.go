package main

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/and161185/goph-chat/api/chatv1"
	"github.com/and161185/goph-chat/internal/auth"
	"github.com/and161185/goph-chat/internal/config"
	pkgcrypto "github.com/and161185/goph-chat/internal/crypto"
	"github.com/and161185/goph-chat/internal/events"
	"github.com/and161185/goph-chat/internal/limiter"
	"github.com/and161185/goph-chat/internal/migrate"
	"github.com/and161185/goph-chat/internal/presence"
	"github.com/and161185/goph-chat/internal/repository"
	"github.com/and161185/goph-chat/internal/repository/memory"
	"github.com/and161185/goph-chat/internal/repository/postgres"
	"github.com/and161185/goph-chat/internal/router"
	grpcserver "github.com/and161185/goph-chat/internal/server/grpc"
	"github.com/and161185/goph-chat/internal/service"
	"github.com/and161185/goph-chat/internal/session"
	"github.com/and161185/goph-chat/internal/telemetry"
)

const shutdownGrace = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the chat server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg.Debug)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		return run(cmd.Context(), cfg, logger)
	},
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// stores groups the repositories and the login limiter of one backend.
type stores struct {
	users    repository.UserRepository
	messages repository.MessageRepository
	channels repository.ChannelRepository
	limiter  limiter.Limiter
	close    func()
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	pol := limiter.Policy{
		Window:   cfg.Auth.LoginWindow,
		MaxFails: cfg.Auth.LoginMaxFails,
		BlockFor: cfg.Auth.LoginBlockFor,
	}
	if cfg.Database.Memory {
		logger.Warn("using in-memory store; data is lost on restart")
		m := memory.New()
		return &stores{
			users: m.Users(), messages: m.Messages(), channels: m.Channels(),
			limiter: limiter.NewMemory(pol), close: func() {},
		}, nil
	}

	if err := migrate.Up(ctx, cfg.Database.DSN); err != nil {
		return nil, err
	}
	db, err := postgres.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	return &stores{
		users:    postgres.NewUserRepo(db),
		messages: postgres.NewMessageRepo(db),
		channels: postgres.NewChannelRepo(db),
		limiter:  limiter.NewPG(db.Pool, pol),
		close:    db.Close,
	}, nil
}

func openPublisher(cfg *config.Config, logger *zap.Logger) (events.Publisher, error) {
	if cfg.NATS.URL == "" {
		return events.Nop{}, nil
	}
	return events.DialNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
}

// newGRPCServer builds the server with the chat and health services.
func newGRPCServer(cfg *config.Config, logger *zap.Logger, v auth.Verifier, chat chatv1.ChatServer) (*grpc.Server, *health.Server, error) {
	opts := grpcserver.ServerOptions(logger, v)
	if cfg.TLS.Cert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLS.Cert, cfg.TLS.Key)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, grpc.Creds(creds))
	} else {
		logger.Warn("serving without TLS (dev mode)")
	}
	s := grpc.NewServer(opts...)
	chatv1.RegisterChatServer(s, chat)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	return s, hs, nil
}

// run wires every component and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
	)

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()
	metrics, err := telemetry.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	pub, err := openPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = pub.Close() }()

	uploads, err := service.NewUploadService(ctx, service.S3Config{
		Region:        cfg.S3.Region,
		AccessKey:     cfg.S3.AccessKey,
		SecretKey:     cfg.S3.SecretKey,
		Endpoint:      cfg.S3.Endpoint,
		Bucket:        cfg.S3.Bucket,
		PublicBaseURL: cfg.S3.PublicBaseURL,
		Expires:       cfg.S3.PresignTTL,
	})
	if err != nil {
		return err
	}

	tokens := auth.NewTokens([]byte(cfg.Auth.JWTKey), cfg.Auth.AccessTTL)
	authSvc := service.NewAuthService(st.users, tokens, pkgcrypto.NewHasher(pkgcrypto.DefaultParams), st.limiter)
	historySvc := service.NewHistoryService(st.users, st.messages, st.channels, cfg.Channels.MaxMembers, logger)

	relay := events.NewPresenceRelay(pub, events.DefaultRelayBuffer, logger)
	defer relay.Close()
	reg := presence.NewRegistry(logger, presence.WithObserver(relay.Observe))
	if err := metrics.ObserveOnline(reg.OnlineCount); err != nil {
		return err
	}

	rt := router.New(router.Deps{
		Users:     st.users,
		Messages:  st.messages,
		Channels:  st.channels,
		Directory: reg,
		Publisher: pub,
		Metrics:   metrics,
		Log:       logger,
	})
	sessions := session.NewManager(tokens, reg, rt, session.Config{
		HandshakeTimeout: cfg.Session.HandshakeTimeout,
		OutboundBuffer:   cfg.Session.OutboundBuffer,
		WriterGrace:      cfg.Session.WriterGrace,
	}, logger)

	s, hs, err := newGRPCServer(cfg, logger, tokens, grpcserver.New(authSvc, historySvc, uploads, sessions, tokens))
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", lis.Addr().String()), zap.Bool("tls", cfg.TLS.Cert != ""))
		if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		hs.Shutdown()
		// live connections end first so GracefulStop does not wait on them
		reg.Close()

		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(shutdownGrace):
			s.Stop()
		}
		return nil
	})

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}
