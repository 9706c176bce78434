// Package httpserver manages server creation and api routing.
package httpserver

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/accountdelivery"
	"github.com/go-petr/pet-ledger/internal/accountrepo"
	"github.com/go-petr/pet-ledger/internal/accountservice"
	"github.com/go-petr/pet-ledger/internal/challengerepo"
	"github.com/go-petr/pet-ledger/internal/challengeservice"
	"github.com/go-petr/pet-ledger/internal/entryrepo"
	"github.com/go-petr/pet-ledger/internal/historyservice"
	"github.com/go-petr/pet-ledger/internal/ledgerservice"
	"github.com/go-petr/pet-ledger/internal/metrics"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/internal/notification"
	"github.com/go-petr/pet-ledger/internal/settlement"
	"github.com/go-petr/pet-ledger/internal/sweeper"
	"github.com/go-petr/pet-ledger/internal/transactiondelivery"
	"github.com/go-petr/pet-ledger/internal/transactionrepo"
	"github.com/go-petr/pet-ledger/pkg/configpkg"
	"github.com/go-petr/pet-ledger/pkg/currencypkg"
	"github.com/go-petr/pet-ledger/pkg/tokenpkg"
	"github.com/go-petr/pet-ledger/pkg/web"
)

// Server holds the connections, the services, the router and configuration.
type Server struct {
	DB       *sql.DB
	Redis    redis.UniversalClient
	Engine   *gin.Engine
	Config   configpkg.Config
	Ledger   *ledgerservice.Service
	Sweeper  *sweeper.Sweeper
	Notifier notification.Dispatcher
	Metrics  *metrics.Metrics

	webhook *notification.WebhookDispatcher
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

// Start runs the notification workers until ctx is done or Close is called.
func (s *Server) Start(ctx context.Context) {
	if s.webhook != nil {
		s.webhook.Start(ctx)
	}
}

// Close drains the pending notifications.
func (s *Server) Close() {
	if s.webhook != nil {
		s.webhook.Close()
	}
}

// New creates Server type with instantiated domains and routes.
func New(conn *sql.DB, rdb redis.UniversalClient, logger zerolog.Logger, config configpkg.Config) (*Server, error) {
	config = config.Defaults()

	m := metrics.New(prometheus.NewRegistry())

	accountRepo := accountrepo.NewRepoPGS(conn)
	entryRepo := entryrepo.NewRepoPGS(conn)
	transactionRepo := transactionrepo.NewRepoPGS(conn)
	challengeRepo := challengerepo.NewRepoRedis(rdb, config.ChallengeRetention)

	tokenMaker, err := tokenpkg.New(config.TokenKind, config.TokenSymmetricKey)
	if err != nil {
		return nil, errors.New("cannot create token maker")
	}

	notifier, webhook := newNotifier(config, m, logger)

	accountService := accountservice.New(accountRepo, entryRepo)
	historyService := historyservice.New(transactionRepo, config.ReconciliationSLA)
	challengeService := challengeservice.New(challengeRepo, challengeservice.Config{
		MaxAttempts: config.ChallengeMaxAttempts,
		CodeLength:  config.ChallengeCodeLength,
	})

	ledgerService := ledgerservice.New(
		accountRepo,
		transactionRepo,
		challengeService,
		newSettlementGateway(config, m, logger),
		notifier,
		m,
		ledgerservice.Config{
			Policy:            config.VerificationPolicy(),
			ChallengeTTL:      config.ChallengeTTL,
			CommitMaxRetries:  config.CommitMaxRetries,
			ReconciliationSLA: config.ReconciliationSLA,
		},
	)

	accountHandler := accountdelivery.NewHandler(accountService)
	transactionHandler := transactiondelivery.NewHandler(ledgerService, historyService, accountService, transactiondelivery.Config{
		EchoVerificationCode: config.EchoVerificationCode,
		CallbackSecret:       config.CallbackSecret,
	})

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		validations := map[string]validator.Func{
			"currency": currencypkg.ValidCurrency,
			"txtype":   transactiondelivery.ValidTransactionType,
			"txstatus": transactiondelivery.ValidStatus,
		}

		for tag, fn := range validations {
			if err := v.RegisterValidation(tag, fn); err != nil {
				return nil, errors.New("cannot register " + tag + " validator")
			}
		}
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))
	engine.Use(m.Middleware())
	engine.Use(gin.Recovery())

	engine.GET("/healthz", health(conn, rdb))
	engine.GET("/metrics", m.Handler())
	engine.POST("/callback/:reference", transactionHandler.Callback)

	authRoutes := engine.Group("/").Use(middleware.AuthMiddleware(tokenMaker))

	authRoutes.POST("/accounts", accountHandler.Create)
	authRoutes.GET("/accounts/:id", accountHandler.Get)
	authRoutes.GET("/accounts/:id/entries", accountHandler.ListEntries)
	authRoutes.GET("/accounts", accountHandler.List)

	authRoutes.POST("/fund", transactionHandler.Fund)
	authRoutes.POST("/withdraw", transactionHandler.Withdraw)
	authRoutes.POST("/transfer", transactionHandler.Transfer)
	authRoutes.POST("/pay-bill", transactionHandler.PayBill)
	authRoutes.POST("/confirm/:reference", transactionHandler.Confirm)

	authRoutes.GET("/transactions", transactionHandler.List)
	authRoutes.GET("/transactions/summary", transactionHandler.Summary)
	authRoutes.GET("/transactions/:reference", transactionHandler.Get)

	server := &Server{
		DB:       conn,
		Redis:    rdb,
		Engine:   engine,
		Config:   config,
		Ledger:   ledgerService,
		Sweeper:  sweeper.New(ledgerService, m, config.SweepInterval, logger),
		Notifier: notifier,
		Metrics:  m,
		webhook:  webhook,
	}

	return server, nil
}

// newNotifier logs every notification and also posts it when a webhook is configured.
func newNotifier(
	config configpkg.Config,
	m *metrics.Metrics,
	logger zerolog.Logger,
) (notification.Dispatcher, *notification.WebhookDispatcher) {
	logDispatcher := notification.NewLogDispatcher(logger, m)

	if config.NotificationWebhookURL == "" {
		if !config.EchoVerificationCode {
			logger.Warn().Msg("no notification webhook configured, verification codes cannot reach account owners")
		}

		return logDispatcher, nil
	}

	webhook := notification.NewWebhookDispatcher(notification.WebhookConfig{
		URL:       config.NotificationWebhookURL,
		Secret:    config.NotificationWebhookSecret,
		Workers:   config.NotificationWorkers,
		QueueSize: config.NotificationQueueSize,
	}, m, logger)

	return notification.Multi{logDispatcher, webhook}, webhook
}

// newSettlementGateway uses the sandbox for every provider without a URL.
func newSettlementGateway(config configpkg.Config, m *metrics.Metrics, logger zerolog.Logger) *settlement.Gateway {
	client := &http.Client{Timeout: config.SettlementTimeout}
	sandbox := &settlement.Sandbox{}

	var (
		payout     settlement.FundsMover = sandbox
		collection settlement.FundsMover = sandbox
		bills      settlement.BillPayer  = sandbox
	)

	if config.BankPayoutURL != "" {
		payout = settlement.NewBankPayout(config.BankPayoutURL, config.ProviderAPIKey, client)
	}

	if config.CardIssuerURL != "" {
		collection = settlement.NewCardIssuer(config.CardIssuerURL, config.ProviderAPIKey, client)
	}

	if config.BillAggregatorURL != "" {
		bills = settlement.NewBillAggregator(config.BillAggregatorURL, config.ProviderAPIKey, client)
	}

	return settlement.NewGateway(payout, collection, bills, settlement.GatewayConfig{
		Timeout:    config.SettlementTimeout,
		MaxRetries: config.SettlementMaxRetries,
		RetryBase:  config.SettlementRetryBase,
	}, m, logger)
}

type healthResponse struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

func health(conn *sql.DB, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		ctx, cancel := context.WithTimeout(gctx.Request.Context(), 2*time.Second)
		defer cancel()

		res := healthResponse{Database: "ok", Redis: "ok"}
		status := http.StatusOK

		if err := conn.PingContext(ctx); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("database ping failed")
			res.Database = "unavailable"
			status = http.StatusServiceUnavailable
		}

		if err := rdb.Ping(ctx).Err(); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("redis ping failed")
			res.Redis = "unavailable"
			status = http.StatusServiceUnavailable
		}

		gctx.JSON(status, web.Response{Data: res})
	}
}
