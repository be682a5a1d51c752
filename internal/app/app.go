package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsdevblog/zenauction/internal/config"
	"github.com/fsdevblog/zenauction/internal/repository/memrepo"
	"github.com/fsdevblog/zenauction/internal/repository/pgrepo"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
	"github.com/fsdevblog/zenauction/internal/service"
	"github.com/fsdevblog/zenauction/internal/transport/api"
	"github.com/fsdevblog/zenauction/internal/transport/push"
	"github.com/fsdevblog/zenauction/internal/transport/scheduler"
	"github.com/fsdevblog/zenauction/pkg/uow"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	// driver for migration applying postgres.
	_ "github.com/golang-migrate/migrate/v4/database/postgres" //nolint:revive
	// driver to get migrations from files (*.sql in our case).
	_ "github.com/golang-migrate/migrate/v4/source/file" //nolint:revive
)

const shutdownTimeout = 10 * time.Second

type App struct {
	Config *config.Config
	Logger *logrus.Logger
}

func New(conf *config.Config, l *logrus.Logger) *App {
	return &App{
		Config: conf,
		Logger: l,
	}
}

func (a *App) Run() error {
	notifyCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Logger.WithFields(logrus.Fields{
		"address":  a.Config.RunAddress,
		"storage":  a.Config.Storage,
		"pushURL":  a.Config.PushURL,
		"interval": a.Config.SchedulerInterval,
	}).Info("Starting app")

	unitOfWork, closeStorage, storageErr := a.openStorage(notifyCtx)
	if storageErr != nil {
		return fmt.Errorf("app run: %s", storageErr.Error())
	}
	defer closeStorage()

	var channel service.DeliveryChannel
	if a.Config.PushURL != "" {
		channel = push.New(a.Config.PushURL)
	}

	services, sErr := service.Factory(unitOfWork, service.FactoryArgs{
		Policy: service.BidPolicy{
			MinIncrement:        a.Config.MinBidIncrement,
			MinIncrementPercent: a.Config.MinBidIncrementPercent,
			MinDuration:         a.Config.MinAuctionDuration,
			MaxDuration:         a.Config.MaxAuctionDuration,
		},
		ClosingLease:    a.Config.ClosingLease,
		Channel:         channel,
		DeliveryTimeout: a.Config.PushTimeout,
		Logger:          a.Logger,
	})
	if sErr != nil {
		return fmt.Errorf("app run: %s", sErr.Error())
	}

	router, rErr := api.New(api.RouterArgs{
		Logger:              a.Logger,
		AuctionService:      services.Auctions,
		BidService:          services.Bids,
		LedgerService:       services.Ledger,
		NotificationService: services.Notifications,
		JWTSecretKey:        []byte(a.Config.JWTSecret),
		InternalToken:       a.Config.InternalToken,
	})
	if rErr != nil {
		return fmt.Errorf("app run: %s", rErr.Error())
	}

	server := &http.Server{
		Addr:              a.Config.RunAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second, //nolint:mnd
	}

	processor := scheduler.New(services.Settlement, a.Logger).
		SetInterval(a.Config.SchedulerInterval).
		SetLimitPerIteration(a.Config.SchedulerBatchSize).
		SetSettleWorkers(a.Config.SchedulerWorkers)

	g, gCtx := errgroup.WithContext(notifyCtx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		processor.Run(gCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err //nolint:wrapcheck
	}
	return notifyCtx.Err() //nolint:wrapcheck
}

// openStorage returns the unit of work for the configured storage and a func releasing it.
func (a *App) openStorage(ctx context.Context) (uow.UOW, func(), error) {
	if a.Config.Storage == config.StorageMemory {
		a.Logger.Warn("memory storage: data is lost on restart")
		return memrepo.New(), func() {}, nil
	}

	conn, connErr := pgrepo.Connect(ctx, a.Config.MigrationsDir, a.Config.DatabaseDSN, a.Logger)
	if connErr != nil {
		return nil, nil, connErr //nolint:wrapcheck
	}

	unitOfWork, uowErr := initUOW(conn)
	if uowErr != nil {
		conn.Close()
		return nil, nil, uowErr
	}
	return unitOfWork, conn.Close, nil
}

func initUOW(conn *pgxpool.Pool) (*uow.UnitOfWork, error) {
	unitOfWork := uow.NewUnitOfWork(conn)

	factories := map[repoargs.RepositoryName]uow.RepositoryFactory{
		repoargs.AuctionRepoName: func(dbtx uow.DBTX) uow.Repository {
			return pgrepo.NewAuctionRepository(dbtx)
		},
		repoargs.BidRepoName: func(dbtx uow.DBTX) uow.Repository {
			return pgrepo.NewBidRepository(dbtx)
		},
		repoargs.LedgerRepoName: func(dbtx uow.DBTX) uow.Repository {
			return pgrepo.NewLedgerRepository(dbtx)
		},
		repoargs.CardRepoName: func(dbtx uow.DBTX) uow.Repository {
			return pgrepo.NewCardRepository(dbtx)
		},
		repoargs.NotificationRepoName: func(dbtx uow.DBTX) uow.Repository {
			return pgrepo.NewNotificationRepository(dbtx)
		},
	}
	for name, factory := range factories {
		if regErr := unitOfWork.Register(uow.RepositoryName(name), factory); regErr != nil {
			return nil, fmt.Errorf("init UOW: %s: %s", name, regErr.Error())
		}
	}

	return unitOfWork, nil
}

var (
	_ service.AuctionRepository      = (*pgrepo.AuctionRepository)(nil)
	_ service.BidRepository          = (*pgrepo.BidRepository)(nil)
	_ service.LedgerRepository       = (*pgrepo.LedgerRepository)(nil)
	_ service.CardRepository         = (*pgrepo.CardRepository)(nil)
	_ service.NotificationRepository = (*pgrepo.NotificationRepository)(nil)
	_ service.AuctionRepository      = (*memrepo.AuctionRepository)(nil)
	_ service.BidRepository          = (*memrepo.BidRepository)(nil)
	_ service.LedgerRepository       = (*memrepo.LedgerRepository)(nil)
	_ service.CardRepository         = (*memrepo.CardRepository)(nil)
	_ service.NotificationRepository = (*memrepo.NotificationRepository)(nil)
	_ service.DeliveryChannel        = (*push.Client)(nil)
	_ uow.UOW                        = (*memrepo.UnitOfWork)(nil)
)
