package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"netbill/internal/billing"
	"netbill/internal/config"
	"netbill/internal/directory"
	"netbill/internal/ledger"
	"netbill/internal/logger"
	"netbill/internal/router"
)

const routerID = "default"

// app is the composition root shared by every command.
type app struct {
	cfg       *config.Config
	store     *ledger.Store
	customers *directory.Customers
	partners  *directory.Partners
	registry  *router.Registry
	closers   []func() error
}

type appOptions struct {
	router bool
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg := appConfig
	log := logger.WithComponent("app")

	a := &app{
		cfg:       cfg,
		customers: directory.NewCustomers(cfg.CustomersFile),
		partners:  directory.NewPartners(cfg.PartnersFile),
	}

	var persister ledger.Persister
	switch cfg.LedgerBackend {
	case "sqlite":
		db, err := ledger.NewSQLite(cfg.LedgerSQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open ledger database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		persister = db
	default:
		persister = ledger.NewJSONFile(cfg.LedgerFile)
	}

	var storeOpts []ledger.Option
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		storeOpts = append(storeOpts, ledger.WithLocker(ledger.NewRedisLocker(rdb, ledger.DefaultLockKey, cfg.LedgerLockTTL)))
		log.Debug().Str("redis", cfg.RedisAddr).Msg("Ledger writes guarded by redis lock")
	}
	a.store = ledger.NewStore(persister, storeOpts...)

	if opts.router {
		if err := cfg.RequireRouter(); err != nil {
			a.close()
			return nil, err
		}
		a.registry = router.NewRegistry(nil)
		a.registry.Open(routerID, router.Connection{
			Address:  cfg.RouterAddress,
			Username: cfg.RouterUsername,
			Password: cfg.RouterPassword,
			Timeout:  cfg.RouterTimeout,
		})
		a.closers = append(a.closers, a.registry.CloseAll)
	}

	log.Debug().
		Str("backend", cfg.LedgerBackend).
		Bool("router", opts.router).
		Msg("Application wired")
	return a, nil
}

func (a *app) source() *router.Source {
	return router.NewSource(a.registry, routerID, a.cfg.SuspendProfile)
}

func (a *app) generator() *billing.Generator {
	return billing.NewGenerator(a.store, a.source(), a.customers)
}

func (a *app) enforcer() *billing.Enforcer {
	return billing.NewEnforcer(a.store, a.source(), a.cfg.DropWorkers)
}

func (a *app) payments() *billing.Payments {
	return billing.NewPayments(a.store, a.customers, a.partners)
}

func (a *app) calculator() *billing.Calculator {
	return billing.NewCalculator(a.store, a.customers, a.partners)
}

func (a *app) close() {
	log := logger.WithComponent("app")
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Failed to release resource")
		}
	}
	a.closers = nil
}

// describeError turns domain errors into operator-facing messages.
func describeError(err error) string {
	var (
		dup  *ledger.DuplicatePeriodError
		verr *billing.ValidationError
		cerr *billing.CollaboratorUnavailableError
		perr *ledger.PersistenceError
	)
	switch {
	case errors.As(err, &dup):
		return fmt.Sprintf("%s already has an active invoice for %s (%s)", dup.SubscriberID, dup.Period, dup.ExistingID)
	case errors.As(err, &verr):
		return verr.Error()
	case errors.As(err, &cerr):
		return fmt.Sprintf("%v; nothing was changed, retry when it is reachable", cerr)
	case errors.As(err, &perr):
		return fmt.Sprintf("%v; the operation did not complete, retry it", perr)
	case errors.Is(err, ledger.ErrInvoiceNotFound):
		return "invoice not found"
	}
	return err.Error()
}
