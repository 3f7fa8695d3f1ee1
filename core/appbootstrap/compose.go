// Package appbootstrap wires the configuration, database, stores, policy and
// background workers into a runnable application.
package appbootstrap

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"helix-qms/api"
	"helix-qms/config"
	"helix-qms/core/auth"
	"helix-qms/core/housekeeping"
	"helix-qms/core/rbac"
	"helix-qms/core/store"
	"helix-qms/core/utils"
)

type App struct {
	cfg     *config.AppConfig
	db      *sql.DB
	logger  *utils.Logger
	server  *http.Server
	janitor *housekeeping.Janitor
}

func Compose(cfg *config.AppConfig, logger *utils.Logger) (*App, error) {
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}
	policy, err := rbac.NewPolicy()
	if err != nil {
		db.Close()
		return nil, err
	}

	users := store.NewUsersStore(db)
	sessions := store.NewSessionsStore(db)
	departments := store.NewDepartmentsStore(db)
	assets := store.NewAssetsStore(db)
	schedules := store.NewSchedulesStore(db)
	checklists := store.NewChecklistsStore(db)
	ncrs := store.NewNCRStore(db)
	dashboard := store.NewDashboardStore(db)
	audits := store.NewAuditStore(db)

	if err := seedAdmin(ctx, cfg, users, logger); err != nil {
		db.Close()
		return nil, err
	}

	sessionManager := auth.NewSessionManager(sessions, cfg, logger)
	srv := api.NewServer(api.Deps{
		Cfg:            cfg,
		Logger:         logger,
		Policy:         policy,
		SessionManager: sessionManager,
		Users:          users,
		Sessions:       sessions,
		Departments:    departments,
		Assets:         assets,
		Schedules:      schedules,
		Checklists:     checklists,
		NCRs:           ncrs,
		Dashboard:      dashboard,
		Audits:         audits,
	})

	return &App{
		cfg:    cfg,
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           srv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		janitor: housekeeping.NewJanitor(cfg, sessions, audits, logger),
	}, nil
}

// Run serves until SIGINT/SIGTERM, then drains in-flight requests.
func (a *App) Run() error {
	if err := a.janitor.Start(); err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Printf("listening on %s", a.cfg.ListenAddr)
		errCh <- a.server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-stop:
		a.logger.Printf("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = a.server.Shutdown(ctx)
	a.janitor.Stop()
	return a.db.Close()
}

// seedAdmin creates the bootstrap admin account on an empty user table so a
// fresh install is reachable. The password comes from HELIX_ADMIN_PASSWORD;
// without it, nothing is seeded.
func seedAdmin(ctx context.Context, cfg *config.AppConfig, users store.UsersStore, logger *utils.Logger) error {
	existing, err := users.FindByUsername(ctx, "admin")
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	password := os.Getenv("HELIX_ADMIN_PASSWORD")
	if password == "" {
		if logger != nil {
			logger.Printf("no admin account and HELIX_ADMIN_PASSWORD unset; skipping seed")
		}
		return nil
	}
	ph, err := auth.HashPassword(password, cfg.Pepper)
	if err != nil {
		return err
	}
	admin := &store.User{
		Username:     "admin",
		Email:        "admin@localhost",
		FullName:     "Administrator",
		Role:         rbac.RoleAdmin,
		PasswordHash: ph.Hash,
		Salt:         ph.Salt,
	}
	if _, err := users.CreateUser(ctx, admin); err != nil && err != store.ErrConflict {
		return err
	}
	if logger != nil {
		logger.Printf("seeded admin account")
	}
	return nil
}
