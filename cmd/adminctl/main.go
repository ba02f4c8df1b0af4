// Command adminctl runs operator tasks directly against the smartwaste
// database. Settings come from the same environment variables as the
// server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/smartwaste/internal/adminctl"
	"github.com/dmitrijs2005/smartwaste/internal/logging"
	"github.com/dmitrijs2005/smartwaste/internal/server/auth"
	"github.com/dmitrijs2005/smartwaste/internal/server/config"
	"github.com/dmitrijs2005/smartwaste/internal/server/notify"
	"github.com/dmitrijs2005/smartwaste/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/smartwaste/internal/server/services"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "adminctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.LogLevel)

	db, err := repomanager.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	// adminctl never logs anyone in, so no token issuer is needed.
	accounts := services.NewAccountService(db, rm, auth.NewPasswordHasher(cfg.BcryptCost), nil, logger)
	devices := services.NewDeviceService(db, rm, logger)
	otp := services.NewOTPService(db, rm, notify.NewDispatcher(nil, notify.NewConsoleSender(logger), logger), logger)

	return adminctl.NewApp(accounts, devices, otp, os.Stdin, os.Stdout).Run(ctx, args)
}
