package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/smartwaste/internal/dbx"
	"github.com/dmitrijs2005/smartwaste/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/smartwaste/internal/server/repositories/devices"
	"github.com/dmitrijs2005/smartwaste/internal/server/repositories/otps"
	"github.com/dmitrijs2005/smartwaste/internal/server/repositories/wasterecords"
)

// RepositoryManager vends repositories bound to a DBTX so services can run
// the same code against a pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	OTPs(db dbx.DBTX) otps.Repository
	Devices(db dbx.DBTX) devices.Repository
	WasteRecords(db dbx.DBTX) wasterecords.Repository
}
