// Package adminctl implements the operator commands behind cmd/adminctl:
// seeding admin accounts, managing the device registry and housekeeping.
package adminctl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dmitrijs2005/smartwaste/internal/common"
	"github.com/dmitrijs2005/smartwaste/internal/server/models"
	"github.com/dmitrijs2005/smartwaste/internal/server/services"
)

var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrMissingArgument  = errors.New("missing argument")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

type AccountService interface {
	EnsureAdmin(ctx context.Context, email, password, phone, name string) (bool, error)
}

type DeviceService interface {
	Register(ctx context.Context, deviceID, apiKey, adminID string) (*services.RegisteredDevice, error)
	Deactivate(ctx context.Context, deviceID string) error
	List(ctx context.Context) ([]*models.Device, error)
}

type OTPService interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type App struct {
	accounts AccountService
	devices  DeviceService
	otp      OTPService
	in       *bufio.Reader
	out      io.Writer
}

func NewApp(a AccountService, d DeviceService, o OTPService, in io.Reader, out io.Writer) *App {
	return &App{accounts: a, devices: d, otp: o, in: bufio.NewReader(in), out: out}
}

const usage = `Usage: adminctl <command> [arguments]

Commands:
  create-admin                      create an admin account (prompts for details)
  register-device <id> [api-key]    register a device; a key is generated when omitted
  deactivate-device <id>            deactivate a device permanently
  list-devices                      list registered devices
  purge-otps                        delete verification codes expired over a day ago
  help                              show this message
`

// Run executes one command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return ErrMissingArgument
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	case "create-admin":
		return a.createAdmin(ctx)
	case "register-device":
		return a.registerDevice(ctx, rest)
	case "deactivate-device":
		return a.deactivateDevice(ctx, rest)
	case "list-devices":
		return a.listDevices(ctx)
	case "purge-otps":
		return a.purgeOTPs(ctx)
	default:
		fmt.Fprint(a.out, usage)
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
}

func (a *App) createAdmin(ctx context.Context) error {
	email, err := GetSimpleText(a.in, "Admin email", a.out)
	if err != nil {
		return err
	}
	name, err := GetSimpleText(a.in, "Display name", a.out)
	if err != nil {
		return err
	}
	phone, err := GetSimpleText(a.in, "Phone number", a.out)
	if err != nil {
		return err
	}

	pw, err := GetPassword("Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)
	confirm, err := GetPassword("Repeat password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)
	if string(pw) != string(confirm) {
		return ErrPasswordMismatch
	}

	created, err := a.accounts.EnsureAdmin(ctx, email, string(pw), phone, name)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(a.out, "Admin %s created\n", email)
	} else {
		fmt.Fprintf(a.out, "Admin %s already exists\n", email)
	}
	return nil
}

func (a *App) registerDevice(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: device id", ErrMissingArgument)
	}
	var key string
	if len(args) > 1 {
		key = args[1]
	}

	reg, err := a.devices.Register(ctx, args[0], key, "")
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Device %s registered\nAPI key: %s\nStore the key now; it cannot be shown again.\n", reg.Device.ID, reg.APIKey)
	return nil
}

func (a *App) deactivateDevice(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: device id", ErrMissingArgument)
	}
	if err := a.devices.Deactivate(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Device %s deactivated\n", args[0])
	return nil
}

func (a *App) listDevices(ctx context.Context) error {
	list, err := a.devices.List(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tACTIVE\tREGISTERED")
	for _, d := range list {
		fmt.Fprintf(tw, "%s\t%t\t%s\n", d.ID, d.Active, d.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func (a *App) purgeOTPs(ctx context.Context) error {
	n, err := a.otp.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Purged %d expired codes\n", n)
	return nil
}
