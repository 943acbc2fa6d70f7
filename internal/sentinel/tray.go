package sentinel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"engram/internal/logging"
)

// Linux cdrom ioctl numbers from uapi/linux/cdrom.h.
const (
	ioctlDriveStatus = 0x5326
	ioctlEject       = 0x5309
)

// DriveStatus is the result of a CDROM_DRIVE_STATUS ioctl.
type DriveStatus int

const (
	DriveStatusNoInfo   DriveStatus = 0
	DriveStatusNoDisc   DriveStatus = 1
	DriveStatusTrayOpen DriveStatus = 2
	DriveStatusNotReady DriveStatus = 3
	DriveStatusDiscOK   DriveStatus = 4
)

// String returns a human-readable label for the drive status.
func (s DriveStatus) String() string {
	switch s {
	case DriveStatusNoInfo:
		return "no_info"
	case DriveStatusNoDisc:
		return "no_disc"
	case DriveStatusTrayOpen:
		return "tray_open"
	case DriveStatusNotReady:
		return "not_ready"
	case DriveStatusDiscOK:
		return "disc_ok"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

func driveIoctl(device string, request uint) (int, error) {
	device = strings.TrimSpace(device)
	if device == "" {
		return 0, fmt.Errorf("empty device path")
	}
	fd, err := unix.Open(device, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", device, err)
	}
	defer unix.Close(fd)

	result, err := unix.IoctlRetInt(fd, request)
	if err != nil {
		return 0, fmt.Errorf("ioctl 0x%x on %s: %w", request, device, err)
	}
	return result, nil
}

// CheckDriveStatus queries the drive state using the CDROM_DRIVE_STATUS
// ioctl.
func CheckDriveStatus(device string) (DriveStatus, error) {
	result, err := driveIoctl(device, ioctlDriveStatus)
	if err != nil {
		return DriveStatusNoInfo, err
	}
	return DriveStatus(result), nil
}

// WaitForDisc polls the drive up to 60 times at 1-second intervals until it
// reports DriveStatusDiscOK or the context is cancelled. Freshly inserted
// discs report not_ready while the drive spins up.
func WaitForDisc(ctx context.Context, device string) (DriveStatus, error) {
	const (
		maxPolls     = 60
		pollInterval = time.Second
	)

	var last DriveStatus
	for i := 0; i < maxPolls; i++ {
		status, err := CheckDriveStatus(device)
		if err != nil {
			return status, err
		}
		last = status
		if status == DriveStatusDiscOK {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	return last, fmt.Errorf("drive %s not ready after %d polls (last status: %s)", device, maxPolls, last)
}

// TrayEjector opens drive trays with the CDROMEJECT ioctl.
type TrayEjector struct {
	logger *slog.Logger
}

// NewTrayEjector constructs an ejector.
func NewTrayEjector(logger *slog.Logger) *TrayEjector {
	return &TrayEjector{logger: logging.NewComponentLogger(logger, "sentinel")}
}

// Eject opens the tray of the given drive.
func (e *TrayEjector) Eject(driveID string) error {
	if _, err := driveIoctl(driveID, ioctlEject); err != nil {
		return fmt.Errorf("eject %s: %w", driveID, err)
	}
	e.logger.Info("disc ejected", logging.Args(
		logging.String(logging.FieldDriveID, driveID),
	)...)
	return nil
}
