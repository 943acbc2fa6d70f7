package sentinel

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"engram/internal/config"
	"engram/internal/logging"
)

// InsertHandler is invoked when media appears in a watched drive. The label
// is the filesystem volume label udev reported, possibly empty.
type InsertHandler func(ctx context.Context, driveID, volumeLabel string) error

// Monitor listens for udev netlink events and reports disc insertions on the
// configured drives.
type Monitor struct {
	devices map[string]struct{}
	logger  *slog.Logger
	handler InsertHandler

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewMonitor creates a monitor for the drives in cfg. Returns nil when no
// devices are configured.
func NewMonitor(cfg config.Drive, logger *slog.Logger, handler InsertHandler) *Monitor {
	devices := make(map[string]struct{}, len(cfg.Devices))
	for _, device := range cfg.Devices {
		trimmed := strings.TrimSpace(device)
		if trimmed == "" {
			continue
		}
		devices[trimmed] = struct{}{}
	}
	if len(devices) == 0 {
		return nil
	}
	return &Monitor{
		devices: devices,
		logger:  logging.NewComponentLogger(logger, "sentinel"),
		handler: handler,
	}
}

// Start begins listening for udev netlink events. A connection failure is
// non-fatal; disc detection then relies on manual triggers.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; automatic disc detection unavailable",
			logging.Args(
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_connect_failed"),
				logging.String(logging.FieldErrorHint, "ensure the daemon can access netlink sockets"),
			)...)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("disc monitor started", logging.Args(
		logging.String(logging.FieldEventType, "monitor_started"),
		logging.Int("devices", len(m.devices)),
	)...)
	return nil
}

// Stop shuts down the monitor.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("disc monitor stopped", logging.Args(
		logging.String(logging.FieldEventType, "monitor_stopped"),
	)...)
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error", logging.Args(
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
			)...)
		}
	}
}

// buildMatcher matches block-device media events: SUBSYSTEM=block,
// ID_CDROM=1, ID_CDROM_MEDIA=1, ACTION=change|add.
func buildMatcher() netlink.Matcher {
	action := "change|add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM":      "block",
			"ID_CDROM":       "1",
			"ID_CDROM_MEDIA": "1",
		},
	})
	return rules
}

func (m *Monitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	device := extractDeviceName(uevent)
	if device == "" {
		return
	}
	if _, watched := m.devices[device]; !watched {
		m.logger.Debug("ignoring event for unconfigured device", logging.Args(
			logging.String(logging.FieldDriveID, device),
		)...)
		return
	}

	label := strings.TrimSpace(uevent.Env["ID_FS_LABEL"])
	m.logger.Info("disc media detected", logging.Args(
		logging.String(logging.FieldEventType, "disc_detected"),
		logging.String(logging.FieldDriveID, device),
		logging.String("volume_label", label),
		logging.String("action", string(uevent.Action)),
	)...)

	if m.handler == nil {
		return
	}
	if err := m.handler(ctx, device, label); err != nil {
		m.logger.Warn("disc insert handler failed", logging.Args(
			logging.Error(err),
			logging.String(logging.FieldDriveID, device),
			logging.String(logging.FieldEventType, "insert_handler_failed"),
		)...)
	}
}

// extractDeviceName reads the device path from a uevent, falling back to the
// last DEVPATH segment when DEVNAME is absent.
func extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	if len(parts) == 0 {
		return ""
	}
	return "/dev/" + parts[len(parts)-1]
}
