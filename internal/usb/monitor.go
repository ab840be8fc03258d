package usb

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"mediacopier/internal/logging"
)

// HotplugEvent describes a USB block device appearing or disappearing.
type HotplugEvent struct {
	Action string // "add" or "remove"
	Device string // /dev node
}

// Monitor listens for udev netlink events for USB block devices and invokes
// the handler for each add/remove. Connection failure is non-fatal: the
// daemon keeps working with manual destination selection.
type Monitor struct {
	logger  *slog.Logger
	handler func(ctx context.Context, event HotplugEvent)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewMonitor creates a hotplug monitor. The handler runs on the monitor
// goroutine and must not block for long.
func NewMonitor(logger *slog.Logger, handler func(ctx context.Context, event HotplugEvent)) *Monitor {
	return &Monitor{
		logger:  logging.NewComponentLogger(logger, "usb-monitor"),
		handler: handler,
	}
}

// Start connects to the udev netlink socket and begins dispatching events.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("netlink connect failed, hotplug detection disabled", logging.Error(err))
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.loop(ctx, quit)

	m.logger.Info("usb hotplug monitor started")
	return nil
}

// Stop shuts down the monitor.
func (m *Monitor) Stop() {
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
	m.logger.Info("usb hotplug monitor stopped")
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) loop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, usbBlockMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.dispatch(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error", logging.Error(err))
		}
	}
}

// usbBlockMatcher matches add/remove events for USB-attached block devices.
func usbBlockMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "block",
			"ID_BUS":    "usb",
		},
	})
	return rules
}

func (m *Monitor) dispatch(ctx context.Context, uevent netlink.UEvent) {
	device := deviceName(uevent)
	if device == "" {
		return
	}
	event := HotplugEvent{Action: string(uevent.Action), Device: device}
	m.logger.Info("usb device event",
		logging.String("action", event.Action),
		logging.String("device", event.Device))
	if m.handler != nil {
		m.handler(ctx, event)
	}
}

func deviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
