package daemon

import (
	"context"
	"testing"

	"github.com/pilebones/go-udev/netlink"

	"sam/internal/config"
)

func TestNewCameraMonitor(t *testing.T) {
	if m := newCameraMonitor(nil, nil, nil); m != nil {
		t.Error("expected nil monitor for nil config")
	}

	cfg := config.Default()
	cfg.Camera.Hotplug = false
	if m := newCameraMonitor(&cfg, nil, nil); m != nil {
		t.Error("expected nil monitor when hotplug is disabled")
	}

	cfg.Camera.Hotplug = true
	if m := newCameraMonitor(&cfg, nil, nil); m == nil {
		t.Fatal("expected monitor when hotplug is enabled")
	}
}

func TestCameraMonitorNilSafe(t *testing.T) {
	var m *cameraMonitor
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start on nil monitor: %v", err)
	}
	m.Stop()
	if m.Running() {
		t.Fatal("nil monitor reports running")
	}
}

func TestCameraMatcher(t *testing.T) {
	matcher := buildCameraMatcher()

	tests := []struct {
		name  string
		event netlink.UEvent
		want  bool
	}{
		{"add", netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "video4linux"}}, true},
		{"remove", netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"SUBSYSTEM": "video4linux"}}, true},
		{"change", netlink.UEvent{Action: netlink.CHANGE, Env: map[string]string{"SUBSYSTEM": "video4linux"}}, false},
		{"block device", netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "block"}}, false},
	}
	for _, tc := range tests {
		if got := matcher.Evaluate(tc.event); got != tc.want {
			t.Errorf("%s: Evaluate = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCameraMonitorHandleEvent(t *testing.T) {
	cfg := config.Default()
	var gotAction, gotDevice string
	m := newCameraMonitor(&cfg, nil, func(action, device string) {
		gotAction, gotDevice = action, device
	})

	m.handleEvent(netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVNAME": "video2"}})
	if gotAction != "remove" || gotDevice != "/dev/video2" {
		t.Fatalf("handler got (%q, %q)", gotAction, gotDevice)
	}

	gotAction, gotDevice = "", ""
	m.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{}})
	if gotAction != "" || gotDevice != "" {
		t.Fatal("events without a device name must be ignored")
	}
}

func TestDeviceName(t *testing.T) {
	tests := []struct {
		env  map[string]string
		want string
	}{
		{map[string]string{"DEVNAME": "/dev/video0"}, "/dev/video0"},
		{map[string]string{"DEVNAME": "video1"}, "/dev/video1"},
		{map[string]string{"DEVPATH": "/devices/pci0000:00/usb1/1-1/video4linux/video3"}, "/dev/video3"},
		{map[string]string{}, ""},
	}
	for _, tc := range tests {
		if got := deviceName(netlink.UEvent{Env: tc.env}); got != tc.want {
			t.Errorf("deviceName(%v) = %q, want %q", tc.env, got, tc.want)
		}
	}
}
