package main

import (
	"context"

	"github.com/MoiraAI2024/widget/internal/audio"
	"github.com/MoiraAI2024/widget/internal/capture"
	"github.com/MoiraAI2024/widget/internal/tray"
)

// permissionGatedDevice refuses to open the microphone once the system
// reports the permission as denied, or when no input device is selected,
// so the controller classifies the failure instead of seeing a generic
// device error
type permissionGatedDevice struct {
	capture.Device
	denied    func() bool
	available func() bool
}

func (d *permissionGatedDevice) Open(ctx context.Context) (capture.Stream, error) {
	if d.available != nil && !d.available() {
		return nil, capture.ErrUnavailable
	}
	if d.denied != nil && d.denied() {
		return nil, capture.ErrPermissionDenied
	}
	return d.Device.Open(ctx)
}

// trayDevices marks the configured device, or the system default when
// currentID is -1
func trayDevices(devices []audio.Device, currentID int) []tray.Device {
	result := make([]tray.Device, 0, len(devices))
	for _, d := range devices {
		current := d.ID == currentID || (currentID < 0 && d.IsDefault)
		result = append(result, tray.Device{
			ID:        d.ID,
			Name:      d.Name,
			IsDefault: d.IsDefault,
			IsCurrent: current,
		})
	}
	return result
}
