package capture

import (
	"errors"
	"fmt"
	"log"
	"sync"
)

var (
	// ErrDeviceBusy is returned when another reader already holds the device.
	ErrDeviceBusy = errors.New("camera device busy")

	// ErrDeviceUnavailable is returned when the device could not be opened.
	ErrDeviceUnavailable = errors.New("camera device unavailable")
)

// Device guards a Camera so that at most one reader uses it at a time.
type Device struct {
	camera Camera
	lease  chan struct{}
}

// NewDevice wraps a camera for exclusive access.
func NewDevice(camera Camera) *Device {
	return &Device{
		camera: camera,
		lease:  make(chan struct{}, 1),
	}
}

// Acquire opens the camera for exclusive use. The returned release function
// closes the camera and frees the device; it is safe to call more than once
// and must be called on every exit path.
func (d *Device) Acquire() (Camera, func(), error) {
	select {
	case d.lease <- struct{}{}:
	default:
		return nil, nil, ErrDeviceBusy
	}

	if err := d.camera.Open(); err != nil {
		<-d.lease
		return nil, nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			if err := d.camera.Close(); err != nil {
				log.Printf("Error closing camera: %v", err)
			}
			<-d.lease
		})
	}

	return d.camera, release, nil
}

// InUse reports whether the device is currently leased.
func (d *Device) InUse() bool {
	return len(d.lease) > 0
}
