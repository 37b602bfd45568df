// Package platform declares the capability interfaces through which the
// controller drives its hardware and OS collaborators, plus the host
// implementations used on a real device. Everything above this package works
// against the interfaces so the control logic stays testable off-device.
package platform

import "time"

// RelayOutput drives the physical bell relay channels.
type RelayOutput interface {
	Energize(channel int) error
	DeEnergize(channel int) error
}

// TouchSampler polls the touch panel. ok is false when nothing is touching.
type TouchSampler interface {
	Poll() (x, y int, ok bool)
}

// RenderSurface is the output-only drawing target. The wire protocol and
// font rasterization behind it are the display driver's problem.
type RenderSurface interface {
	Clear()
	DrawText(text string, x, y int, fg, bg uint16)
	FillRect(x, y, w, h int, color uint16)
	TextWidth(text string) int
}

// DisplayPower switches the panel backlight.
type DisplayPower interface {
	On()
	Off()
}

// Watchdog must be fed within its configured timeout or the device resets.
type Watchdog interface {
	Feed()
}

// TimeSource supplies raw UTC time and can resync it from the network.
type TimeSource interface {
	Now() time.Time
	Sync() error
}

// Network manages station and access-point connectivity.
type Network interface {
	Connect(ssid, password string) error
	Connected() bool
	SignalStrength() int
	IPAddress() string
	StartAccessPoint(ssid string) (addr string, err error)
	StopAccessPoint()
	Scan() []string
}

// KVStore is the durable byte store behind the logical load/save contract.
type KVStore interface {
	LoadBytes(key string) ([]byte, error)
	SaveBytes(key string, data []byte) error
}

// SecureHTTP fetches a document over a secure transport.
type SecureHTTP interface {
	GetJSON(url string) ([]byte, error)
}

// UpdateChecker reports whether a newer software version is published.
type UpdateChecker interface {
	Check() (available bool, version string, err error)
}
