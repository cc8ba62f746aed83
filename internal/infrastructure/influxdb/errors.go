package influxdb

import "errors"

// Sentinel errors, matched with errors.Is.
var (
	// ErrNotConnected means no live InfluxDB session exists.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed means the initial health check failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled means telemetry is switched off in configuration.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
