// Package mqtt provides MQTT client connectivity for Fusion Bridge.
//
// This package manages:
//   - Connection to the configured broker with auto-reconnect
//   - Topic subscriptions with wildcard support
//   - Message publishing with QoS guarantees
//   - Optional last-will status publishing for local brokers
//   - Connection health monitoring
//
// Fusion Bridge consumes YoLink device reports pushed over MQTT
// (yl-home/{homeID}/+/report). The same wrapper serves a local broker
// during development and YoLink's hosted endpoint in production; on the
// hosted endpoint status publishing stays disabled because the broker
// only accepts subscriptions.
//
// Subscriptions are tracked internally and restored automatically after
// a reconnect, so ingest handlers survive broker restarts without
// re-registering.
package mqtt
