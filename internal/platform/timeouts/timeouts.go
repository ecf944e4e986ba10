// Package timeouts defines the timeout defaults shared by dicecore commands.
package timeouts

import "time"

// Action caps one command action, store access included.
const Action = 10 * time.Second

// TelemetryShutdown limits how long pending spans may take to export at
// exit.
const TelemetryShutdown = 5 * time.Second
