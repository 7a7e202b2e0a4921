package config

import "time"

const (
	// Matching
	DefaultMaxDistanceKm = 50.0
	DefaultMatchLimit    = 20
	MaxMatchLimit        = 100
	DefaultQueryTimeout  = 5 * time.Second

	// Auth
	DefaultJWTTTL = 72 * time.Hour

	// Realtime
	DefaultOutboxBuffer = 1024
	SessionSendBuffer   = 256
)
