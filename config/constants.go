package config

import (
	"time"

	"hubgraph/reconcile"
)

// Reconciliation defaults
const (
	// DefaultTarget is the number of placeholder slots created for a hub
	DefaultTarget = reconcile.DefaultTarget

	// DefaultPollInterval is the wait between two polls of the hub nodes endpoint
	DefaultPollInterval = reconcile.DefaultInterval

	// DefaultFetchTimeout bounds a single poll
	DefaultFetchTimeout = reconcile.DefaultFetchTimeout

	// DefaultShrinkPolicy decides what a shorter cumulative snapshot means (abort or clamp)
	DefaultShrinkPolicy = string(reconcile.ShrinkAbort)
)

// Service defaults
const (
	// DefaultPort is the HTTP API port
	DefaultPort = "8081"

	// DefaultSourceURL is the hub back-end base URL
	DefaultSourceURL = "http://localhost:8001"

	// DefaultSweepSchedule is the cron schedule that purges finished jobs
	DefaultSweepSchedule = "@every 1m"

	// DefaultRetention is how long a finished job stays queryable
	DefaultRetention = 30 * time.Minute
)

// Kafka defaults
const (
	DefaultKafkaTopic   = "hub-sessions"
	DefaultKafkaGroupID = "hubgraph-consumer-group"
)

// Redis defaults
const (
	DefaultRedisKeyPrefix = "hubgraph"
	DefaultRedisTTL       = time.Hour
)
