// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

/*
Package main is the entry point for the Frame-Connect daemon.

Frame-Connect is a self-hosted daemon that keeps Android display devices
(photo frames, wall tablets) stocked with photos from local folders and
Immich servers. Photos are pushed over ADB under content-addressed names,
a durable ledger records what each device holds, and cron schedules keep
mappings synced without operator involvement.

# Application Architecture

The daemon implements a layered architecture with Suture v4 process
supervision:

	RootSupervisor ("frame-connect")
	├── DataSupervisor ("data-layer")
	│   └── Store GC (Badger value-log maintenance)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocket Hub (real-time run events)
	│   └── Sync Scheduler (cron runs, single-flight triggers)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (REST API, probes, metrics)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Store: embedded BadgerDB holding mappings, ledger, and run history
 4. ADB transport: subprocess client for device I/O
 5. Device registry and photo sources (local folders, Immich)
 6. Image processor: downscale and re-encode before transfer
 7. Engine and scheduler: reconciliation runs and cron scheduling
 8. Supervisor tree: Suture v4 process supervision
 9. HTTP server: Chi router with middleware stack

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest
priority wins):

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	# Server
	HTTP_PORT=8571               # HTTP server port
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console

	# Store
	STORE_PATH=/data/frame-connect/store
	STORE_GC_INTERVAL=10m

	# ADB
	ADB_BINARY=adb
	ADB_PUSH_TIMEOUT=5m

	# API
	API_ENABLED=true
	API_KEY=<key>                # When set, requests must send X-Api-Key

Devices and sources are lists of structs and can only be configured
through the YAML config file (CONFIG_PATH or ./config.yaml):

	devices:
	  - id: hallway-frame
	    transport: tcp
	    address: 10.0.0.20:5555
	    base_dir: /sdcard/Pictures/Frame

	sources:
	  - id: family-immich
	    kind: immich
	    url: https://immich.local
	    api_key: <key>

# Signal Handling

The daemon handles graceful shutdown on SIGINT and SIGTERM:

 1. Stops accepting new HTTP connections
 2. Closes WebSocket clients
 3. Waits for in-flight sync runs and requests (10s timeout)
 4. Flushes pending writes and closes the store
 5. Reports any services that failed to stop

# Usage Examples

Development:

	export LOG_FORMAT=console
	export STORE_PATH=./data/store
	go run ./cmd/server

Production:

	export STORE_PATH=/data/frame-connect/store
	export API_KEY=$(openssl rand -hex 24)
	export CONFIG_PATH=/etc/frame-connect/config.yaml
	./frame-connect

Docker:

	docker run -d \
	  -v /srv/frame-connect:/data/frame-connect \
	  -v $PWD/config.yaml:/etc/frame-connect/config.yaml \
	  -e CONFIG_PATH=/etc/frame-connect/config.yaml \
	  -p 8571:8571 \
	  --device /dev/bus/usb \
	  ghcr.io/cmalpass/frame-connect

# See Also

  - internal/config: Configuration management
  - internal/supervisor: Process supervision
  - internal/api: HTTP handlers and routing
  - internal/engine: Reconciliation runs
*/
package main
