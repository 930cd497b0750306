// Package main hosts the reelbooth CLI entrypoint and command graph.
//
// `reelbooth run` starts the daemon in the foreground (the systemd unit runs
// exactly that). Every other recorder or outbox command is a thin client of
// the daemon's HTTP API, resolved from paths.api_bind and paths.api_token or
// the --api flag. Commands that only need local state (config, devices,
// probe, test-notify) work without a running daemon.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
