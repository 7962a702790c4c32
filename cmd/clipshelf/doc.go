// Package main hosts the clipshelf CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against clipshelfd, plus a few local operations (serve, reconcile,
// config scaffolding) that work on the stores directly. Session tokens from
// "clipshelf login" are kept in the configured session file and reused by
// later commands.
package main
