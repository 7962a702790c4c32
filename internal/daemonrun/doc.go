// Package daemonrun hosts the clipshelfd process lifecycle shared by the
// clipshelfd binary and "clipshelf serve": per-run log file, pid file,
// preflight snapshot, store wiring, and signal-driven shutdown.
package daemonrun
