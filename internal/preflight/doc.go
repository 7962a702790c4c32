// Package preflight provides readiness checks for the directories and stores
// clipshelf depends on.
//
// These checks run in two contexts:
//   - clipshelfd calls RunAll before binding so misconfigured paths or
//     unreachable stores surface in the log immediately.
//   - The CLI "clipshelf status" command uses the same checks, plus
//     CheckServer, to display local health next to the server's view.
//
// Storage checks only run for the configured backend.
package preflight
