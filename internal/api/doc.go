// Package api defines the wire format shared by the HTTP server and the CLI
// client: clip DTOs, request bodies, status payloads and the stable error
// codes that let a client tell "not logged in" from "does not exist".
//
// DTOs use camelCase JSON tags. Timestamps are RFC3339 with milliseconds in
// UTC. ErrorCode maps the services error markers to a code and HTTP status;
// ErrorFromCode reverses the mapping so errors.Is works on the client side.
package api
