// Command narthex is the operator CLI for the connect-card intake daemon.
// It talks to a running daemon over the JSON-RPC socket and falls back to
// direct queue database access for read-only commands when the daemon is
// offline.
package main
