// Package api defines the transport DTOs shared by the HTTP API and the IPC
// surface, plus thin read services that convert store models into them.
package api
