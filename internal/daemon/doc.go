// Package daemon hosts the long-running engine process: single-instance
// locking, the HTTP API, and the websocket endpoint overlay clients attach to.
package daemon
