// Package ipc carries daemon control traffic between the CLI and the running
// process over a Unix domain socket, using JSON-RPC.
package ipc
