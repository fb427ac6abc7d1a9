// Package bus fans notifications out to overlay clients grouped into rooms.
//
// Rooms are keyed by user id. The registry owns membership only; transports
// (the websocket handler, test fakes) implement Conn and handle their own
// buffering and disconnects.
package bus
