// Package a2a implements the agent-to-agent protocol layer: the wire
// types exchanged between agents, the task lifecycle state machine, the
// HTTP server surface, and the client used for delegation.
//
// A Task is one tracked unit of agent work. It moves through
// pending -> working -> completed/failed, and may be cancelled from any
// state. The TaskManager owns these transitions; agents only implement
// ProcessMessage and never touch task state directly.
package a2a
