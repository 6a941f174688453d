package a2a

import "errors"

// Task lifecycle errors.
var (
	// ErrTaskNotFound indicates the requested task id is unknown.
	ErrTaskNotFound = errors.New("a2a: task not found")
	// ErrAgentNotFound indicates no agent is registered for the target id.
	ErrAgentNotFound = errors.New("a2a: agent not found")
)

// Message validation errors.
var (
	// ErrInvalidMessage indicates the message format is invalid.
	ErrInvalidMessage = errors.New("a2a message: invalid message")
	// ErrMessageMissingRole indicates the message lacks a role.
	ErrMessageMissingRole = errors.New("a2a message: missing role")
	// ErrMessageMissingParts indicates the message has no parts.
	ErrMessageMissingParts = errors.New("a2a message: missing parts")
)

// Agent card validation errors.
var (
	// ErrMissingName indicates the agent card lacks a name.
	ErrMissingName = errors.New("agent card: missing name")
	// ErrMissingDescription indicates the agent card lacks a description.
	ErrMissingDescription = errors.New("agent card: missing description")
	// ErrMissingVersion indicates the agent card lacks a version.
	ErrMissingVersion = errors.New("agent card: missing version")
)

// Client errors.
var (
	// ErrRemoteUnavailable indicates the remote agent could not be reached.
	ErrRemoteUnavailable = errors.New("a2a: remote agent unavailable")
	// ErrEmptyReply indicates a delegation response carried no extractable text.
	ErrEmptyReply = errors.New("a2a: reply carries no text")
	// ErrAuthFailed indicates bearer authentication failed.
	ErrAuthFailed = errors.New("a2a: authentication failed")
)
