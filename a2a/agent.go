package a2a

import "context"

// Agent is the capability contract every agent implements, the
// orchestrator included. ProcessMessage is the single extension point
// with business logic; a returned error is converted by the TaskManager
// into a failed task and never escapes to the transport.
type Agent interface {
	// Card returns the agent's static discovery metadata.
	Card() *AgentCard

	// ProcessMessage handles one task turn and returns the reply.
	ProcessMessage(ctx context.Context, msg *Message, taskID, sessionID string) (*Message, error)
}
