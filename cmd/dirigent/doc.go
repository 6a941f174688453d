// Command dirigent runs the multi-agent task service: an orchestrator
// that routes user requests over a set of context-backed sub-agents,
// exposed through the agent-to-agent task protocol.
package main
