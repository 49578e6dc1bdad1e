package domain

import "time"

type SessionID string
type UserID string
type MessageID string
type RunID string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// AgentID identifies a node of the orchestration graph.
type AgentID string

const (
	AgentOrchestrator AgentID = "Orchestrator"
	AgentDataExplorer AgentID = "data_explorer"
	AgentReporter     AgentID = "reporter"
	AgentFileAnalyzer AgentID = "file_analyzer"
	AgentHTMLGen      AgentID = "html_gen"
	AgentKnowledge    AgentID = "knowledge"

	// AgentFinish is the terminal sentinel.
	AgentFinish AgentID = "FINISH"
)

// SpecializedAgents lists the dispatchable agents in catalog order.
var SpecializedAgents = []AgentID{
	AgentDataExplorer,
	AgentReporter,
	AgentFileAnalyzer,
	AgentHTMLGen,
	AgentKnowledge,
}

// IsSpecialized reports whether the orchestrator may dispatch to a.
func (a AgentID) IsSpecialized() bool {
	for _, s := range SpecializedAgents {
		if s == a {
			return true
		}
	}
	return false
}

// IsKnown reports whether a is a specialized agent or the terminal sentinel.
func (a AgentID) IsKnown() bool {
	return a == AgentFinish || a.IsSpecialized()
}

// ParseAgentID accepts the canonical ids plus a few historical spellings.
func ParseAgentID(s string) (AgentID, bool) {
	switch s {
	case "data_explorer", "DataExplorer", "data_explorer_agent":
		return AgentDataExplorer, true
	case "reporter", "Reporter", "reporter_agent":
		return AgentReporter, true
	case "file_analyzer", "FileAnalyzer", "file_analyzer_agent":
		return AgentFileAnalyzer, true
	case "html_gen", "HTMLGen", "html_gen_agent":
		return AgentHTMLGen, true
	case "knowledge", "Knowledge", "rag_agent":
		return AgentKnowledge, true
	case "FINISH", "finish":
		return AgentFinish, true
	}
	return "", false
}

type Timestamp = time.Time
