package agentflow

import (
	"fmt"

	"github.com/PabloGalante/insighter/internal/app/tools"
	"github.com/PabloGalante/insighter/internal/domain"
)

// Profile is the fixed persona of a specialized agent.
type Profile struct {
	ID           domain.AgentID
	Name         string
	Framing      string
	SystemPrompt string
	Fallback     string
}

func (p Profile) fallbackText() string {
	if p.Fallback != "" {
		return p.Fallback
	}
	return fmt.Sprintf("The %s could not complete this task right now. Please try again or rephrase the request.", p.Name)
}

var profiles = map[domain.AgentID]Profile{
	domain.AgentDataExplorer: {
		ID:      domain.AgentDataExplorer,
		Name:    "data explorer",
		Framing: "Explore the database to answer the request below. Inspect the schema before querying and report the numbers you find.",
		SystemPrompt: `You are a data analyst with read-only access to a MySQL database.
List tables and describe them before writing queries. Use run_query for SELECT statements only.
Summarize results clearly and suggest which visualizations would fit the data.`,
	},
	domain.AgentReporter: {
		ID:      domain.AgentReporter,
		Name:    "reporter",
		Framing: "Build a visualization report from the analysis results in this conversation.",
		SystemPrompt: `You are a reporting specialist. Turn analysis results into a structured report:
key findings, figures and a dashboard layout. Publish the report with publish_document and,
when it helps, generate an illustrative image with generate_image. Return the links you produced.`,
	},
	domain.AgentFileAnalyzer: {
		ID:      domain.AgentFileAnalyzer,
		Name:    "file analyzer",
		Framing: "Analyze the files referenced in this conversation. Use the url of each [file: ...] or [image: ...] entry.",
		SystemPrompt: `You are a document analyst. Pick the parser that matches each file type
(PDF, Word, CSV/TSV, images), read the content and report the facts relevant to the user's goal.`,
	},
	domain.AgentHTMLGen: {
		ID:      domain.AgentHTMLGen,
		Name:    "HTML generator",
		Framing: "Generate a complete HTML page presenting the results in this conversation.",
		SystemPrompt: `You are a front-end engineer. Write a single self-contained HTML page with inline CSS
and JavaScript (charts may use a CDN library) that presents the analysis results.
Publish it with publish_html_page and return the link.`,
	},
	domain.AgentKnowledge: {
		ID:      domain.AgentKnowledge,
		Name:    "knowledge agent",
		Framing: "Answer the question below from the knowledge base and cite the sources.",
		SystemPrompt: `You answer questions using the organization's knowledge base.
Always call query_knowledge_base, quote the sources it returns and say so when nothing relevant is found.`,
	},
}

// ProfileFor returns the built-in profile of a specialized agent.
func ProfileFor(id domain.AgentID) (Profile, bool) {
	p, ok := profiles[id]
	return p, ok
}

// AgentSetup binds tools to one specialized agent.
type AgentSetup struct {
	ID    domain.AgentID
	Tools *tools.Toolset
}

// BuildAgents creates a tool-loop node per setup, sharing one model.
func BuildAgents(model domain.ChatModel, temperature float32, maxSteps int, setups ...AgentSetup) ([]Agent, error) {
	var out []Agent
	for _, s := range setups {
		p, ok := ProfileFor(s.ID)
		if !ok {
			return nil, fmt.Errorf("no profile for agent %q", s.ID)
		}
		loop := NewToolLoop(model, s.Tools, p.SystemPrompt, temperature, maxSteps)
		out = append(out, NewNode(p, loop))
	}
	return out, nil
}
