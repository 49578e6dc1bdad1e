package routing

import (
	"fmt"
	"strings"

	"github.com/PabloGalante/insighter/internal/domain"
)

const orchestratorPrompt = `You are the Orchestrator of a team of specialized data agents.
You never answer the user yourself. On every turn you pick exactly one routing intent
from the tools you are given, filling its arguments from the conversation.`

// SystemInstruction renders the routing instruction for the catalog and policy.
func SystemInstruction(c *Catalog, p *Policy) string {
	var b strings.Builder
	b.WriteString(orchestratorPrompt)

	b.WriteString("\n\nAvailable routing intents:\n")
	for _, in := range c.Intents() {
		fmt.Fprintf(&b, "- %s: %s\n", in.Name, in.Description)
	}

	if len(p.Priorities) > 0 {
		b.WriteString("\nDecision policy:\n")
		for i, pr := range p.Priorities {
			fmt.Fprintf(&b, "%d. %s\n", i+1, pr)
		}
	}
	return b.String()
}

// StatusBlock summarizes the queue and the last completed agent.
func StatusBlock(st *domain.ConversationState) string {
	pending := "none"
	if len(st.PendingTasks) > 0 {
		pending = strings.Join(st.PendingTasks, "; ")
	}
	current := st.CurrentTask
	if current == "" {
		current = "none"
	}
	last := string(st.LastAgent())
	if last == "" {
		last = "none"
	}

	var b strings.Builder
	b.WriteString("Current status:\n")
	fmt.Fprintf(&b, "- pending tasks: %s\n", pending)
	fmt.Fprintf(&b, "- current task: %s\n", current)
	fmt.Fprintf(&b, "- last completed agent: %s\n", last)
	return b.String()
}
