package routing

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/PabloGalante/insighter/internal/domain"
)

//go:embed policy.yaml
var defaultPolicyYAML []byte

// FollowUpRule queues Task when the model routes to After and the user
// text contains any of Keywords.
type FollowUpRule struct {
	After    domain.AgentID `yaml:"after"`
	Keywords []string       `yaml:"keywords"`
	Task     string         `yaml:"task"`
	Agent    domain.AgentID `yaml:"agent"`
}

// Policy is the single routing policy table.
type Policy struct {
	Priorities []string                  `yaml:"priorities"`
	FollowUps  []FollowUpRule            `yaml:"follow_ups"`
	Tasks      map[string]domain.AgentID `yaml:"tasks"`
}

// DefaultPolicy returns the embedded policy table.
func DefaultPolicy() *Policy {
	p, err := ParsePolicy(defaultPolicyYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded routing policy: %v", err))
	}
	return p
}

// LoadPolicy reads a policy file, or returns the default one when path is empty.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routing policy: %w", err)
	}
	return ParsePolicy(raw)
}

// ParsePolicy decodes and validates a YAML policy.
func ParsePolicy(raw []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode routing policy: %w", err)
	}

	for i, r := range p.FollowUps {
		if !r.After.IsSpecialized() {
			return nil, fmt.Errorf("follow_ups[%d]: unknown agent %q in after", i, r.After)
		}
		if !r.Agent.IsSpecialized() {
			return nil, fmt.Errorf("follow_ups[%d]: unknown agent %q", i, r.Agent)
		}
		if strings.TrimSpace(r.Task) == "" {
			return nil, fmt.Errorf("follow_ups[%d]: task is required", i)
		}
		if len(r.Keywords) == 0 {
			return nil, fmt.Errorf("follow_ups[%d]: at least one keyword is required", i)
		}
		for j, kw := range r.Keywords {
			p.FollowUps[i].Keywords[j] = strings.ToLower(kw)
		}
	}
	for task, agent := range p.Tasks {
		if !agent.IsSpecialized() {
			return nil, fmt.Errorf("tasks[%q]: unknown agent %q", task, agent)
		}
	}
	return &p, nil
}

// Plan returns the follow-up tasks implied by routing to target, in rule order.
func (p *Policy) Plan(target domain.AgentID, userText string) []string {
	text := strings.ToLower(userText)
	var tasks []string
	for _, r := range p.FollowUps {
		if r.After != target {
			continue
		}
		for _, kw := range r.Keywords {
			if containsKeyword(text, kw) {
				tasks = append(tasks, r.Task)
				break
			}
		}
	}
	return tasks
}

// containsKeyword matches kw at the start of a word, so "report" matches
// "reports" but "web" does not match "cobweb". Keywords starting with a
// non-ASCII rune match anywhere, since CJK text has no word separators.
func containsKeyword(text, kw string) bool {
	first, _ := utf8.DecodeRuneInString(kw)
	if first >= utf8.RuneSelf {
		return strings.Contains(text, kw)
	}
	for i := 0; i <= len(text)-len(kw); {
		j := strings.Index(text[i:], kw)
		if j < 0 {
			return false
		}
		at := i + j
		prev, _ := utf8.DecodeLastRuneInString(text[:at])
		if at == 0 || !(unicode.IsLetter(prev) || unicode.IsDigit(prev)) {
			return true
		}
		i = at + 1
	}
	return false
}

// AgentForTask resolves a queued descriptor. Unknown descriptors resolve to FINISH.
func (p *Policy) AgentForTask(task string) domain.AgentID {
	for _, r := range p.FollowUps {
		if r.Task == task {
			return r.Agent
		}
	}
	if a, ok := p.Tasks[task]; ok {
		return a
	}
	if a, ok := domain.ParseAgentID(task); ok {
		return a
	}
	return domain.AgentFinish
}
