package routing_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/insighter/internal/app/routing"
	"github.com/PabloGalante/insighter/internal/domain"
)

func TestDefaultPolicyPlan(t *testing.T) {
	p := routing.DefaultPolicy()

	tests := []struct {
		name   string
		target domain.AgentID
		text   string
		want   []string
	}{
		{"report keyword", domain.AgentDataExplorer, "show me the sales table and then build a report", []string{"generate visualization report"}},
		{"chinese keyword", domain.AgentDataExplorer, "查询销售数据并生成大屏", []string{"generate visualization report"}},
		{"dashboard triggers both", domain.AgentDataExplorer, "a Dashboard please", []string{"generate visualization report", "generate HTML page"}},
		{"html keyword", domain.AgentDataExplorer, "put it in an HTML view", []string{"generate HTML page"}},
		{"other target", domain.AgentReporter, "build a report", nil},
		{"no keyword", domain.AgentDataExplorer, "how many rows in orders", nil},
		{"web page phrase", domain.AgentDataExplorer, "turn the totals into a web page", []string{"generate HTML page"}},
		{"plural keyword", domain.AgentDataExplorer, "I need weekly reports", []string{"generate visualization report"}},
		{"webinar is not a page", domain.AgentDataExplorer, "attendance numbers for the last webinar", nil},
		{"homepage is not html", domain.AgentDataExplorer, "visits to the homepage per day", nil},
		{"pages of a pdf", domain.AgentDataExplorer, "count the pages of the pdf table", nil},
		{"keyword inside a word", domain.AgentDataExplorer, "list the flowcharts table", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Plan(tt.target, tt.text))
		})
	}
}

func TestAgentForTask(t *testing.T) {
	p := routing.DefaultPolicy()

	assert.Equal(t, domain.AgentReporter, p.AgentForTask("generate visualization report"))
	assert.Equal(t, domain.AgentHTMLGen, p.AgentForTask("generate HTML page"))
	assert.Equal(t, domain.AgentKnowledge, p.AgentForTask("answer from knowledge base"))
	assert.Equal(t, domain.AgentDataExplorer, p.AgentForTask("data_explorer"))
	assert.Equal(t, domain.AgentFinish, p.AgentForTask("make coffee"))
}

func TestLoadPolicyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	raw := `
follow_ups:
  - after: file_analyzer
    keywords: [SUMMARY]
    task: summarize findings
    agent: reporter
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	p, err := routing.LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"summarize findings"}, p.Plan(domain.AgentFileAnalyzer, "give me a summary"))
}

func TestParsePolicyRejectsUnknownAgent(t *testing.T) {
	_, err := routing.ParsePolicy([]byte(`
follow_ups:
  - after: data_explorer
    keywords: [x]
    task: t
    agent: painter
`))
	assert.Error(t, err)

	_, err = routing.ParsePolicy([]byte(`tasks: {t: FINISH}`))
	assert.Error(t, err)
}
