package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/PabloGalante/insighter/internal/domain"
)

// MockLLM is a deterministic offline model for local runs.
// As a router it picks an intent by keyword; as an agent it acknowledges the task in text.
type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

type keywordRoute struct {
	intent   string
	keywords []string
	argKey   string
}

var mockRoutes = []keywordRoute{
	{intent: "route_to_file_analyzer", keywords: []string{"[file:", "[image:", "pdf", "docx", "csv", "文件"}, argKey: "analysis_goal"},
	{intent: "route_to_html_gen", keywords: []string{"html", "web page", "页面"}, argKey: "html_goal"},
	{intent: "route_to_reporter", keywords: []string{"report", "chart", "visualiz", "报告", "图表"}, argKey: "visualization_type"},
	{intent: "route_to_knowledge_base", keywords: []string{"document", "policy", "manual", "知识库"}, argKey: "question"},
	{intent: "route_to_data_explorer", keywords: []string{"sql", "table", "database", "data", "sales", "数据", "查询"}, argKey: "expected_output"},
}

func (m *MockLLM) ChatWithTools(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if hasTool(req.Tools, "finish_task") {
		return m.route(req), nil
	}
	return &domain.ChatResponse{Text: m.answer(req.Messages)}, nil
}

func (m *MockLLM) route(req domain.ChatRequest) *domain.ChatResponse {
	last := lastNonTool(req.Messages)
	if last == nil {
		return finishCall("nothing to do", "")
	}
	if last.Role == domain.RoleAssistant && last.Author.IsSpecialized() {
		return finishCall(fmt.Sprintf("%s completed the request", last.Author), excerpt(last.Text(), 200))
	}

	text := strings.ToLower(last.Text())
	for _, r := range mockRoutes {
		if !hasTool(req.Tools, r.intent) {
			continue
		}
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return &domain.ChatResponse{ToolCalls: []domain.ToolCall{{
					ID:   "mock_" + r.intent,
					Name: r.intent,
					Arguments: map[string]any{
						"reason": fmt.Sprintf("request mentions %q", kw),
						r.argKey: excerpt(last.Text(), 120),
					},
				}}}
			}
		}
	}
	return finishCall("no specialized agent is needed", "")
}

func (m *MockLLM) answer(msgs []*domain.Message) string {
	last := lastNonTool(msgs)
	if last == nil {
		return "Nothing to work on."
	}
	return "Acknowledged. " + excerpt(last.Text(), 300)
}

func finishCall(reason, summary string) *domain.ChatResponse {
	args := map[string]any{"reason": reason}
	if summary != "" {
		args["summary"] = summary
	}
	return &domain.ChatResponse{ToolCalls: []domain.ToolCall{{ID: "mock_finish_task", Name: "finish_task", Arguments: args}}}
}

func hasTool(specs []domain.ToolSpec, name string) bool {
	for _, s := range specs {
		if s.Name == name {
			return true
		}
	}
	return false
}

func lastNonTool(msgs []*domain.Message) *domain.Message {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i] != nil && msgs[i].Role != domain.RoleTool {
			return msgs[i]
		}
	}
	return nil
}

func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
