package routing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PabloGalante/insighter/internal/domain"
)

// ErrUnknownIntent is returned when a model names a routing intent outside the catalog.
var ErrUnknownIntent = errors.New("unknown routing intent")

// ErrMalformedRoute is returned by ParseRoute for text that is not a ROUTE: encoding.
var ErrMalformedRoute = errors.New("malformed routing decision")

const routePrefix = "ROUTE:"

var fieldEscaper = strings.NewReplacer(`\`, `\\`, `|`, `\|`)

// Extra is an intent-specific argument carried by a RoutingOutcome.
type Extra struct {
	Key   string
	Value string
}

// RoutingOutcome is the decision recorded by one routing intent.
type RoutingOutcome struct {
	Agent  domain.AgentID
	Reason string
	Extras []Extra
}

// Extra returns the value of an intent-specific argument.
func (o RoutingOutcome) Extra(key string) string {
	for _, e := range o.Extras {
		if e.Key == key {
			return e.Value
		}
	}
	return ""
}

// String renders the outcome as ROUTE:<agent>|<reason>|<extras...>.
// A '|' or '\' inside a field is escaped with a backslash.
func (o RoutingOutcome) String() string {
	var b strings.Builder
	b.WriteString(routePrefix)
	b.WriteString(string(o.Agent))
	b.WriteByte('|')
	b.WriteString(fieldEscaper.Replace(o.Reason))
	for _, e := range o.Extras {
		b.WriteByte('|')
		b.WriteString(fieldEscaper.Replace(e.Value))
	}
	return b.String()
}

// ParseRoute reads back the String form. Extras are keyed by the parameters
// of the agent's routing intent, in declaration order.
func ParseRoute(s string) (RoutingOutcome, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), routePrefix)
	if !ok {
		return RoutingOutcome{}, fmt.Errorf("%w: missing %s prefix", ErrMalformedRoute, routePrefix)
	}

	fields := splitFields(rest)
	agent, ok := domain.ParseAgentID(strings.TrimSpace(fields[0]))
	if !ok {
		return RoutingOutcome{}, fmt.Errorf("%w: unknown agent %q", ErrMalformedRoute, fields[0])
	}

	out := RoutingOutcome{Agent: agent}
	if len(fields) > 1 {
		out.Reason = fields[1]
	}
	keys := extraKeys(agent)
	for i, v := range fields[min(len(fields), 2):] {
		key := fmt.Sprintf("extra_%d", i+1)
		if i < len(keys) {
			key = keys[i]
		}
		out.Extras = append(out.Extras, Extra{Key: key, Value: v})
	}
	return out, nil
}

func splitFields(s string) []string {
	var (
		fields []string
		cur    strings.Builder
	)
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '|':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(fields, cur.String())
}

func extraKeys(agent domain.AgentID) []string {
	for _, in := range DefaultIntents() {
		if in.Agent != agent {
			continue
		}
		var keys []string
		for _, p := range in.Params {
			if p.Name != "reason" {
				keys = append(keys, p.Name)
			}
		}
		return keys
	}
	return nil
}

// Finish builds a terminal outcome.
func Finish(reason, summary string) RoutingOutcome {
	out := RoutingOutcome{Agent: domain.AgentFinish, Reason: reason}
	if summary != "" {
		out.Extras = []Extra{{Key: "summary", Value: summary}}
	}
	return out
}

// Intent is one routing option the model may pick per turn.
type Intent struct {
	Name        string
	Agent       domain.AgentID
	Description string
	Params      []domain.ToolParam
}

// Spec describes the intent as a model tool.
func (i Intent) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        i.Name,
		Description: i.Description,
		Params:      i.Params,
	}
}

// Encode records the decision. It has no side effects.
func (i Intent) Encode(args map[string]any) RoutingOutcome {
	out := RoutingOutcome{
		Agent:  i.Agent,
		Reason: argString(args, "reason"),
	}
	for _, p := range i.Params {
		if p.Name == "reason" {
			continue
		}
		out.Extras = append(out.Extras, Extra{Key: p.Name, Value: argString(args, p.Name)})
	}
	return out
}

func argString(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func reasonParam(desc string) domain.ToolParam {
	return domain.ToolParam{Name: "reason", Type: domain.ParamString, Description: desc, Required: true}
}

func strParam(name, desc string) domain.ToolParam {
	return domain.ToolParam{Name: name, Type: domain.ParamString, Description: desc}
}

// DefaultIntents is the full routing catalog.
func DefaultIntents() []Intent {
	return []Intent{
		{
			Name:        "route_to_data_explorer",
			Agent:       domain.AgentDataExplorer,
			Description: "Route to the data explorer for database queries, table lookups and data analysis.",
			Params: []domain.ToolParam{
				reasonParam("Why the data explorer should handle the request."),
				strParam("expected_output", "What the exploration should produce."),
			},
		},
		{
			Name:        "route_to_reporter",
			Agent:       domain.AgentReporter,
			Description: "Route to the reporter to produce reports, dashboards and visualizations from analysis results.",
			Params: []domain.ToolParam{
				reasonParam("Why a report is needed."),
				strParam("visualization_type", "Kind of visualization, e.g. dashboard, chart, document."),
			},
		},
		{
			Name:        "route_to_file_analyzer",
			Agent:       domain.AgentFileAnalyzer,
			Description: "Route to the file analyzer when the user uploaded files or images that must be read.",
			Params: []domain.ToolParam{
				reasonParam("Why the files need analysis."),
				strParam("file_type", "Type of the file, e.g. pdf, docx, csv, image."),
				strParam("analysis_goal", "What to extract from the file."),
			},
		},
		{
			Name:        "route_to_html_gen",
			Agent:       domain.AgentHTMLGen,
			Description: "Route to the HTML generator to build web pages or front-end dashboards.",
			Params: []domain.ToolParam{
				reasonParam("Why an HTML page is needed."),
				strParam("html_goal", "What the page should show."),
			},
		},
		{
			Name:        "route_to_knowledge_base",
			Agent:       domain.AgentKnowledge,
			Description: "Route to the knowledge agent for questions answered from the document knowledge base.",
			Params: []domain.ToolParam{
				reasonParam("Why the knowledge base should be consulted."),
				strParam("question", "The question to look up."),
			},
		},
		{
			Name:        "finish_task",
			Agent:       domain.AgentFinish,
			Description: "Finish when the request has been fully served or cannot be served.",
			Params: []domain.ToolParam{
				reasonParam("Why the work is complete."),
				strParam("summary", "Short summary for the user."),
			},
		},
	}
}

// Catalog is an immutable set of routing intents.
type Catalog struct {
	intents []Intent
	byName  map[string]Intent
}

func NewCatalog(intents []Intent) *Catalog {
	c := &Catalog{byName: make(map[string]Intent, len(intents))}
	for _, in := range intents {
		c.intents = append(c.intents, in)
		c.byName[in.Name] = in
	}
	return c
}

// DefaultCatalog restricted to the given agents. finish_task is always kept.
func DefaultCatalog(available ...domain.AgentID) *Catalog {
	if len(available) == 0 {
		return NewCatalog(DefaultIntents())
	}
	keep := make(map[domain.AgentID]bool, len(available))
	for _, a := range available {
		keep[a] = true
	}
	var intents []Intent
	for _, in := range DefaultIntents() {
		if in.Agent == domain.AgentFinish || keep[in.Agent] {
			intents = append(intents, in)
		}
	}
	return NewCatalog(intents)
}

func (c *Catalog) Lookup(name string) (Intent, error) {
	in, ok := c.byName[name]
	if !ok {
		return Intent{}, fmt.Errorf("%w: %s", ErrUnknownIntent, name)
	}
	return in, nil
}

func (c *Catalog) Intents() []Intent {
	return c.intents
}

func (c *Catalog) Specs() []domain.ToolSpec {
	specs := make([]domain.ToolSpec, 0, len(c.intents))
	for _, in := range c.intents {
		specs = append(specs, in.Spec())
	}
	return specs
}
