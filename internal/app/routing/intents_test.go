package routing_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/insighter/internal/app/routing"
	"github.com/PabloGalante/insighter/internal/domain"
)

func TestIntentEncode(t *testing.T) {
	cat := routing.DefaultCatalog()

	in, err := cat.Lookup("route_to_file_analyzer")
	require.NoError(t, err)

	out := in.Encode(map[string]any{
		"reason":        "user uploaded a pdf",
		"file_type":     "pdf",
		"analysis_goal": "extract totals",
	})

	assert.Equal(t, domain.AgentFileAnalyzer, out.Agent)
	assert.Equal(t, "user uploaded a pdf", out.Reason)
	assert.Equal(t, "pdf", out.Extra("file_type"))
	assert.Equal(t, "ROUTE:file_analyzer|user uploaded a pdf|pdf|extract totals", out.String())
}

func TestFinishEncoding(t *testing.T) {
	cat := routing.DefaultCatalog()
	in, err := cat.Lookup("finish_task")
	require.NoError(t, err)

	out := in.Encode(map[string]any{"reason": "done", "summary": "all answered"})
	assert.Equal(t, "ROUTE:FINISH|done|all answered", out.String())
}

func TestEncodeStringifiesNonStringArgs(t *testing.T) {
	in, err := routing.DefaultCatalog().Lookup("route_to_reporter")
	require.NoError(t, err)

	out := in.Encode(map[string]any{"reason": 42, "visualization_type": nil})
	assert.Equal(t, "42", out.Reason)
	assert.Equal(t, "", out.Extra("visualization_type"))
}

func TestLookupUnknownIntent(t *testing.T) {
	_, err := routing.DefaultCatalog().Lookup("route_to_sql_wizard")
	assert.True(t, errors.Is(err, routing.ErrUnknownIntent))
}

func TestDefaultCatalogRestriction(t *testing.T) {
	cat := routing.DefaultCatalog(domain.AgentDataExplorer)

	var names []string
	for _, in := range cat.Intents() {
		names = append(names, in.Name)
	}
	assert.Equal(t, []string{"route_to_data_explorer", "finish_task"}, names)

	specs := cat.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, []string{"reason"}, specs[0].RequiredNames())
}

func TestParseRouteRoundTrip(t *testing.T) {
	for _, in := range routing.DefaultIntents() {
		out := in.Encode(map[string]any{
			"reason":             "because | of \\ reasons",
			"expected_output":    "rows",
			"visualization_type": "chart",
			"file_type":          "pdf",
			"analysis_goal":      "totals",
			"html_goal":          "a|b",
			"question":           "what?",
			"summary":            "done",
		})

		parsed, err := routing.ParseRoute(out.String())
		require.NoError(t, err, in.Name)
		assert.Equal(t, out, parsed, in.Name)
	}
}

func TestParseRouteWithoutExtras(t *testing.T) {
	parsed, err := routing.ParseRoute("ROUTE:reporter|make a chart")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentReporter, parsed.Agent)
	assert.Equal(t, "make a chart", parsed.Reason)
	assert.Empty(t, parsed.Extras)

	finish, err := routing.ParseRoute(routing.Finish("no work", "").String())
	require.NoError(t, err)
	assert.Equal(t, routing.Finish("no work", ""), finish)
}

func TestParseRouteRejectsMalformed(t *testing.T) {
	for _, s := range []string{
		"",
		"reporter|make a chart",
		"route:reporter|lowercase prefix",
		"ROUTE:|empty agent",
		"ROUTE:sql_wizard|unknown",
	} {
		_, err := routing.ParseRoute(s)
		assert.ErrorIs(t, err, routing.ErrMalformedRoute, s)
	}
}
