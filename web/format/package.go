package format

import (
	"fmt"
	"strings"

	"floatchat/agent"
	"floatchat/web/types"
)

const (
	NoDataMessage      = "No data found for your query. Please try a different query."
	PlotReadyMessage   = "Data prepared for plotting visualization."
	tableMessageFormat = "Query returned %d row(s). Showing first %d rows."
	defaultPreviewRows = 10
)

// NormalizeMode maps an empty mode to text and lower-cases the rest.
func NormalizeMode(mode string) string {
	m := strings.ToLower(strings.TrimSpace(mode))
	if m == "" {
		return types.OutputText
	}
	return m
}

// ValidMode reports whether mode is one of text, table or plot.
func ValidMode(mode string) bool {
	switch NormalizeMode(mode) {
	case types.OutputText, types.OutputTable, types.OutputPlot:
		return true
	}
	return false
}

// NeedsArtifact reports whether a CSV of the dataset should accompany the
// response: always for table and plot, and for text when a plot was suggested.
func NeedsArtifact(res agent.Result, mode string) bool {
	if !res.Outcome.HasData() || res.Dataset.Empty() {
		return false
	}
	switch NormalizeMode(mode) {
	case types.OutputTable, types.OutputPlot:
		return true
	}
	return res.Query != nil && res.Query.PlotSuggested
}

// Package turns a coordinator result into the response envelope for mode.
// Results without data are always packaged as text.
func Package(res agent.Result, mode string, previewRows int) types.QueryResponse {
	if previewRows <= 0 {
		previewRows = defaultPreviewRows
	}
	mode = NormalizeMode(mode)

	resp := types.QueryResponse{
		Type:     types.OutputText,
		Message:  res.Answer.Text,
		Degraded: res.Answer.Degraded,
		Status:   string(res.Outcome),
		States:   stateNames(res.States),
	}
	if res.Answer.CitationNote != nil {
		resp.CitationNote = *res.Answer.CitationNote
	}

	hasData := res.Outcome.HasData() && !res.Dataset.Empty()
	if !hasData {
		if res.Outcome == agent.OutcomeNoData && mode != types.OutputText {
			resp.Message = NoDataMessage
		}
		resp.HTML = RenderHTML(resp.Message)
		return resp
	}

	resp.HTML = RenderHTML(res.Answer.Text)

	switch mode {
	case types.OutputTable:
		shown := res.Dataset.Head(previewRows)
		resp.Type = types.OutputTable
		resp.Message = fmt.Sprintf(tableMessageFormat, res.Dataset.Len(), shown.Len())
		resp.Rows = &types.TableRows{
			Columns:   shown.Columns,
			Data:      shown.Rows,
			TotalRows: res.Dataset.Len(),
		}
	case types.OutputPlot:
		resp.Type = types.OutputPlot
		resp.Message = PlotReadyMessage
		resp.Artifact = &types.Artifact{Kind: "csv"}
		if res.Answer.Plot != nil {
			resp.Artifact.PlotType = res.Answer.Plot.Type
			resp.Artifact.PlotHeading = res.Answer.Plot.Heading
		}
	}
	return resp
}

func stateNames(states []agent.State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}
