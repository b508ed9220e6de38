package main

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/spf13/cobra"

	"sigtrip_wrapper/internal/negotiation"
)

type toolSummary struct {
	Name     string   `json:"name"`
	Required []string `json:"required"`
	Fields   []string `json:"fields"`
}

type toolsReport struct {
	UpstreamURL string        `json:"upstream_url"`
	Tools       []toolSummary `json:"tools"`
	CancelTool  string        `json:"cancel_tool,omitempty"`
	StatusTool  string        `json:"status_tool,omitempty"`
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List upstream tools and the negotiated cancel/status tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newUpstream(cmd)
			if err != nil {
				return err
			}
			rep, err := buildToolsReport(cmd.Context(), negotiation.New(client), client.URL())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}
}

func buildToolsReport(ctx context.Context, n *negotiation.Negotiator, url string) (toolsReport, error) {
	tools, err := n.Discover(ctx)
	if err != nil {
		return toolsReport{}, err
	}
	rep := toolsReport{UpstreamURL: url, Tools: make([]toolSummary, 0, len(tools))}
	for _, d := range tools {
		rep.Tools = append(rep.Tools, toolSummary{Name: d.Name, Required: d.Required.Sorted(), Fields: d.Known.Sorted()})
	}
	sort.Slice(rep.Tools, func(i, j int) bool { return rep.Tools[i].Name < rep.Tools[j].Name })
	rep.CancelTool, _ = negotiation.FindSupported(tools, negotiation.CancelCandidates)
	rep.StatusTool, _ = negotiation.FindSupported(tools, negotiation.StatusCandidates)
	return rep, nil
}
