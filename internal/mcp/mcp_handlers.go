package mcp

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/huangsam/repoharvest/internal/persist"
	"github.com/huangsam/repoharvest/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// sortKeys are the orderings accepted by list_repositories.
var sortKeys = []string{"stars", "classes", "cbo", "lcom", "loc", "age"}

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.StoreManager
}

// repositoryView is a results-table row with per-class averages added.
type repositoryView struct {
	schema.CombinedRecord
	CBOPerClass  float64 `json:"cbo_per_class"`
	LCOMPerClass float64 `json:"lcom_per_class"`
	DITPerClass  float64 `json:"dit_per_class"`
	LOCPerClass  float64 `json:"loc_per_class"`
}

func newRepositoryView(r schema.CombinedRecord) repositoryView {
	return repositoryView{
		CombinedRecord: r,
		CBOPerClass:    r.MeanCBO(),
		LCOMPerClass:   r.MeanLCOM(),
		DITPerClass:    r.MeanDIT(),
		LOCPerClass:    r.MeanLOC(),
	}
}

// tableSummary describes a whole results table.
type tableSummary struct {
	Table        string                  `json:"table"`
	Repositories schema.DiscoverySummary `json:"repositories"`
	Analyzed     int                     `json:"analyzed"` // rows with at least one class
	TotalClasses int                     `json:"total_classes"`
	CBOPerClass  schema.StatSummary      `json:"cbo_per_class"`
	LOCPerClass  schema.StatSummary      `json:"loc_per_class"`
	AvgCC        schema.StatSummary      `json:"avg_cc"`
}

func (h *toolHandler) loadTable(request mcp.CallToolRequest) (string, []schema.CombinedRecord, error) {
	path := request.GetString("table", "")
	if path == "" {
		path = h.baseCfg.TablePath
	}
	records, err := persist.ReadTable(path)
	if err != nil {
		return path, nil, fmt.Errorf("failed to read table %s: %w", path, err)
	}
	return path, records, nil
}

func textJSON(v any) *mcp.CallToolResult {
	jsonData, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(jsonData))
}

func (h *toolHandler) handleListRepositories(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sortBy := request.GetString("sort_by", "stars")
	if !slices.Contains(sortKeys, sortBy) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid sort_by '%s'. must be one of %s", sortBy, strings.Join(sortKeys, ", "))), nil
	}
	_, records, err := h.loadTable(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	minStars := request.GetInt("min_stars", 0)
	views := make([]repositoryView, 0, len(records))
	for _, r := range records {
		if r.Stars >= minStars {
			views = append(views, newRepositoryView(r))
		}
	}
	slices.SortStableFunc(views, func(a, b repositoryView) int {
		return cmp.Compare(sortValue(b, sortBy), sortValue(a, sortBy))
	})
	if l := request.GetInt("limit", 0); l > 0 && l < len(views) {
		views = views[:l]
	}
	return textJSON(views), nil
}

// sortValue returns the descending sort key of v.
func sortValue(v repositoryView, key string) float64 {
	switch key {
	case "classes":
		return float64(v.TotalClasses)
	case "cbo":
		return v.CBOPerClass
	case "lcom":
		return v.LCOMPerClass
	case "loc":
		return v.LOC
	case "age":
		return float64(v.AgeDays)
	default:
		return float64(v.Stars)
	}
}

func (h *toolHandler) handleGetRepository(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref := strings.TrimSpace(request.GetString("repository", ""))
	if ref == "" {
		return mcp.NewToolResultError("repository is required"), nil
	}
	path, records, err := h.loadTable(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	for _, r := range records {
		if strings.EqualFold(r.FullName(), ref) || strings.EqualFold(strings.TrimSuffix(r.URL, "/"), strings.TrimSuffix(ref, "/")) {
			return textJSON(newRepositoryView(r)), nil
		}
	}
	return mcp.NewToolResultError(fmt.Sprintf("repository %s not found in %s", ref, path)), nil
}

func (h *toolHandler) handleTableSummary(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, records, err := h.loadTable(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return textJSON(summarizeTable(path, records)), nil
}

func summarizeTable(path string, records []schema.CombinedRecord) tableSummary {
	descriptors := make([]schema.RepositoryDescriptor, len(records))
	var cbo, loc, cc []float64
	summary := tableSummary{Table: path}
	for i, r := range records {
		descriptors[i] = r.RepositoryDescriptor
		if r.TotalClasses == 0 {
			continue
		}
		summary.Analyzed++
		summary.TotalClasses += r.TotalClasses
		cbo = append(cbo, r.MeanCBO())
		loc = append(loc, r.MeanLOC())
		cc = append(cc, r.AvgCC)
	}
	summary.Repositories = schema.SummarizeRepositories(descriptors)
	summary.CBOPerClass = schema.Summarize(cbo)
	summary.LOCPerClass = schema.Summarize(loc)
	summary.AvgCC = schema.Summarize(cc)
	return summary
}

func (h *toolHandler) handleListRuns(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.mgr == nil || h.mgr.GetRunStore() == nil {
		return mcp.NewToolResultError("run tracking is not enabled. Set --run-backend to list runs"), nil
	}
	runs, err := h.mgr.GetRunStore().GetAllRuns()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}
	slices.Reverse(runs)
	if l := request.GetInt("limit", 0); l > 0 && l < len(runs) {
		runs = runs[:l]
	}
	return textJSON(runs), nil
}
