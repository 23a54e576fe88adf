package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vsinha/cims/pkg/application/dto"
)

// OutputConfig controls how a planning run is rendered
type OutputConfig struct {
	Format    string
	OutputDir string
	ProjectID string
	Verbose   bool
}

// generateOutput renders result in the configured format
func generateOutput(w io.Writer, result *dto.PlanningResult, config OutputConfig) error {
	switch config.Format {
	case "text":
		return generateTextOutput(w, result, config)
	case "json":
		return generateJSONOutput(w, result, config)
	case "csv":
		return generateCSVOutput(w, result, config)
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

const rule = "────────────────────────────────────────────────────────────────\n"

func generateTextOutput(w io.Writer, result *dto.PlanningResult, config OutputConfig) error {
	var b strings.Builder

	b.WriteString("═══════════════════════════════════════════════════════════════\n")
	b.WriteString("                 MATERIAL REQUIREMENTS PLAN\n")
	b.WriteString("═══════════════════════════════════════════════════════════════\n\n")

	scope := "all active projects"
	if config.ProjectID != "" {
		scope = "project " + config.ProjectID
	}
	b.WriteString("SUMMARY\n")
	fmt.Fprintf(&b, "  Scope: %s\n", scope)
	fmt.Fprintf(&b, "  Generated: %s\n", result.GeneratedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "  Allocations: %d\n", len(result.Allocations))
	fmt.Fprintf(&b, "  Shortages: %d (total %s)\n", len(result.Shortages), result.TotalShortage().String())
	fmt.Fprintf(&b, "  Suggested purchases: %d (estimated %s)\n\n", len(result.SuggestedPurchases), result.EstimatedCost().StringFixed(2))

	if len(result.SuggestedPurchases) > 0 {
		b.WriteString("SUGGESTED PURCHASES\n")
		b.WriteString(rule)
		for _, p := range byNeedDate(result.SuggestedPurchases, func(p dto.SuggestedPurchase) int64 { return p.NeedDate.Unix() }) {
			fmt.Fprintf(&b, "Material: %-16s Qty: %10s %-6s Need: %s\n",
				p.MaterialCode, p.SuggestedQty.String(), p.Unit, p.NeedDate.Format("2006-01-02"))
			fmt.Fprintf(&b, "  %s  short %s  est. %s\n", p.MaterialName, p.ShortageQty.String(), p.EstimatedCost.StringFixed(2))
			if p.PreferredSupplierName != "" {
				fmt.Fprintf(&b, "  Supplier: %s\n", p.PreferredSupplierName)
			}
			b.WriteString("\n")
		}
	}

	if len(result.Shortages) > 0 {
		b.WriteString("SHORTAGES\n")
		b.WriteString(rule)
		for _, s := range byNeedDate(result.Shortages, func(s dto.Shortage) int64 { return s.NeedDate.Unix() }) {
			fmt.Fprintf(&b, "Project: %-16s Material: %-16s Short: %10s %s  Need: %s\n",
				s.ProjectCode, s.MaterialCode, s.ShortQty.String(), s.Unit, s.NeedDate.Format("2006-01-02"))
		}
		b.WriteString("\n")
	}

	if config.Verbose && len(result.Allocations) > 0 {
		b.WriteString("ALLOCATIONS\n")
		b.WriteString(rule)
		for _, a := range result.Allocations {
			fmt.Fprintf(&b, "Project: %-16s Material: %-16s Required: %10s\n", a.ProjectCode, a.MaterialCode, a.Required.String())
			fmt.Fprintf(&b, "  From stock: %s  From open orders: %s\n", a.FromStock.String(), a.FromOpenOrders.String())
		}
		b.WriteString("\n")
	}

	b.WriteString("═══════════════════════════════════════════════════════════════\n")

	if config.OutputDir != "" {
		return writeFile(w, config, "plan.txt", []byte(b.String()))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func generateJSONOutput(w io.Writer, result *dto.PlanningResult, config OutputConfig) error {
	doc := struct {
		Summary struct {
			ProjectID          string `json:"projectId,omitempty"`
			Allocations        int    `json:"allocations"`
			Shortages          int    `json:"shortages"`
			SuggestedPurchases int    `json:"suggestedPurchases"`
			TotalShortage      string `json:"totalShortage"`
			EstimatedCost      string `json:"estimatedCost"`
		} `json:"summary"`
		*dto.PlanningResult
	}{PlanningResult: result}
	doc.Summary.ProjectID = config.ProjectID
	doc.Summary.Allocations = len(result.Allocations)
	doc.Summary.Shortages = len(result.Shortages)
	doc.Summary.SuggestedPurchases = len(result.SuggestedPurchases)
	doc.Summary.TotalShortage = result.TotalShortage().String()
	doc.Summary.EstimatedCost = result.EstimatedCost().StringFixed(2)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if config.OutputDir != "" {
		return writeFile(w, config, "plan.json", data)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func generateCSVOutput(w io.Writer, result *dto.PlanningResult, config OutputConfig) error {
	if config.OutputDir == "" {
		return writeSuggestedCSV(w, result.SuggestedPurchases)
	}
	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"suggested_purchases.csv", func(f io.Writer) error { return writeSuggestedCSV(f, result.SuggestedPurchases) }},
		{"shortages.csv", func(f io.Writer) error { return writeShortagesCSV(f, result.Shortages) }},
		{"allocations.csv", func(f io.Writer) error { return writeAllocationsCSV(f, result.Allocations) }},
	}
	for _, file := range files {
		path := filepath.Join(config.OutputDir, file.name)
		if err := writeCSVFile(path, file.write); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.name, err)
		}
		if config.Verbose {
			fmt.Fprintf(w, "wrote %s\n", path)
		}
	}
	return nil
}

func writeFile(w io.Writer, config OutputConfig, name string, data []byte) error {
	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(config.OutputDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if config.Verbose {
		fmt.Fprintf(w, "wrote %s\n", path)
	}
	return nil
}

func writeCSVFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeSuggestedCSV(w io.Writer, purchases []dto.SuggestedPurchase) error {
	writer := csv.NewWriter(w)
	rows := [][]string{{"material_code", "material_name", "unit", "shortage_qty", "suggested_qty", "unit_price", "estimated_cost", "preferred_supplier", "need_date"}}
	for _, p := range purchases {
		rows = append(rows, []string{
			p.MaterialCode,
			p.MaterialName,
			p.Unit,
			p.ShortageQty.String(),
			p.SuggestedQty.String(),
			p.UnitPrice.StringFixed(2),
			p.EstimatedCost.StringFixed(2),
			p.PreferredSupplierName,
			p.NeedDate.Format("2006-01-02"),
		})
	}
	return flushAll(writer, rows)
}

func writeShortagesCSV(w io.Writer, shortages []dto.Shortage) error {
	writer := csv.NewWriter(w)
	rows := [][]string{{"project_code", "material_code", "material_name", "unit", "short_qty", "need_date"}}
	for _, s := range shortages {
		rows = append(rows, []string{
			s.ProjectCode,
			s.MaterialCode,
			s.MaterialName,
			s.Unit,
			s.ShortQty.String(),
			s.NeedDate.Format("2006-01-02"),
		})
	}
	return flushAll(writer, rows)
}

func writeAllocationsCSV(w io.Writer, allocations []dto.PlanAllocation) error {
	writer := csv.NewWriter(w)
	rows := [][]string{{"project_code", "material_code", "required", "from_stock", "from_open_orders"}}
	for _, a := range allocations {
		rows = append(rows, []string{
			a.ProjectCode,
			a.MaterialCode,
			a.Required.String(),
			a.FromStock.String(),
			a.FromOpenOrders.String(),
		})
	}
	return flushAll(writer, rows)
}

func flushAll(writer *csv.Writer, rows [][]string) error {
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}

// byNeedDate returns a copy of items sorted by the given date key
func byNeedDate[T any](items []T, key func(T) int64) []T {
	sorted := make([]T, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return key(sorted[i]) < key(sorted[j]) })
	return sorted
}
