package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

const nullText = "NULL"

// renderer writes command results in the selected output format.
type renderer struct {
	out    io.Writer
	format string
}

// structured writes v as JSON or YAML and reports whether it did.
func (r *renderer) structured(v any) (bool, error) {
	switch r.format {
	case outputJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case outputYAML:
		// Round-trip through JSON so YAML keys follow the API field names.
		raw, err := json.Marshal(v)
		if err != nil {
			return true, err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return true, err
		}
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return true, err
		}
		return true, enc.Close()
	}
	return false, nil
}

func (r *renderer) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleRounded)
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

func (r *renderer) submitted(s *models.SubmittedRun) error {
	if done, err := r.structured(s); done {
		return err
	}
	fmt.Fprintf(r.out, "Run %s is %s\n", s.RunID, s.Status)
	return nil
}

func (r *renderer) keyCandidates(result *models.SuggestKeysResult) error {
	if done, err := r.structured(result); done {
		return err
	}
	if result.SkippedReason != "" {
		fmt.Fprintf(r.out, "Key suggestion skipped: %s\n", result.SkippedReason)
		return nil
	}

	t := r.newTable("Key candidates")
	t.AppendHeader(table.Row{"Column", "Left type", "Right type", "Score", "Uniqueness", "Null ratio"})
	for _, c := range result.Candidates {
		t.AppendRow(table.Row{c.Column, c.DataType, c.RightDataType, fmt.Sprintf("%.4f", c.Score), optionalRatio(c.Uniqueness), optionalRatio(c.NullRatio)})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 4, Align: text.AlignRight}})
	t.Render()

	if len(result.CompareCandidates) > 0 {
		fmt.Fprintf(r.out, "Compare candidates: %s\n", strings.Join(result.CompareCandidates, ", "))
	}
	return nil
}

func (r *renderer) runList(runs []*models.Run) error {
	if done, err := r.structured(runs); done {
		return err
	}
	t := r.newTable("")
	t.AppendHeader(table.Row{"Run", "Kind", "Status", "Left env", "Right env", "Created", "Completed"})
	for _, run := range runs {
		t.AppendRow(table.Row{run.ID, run.Kind, run.Status, run.LeftEnvironment, run.RightEnvironment, formatTime(&run.CreatedAt), formatTime(run.CompletedAt)})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", len(runs)})
	t.Render()
	return nil
}

func (r *renderer) run(run *models.Run) error {
	if done, err := r.structured(run); done {
		return err
	}

	t := r.newTable("Run " + run.ID.String())
	t.AppendRows([]table.Row{
		{"Kind", run.Kind},
		{"Status", run.Status},
		{"Created", formatTime(&run.CreatedAt)},
		{"Started", formatTime(run.StartedAt)},
		{"Completed", formatTime(run.CompletedAt)},
	})
	if run.ErrorMessage != nil {
		t.AppendRow(table.Row{"Error", *run.ErrorMessage})
	}
	t.Render()

	if len(run.Result) == 0 {
		return nil
	}
	switch run.Kind {
	case models.RunKindComparison:
		var result models.ComparisonResult
		if err := json.Unmarshal(run.Result, &result); err != nil {
			return fmt.Errorf("failed to decode comparison result: %w", err)
		}
		r.comparisonResult(&result)
	case models.RunKindValidation:
		var result models.ValidationResult
		if err := json.Unmarshal(run.Result, &result); err != nil {
			return fmt.Errorf("failed to decode validation result: %w", err)
		}
		r.validationResult(&result)
	}
	return nil
}

func (r *renderer) comparisonResult(result *models.ComparisonResult) {
	summary := r.newTable("Row counts")
	summary.AppendHeader(table.Row{"Left rows", "Right rows", "Missing in right", "Missing in left"})
	summary.AppendRow(table.Row{result.LeftCount, result.RightCount, result.MissingInRight, result.MissingInLeft})
	summary.Render()

	if len(result.Sample) > 0 {
		missing := r.newTable("Missing rows sample")
		missing.AppendHeader(table.Row{"Side", "Key"})
		for _, row := range result.Sample {
			missing.AppendRow(table.Row{row.Side, formatKey(row.Key)})
		}
		missing.Render()
	}

	if len(result.ColumnDiffs) == 0 {
		return
	}
	diffs := r.newTable("Column differences")
	diffs.AppendHeader(table.Row{"Left column", "Right column", "Compared", "Different", "Different %"})
	for _, d := range result.ColumnDiffs {
		diffs.AppendRow(table.Row{d.LeftColumn, d.RightColumn, d.TotalCompared, d.DiffCount, percent(d.DiffCount, d.TotalCompared)})
	}
	diffs.Render()

	for _, d := range result.ColumnDiffs {
		if len(d.Sample) == 0 {
			continue
		}
		sample := r.newTable(fmt.Sprintf("Differences in %s / %s", d.LeftColumn, d.RightColumn))
		sample.AppendHeader(table.Row{"Key", "Left", "Right"})
		for _, s := range d.Sample {
			sample.AppendRow(table.Row{formatKey(s.Key), deref(s.LeftValue), deref(s.RightValue)})
		}
		sample.Render()
	}
}

func (r *renderer) validationResult(result *models.ValidationResult) {
	summary := r.newTable("Validation")
	summary.AppendRows([]table.Row{
		{"Total rows", result.TotalRows},
		{"Duplicate rows", result.DuplicateRows},
	})
	summary.Render()

	if len(result.NullCounts) == 0 {
		return
	}
	nulls := r.newTable("NULL counts")
	nulls.AppendHeader(table.Row{"Column", "NULLs", "NULL %"})
	for _, n := range result.NullCounts {
		nulls.AppendRow(table.Row{n.Column, n.NullCount, percent(n.NullCount, result.TotalRows)})
	}
	nulls.Render()
}

func (r *renderer) tables(tables []models.TableInfo) error {
	if done, err := r.structured(tables); done {
		return err
	}
	t := r.newTable("")
	t.AppendHeader(table.Row{"Environment", "Table"})
	for _, info := range tables {
		t.AppendRow(table.Row{info.Environment, info.Name})
	}
	t.Render()
	return nil
}

func (r *renderer) columns(cols []models.ColumnMeta) error {
	if done, err := r.structured(cols); done {
		return err
	}
	t := r.newTable("")
	t.AppendHeader(table.Row{"#", "Column", "Type", "Nullable"})
	for _, c := range cols {
		t.AppendRow(table.Row{c.OrdinalPosition, c.Name, c.DataType, c.IsNullable})
	}
	t.Render()
	return nil
}

func (r *renderer) auditEntries(entries []*models.AuditLogEntry) error {
	if done, err := r.structured(entries); done {
		return err
	}
	t := r.newTable("")
	t.AppendHeader(table.Row{"Time", "Action", "Environment", "Details"})
	for _, e := range entries {
		details, _ := json.Marshal(e.Details)
		t.AppendRow(table.Row{formatTime(&e.CreatedAt), e.Action, e.Environment, string(details)})
	}
	t.Render()
	return nil
}

func formatTime(ts *time.Time) string {
	if ts == nil || ts.IsZero() {
		return "-"
	}
	return ts.Local().Format(time.DateTime)
}

// formatKey renders a key tuple as col=value pairs in column order.
func formatKey(key map[string]*string) string {
	names := make([]string, 0, len(key))
	for name := range key {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + deref(key[name])
	}
	return strings.Join(parts, ", ")
}

func deref(v *string) string {
	if v == nil {
		return nullText
	}
	return *v
}

func optionalRatio(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}

func percent(part, total int64) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", float64(part)*100/float64(total))
}
