package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/deveyNull/fruitmapper/internal/service/classify"
	"github.com/deveyNull/fruitmapper/internal/service/seed"

	"github.com/pterm/pterm"
)

// renderTable 渲染简洁表格, 空数据不输出
func renderTable(headers []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	tableData := pterm.TableData{headers}
	tableData = append(tableData, rows...)

	if err := pterm.DefaultTable.
		WithHasHeader(true).
		WithBoxed(false).
		WithData(tableData).
		Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

func countRows(counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, strconv.Itoa(counts[k])})
	}
	return rows
}

// printReport 输出一次全量重算的统计
func printReport(report *classify.Report) error {
	if report == nil {
		pterm.Info.Println("无需重算")
		return nil
	}

	pterm.Success.Printf("重算完成 run_id=%s scope=%s 用时 %s\n", report.RunID, report.Scope, report.Duration)
	if err := renderTable([]string{"指标", "数量"}, [][]string{
		{"scanned", strconv.Itoa(report.Scanned)},
		{"updated", strconv.Itoa(report.Updated)},
		{"unchanged", strconv.Itoa(report.Unchanged)},
		{"skipped_rules", strconv.Itoa(report.SkippedRules)},
		{"skipped_evals", strconv.Itoa(report.SkippedEvals)},
	}); err != nil {
		return err
	}
	if err := renderTable([]string{"owner_via", "数量"}, countRows(report.OwnerVia)); err != nil {
		return err
	}
	return renderTable([]string{"identity_kind", "数量"}, countRows(report.IdentityKind))
}

// printResult 输出单个服务的归类结果
func printResult(res *classify.Result, dryRun bool) error {
	c := res.Classification
	rows := [][]string{
		{"owner_id", idString(c.OwnerID), res.Owner.Via.String()},
		{"fruit_id", idString(c.FruitID), identitySource(res)},
		{"fruit_type_id", idString(c.FruitTypeID), ""},
	}

	state := "已写入"
	switch {
	case dryRun:
		state = "未写入(dry-run)"
	case !res.Changed:
		state = "无变化"
	}
	pterm.Info.Printf("service %d: %s\n", res.ServiceID, state)

	if err := renderTable([]string{"字段", "值", "来源"}, rows); err != nil {
		return err
	}
	for _, skipped := range res.Skipped {
		pterm.Warning.Println(skipped.Error())
	}
	return nil
}

// printSummary 输出种子导入统计
func printSummary(summary *seed.Summary) error {
	if err := renderTable([]string{"对象", "新建", "更新"}, [][]string{
		{"fruit_types", strconv.Itoa(summary.FruitTypesCreated), strconv.Itoa(summary.FruitTypesUpdated)},
		{"fruits", strconv.Itoa(summary.FruitsCreated), strconv.Itoa(summary.FruitsUpdated)},
		{"owners", strconv.Itoa(summary.OwnersCreated), strconv.Itoa(summary.OwnersUpdated)},
		{"services", strconv.Itoa(summary.ServicesCreated), "-"},
	}); err != nil {
		return err
	}
	return printReport(summary.Report)
}

func identitySource(res *classify.Result) string {
	if !res.Identity.Found {
		return "none"
	}
	if res.Identity.Fallback {
		return "fallback"
	}
	return res.Identity.Kind.String()
}

func idString(id *uint64) string {
	if id == nil {
		return "NULL"
	}
	return strconv.FormatUint(*id, 10)
}
