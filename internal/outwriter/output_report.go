package outwriter

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/kernscore/internal/contract"
	"github.com/huangsam/kernscore/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// dateFormat is the commit date layout used in tables and CSV.
const dateFormat = "2006-01-02"

// dimensionOrder fixes the row order of the dimension averages table.
var dimensionOrder = []string{"technical", "impact", "quality", "community"}

// writeRunReport writes the text report of an analyze or repair run.
func writeRunReport(w io.Writer, report *schema.RunReport, cfg *contract.Config, duration time.Duration) error {
	title := "Analysis"
	if report.Mode == schema.RepairMode {
		title = "Repair"
	}
	status := "complete"
	if report.Interrupted {
		status = "interrupted"
	}
	if _, err := fmt.Fprintf(w, "\n%s%s %s for %s\n", emoji(cfg, "📊 "), title, status, report.VersionRange); err != nil {
		return err
	}

	failed := 0
	for _, n := range report.FailuresByKind {
		failed += n
	}
	rows := [][]string{
		{"Commits found", strconv.Itoa(report.Found)},
		{"Commits scored", strconv.Itoa(report.Scored)},
		{"Failed", strconv.Itoa(failed)},
	}
	if report.Unattempted > 0 {
		rows = append(rows, []string{"Not attempted", strconv.Itoa(report.Unattempted)})
	}
	if report.RunID != "" {
		rows = append(rows, []string{"Run ID", report.RunID})
	}
	if err := renderTable(w, []string{"Metric", "Value"}, rows); err != nil {
		return err
	}

	if failed > 0 {
		if err := writeFailureKinds(w, report.FailuresByKind); err != nil {
			return err
		}
	}
	if report.Summary != nil {
		if err := writeSummaryOverview(w, *report.Summary, cfg); err != nil {
			return err
		}
	}
	if report.CompanySummary != nil {
		if err := writeCompanyTable(w, *report.CompanySummary, cfg.ResultLimit); err != nil {
			return err
		}
	}

	switch {
	case report.LedgerPath != "":
		if _, err := fmt.Fprintf(w, "%sFailure ledger: %s (run 'kernscore repair %s' to retry)\n", emoji(cfg, "⚠️  "), report.LedgerPath, report.VersionRange); err != nil {
			return err
		}
	case report.LedgerCleared:
		if _, err := fmt.Fprintf(w, "%sAll failed commits repaired, ledger cleared\n", emoji(cfg, "✅ ")); err != nil {
			return err
		}
	}
	for _, f := range report.OutputFiles {
		if _, err := fmt.Fprintf(w, "%sWrote %s\n", emoji(cfg, "💾 "), f); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Completed in %v with %d workers. Oracle: %s. Cache backend: %s\n", duration, cfg.Workers, cfg.Oracle, cfg.CacheBackend)
	return err
}

// writeFailureKinds writes one row per failure kind in a fixed kind order.
func writeFailureKinds(w io.Writer, counts map[schema.ErrorKind]int) error {
	var rows [][]string
	for _, kind := range orderedKinds(counts) {
		rows = append(rows, []string{string(kind), strconv.Itoa(counts[kind])})
	}
	return renderTable(w, []string{"Error Kind", "Count"}, rows)
}

// orderedKinds lists the kinds in counts, known kinds first in their canonical order.
func orderedKinds(counts map[schema.ErrorKind]int) []schema.ErrorKind {
	var kinds []schema.ErrorKind
	for _, k := range schema.AllErrorKinds {
		if counts[k] > 0 {
			kinds = append(kinds, k)
		}
	}
	var extra []schema.ErrorKind
	for k, n := range counts {
		if n > 0 && !slices.Contains(schema.AllErrorKinds, k) {
			extra = append(extra, k)
		}
	}
	slices.Sort(extra)
	return append(kinds, extra...)
}

// writeSummaryOverview writes the headline numbers, score distribution,
// dimension averages and top categories of a summary.
func writeSummaryOverview(w io.Writer, s schema.Summary, cfg *contract.Config) error {
	if _, err := fmt.Fprintf(w, "\n%sSummary for %s (company: %s)\n", emoji(cfg, "🐧 "), s.VersionRange, s.CompanyFilter); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Total commits analyzed: %d (failed: %d)\nTotal score: %d, average score: %.2f\n",
		s.TotalCommits, s.FailedCommits, s.TotalScore, s.AverageScore); err != nil {
		return err
	}

	var dist [][]string
	for _, band := range distributionBands(s.ScoreDistribution) {
		dist = append(dist, []string{band, strconv.Itoa(s.ScoreDistribution[band])})
	}
	if err := renderTable(w, []string{"Score Band", "Commits"}, dist); err != nil {
		return err
	}

	var dims [][]string
	for _, d := range dimensionOrder {
		if avg, ok := s.DimensionAverages[d]; ok {
			dims = append(dims, []string{d, strconv.FormatFloat(avg, 'f', 2, 64)})
		}
	}
	if err := renderTable(w, []string{"Dimension", "Average"}, dims); err != nil {
		return err
	}

	categories := slices.Collect(maps.Keys(s.ByCategory))
	slices.SortFunc(categories, func(a, b string) int {
		if c := cmp.Compare(s.ByCategory[b].Count, s.ByCategory[a].Count); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	var cats [][]string
	for _, c := range categories[:min(cfg.ResultLimit, len(categories))] {
		cs := s.ByCategory[c]
		cats = append(cats, []string{c, strconv.Itoa(cs.Count), strconv.FormatFloat(cs.AvgScore, 'f', 2, 64)})
	}
	if len(cats) > 0 {
		if err := renderTable(w, []string{"Category", "Commits", "Avg Score"}, cats); err != nil {
			return err
		}
	}
	return nil
}

// distributionBands orders band keys such as "70_89_high" by their lower bound, highest first.
func distributionBands(dist map[string]int) []string {
	bands := slices.Collect(maps.Keys(dist))
	lower := func(band string) int {
		n, _ := strconv.Atoi(strings.SplitN(band, "_", 2)[0])
		return n
	}
	slices.SortFunc(bands, func(a, b string) int {
		if c := cmp.Compare(lower(b), lower(a)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return bands
}

// writeCommitsTable writes the ranked commits table.
func writeCommitsTable(w io.Writer, ranked []schema.ScoredCommit, cfg *contract.Config) error {
	subjectWidth := getMaxSubjectWidth(cfg)
	var rows [][]string
	for i, c := range ranked {
		label := contract.GetPlainLabel(c.ScoreTotal)
		if cfg.UseColors {
			label = contract.GetColorLabel(c.ScoreTotal)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			c.ShortHash,
			strconv.Itoa(c.ScoreTotal),
			label,
			c.PrimaryCategory,
			strconv.Itoa(c.SubsystemTier),
			c.SubsystemPrefix,
			contract.Truncate(c.Subject, subjectWidth),
		})
	}
	return renderTable(w, []string{"Rank", "Commit", "Score", "Label", "Category", "Tier", "Subsystem", "Subject"}, rows)
}

// writeCommitsCSV writes every ranked commit as one CSV row.
func writeCommitsCSV(w io.Writer, ranked []schema.ScoredCommit) error {
	header := []string{
		"rank", "commit_hash", "commit_date", "author_company", "primary_category",
		"subsystem_prefix", "subsystem_tier", "score_total", "score_technical",
		"score_impact", "score_quality", "score_community", "label", "flags", "error_kind",
		"subject", "link",
	}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for i, c := range ranked {
			rec := []string{
				strconv.Itoa(i + 1),
				c.CommitHash,
				formatDate(c.CommitDate),
				c.AuthorCompany,
				c.PrimaryCategory,
				c.SubsystemPrefix,
				strconv.Itoa(c.SubsystemTier),
				strconv.Itoa(c.ScoreTotal),
				strconv.Itoa(c.ScoreTechnical),
				strconv.Itoa(c.ScoreImpact),
				strconv.Itoa(c.ScoreQuality),
				strconv.Itoa(c.ScoreCommunity),
				contract.GetPlainLabel(c.ScoreTotal),
				strings.Join(c.Flags, "|"),
				string(c.ErrorKind),
				c.Subject,
				c.Link,
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeFailuresTable writes the failure ledger entries.
func writeFailuresTable(w io.Writer, records []schema.FailedCommitRecord, cfg *contract.Config) error {
	subjectWidth := getMaxSubjectWidth(cfg)
	var rows [][]string
	for _, r := range records {
		rows = append(rows, []string{
			schema.ShortHash(r.CommitHash),
			string(r.ErrorKind),
			contract.Truncate(r.ErrorMessage, 40),
			contract.Truncate(r.Subject, subjectWidth),
		})
	}
	return renderTable(w, []string{"Commit", "Kind", "Message", "Subject"}, rows)
}

// writeFailuresCSV writes the failure ledger as CSV.
func writeFailuresCSV(w io.Writer, records []schema.FailedCommitRecord) error {
	header := []string{"commit_hash", "error_kind", "error_message", "subject", "timestamp"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range records {
			ts := ""
			if !r.Timestamp.IsZero() {
				ts = r.Timestamp.Format(time.RFC3339)
			}
			if err := cw.Write([]string{r.CommitHash, string(r.ErrorKind), r.ErrorMessage, r.Subject, ts}); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeCompanyTable writes the top companies of a company summary.
func writeCompanyTable(w io.Writer, s schema.CompanySummary, limit int) error {
	if _, err := fmt.Fprintf(w, "\nCompanies for %s (%d commits)\n", s.VersionRange, s.TotalCommits); err != nil {
		return err
	}
	var rows [][]string
	for i, rank := range s.TopCompaniesByScore[:min(limit, len(s.TopCompaniesByScore))] {
		st := s.Companies[rank.Company]
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			rank.Company,
			strconv.Itoa(st.CommitCount),
			strconv.Itoa(st.TotalScore),
			strconv.FormatFloat(st.AvgScore, 'f', 2, 64),
		})
	}
	return renderTable(w, []string{"Rank", "Company", "Commits", "Total Score", "Avg Score"}, rows)
}

// renderTable writes a right-aligned table.
func renderTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateFormat)
}

// emoji returns s when emojis are enabled.
func emoji(cfg *contract.Config, s string) string {
	if cfg.UseEmojis {
		return s
	}
	return ""
}
