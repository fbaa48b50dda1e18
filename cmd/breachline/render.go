package main

// ---------------------------------------------------------------------------
// render.go: table/CSV views of baselines, anomalies, timelines, incidents
// ---------------------------------------------------------------------------

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/1sec-project/breachline/internal/analysis"
	"github.com/1sec-project/breachline/internal/anomaly"
	"github.com/1sec-project/breachline/internal/baseline"
	"github.com/1sec-project/breachline/internal/incident"
	"github.com/1sec-project/breachline/internal/timeline"
)

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n", bold(title))
}

func baselineTable(w io.Writer, baselines map[string]baseline.UserBaseline) *Table {
	t := NewTable(w, "USER", "PRIMARY", "CONFIDENCE", "SIGN-INS", "SECONDARY", "SUSPICIOUS")
	for _, user := range baseline.SortedUsers(baselines) {
		b := baselines[user]
		suspicious := ""
		if b.IsSuspicious {
			suspicious = "yes"
		}
		t.AddRow(user, b.PrimaryCountry,
			strconv.FormatFloat(b.Confidence*100, 'f', 1, 64)+"%",
			strconv.Itoa(b.TotalObservations),
			strings.Join(b.SecondaryCountries, " "),
			suspicious)
	}
	return t
}

func renderBaselines(w io.Writer, f OutputFormat, baselines map[string]baseline.UserBaseline) {
	if f == FormatJSON {
		writeJSONOut(w, map[string]any{
			"baselines": baselines,
			"summary":   baseline.Summarize(baselines),
		})
		return
	}
	baselineTable(w, baselines).Write(f)
	if f == FormatTable {
		s := baseline.Summarize(baselines)
		fmt.Fprintf(w, "%d users, %d suspicious, mean confidence %.1f%%\n",
			s.TotalUsers, s.SuspiciousUsers, s.MeanConfidence*100)
	}
}

func anomalyTable(w io.Writer, anomalies []anomaly.Anomaly, table bool) *Table {
	t := NewTable(w, "TIME", "KIND", "SEVERITY", "USER", "DESCRIPTION")
	for _, a := range anomalies {
		sev := a.Severity.String()
		desc := a.Description
		if table {
			sev = severityColor(sev)
			desc = truncate(desc, 80)
		}
		t.AddRow(a.Timestamp.UTC().Format(time.RFC3339), string(a.Kind), sev, a.UserID, desc)
	}
	return t
}

func renderAnomalies(w io.Writer, f OutputFormat, anomalies []anomaly.Anomaly) {
	if f == FormatJSON {
		writeJSONOut(w, map[string]any{
			"anomalies": anomalies,
			"summary":   anomaly.Summarize(anomalies),
		})
		return
	}
	if len(anomalies) == 0 && f == FormatTable {
		fmt.Fprintf(w, "%s No anomalies detected.\n", green("✓"))
		return
	}
	anomalyTable(w, anomalies, f == FormatTable).Write(f)
	if f == FormatTable {
		s := anomaly.Summarize(anomalies)
		fmt.Fprintf(w, "%d anomalies across %d users\n", s.Total, s.UniqueUsers)
	}
}

func renderGroups(w io.Writer, f OutputFormat, by anomaly.GroupBy, groups []anomaly.Group) {
	if f == FormatJSON {
		writeJSONOut(w, map[string]any{"group_by": by, "groups": groups})
		return
	}
	t := NewTable(w, strings.ToUpper(string(by)), "COUNT")
	for _, g := range groups {
		t.AddRow(g.Key, strconv.Itoa(g.Count))
	}
	t.Write(f)
}

func renderTimeline(w io.Writer, f OutputFormat, events []timeline.Event) {
	if f == FormatJSON {
		writeJSONOut(w, map[string]any{
			"events":  events,
			"summary": timeline.Summarize(events),
		})
		return
	}
	t := NewTable(w, "#", "TIME", "SOURCE", "USER", "ACTION", "COUNTRY", "PHASE", "RELATED")
	for _, e := range events {
		action := e.Action
		if f == FormatTable {
			action = truncate(action, 60)
		}
		t.AddRow(strconv.Itoa(e.Index), e.Timestamp.UTC().Format(time.RFC3339), string(e.SourceType),
			e.UserID, action, e.Country, string(e.Phase), strconv.Itoa(len(e.RelatedEvents)))
	}
	t.Write(f)
}

func renderIncident(w io.Writer, f OutputFormat, it incident.IncidentTimeline) {
	switch f {
	case FormatJSON:
		writeJSONOut(w, map[string]any{"incident": it, "summary": it.Summary()})
		return
	case FormatCSV:
		rows := [][]string{}
		for _, field := range it.Summary() {
			rows = append(rows, []string{field.Name, field.Value})
		}
		writeCSV(w, []string{"field", "value"}, rows)
		return
	}

	t := NewTable(w, "FIELD", "VALUE")
	for _, field := range it.Summary() {
		value := field.Value
		if field.Name == "Confidence" {
			value = severityColor(value)
		}
		t.AddRow(field.Name, value)
	}
	t.Render()

	if len(it.Remediation.ByDay) > 0 {
		section(w, "Remediation by day")
		days := make([]string, 0, len(it.Remediation.ByDay))
		for d := range it.Remediation.ByDay {
			days = append(days, d)
		}
		sort.Strings(days)
		rt := NewTable(w, "DAY", "ACTIONS")
		for _, d := range days {
			rt.AddRow(d, strconv.Itoa(it.Remediation.ByDay[d]))
		}
		rt.Render()
	}
}

// renderReport prints a full analysis run. CSV output is the anomaly list.
func renderReport(w io.Writer, f OutputFormat, r *analysis.Report) {
	switch f {
	case FormatJSON:
		writeJSONOut(w, r)
		return
	case FormatCSV:
		anomalyTable(w, r.Anomalies, false).Write(f)
		return
	}

	fmt.Fprintf(w, "%s %s  %s\n", bold("Tenant"), r.Tenant, dim("run "+r.RunID))
	fmt.Fprintf(w, "%d sign-ins, %d legacy, %d audit, %d mailbox events analysed in %s\n",
		r.Counts.SignIns, r.Counts.Legacy, r.Counts.Audits, r.Counts.Mailbox, r.Duration.Round(time.Millisecond))

	section(w, "Baselines")
	fmt.Fprintf(w, "%d users, %d suspicious, %d without location\n",
		r.BaselineSummary.TotalUsers, r.BaselineSummary.SuspiciousUsers, r.BaselineSummary.UnknownUsers)
	if len(r.BaselineSummary.Suspicious) > 0 {
		fmt.Fprintf(w, "suspicious: %s\n", strings.Join(r.BaselineSummary.Suspicious, ", "))
	}

	section(w, "Anomalies")
	renderAnomalies(w, FormatTable, r.Anomalies)

	section(w, "Timeline")
	fmt.Fprintf(w, "%d events, %d correlated, phases %v\n",
		r.TimelineSummary.Total, r.TimelineSummary.Correlated, r.TimelineSummary.ByPhase)

	section(w, "Incident")
	renderIncident(w, FormatTable, r.Incident)
}

// renderTenants prints one line per tenant for multi-tenant runs.
func renderTenants(w io.Writer, f OutputFormat, reports map[string]*analysis.Report) {
	if f == FormatJSON {
		writeJSONOut(w, reports)
		return
	}
	names := make([]string, 0, len(reports))
	for n := range reports {
		names = append(names, n)
	}
	sort.Strings(names)

	t := NewTable(w, "TENANT", "USERS", "ANOMALIES", "ATTACK START", "CONFIDENCE", "DWELL")
	for _, n := range names {
		r := reports[n]
		start, dwell := "-", "-"
		if r.Incident.AttackStart != nil {
			start = r.Incident.AttackStart.Date.Format("2006-01-02")
		}
		if r.Incident.DwellTimeDays != nil {
			dwell = strconv.Itoa(*r.Incident.DwellTimeDays) + "d"
		}
		conf := string(r.Incident.AttackStartConfidence)
		if f == FormatTable {
			conf = severityColor(conf)
		}
		t.AddRow(n, strconv.Itoa(r.BaselineSummary.TotalUsers), strconv.Itoa(len(r.Anomalies)), start, conf, dwell)
	}
	t.Write(f)
}
