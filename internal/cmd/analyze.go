package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wethinkt/go-cdrintel/internal/analytics"
	"github.com/wethinkt/go-cdrintel/internal/cdr"
	"github.com/wethinkt/go-cdrintel/internal/i18n"
)

// Analyze command flags
var (
	analyzeSession  string
	analyzeSuspect  string
	analyzeCallType string
	analyzeLayer    string
	analyzeWindow   int
	analyzeSuspects []string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <view>",
	Short: "Run an analyzer over a session or suspect",
	Long: `Run one analyzer over the records of a session or a suspect. When
neither --session nor --suspect is given the most recent session is used.

Views:
  network     Contact network of the subject number
  heatmap     Calls per date and hour of day
  imei        Device usage timeline and IMEI switches
  movement    Movement paths by day or by device
  colocation  Counterparts active at the same cell in a time window
  anomalies   Device switching, sudden silence and high mobility
  summary     Tabular summary views
  overview    Case overview with risk grade and alerts
  report      Every view in one document
  international  Traffic by country of the other party
  sms-services   SMS attributed to known services (banks, apps)

Cross-suspect views (need --suspects with two or more names):
  common-numbers  Counterparts contacted by several suspects
  common-towers   Towers used by each suspect and the shared ones
  common-imei     Handsets used by several suspects

Examples:
  cdrintel analyze anomalies --suspect Ravi
  cdrintel analyze heatmap --session 3f2c... --call-type sms
  cdrintel analyze colocation --suspect Ravi --window 30
  cdrintel analyze report --suspect Ravi --json > report.json
  cdrintel analyze common-numbers --suspects Ravi,Meera,Arjun`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"network", "heatmap", "imei", "movement", "colocation", "anomalies", "summary", "overview", "report",
		"international", "sms-services", "common-numbers", "common-towers", "common-imei"},
	RunE:      runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeSession, "session", "", "session id to analyze")
	analyzeCmd.Flags().StringVar(&analyzeSuspect, "suspect", "", "suspect name to analyze")
	analyzeCmd.Flags().StringVar(&analyzeCallType, "call-type", "", "heatmap filter: all, incoming, outgoing or sms")
	analyzeCmd.Flags().StringVar(&analyzeLayer, "layer", "", "movement grouping: day or imei")
	analyzeCmd.Flags().IntVar(&analyzeWindow, "window", 0, "co-location window in minutes (default from config)")
	analyzeCmd.Flags().StringSliceVar(&analyzeSuspects, "suspects", nil, "suspect names for the cross-suspect views")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	view := args[0]
	if analyzeWindow < 0 {
		return fmt.Errorf("--window must be a positive number of minutes")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out, err := runView(ctx, a.engine, view, cdr.Scope{SessionID: analyzeSession, SuspectName: analyzeSuspect})
	if err != nil {
		return err
	}

	if !outputJSON {
		switch v := out.(type) {
		case []analytics.Anomaly:
			printAnomalies(stdout, v)
			return nil
		case *analytics.Overview:
			printOverview(stdout, v)
			return nil
		case *analytics.Summary:
			printSummary(stdout, v)
			return nil
		case *analytics.CommonNumbers:
			printCommonNumbers(stdout, v)
			return nil
		case *analytics.InternationalCalls:
			printInternational(stdout, v)
			return nil
		}
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runView(ctx context.Context, e *analytics.Engine, view string, scope cdr.Scope) (any, error) {
	switch view {
	case "network":
		return e.ContactNetwork(ctx, scope)
	case "heatmap":
		filter, err := analytics.ParseHeatmapFilter(analyzeCallType)
		if err != nil {
			return nil, err
		}
		return e.Heatmap(ctx, scope, filter)
	case "imei":
		return e.IMEITimeline(ctx, scope)
	case "movement":
		layer, err := analytics.ParseMovementLayer(analyzeLayer)
		if err != nil {
			return nil, err
		}
		return e.Movement(ctx, scope, layer)
	case "colocation":
		events, err := e.Colocation(ctx, scope, minutes(analyzeWindow))
		if events == nil {
			events = []analytics.Colocation{}
		}
		return events, err
	case "anomalies":
		found, err := e.Anomalies(ctx, scope)
		if found == nil {
			found = []analytics.Anomaly{}
		}
		return found, err
	case "summary":
		return e.Summary(ctx, scope)
	case "overview":
		return e.Overview(ctx, scope)
	case "report":
		return e.Report(ctx, scope)
	case "international":
		return e.International(ctx, scope)
	case "sms-services":
		return e.SMSServices(ctx, scope)
	case "common-numbers":
		return e.CommonNumbers(ctx, analyzeSuspects)
	case "common-towers":
		return e.CommonTowers(ctx, analyzeSuspects)
	case "common-imei":
		return e.CommonDevices(ctx, analyzeSuspects)
	}
	return nil, fmt.Errorf("unknown view %q", view)
}

func severityColor(s analytics.Severity) func(format string, a ...any) string {
	if s == analytics.SeverityWarning {
		return color.YellowString
	}
	return color.CyanString
}

func printAnomalies(w io.Writer, found []analytics.Anomaly) {
	if len(found) == 0 {
		fmt.Fprintln(w, color.GreenString(i18n.T("cmd.analyze.noAnomalies", "No anomalies detected.")))
		return
	}
	for _, an := range found {
		fmt.Fprintf(w, "%s %s\n", severityColor(an.Severity)("[%s]", an.Severity), color.New(color.Bold).Sprint(an.Title))
		fmt.Fprintf(w, "  %s\n", an.Description)
		fmt.Fprintf(w, "  %s\n", an.Reason)
		fmt.Fprintf(w, "  %s\n", color.HiBlackString(an.Evidence))
		for _, span := range an.SupportingData {
			fmt.Fprintf(w, "    %s  %s .. %s\n", span.IMEI,
				span.FirstSeen.Format("2006-01-02 15:04"), span.LastSeen.Format("2006-01-02 15:04"))
		}
	}
}

func riskColor(r analytics.RiskLevel) func(format string, a ...any) string {
	switch r {
	case analytics.RiskHigh:
		return color.RedString
	case analytics.RiskMedium:
		return color.YellowString
	}
	return color.GreenString
}

func printOverview(w io.Writer, ov *analytics.Overview) {
	fmt.Fprintf(w, "%s  %s\n", color.New(color.Bold).Sprint(ov.CaseID), riskColor(ov.RiskLevel)("%s", ov.RiskLevel))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\n", i18n.T("cmd.analyze.target", "Target"), orDash(ov.TargetMSISDN))
	fmt.Fprintf(tw, "%s\t%d\n", i18n.T("cmd.analyze.calls", "Calls"), ov.TotalCalls)
	fmt.Fprintf(tw, "%s\t%d\n", i18n.T("cmd.analyze.contacts", "Contacts"), ov.UniqueContacts)
	fmt.Fprintf(tw, "%s\t%d\n", i18n.T("cmd.analyze.devices", "Devices"), ov.UniqueIMEIs)
	fmt.Fprintf(tw, "%s\t%d\n", i18n.T("cmd.analyze.locations", "Locations"), ov.UniqueLocations)
	tw.Flush()
	fmt.Fprintf(w, "\n%s\n", ov.Story)
	for _, al := range ov.Alerts {
		fmt.Fprintf(w, "\n%s %s\n  %s\n  %s\n", severityColor(al.Severity)("[%s]", al.Severity),
			al.Title, al.Description, color.HiBlackString(al.Evidence))
	}
}

func printSummary(w io.Writer, s *analytics.Summary) {
	t := s.Totals
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%d (%d in / %d out)\n", i18n.T("cmd.analyze.calls", "Calls"), t.TotalCalls, t.IncomingCount, t.OutgoingCount)
	fmt.Fprintf(tw, "%s\t%d\n", i18n.T("cmd.analyze.contacts", "Contacts"), t.UniqueBNumbers)
	fmt.Fprintf(tw, "%s\t%d\n", i18n.T("cmd.analyze.devices", "Devices"), t.UniqueIMEIs)
	fmt.Fprintf(tw, "%s\t%d\n", i18n.T("cmd.analyze.locations", "Locations"), t.UniqueLocations)
	if t.FirstActivity != nil && t.LastActivity != nil {
		fmt.Fprintf(tw, "%s\t%s .. %s\n", i18n.T("cmd.analyze.activity", "Activity"),
			t.FirstActivity.Format("2006-01-02"), t.LastActivity.Format("2006-01-02"))
	}
	fmt.Fprintf(tw, "%s\t%s (%d)\n", i18n.T("cmd.analyze.maxCall", "Most called"), orDash(s.MaxCall.BNumber), s.MaxCall.TotalCallCount)
	fmt.Fprintf(tw, "%s\t%s (%d)\n", i18n.T("cmd.analyze.maxCircle", "Busiest circle"), orDash(s.MaxCircle.Circle), s.MaxCircle.ActivityCount)
	fmt.Fprintf(tw, "%s\t%s (%gs)\n", i18n.T("cmd.analyze.maxDuration", "Longest call"), orDash(s.MaxDuration.BNumber), s.MaxDuration.DurationSeconds)
	fmt.Fprintf(tw, "%s\t%s (%d)\n", i18n.T("cmd.analyze.maxIMEI", "Main device"), orDash(s.MaxIMEI.IMEI), s.MaxIMEI.CallCount)
	fmt.Fprintf(tw, "%s\t%s (%d)\n", i18n.T("cmd.analyze.maxLocation", "Main cell"), orDash(s.MaxLocation.CellID), s.MaxLocation.UsageCount)
	tw.Flush()

	if len(s.DailyFirstLast) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tFIRST\tB-NUMBER\tLAST\tB-NUMBER")
		for _, d := range s.DailyFirstLast {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Date,
				d.FirstCallTime.Format("15:04:05"), d.FirstCallBNumber,
				d.LastCallTime.Format("15:04:05"), d.LastCallBNumber)
		}
		tw.Flush()
	}
	if s.MaxIMEI.MultiDeviceUsage {
		fmt.Fprintln(w)
		fmt.Fprintln(w, color.YellowString(i18n.Tn("cmd.analyze.multiDevice",
			"{{.Count}} device used", "{{.Count}} devices used", s.MaxIMEI.TotalIMEIs)))
	}
}

func printCommonNumbers(w io.Writer, cn *analytics.CommonNumbers) {
	if cn.Count == 0 {
		fmt.Fprintln(w, i18n.T("cmd.analyze.noCommonNumbers", "No numbers in common."))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NUMBER\tCALLS\tSUSPECTS\tFIRST\tLAST")
	for _, n := range cn.Numbers {
		names := make([]string, len(n.Suspects))
		for i, u := range n.Suspects {
			names[i] = fmt.Sprintf("%s (%d)", u.Name, u.Count)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", n.Number, n.TotalCalls, strings.Join(names, ", "),
			n.FirstContact.Format("2006-01-02"), n.LastContact.Format("2006-01-02"))
	}
	tw.Flush()
}

func printInternational(w io.Writer, ic *analytics.InternationalCalls) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COUNTRY\tCALLS\tDURATION")
	for _, c := range ic.Countries {
		name := c.Country
		if c.International {
			name = color.YellowString("%s", name)
		}
		fmt.Fprintf(tw, "%s\t%d\t%gs\n", name, c.CallCount, c.TotalDurationSeconds)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%s\n", i18n.Tn("cmd.analyze.international",
		"{{.Count}} international call", "{{.Count}} international calls", ic.InternationalCount))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func minutes(n int) time.Duration { return time.Duration(n) * time.Minute }
