package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
	"github.com/wethinkt/go-cdrintel/internal/i18n"
	"github.com/wethinkt/go-cdrintel/internal/store"
)

// Sessions command flags
var (
	sessionsSuspect string
	sessionsLimit   int
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List ingestion sessions",
	Long: `List ingestion sessions, newest first.

Examples:
  cdrintel sessions                 # all sessions
  cdrintel sessions --suspect Ravi  # sessions of one suspect
  cdrintel sessions show <id>       # one session in detail`,
	RunE: runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one ingestion session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func init() {
	sessionsCmd.Flags().StringVarP(&sessionsSuspect, "suspect", "s", "", "only sessions of this suspect")
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 0, "maximum number of sessions (0 for all)")
	sessionsCmd.AddCommand(sessionsShowCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sessions, err := a.store.ListSessions(context.Background(), store.SessionFilter{
		SuspectName: sessionsSuspect,
		Limit:       sessionsLimit,
	})
	if err != nil {
		return err
	}

	if outputJSON {
		if sessions == nil {
			sessions = []cdr.Session{}
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sessions)
	}
	printSessions(stdout, sessions)
	return nil
}

func printSessions(w io.Writer, sessions []cdr.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, i18n.T("cmd.sessions.none", "No sessions found."))
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tSUSPECT\tRECORDS\tREJECTED\tVENDOR\tINGESTED\tFILE")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			shortID(s.ID), orDash(s.SuspectName), s.RecordsInserted, s.Validation.Rejected(),
			orDash(s.Vendor), i18n.RelativeTimeShort(s.IngestedAt), s.SourceFile)
	}
	tw.Flush()
	fmt.Fprintln(w, i18n.Tn("cmd.sessions.count", "{{.Count}} session", "{{.Count}} sessions", len(sessions)))
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.store.GetSession(context.Background(), args[0])
	if err != nil {
		if store.IsNotFound(err) {
			return fmt.Errorf("session %s not found", args[0])
		}
		return err
	}

	if outputJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sess)
	}

	v := sess.Validation
	fmt.Fprintln(stdout, color.New(color.Bold).Sprint(sess.ID))
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Suspect\t%s\n", orDash(sess.SuspectName))
	fmt.Fprintf(tw, "File\t%s\n", sess.SourceFile)
	fmt.Fprintf(tw, "BLAKE3\t%s\n", orDash(sess.FileHash))
	fmt.Fprintf(tw, "Vendor\t%s\n", orDash(sess.Vendor))
	fmt.Fprintf(tw, "Records\t%d\n", sess.RecordsInserted)
	fmt.Fprintf(tw, "Rejected\t%d (missing number %d, missing time %d, other %d)\n",
		v.Rejected(), v.MissingMSISDN, v.MissingTime, v.Other)
	fmt.Fprintf(tw, "Workstation\t%s\n", orDash(sess.Workstation))
	fmt.Fprintf(tw, "Ingested\t%s (%s)\n", sess.IngestedAt.Local().Format("2006-01-02 15:04:05"), i18n.RelativeTime(sess.IngestedAt))
	return tw.Flush()
}

// shortID trims a UUID to its first group for table output.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
