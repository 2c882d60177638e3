package analytics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

const subject = "9876543210"

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func fptr(v float64) *float64 { return &v }

// call builds an outgoing record from the subject.
func call(other string, at time.Time) cdr.Record {
	r := cdr.Record{
		RecordID:      fmt.Sprintf("%s-%d", other, at.UnixNano()),
		MSISDNA:       subject,
		MSISDNB:       other,
		CallStartTime: at,
		CallType:      cdr.CallVoice,
		Direction:     cdr.DirectionOutgoing,
		CallStatus:    cdr.StatusCompleted,
	}
	r.Mirror()
	return r
}

func incoming(other string, at time.Time) cdr.Record {
	r := call(other, at)
	r.MSISDNA, r.MSISDNB = other, subject
	r.CallingNumber, r.CalledNumber = other, subject
	r.Direction = cdr.DirectionIncoming
	return r
}

func at(r cdr.Record, cell string) cdr.Record {
	r.CellID, r.CellTowerID = cell, cell
	return r
}

func located(r cdr.Record, lat, lon float64) cdr.Record {
	r.LocationLat, r.LocationLon = fptr(lat), fptr(lon)
	return r
}

func withIMEI(r cdr.Record, imei string) cdr.Record {
	r.IMEI = imei
	return r
}

func TestSubjectNumber(t *testing.T) {
	recs := []cdr.Record{
		call("111", base),
		incoming("222", base.Add(time.Minute)),
		call("111", base.Add(2*time.Minute)),
	}
	assert.Equal(t, subject, SubjectNumber(recs))
	assert.Empty(t, SubjectNumber(nil))
}

func TestBuildNetwork_MergesDirections(t *testing.T) {
	recs := []cdr.Record{
		call("111", base),
		incoming("111", base.Add(time.Minute)),
		call("222", base.Add(2*time.Minute)),
	}
	recs[0].DurationSeconds = fptr(30)
	recs[1].DurationSeconds = fptr(45.7)

	net := BuildNetwork(recs)
	require.Len(t, net.Nodes, 3)
	require.Len(t, net.Edges, 2)

	target := net.Nodes[0]
	assert.Equal(t, "target", target.Type)
	assert.Equal(t, subject, target.ID)
	assert.Equal(t, 100, target.Value)

	top := net.Edges[0]
	assert.Equal(t, "111", top.To)
	assert.Equal(t, 2, top.Value)
	assert.Equal(t, "2", top.Label)
	assert.Equal(t, "Calls: 2, Duration: 75s", top.Title)
	assert.Equal(t, 10, net.Nodes[1].Value, "node value clamps to at least 10")
}

func TestBuildNetwork_CapsContacts(t *testing.T) {
	var recs []cdr.Record
	for i := range 70 {
		recs = append(recs, call(fmt.Sprintf("7%09d", i), base.Add(time.Duration(i)*time.Minute)))
	}
	net := BuildNetwork(recs)
	assert.Len(t, net.Edges, maxContacts)
	assert.Len(t, net.Nodes, maxContacts+1)
}

func TestBuildNetwork_LongLabel(t *testing.T) {
	net := BuildNetwork([]cdr.Record{call("+12345678901234567", base)})
	require.Len(t, net.Nodes, 2)
	assert.Equal(t, "+12345678901...", net.Nodes[1].Label)
}

func TestBuildNetwork_Empty(t *testing.T) {
	net := BuildNetwork(nil)
	assert.Empty(t, net.Nodes)
	assert.Empty(t, net.Edges)
}

func TestBuildHeatmap(t *testing.T) {
	day2 := base.AddDate(0, 0, 1)
	sms := call("333", day2.Add(5*time.Hour))
	sms.CallType = cdr.CallSMS
	recs := []cdr.Record{
		call("111", base),
		call("111", base.Add(10*time.Minute)),
		incoming("222", base.Add(3*time.Hour)),
		sms,
	}

	hm := BuildHeatmap(recs, HeatmapAll)
	assert.Equal(t, []int{9, 12, 14}, hm.X)
	assert.Equal(t, []string{"2024-03-01", "2024-03-02"}, hm.Y)
	assert.Equal(t, [][]int{{2, 1, 0}, {0, 0, 1}}, hm.Z)

	hm = BuildHeatmap(recs, HeatmapIncoming)
	assert.Equal(t, []int{12}, hm.X)
	assert.Equal(t, [][]int{{1}}, hm.Z)

	hm = BuildHeatmap(recs, HeatmapSMS)
	assert.Equal(t, []string{"2024-03-02"}, hm.Y)
}

func TestParseHeatmapFilter(t *testing.T) {
	f, err := ParseHeatmapFilter("")
	require.NoError(t, err)
	assert.Equal(t, HeatmapAll, f)

	f, err = ParseHeatmapFilter("SMS")
	require.NoError(t, err)
	assert.Equal(t, HeatmapSMS, f)

	_, err = ParseHeatmapFilter("fax")
	assert.Error(t, err)
}

func TestBuildDeviceTimeline_Switches(t *testing.T) {
	seq := []string{"A", "A", "B", "B", "A"}
	var recs []cdr.Record
	for i, imei := range seq {
		recs = append(recs, withIMEI(at(call("111", base.Add(time.Duration(i)*time.Hour)), "C1"), imei))
	}
	recs = append(recs, call("111", base.Add(6*time.Hour)))

	tl := BuildDeviceTimeline(recs)
	require.Len(t, tl.Switches, 2)
	assert.Equal(t, "A", tl.Switches[0].FromIMEI)
	assert.Equal(t, "B", tl.Switches[0].ToIMEI)
	assert.Equal(t, "C1", tl.Switches[0].Location)
	assert.Equal(t, "B", tl.Switches[1].FromIMEI)
	assert.Equal(t, "A", tl.Switches[1].ToIMEI)

	require.Len(t, tl.Timeline, 2)
	assert.Equal(t, "A", tl.Timeline[0].IMEI)
	assert.Equal(t, []string{"2024-03-01"}, tl.Timeline[0].Dates)
	assert.Equal(t, []int{3}, tl.Timeline[0].CallCounts)
}

func TestBuildDeviceTimeline_UnknownLocation(t *testing.T) {
	recs := []cdr.Record{
		withIMEI(call("111", base), "A"),
		withIMEI(call("111", base.Add(time.Hour)), "B"),
	}
	tl := BuildDeviceTimeline(recs)
	require.Len(t, tl.Switches, 1)
	assert.Equal(t, "Unknown", tl.Switches[0].Location)
}

func TestBuildMovement(t *testing.T) {
	recs := []cdr.Record{
		withIMEI(located(at(call("111", base), "C1"), 12.9, 77.5), "356938035643809"),
		withIMEI(located(at(call("111", base.Add(time.Hour)), "C2"), 13.0, 77.6), "356938035643809"),
		located(at(call("111", base.AddDate(0, 0, 1)), "C3"), 13.1, 77.7),
		at(call("111", base.AddDate(0, 0, 1).Add(time.Hour)), "C4"),
	}

	mv := BuildMovement(recs, LayerDay)
	require.Len(t, mv.Paths, 1, "single-point days produce no path")
	p := mv.Paths[0]
	assert.Equal(t, "2024-03-01", p.Label)
	assert.Equal(t, pathColors[0], p.Color)
	assert.Equal(t, Coordinate{77.5, 12.9}, p.Coordinates[0], "coordinates are [lon, lat]")

	require.Len(t, mv.Markers, 3)
	assert.Equal(t, "Cell: C1", mv.Markers[0].Title)
	assert.Equal(t, "Time: 2024-03-01 09:00:00", mv.Markers[0].Description)

	mv = BuildMovement(recs, LayerIMEI)
	require.Len(t, mv.Paths, 1)
	assert.Equal(t, "356938035643...", mv.Paths[0].Label)
}

func TestBuildMovement_MarkerCap(t *testing.T) {
	var recs []cdr.Record
	for i := range 30 {
		recs = append(recs, located(call("111", base.Add(time.Duration(i)*time.Minute)), 10, 20))
	}
	mv := BuildMovement(recs, LayerDay)
	assert.Len(t, mv.Markers, maxMarkers)
}

func TestDetectColocations_Window(t *testing.T) {
	near := []cdr.Record{
		at(call("111", base), "CELL9"),
		at(incoming("222", base.Add(10*time.Minute)), "CELL9"),
	}
	events := DetectColocations(near, 15*time.Minute)
	require.Len(t, events, 1)
	assert.Equal(t, "CELL9", events[0].Location)
	assert.Equal(t, []string{"111", "222"}, events[0].MSISDNs)
	assert.Equal(t, "±15 minutes", events[0].TimeWindow)
	assert.Equal(t, "2024-03-01", events[0].Date)
	assert.False(t, events[0].Repeated)

	far := []cdr.Record{
		at(call("111", base), "CELL9"),
		at(incoming("222", base.Add(20*time.Minute)), "CELL9"),
	}
	assert.Empty(t, DetectColocations(far, 15*time.Minute))
}

func TestDetectColocations_Repeated(t *testing.T) {
	recs := []cdr.Record{
		at(call("111", base), "CELL9"),
		at(call("222", base.Add(5*time.Minute)), "CELL9"),
		at(call("111", base.Add(3*time.Hour)), "CELL9"),
		at(call("333", base.Add(3*time.Hour+time.Minute)), "CELL9"),
		at(call("444", base), "OTHER"),
	}
	events := DetectColocations(recs, 15*time.Minute)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.True(t, e.Repeated)
	}
}

func TestDetectColocations_SameCounterpart(t *testing.T) {
	recs := []cdr.Record{
		at(call("111", base), "CELL9"),
		at(call("111", base.Add(time.Minute)), "CELL9"),
	}
	assert.Empty(t, DetectColocations(recs, 15*time.Minute))
}

func daily(counts ...int) []cdr.Record {
	var recs []cdr.Record
	for d, n := range counts {
		for i := range n {
			recs = append(recs, call("111", base.AddDate(0, 0, d).Add(time.Duration(i)*time.Second)))
		}
	}
	return recs
}

func titles(as []Anomaly) []string {
	var out []string
	for _, a := range as {
		out = append(out, a.Title)
	}
	return out
}

func TestDetectAnomalies_SuddenSilence(t *testing.T) {
	flagged := DetectAnomalies(daily(100, 100, 100, 100, 2))
	require.Len(t, flagged, 1)
	assert.Equal(t, "Sudden Silence Detected", flagged[0].Title)
	assert.Equal(t, SeverityInfo, flagged[0].Severity)
	assert.Equal(t, "Average: 80.4, Recent: 2", flagged[0].Evidence)

	assert.Empty(t, DetectAnomalies(daily(100, 100, 100, 2, 100)))
	assert.Empty(t, DetectAnomalies(daily(100, 2)), "two days are never enough")
}

func TestDetectAnomalies_DeviceSwitching(t *testing.T) {
	recs := []cdr.Record{
		withIMEI(call("111", base), "A"),
		withIMEI(call("111", base.Add(time.Hour)), "B"),
		withIMEI(call("111", base.Add(2*time.Hour)), "A"),
	}
	as := DetectAnomalies(recs)
	require.Len(t, as, 1)
	a := as[0]
	assert.Equal(t, "IMEI Device Switching Detected", a.Title)
	assert.Equal(t, SeverityWarning, a.Severity)
	assert.Equal(t, "Target used 2 different devices", a.Description)
	assert.Equal(t, "IMEI count: 2", a.Evidence)
	require.Len(t, a.SupportingData, 2)
	assert.Equal(t, base, a.SupportingData[0].FirstSeen)
	assert.Equal(t, base.Add(2*time.Hour), a.SupportingData[0].LastSeen)
}

func TestDetectAnomalies_HighMobility(t *testing.T) {
	var recs []cdr.Record
	for i := range 6 {
		recs = append(recs, at(call("111", base.Add(time.Duration(i)*time.Minute)), fmt.Sprintf("C%d", i)))
	}
	assert.Equal(t, []string{"High Mobility Pattern"}, titles(DetectAnomalies(recs)))
	assert.Empty(t, DetectAnomalies(recs[:5]))
}

func TestSummarize(t *testing.T) {
	long := withIMEI(at(call("222", base.Add(2*time.Hour)), "C2"), "B")
	long.DurationSeconds = fptr(600)
	long.LocationDescription = "Market Road"
	recs := []cdr.Record{
		withIMEI(at(call("111", base), "C1"), "A"),
		withIMEI(incoming("333", base.Add(time.Hour)), "A"),
		long,
		withIMEI(at(call("111", base.AddDate(0, 0, 1)), "C1"), "A"),
	}
	recs[0].Circle = "Karnataka"
	recs[1].Operator = "Airtel"
	recs[3].Circle = "Karnataka"

	s := Summarize(recs)
	assert.Equal(t, 4, s.Totals.TotalCalls)
	assert.Equal(t, 1, s.Totals.IncomingCount)
	assert.Equal(t, 3, s.Totals.OutgoingCount)
	assert.Equal(t, 3, s.Totals.UniqueBNumbers)
	assert.Equal(t, 2, s.Totals.UniqueIMEIs)
	assert.Equal(t, 2, s.Totals.UniqueLocations)
	require.NotNil(t, s.Totals.FirstActivity)
	assert.Equal(t, base, *s.Totals.FirstActivity)

	assert.Equal(t, MaxCall{BNumber: "111", TotalCallCount: 2}, s.MaxCall)
	assert.Equal(t, MaxCircle{Circle: "Karnataka", ActivityCount: 2}, s.MaxCircle)
	assert.Equal(t, MaxLocation{CellID: "C1", UsageCount: 2}, s.MaxLocation)

	assert.Equal(t, "222", s.MaxDuration.BNumber)
	assert.Equal(t, 600.0, s.MaxDuration.DurationSeconds)
	assert.Equal(t, "Market Road", s.MaxDuration.LocationDescription)

	assert.Equal(t, "A", s.MaxIMEI.IMEI)
	assert.Equal(t, 3, s.MaxIMEI.CallCount)
	assert.True(t, s.MaxIMEI.MultiDeviceUsage)

	require.Len(t, s.DailyFirstLast, 2)
	day := s.DailyFirstLast[0]
	assert.Equal(t, "111", day.FirstCallBNumber)
	assert.Equal(t, "222", day.LastCallBNumber)
	assert.Equal(t, base.Add(2*time.Hour), day.LastCallTime)

	require.Len(t, s.DailyFirstLastLocation, 2)
	assert.Equal(t, "C1", s.DailyFirstLastLocation[0].FirstLocation.CellID)
	assert.Equal(t, "C2", s.DailyFirstLastLocation[0].LastLocation.CellID)
	require.Len(t, s.DailyIMEI, 2)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Totals.TotalCalls)
	assert.Nil(t, s.Totals.FirstActivity)
	assert.Empty(t, s.MaxCall.BNumber)
	assert.Nil(t, s.MaxDuration.CallStartTime)
	assert.NotNil(t, s.DailyFirstLast)
}

func TestBuildOverview(t *testing.T) {
	now := time.Date(2025, 7, 4, 10, 0, 0, 0, time.UTC)

	empty := BuildOverview(nil, now)
	assert.Equal(t, "CDR_INV_2025_0704", empty.CaseID)
	assert.Equal(t, RiskLow, empty.RiskLevel)
	assert.Equal(t, "No data available.", empty.Story)

	recs := []cdr.Record{
		withIMEI(call("111", base), "A"),
		withIMEI(call("222", base.AddDate(0, 0, 3)), "B"),
	}
	ov := BuildOverview(recs, now)
	assert.Equal(t, subject, ov.TargetMSISDN)
	assert.Equal(t, RiskMedium, ov.RiskLevel)
	assert.Equal(t, "Activity span: 3 days. 2 different devices detected", ov.Story)
	require.Len(t, ov.Alerts, 1)
	assert.Equal(t, "Device Change Detected", ov.Alerts[0].Title)
}

func TestBuildOverview_NightSpike(t *testing.T) {
	night := time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC)
	var recs []cdr.Record
	for i := range 51 {
		recs = append(recs, call("111", night.Add(time.Duration(i)*time.Minute)))
	}
	ov := BuildOverview(recs, base)
	require.Len(t, ov.Alerts, 1)
	assert.Equal(t, "Night-time Activity Spike", ov.Alerts[0].Title)
	assert.Equal(t, "Night calls: 51", ov.Alerts[0].Evidence)
}

type fakeSource struct {
	recs []cdr.Record
	err  error
	seen cdr.Scope
}

func (f *fakeSource) Records(_ context.Context, scope cdr.Scope) ([]cdr.Record, cdr.Scope, error) {
	f.seen = scope
	if f.err != nil {
		return nil, scope, f.err
	}
	out := make([]cdr.Record, len(f.recs))
	copy(out, f.recs)
	resolved := scope
	if resolved.IsZero() {
		resolved.SessionID = "latest"
	}
	return out, resolved, nil
}

func TestEngine_SortsAndResolves(t *testing.T) {
	src := &fakeSource{recs: []cdr.Record{
		withIMEI(call("111", base.Add(time.Hour)), "B"),
		withIMEI(call("111", base), "A"),
	}}
	eng := NewEngine(src, Config{})
	ctx := context.Background()

	tl, err := eng.IMEITimeline(ctx, cdr.Scope{SuspectName: "alpha"})
	require.NoError(t, err)
	require.Len(t, tl.Switches, 1)
	assert.Equal(t, "A", tl.Switches[0].FromIMEI)
	assert.Equal(t, "alpha", src.seen.SuspectName)

	s, err := eng.Summary(ctx, cdr.Scope{})
	require.NoError(t, err)
	assert.Equal(t, "latest", s.Scope.SessionID)
}

func TestEngine_EmptyScope(t *testing.T) {
	eng := NewEngine(&fakeSource{}, Config{})
	ctx := context.Background()

	net, err := eng.ContactNetwork(ctx, cdr.Scope{})
	require.NoError(t, err)
	assert.Empty(t, net.Nodes)

	cols, err := eng.Colocation(ctx, cdr.Scope{}, 0)
	require.NoError(t, err)
	assert.Empty(t, cols)

	as, err := eng.Anomalies(ctx, cdr.Scope{})
	require.NoError(t, err)
	assert.Empty(t, as)
}

func TestEngine_SourceError(t *testing.T) {
	boom := errors.New("boom")
	eng := NewEngine(&fakeSource{err: boom}, Config{})
	_, err := eng.Heatmap(context.Background(), cdr.Scope{}, HeatmapAll)
	assert.ErrorIs(t, err, boom)
}

func TestEngine_Report(t *testing.T) {
	src := &fakeSource{recs: []cdr.Record{
		at(call("111", base), "CELL9"),
		at(incoming("222", base.Add(5*time.Minute)), "CELL9"),
	}}
	rep, err := NewEngine(src, Config{ColocationWindow: 10 * time.Minute}).Report(context.Background(), cdr.Scope{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "s1", rep.Scope.SessionID)
	assert.Len(t, rep.Network.Edges, 2)
	require.Len(t, rep.Colocations, 1)
	assert.Equal(t, "±10 minutes", rep.Colocations[0].TimeWindow)
	assert.Equal(t, 2, rep.Summary.Totals.TotalCalls)
	assert.Equal(t, "s1", rep.Summary.Scope.SessionID)
	assert.NotNil(t, rep.Overview)
}
