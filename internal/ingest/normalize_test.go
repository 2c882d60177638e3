package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wethinkt/go-cdrintel/internal/cdr"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"+91 98765-43210", "+919876543210"},
		{"(987) 654 3210", "9876543210"},
		{"919876543210.0", "919876543210"},
		{"9.19876543210E+11", "919876543210"},
		{"98+76", "9876"},
		{"---", ""},
		{"", ""},
		{"+", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizePhone(c.in), "NormalizePhone(%q)", c.in)
	}
}

func TestNormalizePhone_Idempotent(t *testing.T) {
	inputs := []string{"+1 (555) 010-9999", "00441234567890", "919876543210.0", " 12 34 ", "+44+20", "7.5E+9"}
	for _, in := range inputs {
		once := NormalizePhone(in)
		assert.Equal(t, once, NormalizePhone(once), "not idempotent for %q", in)
	}
}

func TestParseTimestamp_Formats(t *testing.T) {
	want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	for _, in := range []string{
		"2024-01-15 10:30:00",
		"2024-01-15T10:30:00",
		"2024-01-15T10:30:00Z",
		"2024-01-15 10:30:00.000",
		"15/01/2024 10:30:00",
		"01/15/2024 10:30:00",
		"15-01-2024 10:30:00",
		"15/01/2024 10:30",
	} {
		got, ok := ParseTimestamp(in)
		require.True(t, ok, "ParseTimestamp(%q) failed", in)
		assert.True(t, want.Equal(got), "ParseTimestamp(%q) = %v", in, got)
	}
}

func TestParseTimestamp_DayFirstWins(t *testing.T) {
	got, ok := ParseTimestamp("03/04/2024 08:00:00")
	require.True(t, ok)
	assert.Equal(t, time.April, got.Month())
	assert.Equal(t, 3, got.Day())
}

func TestParseTimestamp_DateOnly(t *testing.T) {
	got, ok := ParseTimestamp("2024-02-29")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)
}

func TestParseTimestamp_Rejects(t *testing.T) {
	for _, in := range []string{"", "yesterday", "10:30", "2024-13-45 99:99:99"} {
		_, ok := ParseTimestamp(in)
		assert.False(t, ok, "ParseTimestamp(%q) unexpectedly succeeded", in)
	}
}

func TestCombineDateTime(t *testing.T) {
	got, ok := CombineDateTime("15/01/2024", "23:59")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 15, 23, 59, 0, 0, time.UTC), got)

	got, ok = CombineDateTime("2024-01-15 00:00:00", "7:05:09")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 15, 7, 5, 9, 0, time.UTC), got)

	_, ok = CombineDateTime("", "10:00")
	assert.False(t, ok)
}

func TestParseFloatAndInt(t *testing.T) {
	require.NotNil(t, ParseFloat("1,234.5"))
	assert.Equal(t, 1234.5, *ParseFloat("1,234.5"))
	assert.Nil(t, ParseFloat("abc"))
	assert.Nil(t, ParseFloat("NaN"))
	assert.Nil(t, ParseFloat(""))

	require.NotNil(t, ParseInt("404.0"))
	assert.Equal(t, 404, *ParseInt("404.0"))
	assert.Nil(t, ParseInt("40.5"))
	assert.Nil(t, ParseInt("x1"))
}

func TestParseDurationSeconds(t *testing.T) {
	assert.Equal(t, 95.0, *ParseDurationSeconds("95"))
	assert.Equal(t, 3725.0, *ParseDurationSeconds("1:02:05"))
	assert.Equal(t, 125.0, *ParseDurationSeconds("2:05"))
	assert.Nil(t, ParseDurationSeconds("long"))
}

func TestNormalizeIdentifier(t *testing.T) {
	assert.Equal(t, "356938035643809", NormalizeIdentifier("356938035643809.0"))
	assert.Equal(t, "356938035643809", NormalizeIdentifier("3.56938035643809E+14"))
	assert.Equal(t, "404-45-1234", NormalizeIdentifier(" 404-45-1234 "))
	assert.Equal(t, "", NormalizeIdentifier("nan"))
}

func TestInferCallType(t *testing.T) {
	assert.Equal(t, cdr.CallSMS, InferCallType("SMS-MO"))
	assert.Equal(t, cdr.CallSMS, InferCallType("Text message"))
	assert.Equal(t, cdr.CallData, InferCallType("Mobile Internet"))
	assert.Equal(t, cdr.CallVoice, InferCallType("MOC"))
	assert.Equal(t, cdr.CallVoice, InferCallType(""))
}

func TestInferDirection(t *testing.T) {
	assert.Equal(t, cdr.DirectionIncoming, InferDirection("Incoming", "1", ""))
	assert.Equal(t, cdr.DirectionOutgoing, InferDirection("OUTGOING", "1", ""))
	assert.Equal(t, cdr.DirectionOutgoing, InferDirection("originated", "1", ""))
	assert.Equal(t, cdr.DirectionIncoming, InferDirection("in", "1", ""))
	assert.Equal(t, cdr.DirectionOutgoing, InferDirection("out", "1", ""))

	// no usable hint: compare with the subject number
	assert.Equal(t, cdr.DirectionOutgoing, InferDirection("", "111", "111"))
	assert.Equal(t, cdr.DirectionIncoming, InferDirection("", "222", "111"))
	assert.Equal(t, cdr.DirectionOutgoing, InferDirection("", "222", ""))
}

func TestInferStatus(t *testing.T) {
	assert.Equal(t, cdr.StatusMissed, InferStatus("No Answer"))
	assert.Equal(t, cdr.StatusFailed, InferStatus("call dropped"))
	assert.Equal(t, cdr.StatusBusy, InferStatus("BUSY"))
	assert.Equal(t, cdr.StatusCompleted, InferStatus(""))
}
