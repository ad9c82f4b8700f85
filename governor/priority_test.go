package governor

import "testing"

func TestClampUrgency_OutOfRange(t *testing.T) {
	cases := []struct {
		in   Urgency
		want Urgency
	}{
		{-3, UrgencyCritical},
		{0, UrgencyCritical},
		{UrgencyCritical, UrgencyCritical},
		{UrgencyNormal, UrgencyNormal},
		{UrgencyLow, UrgencyLow},
		{5, UrgencyLow},
		{99, UrgencyLow},
	}
	for _, c := range cases {
		if got := ClampUrgency(c.in); got != c.want {
			t.Errorf("ClampUrgency(%d): got %s, want %s", c.in, got, c.want)
		}
	}
}

func TestClampLevel_OutOfRange(t *testing.T) {
	cases := []struct {
		in   QueueLevel
		want QueueLevel
	}{
		{-1, LevelBackground},
		{0, LevelBackground},
		{LevelBackground, LevelBackground},
		{LevelImmediate, LevelImmediate},
		{7, LevelImmediate},
	}
	for _, c := range cases {
		if got := ClampLevel(c.in); got != c.want {
			t.Errorf("ClampLevel(%d): got %s, want %s", c.in, got, c.want)
		}
	}
}

// The two subsystem orderings run in opposite directions; the conversion
// must map the most urgent level of one onto the most urgent level of the
// other.
func TestQueueLevelToUrgency_ConversionTable(t *testing.T) {
	cases := []struct {
		level QueueLevel
		want  Urgency
	}{
		{LevelImmediate, UrgencyCritical},
		{LevelStandard, UrgencyHigh},
		{LevelDeferred, UrgencyNormal},
		{LevelBackground, UrgencyLow},
	}
	for _, c := range cases {
		if got := c.level.Urgency(); got != c.want {
			t.Errorf("%s.Urgency(): got %s, want %s", c.level, got, c.want)
		}
	}

	// Out-of-range levels clamp before converting
	if got := QueueLevel(9).Urgency(); got != UrgencyCritical {
		t.Errorf("QueueLevel(9).Urgency(): got %s, want critical", got)
	}
	if got := QueueLevel(-2).Urgency(); got != UrgencyLow {
		t.Errorf("QueueLevel(-2).Urgency(): got %s, want low", got)
	}
}
