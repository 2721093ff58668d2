package signal

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"vigil/internal/config"
	"vigil/pkg/model"
)

func testDetector() *Detector {
	return NewDetector(config.DefaultConfig().Detector)
}

func testTimeframes() model.TimeframeSet {
	return model.TimeframeSet{Short: "1h", Medium: "4h", Long: "1d"}
}

// snapshotsAt builds a snapshot bundle around a medium-timeframe state.
func snapshotsAt(rsiMedium, rsiLong, close, bbLower, bbUpper, volRatio float64) Snapshots {
	medium := &model.IndicatorSnapshot{
		RSI:         rsiMedium,
		BBUpper:     bbUpper,
		BBMid:       (bbUpper + bbLower) / 2,
		BBLower:     bbLower,
		VolumeRatio: volRatio,
		Close:       close,
	}
	long := &model.IndicatorSnapshot{RSI: rsiLong, Close: close}
	short := &model.IndicatorSnapshot{RSI: 50, Close: close}
	return Snapshots{Timeframes: testTimeframes(), Short: short, Medium: medium, Long: long}
}

func TestScore_FullLongConfluence(t *testing.T) {
	// RSI(4h)=28.5 (+3), price within 1.5% of BB lower (+2),
	// RSI(1d)=38.9 (+2), volume 1.25x (+1) => score 8, LONG.
	s := snapshotsAt(28.5, 38.9, 100, 98.5, 110, 1.25)

	res := testDetector().Score(s)
	if res.Direction != model.Long {
		t.Fatalf("direction: got %s, want LONG", res.Direction)
	}
	if res.Score != 8 {
		t.Errorf("score: got %d, want 8", res.Score)
	}
	if len(res.Reasons) != 4 {
		t.Fatalf("reasons: got %d, want 4: %v", len(res.Reasons), res.Reasons)
	}
	if res.ReferencePrice != 100 {
		t.Errorf("reference price: got %f, want 100", res.ReferencePrice)
	}
}

func TestScore_FlatMarketYieldsNone(t *testing.T) {
	// A dead-flat series produces a neutral RSI and zero-width Bollinger
	// bands. The band collapse puts price "at" both bands, but without an
	// RSI extreme neither side may qualify: a market that moved 0% has no
	// setup to alert on.
	s := snapshotsAt(50, 50, 1.0, 1.0, 1.0, 0)

	res := testDetector().Score(s)
	if res.Direction != model.None {
		t.Fatalf("direction: got %s, want NONE (reasons: %v)", res.Direction, res.Reasons)
	}
	if res.Score != 0 {
		t.Errorf("score: got %d, want 0", res.Score)
	}
}

func TestScore_NeutralYieldsNone(t *testing.T) {
	// RSI(4h)=45, price 5% from both bands, volume 1.0 => score 0, NONE.
	s := snapshotsAt(45, 50, 100, 95, 105, 1.0)

	res := testDetector().Score(s)
	if res.Direction != model.None {
		t.Errorf("direction: got %s, want NONE", res.Direction)
	}
	if res.Score != 0 {
		t.Errorf("score: got %d, want 0", res.Score)
	}
}

func TestScore_BelowThresholdYieldsNone(t *testing.T) {
	// Lean only: RSI(4h)=35 (+1), band proximity (+2) => 3 < 5 => NONE.
	s := snapshotsAt(35, 50, 100, 98.5, 110, 1.0)

	res := testDetector().Score(s)
	if res.Direction != model.None {
		t.Errorf("direction: got %s, want NONE (score %d)", res.Direction, res.Score)
	}
	if res.Score != 3 {
		t.Errorf("score: got %d, want 3", res.Score)
	}
}

func TestScore_ShortMirror(t *testing.T) {
	// RSI(4h)=72 (+3), price within 2% of BB upper (+2),
	// RSI(1d)=68 (+2), volume 1.3x (+1) => score 8, SHORT.
	s := snapshotsAt(72, 68, 100, 90, 101.5, 1.3)

	res := testDetector().Score(s)
	if res.Direction != model.Short {
		t.Fatalf("direction: got %s, want SHORT", res.Direction)
	}
	if res.Score != 8 {
		t.Errorf("score: got %d, want 8", res.Score)
	}
}

func TestScore_MonotonicInRSIExtreme(t *testing.T) {
	// Deepening the RSI extreme while holding everything else fixed must
	// never decrease the score.
	d := testDetector()
	prev := -1
	for rsi := 45.0; rsi >= 5; rsi -= 5 {
		s := snapshotsAt(rsi, 38, 100, 98.5, 110, 1.25)
		res := d.Score(s)
		if prev >= 0 && res.Score < prev {
			t.Errorf("score decreased from %d to %d at RSI=%.0f", prev, res.Score, rsi)
		}
		prev = res.Score
	}
}

func TestScore_Deterministic(t *testing.T) {
	d := testDetector()
	s := snapshotsAt(28.5, 38.9, 100, 98.5, 110, 1.25)

	first := d.Score(s)
	for i := 0; i < 5; i++ {
		again := d.Score(s)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("non-deterministic result: %+v vs %+v", first, again)
		}
	}
}

func TestScore_ReasonsInEvaluationOrder(t *testing.T) {
	s := snapshotsAt(28.5, 38.9, 100, 98.5, 110, 1.25)
	res := testDetector().Score(s)

	wantOrder := []string{"RSI 4h", "BB lower", "RSI 1d", "volume"}
	if len(res.Reasons) != len(wantOrder) {
		t.Fatalf("reasons: got %v", res.Reasons)
	}
	for i, frag := range wantOrder {
		if !strings.Contains(res.Reasons[i], frag) {
			t.Errorf("reason %d: got %q, want fragment %q", i, res.Reasons[i], frag)
		}
	}
}

func TestScore_MissingLongTimeframe(t *testing.T) {
	s := snapshotsAt(28.5, 0, 100, 98.5, 110, 1.25)
	s.Long = nil

	// Without the long-TF confirmation: 3+2+1 = 6, still a LONG.
	res := testDetector().Score(s)
	if res.Direction != model.Long {
		t.Fatalf("direction: got %s, want LONG", res.Direction)
	}
	if res.Score != 6 {
		t.Errorf("score: got %d, want 6", res.Score)
	}
}

func TestBuildAlert_Offsets(t *testing.T) {
	d := testDetector()
	s := snapshotsAt(28.5, 38.9, 100, 98.5, 110, 1.25)
	res := d.Score(s)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	alert := d.BuildAlert("BTCUSDT", s, res, now)
	if alert.ID == "" {
		t.Error("alert ID should be set")
	}
	if alert.Entry != 100 {
		t.Errorf("entry: got %f, want 100", alert.Entry)
	}
	if alert.Stop != 97 {
		t.Errorf("stop: got %f, want 97 (3%% adverse)", alert.Stop)
	}
	if alert.Target != 104 {
		t.Errorf("target: got %f, want 104 (4%% favorable)", alert.Target)
	}
	if alert.RSIMedium != 28.5 || alert.RSILong != 38.9 {
		t.Errorf("RSI carry-over: medium=%f long=%f", alert.RSIMedium, alert.RSILong)
	}
	if !alert.Timestamp.Equal(now) {
		t.Errorf("timestamp: got %s, want %s", alert.Timestamp, now)
	}
}

func TestBuildAlert_ShortOffsets(t *testing.T) {
	d := testDetector()
	s := snapshotsAt(72, 68, 100, 90, 101.5, 1.3)
	res := d.Score(s)

	alert := d.BuildAlert("ETHUSDT", s, res, time.Now())
	if alert.Stop != 103 {
		t.Errorf("short stop: got %f, want 103", alert.Stop)
	}
	if alert.Target != 96 {
		t.Errorf("short target: got %f, want 96", alert.Target)
	}
}
