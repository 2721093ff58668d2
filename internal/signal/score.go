// Package signal turns indicator snapshots into directional trade decisions:
// multi-timeframe confluence scoring followed by an anti-noise filter.
package signal

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"vigil/internal/config"
	"vigil/pkg/model"
)

// Detector scores indicator snapshots into directional signals.
// All methods are deterministic; the Detector itself holds only thresholds.
type Detector struct {
	cfg config.DetectorConfig
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(cfg config.DetectorConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Snapshots bundles the per-timeframe indicator snapshots for one symbol.
// Medium is the reference timeframe and is required; Short and Long are
// optional confirmations.
type Snapshots struct {
	Timeframes model.TimeframeSet
	Short      *model.IndicatorSnapshot
	Medium     *model.IndicatorSnapshot
	Long       *model.IndicatorSnapshot
}

// Score evaluates both directions over the snapshots and returns the dominant
// one. Direction is NONE when the best score is below the threshold. Reasons
// are accumulated in fixed evaluation order: RSI extreme, band proximity,
// long-timeframe confirmation, volume.
func (d *Detector) Score(s Snapshots) model.ScoreResult {
	long := d.scoreSide(s, model.Long)
	short := d.scoreSide(s, model.Short)

	best := long
	if short.Score > long.Score {
		best = short
	}

	if best.Score < d.cfg.ScoreThreshold {
		return model.ScoreResult{
			Direction:      model.None,
			Score:          best.Score,
			Reasons:        best.Reasons,
			ReferencePrice: s.Medium.Close,
		}
	}
	return best
}

// scoreSide computes the confluence score for one direction.
func (d *Detector) scoreSide(s Snapshots, dir model.Direction) model.ScoreResult {
	med := s.Medium
	score := 0
	var reasons []string

	// Criterion 1: medium-timeframe RSI. Beyond the extreme threshold earns 3,
	// a lean toward the side earns 1, anything else disqualifies the side.
	switch dir {
	case model.Long:
		if med.RSI < d.cfg.RSIOversold {
			score += 3
			reasons = append(reasons, fmt.Sprintf("RSI %s=%.1f (oversold)", s.Timeframes.Medium, med.RSI))
		} else if med.RSI < 40 {
			score++
			reasons = append(reasons, fmt.Sprintf("RSI %s=%.1f (low)", s.Timeframes.Medium, med.RSI))
		} else {
			return model.ScoreResult{Direction: dir, ReferencePrice: med.Close}
		}
	case model.Short:
		if med.RSI > d.cfg.RSIOverbought {
			score += 3
			reasons = append(reasons, fmt.Sprintf("RSI %s=%.1f (overbought)", s.Timeframes.Medium, med.RSI))
		} else if med.RSI > 60 {
			score++
			reasons = append(reasons, fmt.Sprintf("RSI %s=%.1f (high)", s.Timeframes.Medium, med.RSI))
		} else {
			return model.ScoreResult{Direction: dir, ReferencePrice: med.Close}
		}
	}

	// Criterion 2: price proximity to the medium-timeframe Bollinger band.
	if med.Close > 0 {
		switch dir {
		case model.Long:
			dist := (med.Close - med.BBLower) / med.Close * 100
			if dist < d.cfg.BBProximityPct {
				score += 2
				reasons = append(reasons, fmt.Sprintf("price %.1f%% from BB lower", dist))
			}
		case model.Short:
			dist := (med.BBUpper - med.Close) / med.Close * 100
			if dist < d.cfg.BBProximityPct {
				score += 2
				reasons = append(reasons, fmt.Sprintf("price %.1f%% from BB upper", dist))
			}
		}
	}

	// Criterion 3: long-timeframe RSI confirming the bias.
	if s.Long != nil {
		switch dir {
		case model.Long:
			if s.Long.RSI < 40 {
				score += 2
				reasons = append(reasons, fmt.Sprintf("RSI %s=%.1f (low)", s.Timeframes.Long, s.Long.RSI))
			}
		case model.Short:
			if s.Long.RSI > 65 {
				score += 2
				reasons = append(reasons, fmt.Sprintf("RSI %s=%.1f (high)", s.Timeframes.Long, s.Long.RSI))
			}
		}
	}

	// Criterion 4: volume confirming, never gating.
	if med.VolumeRatio >= d.cfg.VolumeRatioMin {
		score++
		reasons = append(reasons, fmt.Sprintf("volume %.2fx average", med.VolumeRatio))
	}

	if score > 10 {
		score = 10
	}

	return model.ScoreResult{
		Direction:      dir,
		Score:          score,
		Reasons:        reasons,
		ReferencePrice: med.Close,
	}
}

// BuildAlert turns a passing score into the final alert artifact. Entry is the
// reference price; stop and target are fixed percentage offsets on the adverse
// and favorable side of the direction.
func (d *Detector) BuildAlert(symbol string, s Snapshots, res model.ScoreResult, now time.Time) model.AlertDecision {
	entry := res.ReferencePrice
	var stop, target float64
	switch res.Direction {
	case model.Long:
		stop = entry * (1 - d.cfg.StopPct/100)
		target = entry * (1 + d.cfg.TargetPct/100)
	case model.Short:
		stop = entry * (1 + d.cfg.StopPct/100)
		target = entry * (1 - d.cfg.TargetPct/100)
	}

	var rr float64
	if d.cfg.StopPct > 0 {
		rr = d.cfg.TargetPct / d.cfg.StopPct
	}

	alert := model.AlertDecision{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Timeframe:  s.Timeframes.Medium,
		Direction:  res.Direction,
		Score:      res.Score,
		Entry:      entry,
		Stop:       stop,
		Target:     target,
		RiskReward: rr,
		Reasons:    res.Reasons,
		RSIMedium:  s.Medium.RSI,
		Timestamp:  now,
	}
	if s.Short != nil {
		alert.RSIShort = s.Short.RSI
	}
	if s.Long != nil {
		alert.RSILong = s.Long.RSI
	}
	return alert
}
