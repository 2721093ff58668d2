package signal

import "vigil/pkg/model"

// noiseWindow is the number of trailing closed candles the filter inspects.
const noiseWindow = 3

// noiseMovePct is the cumulative move beyond which a one-sided run vetoes
// the opposing entry.
const noiseMovePct = 3.0

// Veto inspects the trailing closed candles of the reference timeframe and
// rejects entries into a violent one-sided move: a LONG into three straight
// bearish candles falling more than 3% in total (falling knife), or a SHORT
// into three straight bullish candles rising more than 3% (blow-off top).
// It is only meaningful for a non-NONE direction; fewer than three candles
// never veto.
func Veto(closed []model.Candle, dir model.Direction) bool {
	if len(closed) < noiseWindow {
		return false
	}
	last := closed[len(closed)-noiseWindow:]

	movePct := (last[noiseWindow-1].Close - last[0].Open) / last[0].Open * 100

	switch dir {
	case model.Long:
		for _, c := range last {
			if !c.Bearish() {
				return false
			}
		}
		return movePct < -noiseMovePct
	case model.Short:
		for _, c := range last {
			if !c.Bullish() {
				return false
			}
		}
		return movePct > noiseMovePct
	}
	return false
}
