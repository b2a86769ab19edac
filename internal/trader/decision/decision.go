// Package decision holds the entry and position management logic. Every
// function here is pure: identical inputs produce identical outputs, with no
// I/O and no side effects, so the whole ruleset is testable without any
// provider or store.
package decision

import (
	"golang-earnings-trader/internal/entity"
	"golang-earnings-trader/internal/trader/config"
	"golang-earnings-trader/pkg/utils"
)

// EntryInput carries the fresh market, fundamental and state inputs for one
// candidate ticker. All move values are fractional: 0.05 means +5%.
type EntryInput struct {
	Ticker        string
	Surprise      entity.EarningsSurprise
	AHMove        float64
	PriorRunup    float64
	SectorMove    float64
	ATR           float64
	CurrentPrice  float64
	OpenPositions []entity.Position
}

// EvaluateEntry evaluates all entry filters for a candidate ticker and
// returns the signal. Every filter is evaluated and recorded even when an
// earlier one already failed, so the breakdown never hides which filters were
// reached. ShouldEnter is true only when every filter passes, including the
// capacity check against MaxPositions and the degenerate-ATR guard.
func EvaluateEntry(in EntryInput, cfg *config.Trading) entity.EntrySignal {
	filters := []entity.FilterResult{
		{Name: entity.FilterEPSBeat, Passed: in.Surprise.EPSBeatPct >= cfg.MinEPSBeatPct},
		{Name: entity.FilterRevBeat, Passed: in.Surprise.RevBeatPct > 0},
		{Name: entity.FilterAHMove, Passed: in.AHMove >= cfg.MinAHMovePct},
		{Name: entity.FilterPriorRunup, Passed: in.PriorRunup <= cfg.MaxPriorRunupPct},
		{Name: entity.FilterSectorETF, Passed: in.SectorMove > cfg.SectorETFMin},
		// Guidance is best-effort: missing data passes rather than blocks.
		{Name: entity.FilterGuidance, Passed: in.Surprise.GuidanceWeak == nil || !*in.Surprise.GuidanceWeak},
		{Name: entity.FilterCapacity, Passed: len(in.OpenPositions) < cfg.MaxPositions},
		// Zero or negative ATR would produce a stop at the entry price, and
		// an ATR whose stop offset swallows the whole price would produce a
		// stop at or below zero. Reject both explicitly.
		{Name: entity.FilterATRValid, Passed: in.ATR > 0 && cfg.ATRStopMultiplier*in.ATR < in.CurrentPrice},
	}

	sig := entity.EntrySignal{
		Ticker:  in.Ticker,
		Filters: filters,
	}

	for _, f := range filters {
		if !f.Passed {
			return sig
		}
	}

	sig.ShouldEnter = true
	sig.EntryPrice = utils.ToPointer(in.CurrentPrice)
	sig.InitialStop = utils.ToPointer(in.CurrentPrice - cfg.ATRStopMultiplier*in.ATR)
	return sig
}

// EvaluatePositions evaluates each open position in list order and returns
// the action for each. A ticker missing from the price map is held with
// ReasonPriceUnavailable so it is reassessed next cycle; one ticker's missing
// data never aborts the batch. The trailing stop only ever moves up: a
// candidate stop below the current one results in a hold.
func EvaluatePositions(positions []entity.Position, currentPrices, currentATRs map[string]float64, cfg *config.Trading) []entity.PositionAction {
	actions := make([]entity.PositionAction, 0, len(positions))

	for _, pos := range positions {
		price, ok := currentPrices[pos.Ticker]
		if !ok {
			actions = append(actions, entity.PositionAction{
				Ticker: pos.Ticker,
				Action: entity.ActionHold,
				Reason: entity.ReasonPriceUnavailable,
			})
			continue
		}

		if price <= pos.CurrentStop {
			actions = append(actions, entity.PositionAction{
				Ticker: pos.Ticker,
				Action: entity.ActionSell,
				Reason: entity.ReasonStopHit,
			})
			continue
		}

		if pos.DayCount >= cfg.HoldDays {
			actions = append(actions, entity.PositionAction{
				Ticker: pos.Ticker,
				Action: entity.ActionSell,
				Reason: entity.ReasonMaxDaysReached,
			})
			continue
		}

		if atr, ok := currentATRs[pos.Ticker]; ok {
			newStop := price - cfg.ATRStopMultiplier*atr
			if newStop > pos.CurrentStop {
				actions = append(actions, entity.PositionAction{
					Ticker:  pos.Ticker,
					Action:  entity.ActionUpdateStop,
					NewStop: utils.ToPointer(newStop),
					Reason:  entity.ReasonTrailingStopUpdated,
				})
				continue
			}
		}

		actions = append(actions, entity.PositionAction{
			Ticker: pos.Ticker,
			Action: entity.ActionHold,
			Reason: entity.ReasonNoAction,
		})
	}

	return actions
}
