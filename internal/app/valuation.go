package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"myride/pkg/ai"
	"myride/pkg/domain"
)

// exponentialDecayRate is the per-year decay constant for the exponential
// depreciation model.
const exponentialDecayRate = 0.18

// straightLineRetention is the fraction of value retained per year in the
// geometric depreciation model.
const straightLineRetention = 0.85

// StraightLineEstimate returns price * 0.85^(year-purchaseYear). Years before
// the purchase year are clamped to the purchase price.
func StraightLineEstimate(price float64, purchaseYear, year int) float64 {
	if year <= purchaseYear {
		return price
	}
	return price * math.Pow(straightLineRetention, float64(year-purchaseYear))
}

// ExponentialEstimate returns price * e^(-0.18 * (year-purchaseYear)).
func ExponentialEstimate(price float64, purchaseYear, year int) float64 {
	if year <= purchaseYear {
		return price
	}
	return price * math.Exp(-exponentialDecayRate*float64(year-purchaseYear))
}

// EstimateCurve evaluates both depreciation models across [from, to] in
// increments of step years.
func EstimateCurve(price float64, purchaseYear, from, to, step int) []domain.ValuationPoint {
	if step <= 0 {
		step = 1
	}
	var points []domain.ValuationPoint
	for year := from; year <= to; year += step {
		points = append(points, domain.ValuationPoint{
			Year:         year,
			StraightLine: StraightLineEstimate(price, purchaseYear, year),
			Exponential:  ExponentialEstimate(price, purchaseYear, year),
		})
	}
	return points
}

// ValuationCurve builds the deterministic depreciation series for a vehicle
// from its purchase year through ten years past the current one.
func (a *App) ValuationCurve(ctx context.Context, memberID, vehicleID string) ([]domain.ValuationPoint, error) {
	v, err := a.ownedVehicle(ctx, memberID, vehicleID)
	if err != nil {
		return nil, err
	}
	now := time.Now().Year()
	to := now + 10
	return EstimateCurve(v.PurchasePrice, v.PurchaseYear, v.PurchaseYear, to, 1), nil
}

const valuationSystemPrompt = `You are a used-vehicle pricing analyst. Estimate the current fair market
value in US dollars for the vehicle the user describes. Respond with a JSON
object of the form {"value": <number>} and nothing else.`

type aiValuation struct {
	Value float64 `json:"value"`
}

// RecordAIEstimate asks the language model for a current market value and
// stores it against today's date. Re-running on the same calendar day
// replaces that day's entry rather than appending a duplicate.
func (a *App) RecordAIEstimate(ctx context.Context, memberID, vehicleID string) (domain.AIEstimate, error) {
	v, err := a.ownedVehicle(ctx, memberID, vehicleID)
	if err != nil {
		return domain.AIEstimate{}, err
	}

	prompt := fmt.Sprintf(
		"Vehicle: %d %s %s (%s). Current mileage: %d. Purchased in %d for $%.2f. Description: %s",
		v.Year, v.Make, v.Model, v.Type, v.Mileage, v.PurchaseYear, v.PurchasePrice, v.Description,
	)

	callCtx, cancel := context.WithTimeout(ctx, a.aiTimeout)
	defer cancel()
	completion, err := a.text.GenerateText(callCtx, valuationSystemPrompt, prompt)
	if err != nil {
		return domain.AIEstimate{}, fmt.Errorf("valuation completion: %w", err)
	}

	var parsed aiValuation
	if err := ai.DecodeJSON(completion, &parsed); err != nil {
		return domain.AIEstimate{}, err
	}
	if parsed.Value < 0 || math.IsNaN(parsed.Value) || math.IsInf(parsed.Value, 0) {
		return domain.AIEstimate{}, fmt.Errorf("%w: value %v out of range", ai.ErrUnparsableResponse, parsed.Value)
	}

	est := domain.AIEstimate{
		Amount: parsed.Value,
		Date:   time.Now().Format("01/02/2006"),
	}
	if err := a.store.UpsertAIEstimate(ctx, vehicleID, est); err != nil {
		return domain.AIEstimate{}, fmt.Errorf("save estimate: %w", err)
	}
	return est, nil
}
