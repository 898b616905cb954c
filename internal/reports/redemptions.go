package reports

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/injops/dashboard/internal/chain"
	"github.com/injops/dashboard/internal/market"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Redemption struct {
	RedemptionID            uint64          `json:"redemptionId"`
	Status                  string          `json:"status"`
	Redeemer                string          `json:"redeemer"`
	ClaimableRedemptionTime string          `json:"claimableRedemptionTime"`
	RedemptionAmount        string          `json:"redemptionAmount"`
	RedemptionDenom         string          `json:"redemptionDenom"`
	RequestedAt             string          `json:"requestedAt"`
	DisbursedTicker         string          `json:"disbursedTicker"`
	DisbursedAmount         decimal.Decimal `json:"disbursedAmount"`
	DisbursedDenom          string          `json:"disbursedDenom"`
	DisbursedAt             string          `json:"disbursedAt"`
}

// Redemptions lists insurance fund redemptions ordered by id. When days > 0
// only redemptions requested within the last days days of now are kept;
// redemptions without a request time never pass that filter. Rows with an
// unreadable id or amount are logged and skipped.
func Redemptions(ctx context.Context, reader chain.Reader, ref *market.Reference, days int, now time.Time, logger *zap.SugaredLogger) ([]Redemption, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	schedules, err := reader.Redemptions(ctx, chain.RedemptionFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch redemptions: %w", err)
	}

	loc := now.Location()
	var cutoff time.Time
	if days > 0 {
		cutoff = now.AddDate(0, 0, -days)
	}

	out := make([]Redemption, 0, len(schedules))
	for _, s := range schedules {
		if !cutoff.IsZero() {
			requestedAt, _ := chain.MicrosToTime(s.RequestedAt)
			if requestedAt.Before(cutoff) {
				continue
			}
		}

		id, err := strconv.ParseUint(s.RedemptionID.String(), 10, 64)
		if err != nil {
			logger.Warnw("Skipping redemption with invalid id", "redemption_id", s.RedemptionID.String(), "redeemer", s.Redeemer, "error", err)
			continue
		}
		amount, err := scaleAmount(ref, s.DisbursedAmount, s.DisbursedDenom)
		if err != nil {
			logger.Warnw("Skipping redemption with invalid disbursed amount", "redemption_id", id, "amount", s.DisbursedAmount, "error", err)
			continue
		}
		ticker, _ := ref.SymbolForDenom(s.DisbursedDenom)

		r := Redemption{
			RedemptionID:            id,
			Status:                  s.Status,
			Redeemer:                s.Redeemer,
			ClaimableRedemptionTime: FormatMicros(s.ClaimableRedemptionTime, loc),
			RedemptionAmount:        s.RedemptionAmount,
			RedemptionDenom:         s.RedemptionDenom,
			RequestedAt:             FormatMicros(s.RequestedAt, loc),
			DisbursedTicker:         ticker,
			DisbursedAmount:         amount,
			DisbursedDenom:          s.DisbursedDenom,
			DisbursedAt:             FormatMicros(s.DisbursedAt, loc),
		}
		out = append(out, r)
	}

	slices.SortFunc(out, func(a, b Redemption) int { return cmp.Compare(a.RedemptionID, b.RedemptionID) })
	return out, nil
}

// FormatMicros renders a microsecond timestamp with TimestampLayout; unset
// timestamps render as an empty string.
func FormatMicros(n json.Number, loc *time.Location) string {
	t, ok := chain.MicrosToTime(n)
	if !ok {
		return ""
	}
	return t.In(loc).Format(TimestampLayout)
}
