package pages

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/injops/dashboard/internal/table"
)

// LookbackOptions are the day ranges offered by pages with a lookback selector.
var LookbackOptions = []int{1, 7, 30, 90}

const DefaultLookback = 7

var (
	ErrPageNotFound    = errors.New("page not found")
	ErrInvalidLookback = errors.New("invalid lookback")
	ErrDuplicatePage   = errors.New("duplicate page")
	ErrNotBuilt        = errors.New("page not built yet")
)

// Params narrow what a page shows. Pages ignore the fields they do not support.
type Params struct {
	Days     int    `json:"days,omitempty"`
	MarketID string `json:"marketId,omitempty"`
}

// Page is one dashboard view.
type Page interface {
	Title() string
	Slug() string
	LookbackEnabled() bool
	MarketFilterEnabled() bool
	// Display runs the page query and renders it.
	Display(ctx context.Context, p Params) (*table.Table, error)
	// Refresh runs the page query like Display and announces the new table
	// to subscribers of store.ChannelPageRefreshed.
	Refresh(ctx context.Context, p Params) (*table.Table, error)
	// Last returns the most recently built table without querying, or
	// ErrNotBuilt.
	Last(ctx context.Context, p Params) (*table.Table, error)
}

// RefreshEvent is published whenever a page table is rebuilt by Refresh.
type RefreshEvent struct {
	Type      string    `json:"type"`
	Page      string    `json:"page"`
	Title     string    `json:"title"`
	Params    Params    `json:"params"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const EventRefreshed = "refreshed"

// Slugify turns a page title into its URL form.
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// normalize drops parameters the page does not support and applies the
// default lookback.
func normalize(p Params, lookback, marketFilter bool) (Params, error) {
	out := Params{}
	if lookback {
		out.Days = p.Days
		if out.Days == 0 {
			out.Days = DefaultLookback
		}
		if !slices.Contains(LookbackOptions, out.Days) {
			return Params{}, fmt.Errorf("%w: %d days (allowed %v)", ErrInvalidLookback, p.Days, LookbackOptions)
		}
	}
	if marketFilter {
		out.MarketID = strings.TrimSpace(p.MarketID)
	}
	return out, nil
}

func (p Params) variant() string {
	switch {
	case p.Days == 0 && p.MarketID == "":
		return ""
	case p.MarketID == "":
		return fmt.Sprintf("%d", p.Days)
	default:
		return fmt.Sprintf("%d:%s", p.Days, p.MarketID)
	}
}
