package api

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PageInfo struct {
	Title               string `json:"title"`
	Slug                string `json:"slug"`
	LookbackEnabled     bool   `json:"lookbackEnabled"`
	MarketFilterEnabled bool   `json:"marketFilterEnabled"`
}

type PagesResponse struct {
	Pages           []PageInfo `json:"pages"`
	LookbackOptions []int      `json:"lookbackOptions"`
	DefaultLookback int        `json:"defaultLookback"`
}

type ReferenceResponse struct {
	Tokens            int       `json:"tokens"`
	SpotMarkets       int       `json:"spotMarkets"`
	DerivativeMarkets int       `json:"derivativeMarkets"`
	LoadedAt          time.Time `json:"loadedAt"`
}

type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
