package main

import (
	"bytes"
	"testing"

	"github.com/injops/dashboard/internal/table"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTable(t *testing.T) {
	tbl := table.New("Open Interest", table.Text("Trading Pair"), table.Numeric("Longs Notional"))
	tbl.AddRow("BTC-USDT", decimal.NewFromInt(130000))

	tests := []struct {
		format string
		want   string
	}{
		{format: "text", want: "BTC-USDT"},
		{format: "csv", want: "Trading Pair,Longs Notional\nBTC-USDT,130000"},
		{format: "md", want: "| Trading Pair |"},
		{format: "json", want: `"title": "Open Interest"`},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeTable(&buf, tbl, tt.format))
			assert.Contains(t, buf.String(), tt.want)
		})
	}

	assert.Error(t, writeTable(&bytes.Buffer{}, tbl, "yaml"))
}

func TestPagesCommand(t *testing.T) {
	var buf bytes.Buffer
	pagesCmd.SetOut(&buf)
	require.NoError(t, pagesCmd.RunE(pagesCmd, nil))

	out := buf.String()
	assert.Contains(t, out, "insurance-funds")
	assert.Contains(t, out, "Liquidations")
}
