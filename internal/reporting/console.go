// Package reporting renders signal and candle history as console tables and
// Excel workbooks.
package reporting

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"ibs-bot/internal/decision"
	"ibs-bot/pkg/types"
)

// RenderSignals writes recent signals as a table, newest first.
func RenderSignals(w io.Writer, signals []*types.Signal) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("SIGNAL HISTORY")
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"ID", "Time", "Action", "Side", "Price", "Leverage", "Status"})
	for _, sig := range signals {
		t.AppendRow(table.Row{
			sig.ID,
			sig.Timestamp.Format("2006-01-02 15:04"),
			sig.Action,
			sig.Side,
			sig.Price,
			sig.Leverage,
			sig.Status.String(),
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})

	t.Render()
}

// RenderCandles writes recent coarse candles as a table, newest first.
func RenderCandles(w io.Writer, candles []*types.Candle) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("RECENT CANDLES")
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"ID", "Window End", "Open", "High", "Low", "Close", "Volume", "IBS"})
	for _, c := range candles {
		t.AppendRow(table.Row{
			c.ID,
			c.Timestamp.Format("2006-01-02 15:04"),
			c.Open,
			c.High,
			c.Low,
			c.Close,
			c.Volume,
			decision.IBS(c),
		})
	}

	t.Render()
}

// RenderSummary writes aggregate counts over the signal history.
func RenderSummary(w io.Writer, signals []*types.Signal) {
	var pending, executed, failed int
	var lastTrade time.Time
	for _, sig := range signals {
		switch sig.Status {
		case types.StatusPending:
			pending++
		case types.StatusExecuted:
			executed++
		case types.StatusFailed:
			failed++
		}
		if sig.Timestamp.After(lastTrade) {
			lastTrade = sig.Timestamp
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("SUMMARY")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"Total signals", len(signals)},
		{"Executed", executed},
		{"Failed", failed},
		{"Pending", pending},
	})
	if !lastTrade.IsZero() {
		t.AppendRow(table.Row{"Last signal", lastTrade.Format("2006-01-02 15:04")})
	}

	t.Render()
}
