package trader

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkov/triarb/internal/domain"
)

func TestSimulatorReplaysQuotedPrices(t *testing.T) {
	eval := testEval()
	eval.Quotes = [3]domain.LegQuote{
		{AvgPrice: 100},
		{AvgPrice: 0.05},
		{AvgPrice: 5.05},
	}
	store := &recordingStore{}

	sim := NewSimulator(0.001, store, nil, quietLogger())
	result := sim.Execute(context.Background(), eval)

	require.True(t, result.Settled())
	require.Len(t, result.Legs, 3)

	// 100 USDT through buy@100, buy@0.05, sell@5.05 at 0.1% per leg.
	want := 100.0 / 100 * 0.999 / 0.05 * 0.999 * 5.05 * 0.999
	assert.InDelta(t, want, result.FinalAmount, 1e-9)
	assert.InDelta(t, (want/100-1)*100, result.ProfitPercent, 1e-9)

	// The paper yield matches the evaluator's multiplicative form.
	yield := (1 / 100.0) * (1 / 0.05) * 5.05 * math.Pow(0.999, 3)
	assert.InDelta(t, yield*100, result.FinalAmount, 1e-9)

	require.Len(t, store.results, 1)
	assert.Equal(t, result.ID, store.results[0].ID)
}

func TestSimulatorWithoutStoreOrNotifier(t *testing.T) {
	eval := testEval()
	eval.Quotes = [3]domain.LegQuote{{AvgPrice: 100}, {AvgPrice: 0.05}, {AvgPrice: 5.05}}

	sim := NewSimulator(0.001, nil, nil, quietLogger())

	assert.NotPanics(t, func() { sim.Execute(context.Background(), eval) })
}
