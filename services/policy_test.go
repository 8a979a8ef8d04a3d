package services

import (
	"context"
	"testing"
	"time"

	"token-claim-gate/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarWindowBounds(t *testing.T) {
	at := time.Date(2026, 10, 15, 23, 59, 0, 0, time.UTC)

	start, end := Window{Mode: CalendarWindow, Days: 1}.Bounds(at)
	assert.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), end)

	start, _ = Window{Mode: CalendarWindow, Days: 30}.Bounds(at)
	assert.Equal(t, time.Date(2026, 9, 16, 0, 0, 0, 0, time.UTC), start)
}

func TestRollingWindowIsOpenEnded(t *testing.T) {
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	w := Window{Mode: RollingWindow, Days: 1}

	start, end := w.Bounds(at)
	assert.Equal(t, at.Add(-24*time.Hour), start)
	assert.True(t, end.IsZero())
	assert.True(t, w.Contains(at.Add(-23*time.Hour), at))
	assert.False(t, w.Contains(at.Add(-25*time.Hour), at))
}

func TestCapReachedAtBoundary(t *testing.T) {
	ledger := NewMemoryLedger()
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	p := &Policy{Ledger: ledger, Cap: Window{Mode: CalendarWindow, Days: 1}, MaxPerWindow: 2, Clock: func() time.Time { return at }}

	require.NoError(t, ledger.Insert(context.Background(), models.ClaimRecord{Timestamp: at.Add(-13 * time.Hour), TxHash: "0xold"}))
	require.NoError(t, ledger.Insert(context.Background(), models.ClaimRecord{Timestamp: at.Add(-time.Hour), TxHash: "0x1"}))

	reached, err := p.CapReached(context.Background())
	require.NoError(t, err)
	assert.False(t, reached)

	require.NoError(t, ledger.Insert(context.Background(), models.ClaimRecord{Timestamp: at, TxHash: "0x2"}))
	count, err := p.ClaimsIssuedInCurrentWindow(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	reached, err = p.CapReached(context.Background())
	require.NoError(t, err)
	assert.True(t, reached)
}
