package usecase

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PowerLedger/internal/domain/errs"
	"PowerLedger/internal/domain/models"
)

func (f *fixture) raiseAlert() *models.Notification {
	f.t.Helper()
	f.addCircuit("R-1", "10", models.StatusReserve, dp("2025-03-10"))
	_, err := f.scanner.Scan(f.ctx)
	require.NoError(f.t, err)
	notes := f.notifications()
	require.Len(f.t, notes, 1)
	return notes[0]
}

func TestNotificationReadAndCount(t *testing.T) {
	f := newFixture(t)
	n := f.raiseAlert()

	count, err := f.notes.UnreadCount(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	read, err := f.notes.MarkRead(f.ctx, operator, n.ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	count, err = f.notes.UnreadCount(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	isRead := true
	list, err := f.notes.List(f.ctx, &isRead, nil, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestNotificationExtend(t *testing.T) {
	f := newFixture(t)
	n := f.raiseAlert()

	_, err := f.notes.Extend(f.ctx, operator, n.ID, date("2025-03-09"))
	assert.True(t, errors.Is(err, errs.ErrValidation))
	_, err = f.notes.Extend(f.ctx, operator, n.ID, models.Date{})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	got, err := f.notes.Extend(f.ctx, operator, n.ID, date("2025-03-20"))
	require.NoError(t, err)
	require.NotNil(t, got.ExtendedUntil)
	assert.Equal(t, "2025-03-20", got.ExtendedUntil.String())
	assert.True(t, got.IsRead)

	_, err = f.notes.Extend(f.ctx, operator, 999, date("2025-03-20"))
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestNotificationDismissHidesFromList(t *testing.T) {
	f := newFixture(t)
	n := f.raiseAlert()

	_, err := f.notes.Dismiss(f.ctx, operator, n.ID)
	require.NoError(t, err)

	list, err := f.notes.List(f.ctx, nil, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
	count, err := f.notes.UnreadCount(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
