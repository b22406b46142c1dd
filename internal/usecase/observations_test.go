package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PowerLedger/internal/domain/errs"
	"PowerLedger/internal/domain/models"
	drepo "PowerLedger/internal/domain/repository"
)

func int64Ptr(v int64) *int64 { return &v }

func TestObservationValidation(t *testing.T) {
	f := newFixture(t)
	svc := NewObservationService(f.runner)
	bar := int64Ptr(f.normalBar())

	tests := []struct {
		name string
		in   ObservationInput
		err  error
	}{
		{"unknown severity", ObservationInput{BarID: bar, Severity: "minor", Content: "x"}, errs.ErrValidation},
		{"blank content", ObservationInput{BarID: bar, Severity: models.SeverityWarning, Content: "   "}, errs.ErrValidation},
		{"no link", ObservationInput{Severity: models.SeverityWarning, Content: "loose cable"}, errs.ErrValidation},
		{"missing bar", ObservationInput{BarID: int64Ptr(999), Severity: models.SeverityUrgent, Content: "smoke"}, errs.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(f.ctx, operator, tt.in)
			assert.ErrorIs(t, err, tt.err)
		})
	}
	assert.Empty(t, f.auditActions())
}

func TestObservationCreateAndList(t *testing.T) {
	f := newFixture(t)
	svc := NewObservationService(f.runner)
	c := f.addCircuit("C-1", "10", models.StatusOperativeNormal, nil)

	onBar, err := svc.Create(f.ctx, operator, ObservationInput{
		BarID: int64Ptr(f.normalBar()), Severity: models.SeverityRecommendation, Content: " rebalance phases ",
	})
	require.NoError(t, err)
	assert.Equal(t, "rebalance phases", onBar.Content)
	assert.Equal(t, operator.ID, onBar.UserID)

	_, err = svc.Create(f.ctx, operator, ObservationInput{
		CircuitID: int64Ptr(c.ID), Severity: models.SeverityUrgent, Content: "breaker trips",
	})
	require.NoError(t, err)

	byCircuit, err := svc.List(f.ctx, drepo.ObservationFilter{CircuitID: int64Ptr(c.ID)})
	require.NoError(t, err)
	require.Len(t, byCircuit, 1)
	assert.Equal(t, models.SeverityUrgent, byCircuit[0].Severity)

	all, err := svc.List(f.ctx, drepo.ObservationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.Contains(t, f.auditActions(), "CREATE_OBSERVATION")
}
