package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordermatch/amazon-reconciler/internal/domain/orders"
)

func defaultResolver() Resolver {
	return Resolver{DaysBeforeOrder: 1, DaysAfterDelivery: 4}
}

func TestResolve_Window(t *testing.T) {
	w, err := defaultResolver().Resolve(&orders.Order{
		ID:           "111-0000001",
		OrderDate:    "2024-01-10T00:00:00Z",
		DeliveryDate: "2024-01-15T00:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-09", w.StartDate())
	assert.Equal(t, "2024-01-19", w.EndDate())
}

func TestResolve_FractionalSecondTimestamps(t *testing.T) {
	w, err := defaultResolver().Resolve(&orders.Order{
		ID:           "111-0000002",
		OrderDate:    "2024-01-10T08:30:00.123456Z",
		DeliveryDate: "2024-01-15T17:45:00.5Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-09", w.StartDate())
	assert.Equal(t, "2024-01-19", w.EndDate())
}

func TestResolve_DeliveryNotAvailableIsSkippable(t *testing.T) {
	_, err := defaultResolver().Resolve(&orders.Order{
		ID:           "111-0000003",
		OrderDate:    "2024-01-10T00:00:00Z",
		DeliveryDate: orders.DeliveryNotAvailable,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSkippableOrder)
}

func TestResolve_UnparseableOrderDateIsSkippable(t *testing.T) {
	_, err := defaultResolver().Resolve(&orders.Order{
		ID:           "111-0000004",
		OrderDate:    "January 10th",
		DeliveryDate: "2024-01-15T00:00:00Z",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSkippableOrder)
	assert.ErrorIs(t, err, ErrUnparseableTimestamp)
}

func TestResolve_UnparseableDeliveryDegeneratesWindow(t *testing.T) {
	w, err := defaultResolver().Resolve(&orders.Order{
		ID:           "111-0000005",
		OrderDate:    "2024-01-10T00:00:00Z",
		DeliveryDate: "soonish",
	})
	require.NoError(t, err)
	assert.Equal(t, w.StartDate(), w.EndDate())
	assert.Equal(t, "2024-01-09", w.StartDate())
}

func TestResolve_ConfigurableOffsets(t *testing.T) {
	r := Resolver{DaysBeforeOrder: 3, DaysAfterDelivery: 10}
	w, err := r.Resolve(&orders.Order{
		ID:           "111-0000006",
		OrderDate:    "2024-01-10T00:00:00Z",
		DeliveryDate: "2024-01-15T00:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-07", w.StartDate())
	assert.Equal(t, "2024-01-25", w.EndDate())
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "whole seconds",
			input: "2024-01-10T12:34:56Z",
			want:  time.Date(2024, 1, 10, 12, 34, 56, 0, time.UTC),
		},
		{
			name:  "fractional seconds",
			input: "2024-01-10T12:34:56.789Z",
			want:  time.Date(2024, 1, 10, 12, 34, 56, 789000000, time.UTC),
		},
		{
			name:    "date only",
			input:   "2024-01-10",
			wantErr: true,
		},
		{
			name:    "garbage",
			input:   "not a timestamp",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnparseableTimestamp)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
		})
	}
}
