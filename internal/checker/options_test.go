package checker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRuntimeOptionsClamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   RuntimeOptions
		want RuntimeOptions
	}{
		{
			name: "within range untouched",
			in:   RuntimeOptions{TimeoutSeconds: 15, Retries: 2, Concurrency: 3},
			want: RuntimeOptions{TimeoutSeconds: 15, Retries: 2, Concurrency: 3},
		},
		{
			name: "too low",
			in:   RuntimeOptions{TimeoutSeconds: 0, Retries: -1, Concurrency: 0},
			want: RuntimeOptions{TimeoutSeconds: 3, Retries: 0, Concurrency: 1},
		},
		{
			name: "too high",
			in:   RuntimeOptions{TimeoutSeconds: 1000, Retries: 50, Concurrency: 99},
			want: RuntimeOptions{TimeoutSeconds: 120, Retries: 5, Concurrency: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.in.Clamp()
			require.Equal(t, tt.want, got)
			require.Equal(t, got, got.Clamp(), "clamp must be idempotent")
		})
	}
}

func TestActiveColumnsAllEnabled(t *testing.T) {
	t.Parallel()

	cols := ActiveColumns(DefaultCheckOptions(), 2)

	require.Equal(t, ColURL, cols[0])
	require.Contains(t, cols, ColStatusCode)
	require.Contains(t, cols, ColCMSDebug)
	require.Contains(t, cols, AltColumn(1))
	require.Contains(t, cols, AltColumn(2))
	require.NotContains(t, cols, AltColumn(3))

	// Alt columns stay inside the images block, before the CMS columns.
	require.Equal(t, ColCMSDebug, cols[len(cols)-1])
	require.Equal(t, ColCMS, cols[len(cols)-2])
	require.Equal(t, AltColumn(2), cols[len(cols)-3])
}

func TestActiveColumnsDisabledChecksContributeNothing(t *testing.T) {
	t.Parallel()

	opts := CheckOptions{StatusCodes: true}
	cols := ActiveColumns(opts, 5)

	require.Equal(t, []string{ColURL, ColStatusCode}, cols)
}

func TestActiveColumnsDeterministicOrder(t *testing.T) {
	t.Parallel()

	opts := DefaultCheckOptions()
	first := ActiveColumns(opts, 3)
	second := ActiveColumns(opts, 3)
	require.Equal(t, first, second)
}
