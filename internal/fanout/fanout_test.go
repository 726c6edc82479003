package fanout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_PreservesOrder(t *testing.T) {
	items := []int{0, 1, 2, 3, 4, 5, 6, 7}
	results, errs := Run(context.Background(), items, 3, func(_ context.Context, n int) (int, error) {
		return n * n, nil
	})
	for _, e := range errs {
		require.NoError(t, e)
	}
	for i, n := range items {
		require.Equal(t, n*n, results[i])
	}
}

func TestRun_CollectsPerItemErrors(t *testing.T) {
	items := []int{1, 2, 3}
	_, errs := Run(context.Background(), items, 2, func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, errors.New("boom")
		}
		return n, nil
	})
	require.NoError(t, errs[0])
	require.Error(t, errs[1])
	require.NoError(t, errs[2])
}

func TestRun_RecoversPanic(t *testing.T) {
	items := []int{1, 2, 3}
	_, errs := Run(context.Background(), items, 2, func(_ context.Context, n int) (int, error) {
		if n == 2 {
			panic("kaboom")
		}
		return n, nil
	})
	require.Error(t, errs[1])
}

func TestRun_Empty(t *testing.T) {
	results, errs := Run[int, int](context.Background(), nil, 4, func(context.Context, int) (int, error) { return 0, nil })
	require.Nil(t, results)
	require.Nil(t, errs)
}
