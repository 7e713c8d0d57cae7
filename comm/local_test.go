package comm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFabricBarrier(t *testing.T) {
	const size = 4
	var mu sync.Mutex
	var order []int

	err := Run(context.Background(), size, func(ctx context.Context, f Fabric) error {
		mu.Lock()
		order = append(order, f.Rank())
		mu.Unlock()
		return f.Barrier(ctx)
	})
	require.NoError(t, err)
	assert.Len(t, order, size)
}

func TestLocalFabricBroadcast(t *testing.T) {
	const size = 3
	results := make([][]byte, size)
	var mu sync.Mutex

	err := Run(context.Background(), size, func(ctx context.Context, f Fabric) error {
		var buf []byte
		if f.Rank() == 1 {
			buf = []byte("payload")
		} else {
			buf = make([]byte, len("payload"))
		}
		got, err := f.Broadcast(ctx, 1, buf)
		if err != nil {
			return err
		}
		mu.Lock()
		results[f.Rank()] = got
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	for r := 0; r < size; r++ {
		assert.Equal(t, "payload", string(results[r]), "rank %d", r)
	}
}

func TestLocalFabricAllgather(t *testing.T) {
	const size = 4
	results := make([][][]byte, size)
	var mu sync.Mutex

	err := Run(context.Background(), size, func(ctx context.Context, f Fabric) error {
		buf := []byte(fmt.Sprintf("r%d", f.Rank()))
		got, err := f.Allgather(ctx, buf)
		if err != nil {
			return err
		}
		mu.Lock()
		results[f.Rank()] = got
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	want := make([]string, size)
	for r := 0; r < size; r++ {
		want[r] = fmt.Sprintf("r%d", r)
	}
	for r := 0; r < size; r++ {
		got := make([]string, size)
		for i, b := range results[r] {
			got[i] = string(b)
		}
		assert.Equal(t, want, got, "rank %d", r)
	}
}

func TestLocalFabricAllreduceOps(t *testing.T) {
	cases := []struct {
		op   Op
		want int64
	}{
		{OpSum, 0 + 1 + 2 + 3},
		{OpMax, 3},
		{OpMin, 0},
		{OpProd, 0 * 1 * 2 * 3},
		{OpAnd, 0 & 1 & 2 & 3},
		{OpOr, 0 | 1 | 2 | 3},
		{OpXor, 0 ^ 1 ^ 2 ^ 3},
	}
	const size = 4

	for _, tc := range cases {
		tc := tc
		t.Run(fmt.Sprint(tc.op), func(t *testing.T) {
			results := make([]int64, size)
			var mu sync.Mutex
			err := Run(context.Background(), size, func(ctx context.Context, f Fabric) error {
				got, err := f.Allreduce(ctx, tc.op, []int64{int64(f.Rank())})
				if err != nil {
					return err
				}
				mu.Lock()
				results[f.Rank()] = got[0]
				mu.Unlock()
				return nil
			})
			require.NoError(t, err)
			for r := 0; r < size; r++ {
				assert.Equal(t, tc.want, results[r], "rank %d", r)
			}
		})
	}
}

func TestLocalFabricReduceOnlyPopulatesRoot(t *testing.T) {
	const size = 3
	results := make([][]int64, size)
	var mu sync.Mutex

	err := Run(context.Background(), size, func(ctx context.Context, f Fabric) error {
		got, err := f.Reduce(ctx, 0, OpSum, []int64{int64(f.Rank())})
		if err != nil {
			return err
		}
		mu.Lock()
		results[f.Rank()] = got
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{0 + 1 + 2}, results[0])
	assert.Nil(t, results[1])
	assert.Nil(t, results[2])
}

func TestLocalFabricPointToPoint(t *testing.T) {
	const size = 2
	received := make([]string, size)
	var mu sync.Mutex

	err := Run(context.Background(), size, func(ctx context.Context, f Fabric) error {
		if f.Rank() == 0 {
			req := f.ISend(1, 7, []byte("hello"))
			return f.WaitAll(ctx, []Request{req})
		}
		buf := make([]byte, 5)
		req := f.IRecv(0, 7, buf)
		if err := f.WaitAll(ctx, []Request{req}); err != nil {
			return err
		}
		mu.Lock()
		received[1] = string(buf)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", received[1])
}

func TestLocalFabricSingleRankDegenerate(t *testing.T) {
	err := Run(context.Background(), 1, func(ctx context.Context, f Fabric) error {
		require.NoError(t, f.Barrier(ctx))
		got, err := f.Broadcast(ctx, 0, []byte("x"))
		require.NoError(t, err)
		assert.Equal(t, "x", string(got))

		gathered, err := f.Allgather(ctx, []byte("only"))
		require.NoError(t, err)
		require.Len(t, gathered, 1)
		assert.Equal(t, "only", string(gathered[0]))
		return nil
	})
	require.NoError(t, err)
}

func TestLocalFabricErrorPropagatesAndCancelsOthers(t *testing.T) {
	const size = 4
	err := Run(context.Background(), size, func(ctx context.Context, f Fabric) error {
		if f.Rank() == 2 {
			return assertError
		}
		return f.Barrier(ctx)
	})
	require.Error(t, err)
}

var assertError = fmt.Errorf("boom")

func TestAllgatherCompletesOnEveryRank(t *testing.T) {
	const size = 5
	var mu sync.Mutex
	var seenRanks []int

	err := Run(context.Background(), size, func(ctx context.Context, f Fabric) error {
		_, err := f.Allgather(ctx, []byte{byte(f.Rank())})
		mu.Lock()
		seenRanks = append(seenRanks, f.Rank())
		mu.Unlock()
		return err
	})
	require.NoError(t, err)
	sort.Ints(seenRanks)
	for i, r := range seenRanks {
		assert.Equal(t, i, r)
	}
}
