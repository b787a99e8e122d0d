package wsclient

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/MarceloDuretti/Financeiro-sub001/internal/cache"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/protocol"

	"github.com/stretchr/testify/require"
)

func TestMatchesKey(t *testing.T) {
	cases := []struct {
		candidate string
		want      bool
	}{
		{"/api/cost-centers", true},
		{"/api/cost-centers/cc-1", true},
		{"/api/cost-centers?page=2", true},
		{"/api/cost-centers-archive", false},
		{"/api/cost", false},
		{"/api/accounts", false},
	}
	for _, tc := range cases {
		t.Run(tc.candidate, func(t *testing.T) {
			require.Equal(t, tc.want, MatchesKey("/api/cost-centers", tc.candidate))
		})
	}
}

func TestBindInvalidation_DropsKeyFamilyOnMatchingResource(t *testing.T) {
	d := NewDispatcher(nil)
	store := cache.NewSimpleCache[string, string](cache.Options{ConcurrencySafe: true})
	store.Set("/api/cost-centers", "list", 0)
	store.Set("/api/cost-centers/cc-1", "one", 0)
	store.Set("/api/accounts", "accounts", 0)

	unbind := BindInvalidation(d, store, "/api/cost-centers", "cost-centers")

	d.Dispatch(change("accounts"))
	d.Dispatch(protocol.Connected{Type: protocol.TypeConnected})
	require.Equal(t, 3, store.Len())

	d.Dispatch(change("cost-centers"))
	require.False(t, store.Has("/api/cost-centers"))
	require.False(t, store.Has("/api/cost-centers/cc-1"))
	require.True(t, store.Has("/api/accounts"))

	unbind()
	store.Set("/api/cost-centers", "list", 0)
	d.Dispatch(change("cost-centers"))
	require.True(t, store.Has("/api/cost-centers"))
	require.Equal(t, 0, d.Len())
}

func TestLiveQuery_ServesCacheUntilChange(t *testing.T) {
	d := NewDispatcher(nil)
	var fetches atomic.Int32
	fetch := func(context.Context) ([]string, error) {
		n := fetches.Add(1)
		if n == 1 {
			return []string{"Operations"}, nil
		}
		return []string{"Operations", "Marketing"}, nil
	}
	q := NewLiveQuery[[]string](d, nil, "/api/cost-centers", "cost-centers", fetch)
	defer q.Close()

	ctx := context.Background()
	v, err := q.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Operations"}, v)

	v, err = q.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Operations"}, v)
	require.EqualValues(t, 1, fetches.Load())

	d.Dispatch(change("accounts"))
	_, _ = q.Get(ctx)
	require.EqualValues(t, 1, fetches.Load())

	d.Dispatch(change("cost-centers"))
	v, err = q.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Operations", "Marketing"}, v)
	require.EqualValues(t, 2, fetches.Load())
}

func TestLiveQuery_OnInvalidateHook(t *testing.T) {
	d := NewDispatcher(nil)
	var calls atomic.Int32
	q := NewLiveQuery[int](d, nil, "k", "cost-centers",
		func(context.Context) (int, error) { return 1, nil },
		WithOnInvalidate[int](func() { calls.Add(1) }),
	)
	defer q.Close()

	d.Dispatch(change("cost-centers"))
	d.Dispatch(change("cost-centers"))
	require.EqualValues(t, 2, calls.Load())
}

func TestLiveQuery_StaleFetchDoesNotRepopulate(t *testing.T) {
	d := NewDispatcher(nil)
	store := cache.NewSimpleCache[string, int](cache.Options{ConcurrencySafe: true})

	var q *LiveQuery[int]
	first := true
	fetch := func(context.Context) (int, error) {
		if first {
			first = false
			// A change lands while the response is in flight.
			d.Dispatch(change("cost-centers"))
			return 1, nil
		}
		return 2, nil
	}
	q = NewLiveQuery[int](d, store, "k", "cost-centers", fetch)
	defer q.Close()

	v, err := q.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, v)
	require.False(t, store.Has("k"))

	v, err = q.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, v)
	require.True(t, store.Has("k"))
}

func TestLiveQuery_FetchErrorNotCached(t *testing.T) {
	d := NewDispatcher(nil)
	boom := errors.New("backend down")
	q := NewLiveQuery[int](d, nil, "k", "cost-centers", func(context.Context) (int, error) { return 0, boom })
	defer q.Close()

	_, err := q.Get(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestLiveQuery_CloseUnsubscribes(t *testing.T) {
	d := NewDispatcher(nil)
	store := cache.NewSimpleCache[string, int](cache.Options{})
	q := NewLiveQuery[int](d, store, "k", "cost-centers", func(context.Context) (int, error) { return 7, nil })
	require.Equal(t, "k", q.Key())

	_, err := q.Get(context.Background())
	require.NoError(t, err)

	q.Close()
	q.Close()
	require.Equal(t, 0, d.Len())

	d.Dispatch(change("cost-centers"))
	require.True(t, store.Has("k"))
}
