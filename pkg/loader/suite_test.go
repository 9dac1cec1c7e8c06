package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specvital/pyloader/pkg/domain"
)

func unitNamed(name string) *Unit {
	return &Unit{Kind: domain.TestKindFunction, Name: name, Origin: "m"}
}

func TestSuite_EagerEach(t *testing.T) {
	t.Parallel()

	s := NewSuite([]Test{unitNamed("a"), unitNamed("b")}, nil)
	tests, err := s.Collect(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"m.a", "m.b"}, ids(tests))
	assert.False(t, s.IsLazy())
}

func TestSuite_LazyProducerRunsOncePerPass(t *testing.T) {
	t.Parallel()

	calls := 0
	s := NewLazySuite(func(ctx context.Context) Iterator {
		calls++
		return SliceIterator([]Test{unitNamed("a")})
	}, nil)

	assert.Equal(t, 0, calls, "producer must not run before iteration")

	for pass := 1; pass <= 2; pass++ {
		tests, err := s.Collect(context.Background())
		require.NoError(t, err)
		assert.Len(t, tests, 1)
		assert.Equal(t, pass, calls)
	}
}

func TestSuite_MaterializationErrorBecomesFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	pos := 0
	s := NewLazySuite(func(ctx context.Context) Iterator {
		return FuncIterator(func(ctx context.Context) (Test, error) {
			pos++
			if pos == 1 {
				return unitNamed("ok"), nil
			}
			return nil, boom
		}, nil)
	}, nil)
	s.Name = "broken"

	tests, err := s.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, tests, 2)

	failure, ok := tests[1].(*Failure)
	require.True(t, ok)
	assert.Equal(t, "broken", failure.ID())
	assert.ErrorIs(t, failure.Run(), boom)
}

func TestSuite_InterruptsPropagate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{name: "interrupted", err: ErrInterrupted},
		{name: "canceled", err: context.Canceled},
		{name: "deadline", err: context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewLazySuite(func(ctx context.Context) Iterator {
				return FuncIterator(func(ctx context.Context) (Test, error) {
					return nil, tt.err
				}, nil)
			}, nil)

			_, err := s.Collect(context.Background())
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSuite_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSuite([]Test{unitNamed("a")}, nil).Collect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSuite_CloseOnEarlyStop(t *testing.T) {
	t.Parallel()

	closed := 0
	s := NewLazySuite(func(ctx context.Context) Iterator {
		return FuncIterator(func(ctx context.Context) (Test, error) {
			return unitNamed("forever"), nil
		}, func() error {
			closed++
			return nil
		})
	}, nil)

	stop := errors.New("stop")
	err := s.Each(context.Background(), func(Test) error { return stop })

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, closed)
}

func TestUnit_ID(t *testing.T) {
	t.Parallel()

	loader := newTestLoader(t, writeTree(t, map[string]string{
		"test_ids.py": "class TestThing:\n    def test_gen(self):\n        yield self.check, 1, 2\n\n    def check(self, a, b):\n        pass\n",
	}))
	suite := loader.LoadTestsFromName(context.Background(), "test_ids.py:TestThing.test_gen", nil, false)
	got := ids(leaves(t, suite))

	assert.Equal(t, []string{"test_ids.TestThing.test_gen(1, 2)"}, got)
}
