package moor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvide_InvalidScope(t *testing.T) {
	r := New()

	_, err := Provide(r, Scope(99), func(ctx context.Context) (*temperatureService, Teardown, error) {
		return &temperatureService{}, nil, nil
	})

	assert.ErrorIs(t, err, ErrInvalidScope)
	assert.Empty(t, r.Definitions())
}

func TestProvide_NilFactory(t *testing.T) {
	r := New()

	_, err := Provide[*temperatureService](r, Singleton, nil)
	assert.ErrorIs(t, err, ErrNilFactory)
}

func TestProvideUntyped_NoProducedType(t *testing.T) {
	r := New()

	_, err := ProvideUntyped(r, Singleton, nil, func(ctx context.Context) (any, Teardown, error) {
		return nil, nil, nil
	})

	assert.ErrorIs(t, err, ErrNoProducedType)
}

func TestResolve_Singleton(t *testing.T) {
	r := New()
	var constructions atomic.Int32
	provideTemperature(t, r, &constructions)

	ctx := context.Background()

	first, err := r.Resolve(ctx, Require[*temperatureService]())
	require.NoError(t, err)

	second, err := r.Resolve(ctx, Require[*temperatureService]())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), constructions.Load())
}

func TestResolve_SingletonConcurrent(t *testing.T) {
	r := New()
	var constructions atomic.Int32
	provideTemperature(t, r, &constructions)

	ctx := context.Background()

	const resolvers = 1000

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		instances = make(map[*temperatureService]bool)
	)

	wg.Add(resolvers)
	for i := 0; i < resolvers; i++ {
		go func() {
			defer wg.Done()

			value, err := r.Resolve(ctx, Require[*temperatureService]())
			if err != nil {
				t.Error(err)

				return
			}

			mu.Lock()
			instances[value.(*temperatureService)] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, instances, 1)
	assert.Equal(t, int32(1), constructions.Load())
}

func TestResolve_Transient_NoSharing(t *testing.T) {
	r := New()
	var constructions atomic.Int32

	_, err := Provide(r, Transient, func(ctx context.Context) (*temperatureService, Teardown, error) {
		return &temperatureService{stamp: constructions.Add(1)}, nil, nil
	})
	require.NoError(t, err)

	ctx := context.Background()

	const n = 5

	seen := make(map[*temperatureService]bool)
	for i := 0; i < n; i++ {
		value, err := r.Resolve(ctx, Require[*temperatureService]())
		require.NoError(t, err)
		seen[value.(*temperatureService)] = true
	}

	assert.Len(t, seen, n)
	assert.Equal(t, int32(n), constructions.Load())
}

func TestResolve_NotFound(t *testing.T) {
	r := New()

	_, err := r.Resolve(context.Background(), Require[*undefinedService]())

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_NoTargetType(t *testing.T) {
	r := New()

	_, err := r.Resolve(context.Background(), Requirement{})

	assert.ErrorIs(t, err, ErrNoTargetType)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestResolve_InterfaceRequirement(t *testing.T) {
	r := New()

	_, err := Provide(r, Singleton, func(ctx context.Context) (englishGreeter, Teardown, error) {
		return englishGreeter{}, nil, nil
	})
	require.NoError(t, err)

	value, err := r.Resolve(context.Background(), Require[greeter]())
	require.NoError(t, err)
	assert.Equal(t, "hello", value.(greeter).Greet())
}

func TestLookup_FirstRegisteredWins(t *testing.T) {
	r := New()

	_, err := Provide(r, Singleton, func(ctx context.Context) (*temperatureService, Teardown, error) {
		return &temperatureService{stamp: 1}, nil, nil
	})
	require.NoError(t, err)

	_, err = Provide(r, Singleton, func(ctx context.Context) (*temperatureService, Teardown, error) {
		return &temperatureService{stamp: 2}, nil, nil
	})
	require.NoError(t, err)

	value, err := r.Resolve(context.Background(), Require[*temperatureService]())
	require.NoError(t, err)
	assert.Equal(t, int32(1), value.(*temperatureService).stamp)
}

func TestLookup_NameMatching(t *testing.T) {
	r := New()

	_, err := Provide(r, Singleton, func(ctx context.Context) (*temperatureService, Teardown, error) {
		return &temperatureService{stamp: 1}, nil, nil
	}, WithName("outdoor"))
	require.NoError(t, err)

	_, err = Provide(r, Singleton, func(ctx context.Context) (*temperatureService, Teardown, error) {
		return &temperatureService{stamp: 2}, nil, nil
	}, WithName("indoor"))
	require.NoError(t, err)

	ctx := context.Background()

	// An explicit name selects the matching definition.
	indoor, err := r.Resolve(ctx, Require[*temperatureService](Named("indoor")))
	require.NoError(t, err)
	assert.Equal(t, int32(2), indoor.(*temperatureService).stamp)

	// No preference matches the first named definition.
	noPref, err := r.Resolve(ctx, Require[*temperatureService]())
	require.NoError(t, err)
	assert.Equal(t, int32(1), noPref.(*temperatureService).stamp)

	// A name nothing carries is a lookup failure.
	_, err = r.Resolve(ctx, Require[*temperatureService](Named("basement")))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookup_UnnamedDefinitionMatchesAnyName(t *testing.T) {
	r := New()
	var constructions atomic.Int32
	provideTemperature(t, r, &constructions)

	value, err := r.Resolve(context.Background(), Require[*temperatureService](Named("whatever")))
	require.NoError(t, err)
	assert.NotNil(t, value)
}

func TestResolve_ConstructionFailurePropagates(t *testing.T) {
	r := New()
	boom := errors.New("boom")
	var attempts atomic.Int32

	_, err := Provide(r, Singleton, func(ctx context.Context) (*temperatureService, Teardown, error) {
		if attempts.Add(1) == 1 {
			return nil, nil, boom
		}

		return &temperatureService{}, nil, nil
	})
	require.NoError(t, err)

	ctx := context.Background()

	_, err = r.Resolve(ctx, Require[*temperatureService]())
	assert.ErrorIs(t, err, boom)

	// The definition stayed uninitialized; the next fetch constructs.
	value, err := r.Resolve(ctx, Require[*temperatureService]())
	require.NoError(t, err)
	assert.NotNil(t, value)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestResolve_FallbackChain(t *testing.T) {
	first := &temperatureService{stamp: 1}
	second := &temperatureService{stamp: 2}

	r := New(
		WithFallback(func(ctx context.Context, req Requirement, args []any) (any, bool, error) {
			return nil, false, nil
		}),
		WithFallback(func(ctx context.Context, req Requirement, args []any) (any, bool, error) {
			return first, true, nil
		}),
		WithFallback(func(ctx context.Context, req Requirement, args []any) (any, bool, error) {
			return second, true, nil
		}),
	)

	value, err := r.Resolve(context.Background(), Require[*temperatureService]())
	require.NoError(t, err)
	assert.Same(t, first, value)
}

func TestResolve_FallbackError(t *testing.T) {
	bad := errors.New("fallback blew up")
	r := New(
		WithFallback(func(ctx context.Context, req Requirement, args []any) (any, bool, error) {
			return nil, false, bad
		}),
	)

	_, err := r.Resolve(context.Background(), Require[*temperatureService]())
	assert.ErrorIs(t, err, bad)
}

func TestResolve_FallbackOnlyOnLookupFailure(t *testing.T) {
	r := New(
		WithFallback(func(ctx context.Context, req Requirement, args []any) (any, bool, error) {
			t.Fatal("fallback consulted despite a matching definition")

			return nil, false, nil
		}),
	)

	var constructions atomic.Int32
	provideTemperature(t, r, &constructions)

	_, err := r.Resolve(context.Background(), Require[*temperatureService]())
	assert.NoError(t, err)
}

func TestResolve_RequirementDefault(t *testing.T) {
	r := New()
	fallbackValue := &temperatureService{stamp: 7}

	value, err := r.Resolve(context.Background(), Require[*temperatureService](Default(fallbackValue)))
	require.NoError(t, err)
	assert.Same(t, fallbackValue, value)
}

func TestResolve_FallbackBeatsDefault(t *testing.T) {
	fromFallback := &temperatureService{stamp: 1}
	r := New(
		WithFallback(func(ctx context.Context, req Requirement, args []any) (any, bool, error) {
			return fromFallback, true, nil
		}),
	)

	value, err := r.Resolve(context.Background(), Require[*temperatureService](Default(&temperatureService{stamp: 9})))
	require.NoError(t, err)
	assert.Same(t, fromFallback, value)
}

func TestResolve_Recursive(t *testing.T) {
	r := New()
	var constructions atomic.Int32
	provideTemperature(t, r, &constructions)

	type station struct {
		temp *temperatureService
	}

	_, err := Provide(r, Transient, func(ctx context.Context) (*station, Teardown, error) {
		temp, err := ResolveAs[*temperatureService](ctx, r)
		if err != nil {
			return nil, nil, err
		}

		return &station{temp: temp}, nil, nil
	})
	require.NoError(t, err)

	ctx := context.Background()

	first, err := r.Resolve(ctx, Require[*station]())
	require.NoError(t, err)

	second, err := r.Resolve(ctx, Require[*station]())
	require.NoError(t, err)

	// The dependency's singleton scope applies transitively.
	assert.NotSame(t, first, second)
	assert.Same(t, first.(*station).temp, second.(*station).temp)
	assert.Equal(t, int32(1), constructions.Load())
}

func TestResolve_CircularResolution(t *testing.T) {
	r := New()

	type loop struct{}

	_, err := Provide(r, Singleton, func(ctx context.Context) (*loop, Teardown, error) {
		if _, err := r.Resolve(ctx, Require[*loop]()); err != nil {
			return nil, nil, err
		}

		return &loop{}, nil, nil
	})
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), Require[*loop]())
	assert.ErrorIs(t, err, ErrCircularResolution)
}

func TestDefinitions_Inspect(t *testing.T) {
	r := New()
	var constructions atomic.Int32
	provideTemperature(t, r, &constructions)
	provideClosable(t, r, ContextScoped, WithName("session"))

	defs := r.Definitions()
	require.Len(t, defs, 2)

	info := defs[0].Inspect()
	assert.Equal(t, Singleton, info.Scope)
	assert.Equal(t, "*moor.temperatureService", info.Produced)
	assert.False(t, info.Live)

	_, err := r.Resolve(context.Background(), Require[*temperatureService]())
	require.NoError(t, err)
	assert.True(t, defs[0].Inspect().Live)

	named := defs[1].Inspect()
	assert.Equal(t, "session", named.Name)
	assert.Equal(t, ContextScoped, named.Scope)
}
