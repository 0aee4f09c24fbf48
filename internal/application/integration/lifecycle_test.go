package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizhub/integrations/internal/domain/dependency"
	"github.com/bizhub/integrations/internal/domain/integration"
	"github.com/bizhub/integrations/internal/domain/shared"
)

func TestRegistry_RegisterIntegration(t *testing.T) {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	r, rec := newTestRegistry(t, WithClock(func() time.Time { return at }))

	in := def("Stripe")
	in.IsEnabled = true
	in.Status = integration.StatusActive
	require.NoError(t, r.RegisterIntegration(context.Background(), in))

	// the definition is normalized in place
	assert.Equal(t, "stripe", in.ID)

	stored, err := r.GetIntegration("stripe")
	require.NoError(t, err)
	assert.False(t, stored.IsEnabled)
	assert.Equal(t, integration.StatusInactive, stored.Status)
	assert.Equal(t, integration.HealthStatusUnknown, stored.Health.Status)
	assert.Equal(t, at, stored.CreatedAt)
	assert.Equal(t, at, stored.UpdatedAt)

	events := rec.ofType(integration.EventTypeIntegrationRegistered)
	require.Len(t, events, 1)
	assert.Equal(t, "stripe", events[0].AggregateID())
}

func TestRegistry_RegisterIntegration_Invalid(t *testing.T) {
	r, rec := newTestRegistry(t)

	in := def("a")
	in.Name = ""
	err := r.RegisterIntegration(context.Background(), in)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	assert.Empty(t, r.GetAllIntegrations())
	assert.Empty(t, rec.ofType(integration.EventTypeIntegrationRegistered))
}

func TestRegistry_RegisterIntegration_DuplicateLeavesExistingEntry(t *testing.T) {
	r, _ := newTestRegistry(t)
	mustRegister(t, r, def("a"))

	dup := def("a")
	dup.Name = "Replacement"
	err := r.RegisterIntegration(context.Background(), dup)
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	stored, err := r.GetIntegration("a")
	require.NoError(t, err)
	assert.Equal(t, "Integration a", stored.Name)
	assert.Len(t, r.GetAllIntegrations(), 1)
}

func TestRegistry_RegisterIntegration_ConflictWithEnabled(t *testing.T) {
	r, rec := newTestRegistry(t)
	mustRegister(t, r, def("a"))
	mustEnable(t, r, "a")
	rec.reset()

	c := def("c")
	c.Conflicts = []string{"a"}
	err := r.RegisterIntegration(context.Background(), c)
	require.ErrorIs(t, err, integration.ErrIntegrationConflict)
	assert.Contains(t, err.Error(), "a")

	for _, in := range r.GetAllIntegrations() {
		assert.NotEqual(t, "c", in.ID)
	}
	assert.Empty(t, r.GetDependents("c"))
	assert.Empty(t, rec.ofType(integration.EventTypeIntegrationRegistered))
}

func TestRegistry_RegisterIntegration_ConflictNamedByEnabled(t *testing.T) {
	r, _ := newTestRegistry(t)
	a := def("a")
	a.Conflicts = []string{"d"}
	mustRegister(t, r, a)
	mustEnable(t, r, "a")

	err := r.RegisterIntegration(context.Background(), def("d"))
	assert.ErrorIs(t, err, integration.ErrIntegrationConflict)
}

func TestRegistry_RegisterIntegration_ConflictWithDisabledIsAllowed(t *testing.T) {
	r, _ := newTestRegistry(t)
	mustRegister(t, r, def("a"))

	c := def("c")
	c.Conflicts = []string{"a"}
	assert.NoError(t, r.RegisterIntegration(context.Background(), c))
}

func TestRegistry_RegisterIntegration_InstallHookFailureLeavesNoTrace(t *testing.T) {
	r, rec := newTestRegistry(t)
	boom := errors.New("remote setup failed")

	in := def("b", requires("a"))
	in.Category = integration.CategoryCRM
	in.Conflicts = []string{"x"}
	in.Hooks.OnInstall = func(context.Context, *integration.Integration) error { return boom }

	err := r.RegisterIntegration(context.Background(), in)
	require.ErrorIs(t, err, integration.ErrHookFailed)
	assert.ErrorIs(t, err, boom)

	_, err = r.GetIntegration("b")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Empty(t, r.GetIntegrationsByCategory(integration.CategoryCRM))
	assert.Empty(t, r.GetDependents("a"))
	assert.Empty(t, rec.ofType(integration.EventTypeIntegrationRegistered))

	in.Hooks.OnInstall = nil
	assert.NoError(t, r.RegisterIntegration(context.Background(), in))
}

func TestRegistry_RegisterIntegration_HookSeesSnapshot(t *testing.T) {
	r, _ := newTestRegistry(t)
	in := def("a")
	var seen string
	in.Hooks.OnInstall = func(_ context.Context, snapshot *integration.Integration) error {
		seen = snapshot.ID
		snapshot.Name = "mutated"
		return nil
	}
	mustRegister(t, r, in)

	stored, err := r.GetIntegration("a")
	require.NoError(t, err)
	assert.Equal(t, "a", seen)
	assert.Equal(t, "Integration a", stored.Name)
}

func TestRegistry_RegisterIntegration_CancelledContext(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.RegisterIntegration(ctx, def("a"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, r.GetAllIntegrations())
}

func TestRegistry_EnableIntegration_EnablesDependenciesFirst(t *testing.T) {
	r, rec := newTestRegistry(t)
	mustRegister(t, r, def("a"), def("b", requires("a")))

	mustEnable(t, r, "b")

	assert.True(t, isEnabled(t, r, "a"))
	assert.True(t, isEnabled(t, r, "b"))
	assert.Equal(t, []string{"a", "b"}, rec.enabledOrder())

	events := rec.ofType(integration.EventTypeIntegrationEnabled)
	cascade := events[0].(*integration.IntegrationEnabledEvent)
	assert.Equal(t, "b", cascade.TriggeredBy)
	assert.True(t, cascade.IsCascade())
	assert.False(t, events[1].(*integration.IntegrationEnabledEvent).IsCascade())

	stored, err := r.GetIntegration("b")
	require.NoError(t, err)
	assert.Equal(t, integration.StatusActive, stored.Status)
}

func TestRegistry_EnableIntegration_ChainEnablesBottomUp(t *testing.T) {
	r, rec := newTestRegistry(t)
	mustRegister(t, r, def("a", requires("b")), def("b", requires("c")), def("c"))

	mustEnable(t, r, "a")

	assert.Equal(t, []string{"c", "b", "a"}, rec.enabledOrder())
	assert.Len(t, r.GetEnabledIntegrations(), 3)
}

func TestRegistry_EnableIntegration_OptionalDependenciesAreNotCascaded(t *testing.T) {
	r, _ := newTestRegistry(t)
	mustRegister(t, r, def("a"), def("b", optional("a")))

	mustEnable(t, r, "b")

	assert.False(t, isEnabled(t, r, "a"))
	assert.True(t, isEnabled(t, r, "b"))
}

func TestRegistry_EnableIntegration_AlreadyEnabledIsNoop(t *testing.T) {
	r, rec := newTestRegistry(t)
	calls := 0
	in := def("a")
	in.Hooks.OnEnable = func(context.Context, *integration.Integration) error {
		calls++
		return nil
	}
	mustRegister(t, r, in)
	mustEnable(t, r, "a")
	mustEnable(t, r, "a")

	assert.Equal(t, 1, calls)
	assert.Len(t, rec.ofType(integration.EventTypeIntegrationEnabled), 1)
}

func TestRegistry_EnableIntegration_Unknown(t *testing.T) {
	r, _ := newTestRegistry(t)
	assert.ErrorIs(t, r.EnableIntegration(context.Background(), "ghost"), shared.ErrNotFound)
}

func TestRegistry_EnableIntegration_UnregisteredDependency(t *testing.T) {
	r, rec := newTestRegistry(t)
	mustRegister(t, r, def("b", requires("a")), def("c", requires("b")))

	err := r.EnableIntegration(context.Background(), "c")
	require.ErrorIs(t, err, integration.ErrMissingDependency)
	assert.Contains(t, err.Error(), "a")

	assert.False(t, isEnabled(t, r, "b"))
	assert.False(t, isEnabled(t, r, "c"))
	assert.Empty(t, rec.enabledOrder())
}

func TestRegistry_EnableIntegration_Cycle(t *testing.T) {
	r, _ := newTestRegistry(t)
	mustRegister(t, r, def("a", requires("b")), def("b", requires("c")), def("c", requires("a")))

	err := r.EnableIntegration(context.Background(), "a")
	assert.ErrorIs(t, err, dependency.ErrCircularDependency)
	assert.Empty(t, r.GetEnabledIntegrations())
}

func TestRegistry_EnableIntegration_ConflictCheck(t *testing.T) {
	setup := func(t *testing.T, opts ...Option) *Registry {
		r, _ := newTestRegistry(t, opts...)
		b := def("b")
		b.Conflicts = []string{"a"}
		mustRegister(t, r, def("a"), b)
		mustEnable(t, r, "a")
		return r
	}

	t.Run("enforced by default", func(t *testing.T) {
		r := setup(t)
		err := r.EnableIntegration(context.Background(), "b")
		assert.ErrorIs(t, err, integration.ErrIntegrationConflict)
		assert.False(t, isEnabled(t, r, "b"))
	})

	t.Run("switched off", func(t *testing.T) {
		r := setup(t, WithConflictCheckOnEnable(false))
		assert.NoError(t, r.EnableIntegration(context.Background(), "b"))
		assert.True(t, isEnabled(t, r, "b"))
	})
}

func TestRegistry_EnableIntegration_ConflictInsideCascade(t *testing.T) {
	r, _ := newTestRegistry(t)
	b := def("b")
	b.Conflicts = []string{"a"}
	mustRegister(t, r, def("a"), b, def("c", requires("a"), requires("b")))

	err := r.EnableIntegration(context.Background(), "c")
	assert.ErrorIs(t, err, integration.ErrIntegrationConflict)
	assert.Empty(t, r.GetEnabledIntegrations())
}

func TestRegistry_EnableIntegration_HookFailureStopsCascade(t *testing.T) {
	r, rec := newTestRegistry(t)
	boom := errors.New("provisioning failed")
	b := def("b", requires("a"))
	b.Hooks.OnEnable = func(context.Context, *integration.Integration) error { return boom }
	mustRegister(t, r, def("a"), b)

	err := r.EnableIntegration(context.Background(), "b")
	require.ErrorIs(t, err, integration.ErrHookFailed)
	assert.ErrorIs(t, err, boom)

	assert.True(t, isEnabled(t, r, "a"))
	assert.False(t, isEnabled(t, r, "b"))
	assert.Equal(t, []string{"a"}, rec.enabledOrder())
}

func TestRegistry_Hooks_Timeout(t *testing.T) {
	r, _ := newTestRegistry(t, WithHookTimeout(20*time.Millisecond))
	in := def("slow")
	in.Hooks.OnEnable = func(ctx context.Context, _ *integration.Integration) error {
		<-ctx.Done()
		return ctx.Err()
	}
	mustRegister(t, r, in)

	err := r.EnableIntegration(context.Background(), "slow")
	require.ErrorIs(t, err, integration.ErrHookFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, isEnabled(t, r, "slow"))
}

func TestRegistry_Hooks_IgnoringContextIsAbandoned(t *testing.T) {
	r, _ := newTestRegistry(t, WithHookTimeout(20*time.Millisecond))
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	in := def("stuck")
	in.Hooks.OnEnable = func(context.Context, *integration.Integration) error {
		<-release
		return nil
	}
	mustRegister(t, r, in)

	err := r.EnableIntegration(context.Background(), "stuck")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegistry_Hooks_Panic(t *testing.T) {
	r, _ := newTestRegistry(t)
	in := def("a")
	in.Hooks.OnEnable = func(context.Context, *integration.Integration) error { panic("bad hook") }
	mustRegister(t, r, in)

	err := r.EnableIntegration(context.Background(), "a")
	require.ErrorIs(t, err, integration.ErrHookFailed)
	assert.Contains(t, err.Error(), "bad hook")
}

func TestRegistry_DisableIntegration_BlockedByRequiredDependent(t *testing.T) {
	r, rec := newTestRegistry(t)
	mustRegister(t, r, def("a"), def("b", requires("a")))
	mustEnable(t, r, "b")

	err := r.DisableIntegration(context.Background(), "a")
	require.ErrorIs(t, err, integration.ErrHasDependents)
	assert.Contains(t, err.Error(), "b")

	assert.True(t, isEnabled(t, r, "a"))
	assert.True(t, isEnabled(t, r, "b"))
	assert.Empty(t, rec.ofType(integration.EventTypeIntegrationDisabled))
	assert.False(t, r.AnalyzeDisableImpact("a").CanDisable)
}

func TestRegistry_DisableIntegration_OptionalDependentsDoNotBlock(t *testing.T) {
	r, rec := newTestRegistry(t)
	mustRegister(t, r, def("a"), def("b", optional("a")))
	mustEnable(t, r, "a", "b")

	impact := r.AnalyzeDisableImpact("a")
	assert.True(t, impact.CanDisable)
	assert.Equal(t, []string{"b"}, impact.DirectDependents)

	require.NoError(t, r.DisableIntegration(context.Background(), "a"))
	assert.False(t, isEnabled(t, r, "a"))
	assert.True(t, isEnabled(t, r, "b"))
	assert.Len(t, rec.ofType(integration.EventTypeIntegrationDisabled), 1)
}

func TestRegistry_DisableIntegration_Required(t *testing.T) {
	r, _ := newTestRegistry(t)
	core := def("core")
	core.IsRequired = true
	mustRegister(t, r, core)
	mustEnable(t, r, "core")

	err := r.DisableIntegration(context.Background(), "core")
	assert.ErrorIs(t, err, integration.ErrRequiredIntegration)
	assert.True(t, isEnabled(t, r, "core"))
}

func TestRegistry_DisableIntegration_AlreadyDisabledIsNoop(t *testing.T) {
	r, rec := newTestRegistry(t)
	mustRegister(t, r, def("a"))

	assert.NoError(t, r.DisableIntegration(context.Background(), "a"))
	assert.Empty(t, rec.ofType(integration.EventTypeIntegrationDisabled))
}

func TestRegistry_DisableIntegration_HookFailureLeavesEnabled(t *testing.T) {
	r, _ := newTestRegistry(t)
	in := def("a")
	in.Hooks.OnDisable = func(context.Context, *integration.Integration) error { return errors.New("nope") }
	mustRegister(t, r, in)
	mustEnable(t, r, "a")

	err := r.DisableIntegration(context.Background(), "a")
	assert.ErrorIs(t, err, integration.ErrHookFailed)
	assert.True(t, isEnabled(t, r, "a"))
	assert.Equal(t, []string{"a"}, idsOf(r.GetEnabledIntegrations()))
}

func TestRegistry_UnregisterIntegration(t *testing.T) {
	r, rec := newTestRegistry(t)
	uninstalled := false
	a := def("a")
	a.Hooks.OnUninstall = func(context.Context, *integration.Integration) error {
		uninstalled = true
		return nil
	}
	mustRegister(t, r, a, def("b", optional("a")))

	t.Run("blocked by any registered dependent", func(t *testing.T) {
		err := r.UnregisterIntegration(context.Background(), "a")
		require.ErrorIs(t, err, integration.ErrHasDependents)
		assert.Contains(t, err.Error(), "b")
		assert.False(t, uninstalled)
	})

	t.Run("unknown id", func(t *testing.T) {
		assert.ErrorIs(t, r.UnregisterIntegration(context.Background(), "ghost"), shared.ErrNotFound)
	})

	t.Run("purges every index", func(t *testing.T) {
		require.NoError(t, r.UnregisterIntegration(context.Background(), "b"))
		require.NoError(t, r.UnregisterIntegration(context.Background(), "a"))

		assert.True(t, uninstalled)
		assert.Empty(t, r.GetAllIntegrations())
		assert.Empty(t, r.GetIntegrationsByCategory(integration.CategoryProductivity))
		assert.Empty(t, r.ValidateDependencyGraph())
		assert.Len(t, rec.ofType(integration.EventTypeIntegrationUnregistered), 2)
	})

	t.Run("id can be registered again", func(t *testing.T) {
		assert.NoError(t, r.RegisterIntegration(context.Background(), def("a")))
	})
}

func TestRegistry_UnregisterIntegration_HookFailure(t *testing.T) {
	r, _ := newTestRegistry(t)
	a := def("a")
	a.Hooks.OnUninstall = func(context.Context, *integration.Integration) error { return errors.New("busy") }
	mustRegister(t, r, a)

	err := r.UnregisterIntegration(context.Background(), "a")
	assert.ErrorIs(t, err, integration.ErrHookFailed)
	_, err = r.GetIntegration("a")
	assert.NoError(t, err)
}

func TestRegistry_ConcurrentMutations(t *testing.T) {
	r, _ := newTestRegistry(t)
	mustRegister(t, r, def("base"))
	const n = 20
	for i := 0; i < n; i++ {
		mustRegister(t, r, def(fmt.Sprintf("leaf-%d", i), requires("base")))
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.EnableIntegration(context.Background(), fmt.Sprintf("leaf-%d", i))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	assert.Len(t, r.GetEnabledIntegrations(), n+1)
	assert.Empty(t, r.GetMissingDependencies("leaf-0"))
	assert.Len(t, r.GetEnabledDependents("base"), n)
}

func idsOf(items []*integration.Integration) []string {
	ids := make([]string, 0, len(items))
	for _, in := range items {
		ids = append(ids, in.ID)
	}
	return ids
}

func TestRegistry_IDsAreCaseInsensitive(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	mustRegister(t, r, def("Stripe"))

	in, err := r.GetIntegration("Stripe")
	require.NoError(t, err)
	assert.Equal(t, "stripe", in.ID)

	require.NoError(t, r.EnableIntegration(ctx, " STRIPE "))
	assert.True(t, isEnabled(t, r, "stripe"))

	health, err := r.CheckIntegrationHealth(ctx, "Stripe")
	require.NoError(t, err)
	assert.Contains(t, health, "stripe")

	require.NoError(t, r.DisableIntegration(ctx, "Stripe"))
	assert.False(t, isEnabled(t, r, "stripe"))

	require.NoError(t, r.UnregisterIntegration(ctx, "Stripe"))
	_, err = r.GetIntegration("stripe")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRegistry_EventsFollowMutationOrder(t *testing.T) {
	// every timestamp is taken under the registry mutex, so a strictly
	// increasing clock numbers the mutations
	var tick atomic.Int64
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	r, rec := newTestRegistry(t, WithClock(func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Millisecond)
	}))

	const workers, rounds = 8, 25
	for i := 0; i < workers; i++ {
		mustRegister(t, r, def(fmt.Sprintf("svc-%d", i)))
	}
	rec.reset()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("svc-%d", i)
			for j := 0; j < rounds; j++ {
				assert.NoError(t, r.EnableIntegration(context.Background(), id))
				assert.NoError(t, r.DisableIntegration(context.Background(), id))
			}
		}()
	}
	wg.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.events, workers*rounds*2)
	for i := 1; i < len(rec.events); i++ {
		prev, cur := rec.events[i-1].OccurredAt(), rec.events[i].OccurredAt()
		require.False(t, cur.Before(prev), "event %d (%s) delivered after a later mutation", i, rec.events[i].EventType())
	}
}

// cascadeHandler enables target whenever trigger is enabled
type cascadeHandler struct {
	r       *Registry
	trigger string
	target  string
	err     error
}

func (h *cascadeHandler) Handle(ctx context.Context, evt shared.DomainEvent) error {
	if e, ok := evt.(*integration.IntegrationEnabledEvent); ok && e.IntegrationID == h.trigger {
		h.err = h.r.EnableIntegration(ctx, h.target)
	}
	return nil
}

func (h *cascadeHandler) EventTypes() []string {
	return []string{integration.EventTypeIntegrationEnabled}
}

func TestRegistry_EventHandlerMayCallBack(t *testing.T) {
	r, rec := newTestRegistry(t)
	mustRegister(t, r, def("a"), def("b"))
	handler := &cascadeHandler{r: r, trigger: "a", target: "b"}
	r.Subscribe(handler)

	done := make(chan error, 1)
	go func() { done <- r.EnableIntegration(context.Background(), "a") }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("enable deadlocked on a handler calling back into the registry")
	}
	require.NoError(t, handler.err)
	assert.True(t, isEnabled(t, r, "b"))
	assert.Equal(t, []string{"a", "b"}, rec.enabledOrder())
}
