package integration

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bizhub/integrations/internal/domain/integration"
	"github.com/bizhub/integrations/internal/domain/shared"
	"github.com/bizhub/integrations/internal/infrastructure/telemetry"
)

const (
	opRegister   = "register"
	opUnregister = "unregister"
	opEnable     = "enable"
	opDisable    = "disable"

	hookInstall   = "on_install"
	hookUninstall = "on_uninstall"
	hookEnable    = "on_enable"
	hookDisable   = "on_disable"
)

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

// RegisterIntegration validates in (normalizing it in place), rejects it when
// it conflicts with an enabled integration, runs OnInstall and only then
// commits it to every index. Integrations always enter the registry disabled;
// a hook failure leaves no trace.
func (r *Registry) RegisterIntegration(ctx context.Context, in *integration.Integration) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.validator.Validate(in); err != nil {
		return err
	}

	ctx, span := r.startSpan(ctx, opRegister, telemetry.SpanAttrIntegrationID, in.ID)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
		r.metrics.RecordTransition(ctx, opRegister, in.ID, err)
	}()

	r.mu.Lock()
	if _, exists := r.integrations[in.ID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: integration %s is already registered", shared.ErrAlreadyExists, in.ID)
	}
	if blocking := r.enabledConflicts(in.ID, in.Conflicts); len(blocking) > 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s conflicts with enabled %s", integration.ErrIntegrationConflict, in.ID, strings.Join(blocking, ", "))
	}

	at := r.now()
	stored := in.Clone()
	stored.IsEnabled = false
	stored.Status = integration.StatusInactive
	stored.Health = integration.UnknownHealth()
	stored.CreatedAt = at
	stored.UpdatedAt = at

	if err := r.runHook(ctx, hookInstall, stored, stored.Hooks.OnInstall); err != nil {
		r.mu.Unlock()
		return err
	}

	r.integrations[stored.ID] = stored
	r.order = append(r.order, stored.ID)
	r.categories[stored.Category] = append(r.categories[stored.Category], stored.ID)
	if len(stored.Conflicts) > 0 {
		r.conflicts[stored.ID] = slices.Clone(stored.Conflicts)
	}
	if len(stored.Enhances) > 0 {
		r.enhancements[stored.ID] = slices.Clone(stored.Enhances)
	}
	r.graph.RegisterDependencies(stored.ID, stored.Dependencies)
	r.queueEvents(ctx, integration.NewIntegrationRegisteredEvent(stored, at))
	r.mu.Unlock()

	r.log(ctx).Info("integration registered",
		zap.String("integration_id", stored.ID),
		zap.String("category", stored.Category.String()),
		zap.String("version", stored.Version),
	)
	r.flushEvents()
	return nil
}

// UnregisterIntegration removes id from the registry. It fails while any
// registered integration, enabled or not, still depends on id.
func (r *Registry) UnregisterIntegration(ctx context.Context, id string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	id = canonicalID(id)
	ctx, span := r.startSpan(ctx, opUnregister, telemetry.SpanAttrIntegrationID, id)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
		r.metrics.RecordTransition(ctx, opUnregister, id, err)
	}()

	r.mu.Lock()
	stored, ok := r.integrations[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: integration %s", shared.ErrNotFound, id)
	}
	if dependents := r.graph.GetDependents(id); len(dependents) > 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: cannot unregister %s, required by %s", integration.ErrHasDependents, id, strings.Join(dependents, ", "))
	}
	if err := r.runHook(ctx, hookUninstall, stored, stored.Hooks.OnUninstall); err != nil {
		r.mu.Unlock()
		return err
	}

	at := r.now()
	delete(r.integrations, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	r.categories[stored.Category] = slices.DeleteFunc(r.categories[stored.Category], func(s string) bool { return s == id })
	if len(r.categories[stored.Category]) == 0 {
		delete(r.categories, stored.Category)
	}
	delete(r.conflicts, id)
	delete(r.enhancements, id)
	r.graph.UnregisterDependencies(id)
	delete(r.content, id)
	r.featureOrder = slices.DeleteFunc(r.featureOrder, func(featureID string) bool {
		if !r.features[featureID].Involves(id) {
			return false
		}
		delete(r.features, featureID)
		return true
	})

	r.queueEvents(ctx, integration.NewIntegrationUnregisteredEvent(id, at))
	if evt := r.refreshFeatures(at); evt != nil {
		r.queueEvents(ctx, evt)
	}
	enabled := r.enabledCount()
	r.mu.Unlock()

	r.metrics.RecordEnabledCount(ctx, enabled)
	r.log(ctx).Info("integration unregistered", zap.String("integration_id", id))
	r.flushEvents()
	return nil
}

// ---------------------------------------------------------------------------
// Enable / disable
// ---------------------------------------------------------------------------

// EnableIntegration enables id after every required dependency, walking the
// installation order so that dependencies are enabled strictly first. The
// whole chain is checked for unregistered dependencies and, unless disabled,
// conflicts before anything changes. A hook failure stops the cascade; steps
// already enabled stay enabled. Enabling an enabled integration is a no-op.
func (r *Registry) EnableIntegration(ctx context.Context, id string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	id = canonicalID(id)
	ctx, span := r.startSpan(ctx, opEnable, telemetry.SpanAttrIntegrationID, id)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
		r.metrics.RecordTransition(ctx, opEnable, id, err)
	}()

	r.mu.Lock()
	stored, ok := r.integrations[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: integration %s", shared.ErrNotFound, id)
	}
	if stored.IsEnabled {
		r.mu.Unlock()
		r.log(ctx).Warn("integration already enabled", zap.String("integration_id", id))
		return nil
	}

	plan, err := r.enablePlan(id)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	telemetry.AddEvent(span, "enable plan",
		telemetry.SpanAttrTargets, plan,
		telemetry.SpanAttrCascade, len(plan) > 1,
	)

	var (
		events  []shared.DomainEvent
		stepErr error
		at      time.Time
	)
	for _, step := range plan {
		target := r.integrations[step]
		if err := r.runHook(ctx, hookEnable, target, target.Hooks.OnEnable); err != nil {
			stepErr = err
			break
		}
		at = r.now()
		target.MarkEnabled(at)
		r.graph.SetEnabled(step, true)

		events = append(events, integration.NewIntegrationEnabledEvent(step, id, at))
	}
	if len(events) > 0 {
		if evt := r.refreshFeatures(at); evt != nil {
			events = append(events, evt)
		}
	}
	r.queueEvents(ctx, events...)
	enabled := r.enabledCount()
	r.mu.Unlock()

	r.metrics.RecordEnabledCount(ctx, enabled)
	for _, evt := range events {
		if e, ok := evt.(*integration.IntegrationEnabledEvent); ok {
			r.log(ctx).Info("integration enabled",
				zap.String("integration_id", e.IntegrationID),
				zap.String("triggered_by", e.TriggeredBy),
			)
		}
	}
	r.flushEvents()
	return stepErr
}

// enablePlan returns the not yet enabled members of id's installation order.
// Must be called with r.mu held.
func (r *Registry) enablePlan(id string) ([]string, error) {
	order, err := r.graph.GetInstallationOrder([]string{id})
	if err != nil {
		return nil, err
	}

	plan := make([]string, 0, len(order))
	for _, step := range order {
		if _, ok := r.integrations[step]; !ok {
			return nil, fmt.Errorf("%w: %s requires %s, which is not registered", integration.ErrMissingDependency, id, step)
		}
		if !r.isEnabled(step) {
			plan = append(plan, step)
		}
	}

	if r.enforceConflicts {
		for i, step := range plan {
			blocking := r.enabledConflicts(step, r.integrations[step].Conflicts)
			for _, earlier := range plan[:i] {
				if r.integrations[step].ConflictsWith(earlier) || r.integrations[earlier].ConflictsWith(step) {
					blocking = append(blocking, earlier)
				}
			}
			if len(blocking) > 0 {
				return nil, fmt.Errorf("%w: %s conflicts with %s", integration.ErrIntegrationConflict, step, strings.Join(blocking, ", "))
			}
		}
	}
	return plan, nil
}

// DisableIntegration disables id. It is refused for integrations marked
// required and while an enabled dependent holds a required edge to id;
// optional dependents stay enabled. Disabling a disabled integration is a no-op.
func (r *Registry) DisableIntegration(ctx context.Context, id string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	id = canonicalID(id)
	ctx, span := r.startSpan(ctx, opDisable, telemetry.SpanAttrIntegrationID, id)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
		r.metrics.RecordTransition(ctx, opDisable, id, err)
	}()

	r.mu.Lock()
	stored, ok := r.integrations[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: integration %s", shared.ErrNotFound, id)
	}
	if !stored.IsEnabled {
		r.mu.Unlock()
		r.log(ctx).Warn("integration already disabled", zap.String("integration_id", id))
		return nil
	}
	if stored.IsRequired {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", integration.ErrRequiredIntegration, id)
	}
	if impact := r.graph.AnalyzeDisableImpact(id); !impact.CanDisable {
		r.mu.Unlock()
		return fmt.Errorf("%w: cannot disable %s, required by %s", integration.ErrHasDependents, id, strings.Join(impact.CriticalImpact, ", "))
	}
	if err := r.runHook(ctx, hookDisable, stored, stored.Hooks.OnDisable); err != nil {
		r.mu.Unlock()
		return err
	}

	at := r.now()
	stored.MarkDisabled(at)
	r.graph.SetEnabled(id, false)
	r.queueEvents(ctx, integration.NewIntegrationDisabledEvent(id, at))
	if evt := r.refreshFeatures(at); evt != nil {
		r.queueEvents(ctx, evt)
	}
	enabled := r.enabledCount()
	r.mu.Unlock()

	r.metrics.RecordEnabledCount(ctx, enabled)
	r.log(ctx).Info("integration disabled", zap.String("integration_id", id))
	r.flushEvents()
	return nil
}

// enabledConflicts lists the enabled integrations that conflict with id,
// either through id's own list or by naming id in theirs.
// Must be called with r.mu held.
func (r *Registry) enabledConflicts(id string, conflicts []string) []string {
	blocking := make([]string, 0)
	for _, other := range conflicts {
		if r.isEnabled(other) {
			blocking = append(blocking, other)
		}
	}
	for _, other := range r.order {
		if other == id || slices.Contains(blocking, other) || !r.isEnabled(other) {
			continue
		}
		if slices.Contains(r.conflicts[other], id) {
			blocking = append(blocking, other)
		}
	}
	return blocking
}

// ---------------------------------------------------------------------------
// Hooks
// ---------------------------------------------------------------------------

var errHookPanic = errors.New("hook panicked")

// runHook invokes hook with a snapshot of in, bounded by the hook timeout.
// A hook that ignores its context is abandoned once the timeout expires.
func (r *Registry) runHook(ctx context.Context, name string, in *integration.Integration, hook integration.Hook) error {
	if hook == nil {
		return nil
	}

	hctx, cancel := context.WithTimeout(ctx, r.hookTimeout)
	defer cancel()

	snapshot := in.Clone()
	done := make(chan error, 1)
	start := time.Now()
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("%w: %v", errHookPanic, p)
			}
		}()
		done <- hook(hctx, snapshot)
	}()

	var err error
	select {
	case err = <-done:
	case <-hctx.Done():
		err = hctx.Err()
	}
	r.metrics.RecordHook(ctx, name, in.ID, time.Since(start), err)

	if err != nil {
		r.log(ctx).Error("lifecycle hook failed",
			zap.String("integration_id", in.ID),
			zap.String("hook", name),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s %s: %w", integration.ErrHookFailed, in.ID, name, err)
	}
	return nil
}
