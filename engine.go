package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	internalaudit "github.com/repclub/guard/internal/audit"
	"github.com/repclub/guard/permission"
)

// Engine is the policy engine. Build one via [Builder]; it is safe for
// concurrent use after construction and holds no per-principal state.
type Engine struct {
	config  Config
	audit   *internalaudit.Dispatcher
	metrics *Metrics
	clock   func() time.Time
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports how many audit events were discarded under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

// layerCheck is the uniform layer interface: every layer, including the
// trivially synchronous ones, takes a context and returns a verdict, so
// composition and fail-fast short-circuiting stay uniform.
type layerCheck struct {
	layer  Layer
	metric MetricID
	run    func(ctx context.Context) (ok bool, reason string, detail map[string]any, err error)
}

// CheckAccess evaluates the configured layers in strict order and stops
// at the first failure: authentication, MFA requirement, permission
// membership, minimum role level, resource ownership, custom predicate.
// Later layers are never evaluated after a denial, which both skips
// costly ownership lookups and pinpoints the exact failure cause for the
// audit record. Expected denials are returned as structured results,
// never as errors.
func (e *Engine) CheckAccess(ctx context.Context, p Principal, cfg CheckConfig) SecurityCheckResult {
	start := e.now()

	result := e.evaluate(ctx, p, cfg)

	if result.Passed {
		e.metricInc(MetricCheckPassed)
	} else {
		e.metricInc(MetricCheckDenied)
	}
	e.metrics.Observe(MetricCheckLatency, e.now().Sub(start))
	e.emitCheckAudit(ctx, p, cfg, result)

	return result
}

func (e *Engine) evaluate(ctx context.Context, p Principal, cfg CheckConfig) SecurityCheckResult {
	layers := []layerCheck{
		{
			layer:  LayerAuthentication,
			metric: MetricAuthenticationFailure,
			run: func(context.Context) (bool, string, map[string]any, error) {
				if p.SessionValidUntil.IsZero() {
					return false, "no valid session", nil, ErrAuthenticationFailed
				}
				if !e.now().Before(p.SessionValidUntil) {
					return false, "session expired", nil, ErrSessionExpired
				}
				return true, "", nil, nil
			},
		},
		{
			layer:  LayerMFA,
			metric: MetricMFABlocked,
			run: func(context.Context) (bool, string, map[string]any, error) {
				if !cfg.RequireMFA && !p.MFARequired {
					return true, "", nil, nil
				}
				if !p.MFAVerified {
					return false, "mfa verification required", nil, ErrMFARequired
				}
				return true, "", nil, nil
			},
		},
		{
			layer:  LayerPermission,
			metric: MetricPermissionDenied,
			run: func(context.Context) (bool, string, map[string]any, error) {
				if cfg.Permission.IsZero() {
					return true, "", nil, nil
				}
				if !cfg.Permission.Valid() {
					e.metricInc(MetricValidationFailure)
					return false, "malformed permission requirement", map[string]any{
						"permission": cfg.Permission.Raw(),
					}, ErrValidation
				}
				if !p.Permissions.Has(cfg.Permission) {
					return false, "missing permission", map[string]any{
						"permission": cfg.Permission.String(),
					}, ErrPermissionDenied
				}
				return true, "", nil, nil
			},
		},
		{
			layer:  LayerRoleLevel,
			metric: MetricRoleLevelDenied,
			run: func(context.Context) (bool, string, map[string]any, error) {
				if cfg.MinimumRoleLevel <= 0 {
					return true, "", nil, nil
				}
				if p.RoleLevel < cfg.MinimumRoleLevel {
					return false, "role level too low", map[string]any{
						"minimumRoleLevel": cfg.MinimumRoleLevel,
						"currentLevel":     p.RoleLevel,
					}, ErrInsufficientRoleLevel
				}
				return true, "", nil, nil
			},
		},
		{
			layer:  LayerOwnership,
			metric: MetricOwnershipDenied,
			run: func(context.Context) (bool, string, map[string]any, error) {
				if cfg.Resource == nil {
					return true, "", nil, nil
				}
				res := ValidateOwnership(p, *cfg.Resource)
				if !res.Passed {
					return false, res.Reason, res.Context, res.Err
				}
				return true, "", nil, nil
			},
		},
		{
			layer:  LayerCustom,
			metric: MetricCustomDenied,
			run: func(ctx context.Context) (bool, string, map[string]any, error) {
				if cfg.Custom == nil {
					return true, "", nil, nil
				}
				ok, reason, err := cfg.Custom(ctx, p)
				if err != nil {
					return false, fmt.Sprintf("custom check error: %v", err), nil, ErrCheckFailed
				}
				if !ok {
					if reason == "" {
						reason = "custom check denied"
					}
					return false, reason, nil, ErrCheckFailed
				}
				return true, "", nil, nil
			},
		},
	}

	for _, lc := range layers {
		ok, reason, detail, err := lc.run(ctx)
		if ok {
			continue
		}
		e.metricInc(lc.metric)
		return SecurityCheckResult{
			Layer:   lc.layer,
			Reason:  reason,
			Context: detail,
			Err:     err,
		}
	}

	return SecurityCheckResult{Passed: true, Layer: LayerNone}
}

// HasPermission is the synchronous convenience form of the permission
// layer, for conditional UI and pre-checks. It uses exactly the same
// exact-match logic as CheckAccess so the two can never diverge.
func (e *Engine) HasPermission(p Principal, perm permission.Permission) bool {
	return p.Permissions.Has(perm)
}

// HasMinimumRole mirrors the role-level layer.
func (e *Engine) HasMinimumRole(p Principal, level int) bool {
	return p.RoleLevel >= level
}

// WithSecurityCheck runs CheckAccess and, only on success, invokes fn.
// A denial is returned as an *AccessError without calling fn. An error
// (or panic) from fn itself is a different animal: the caller was
// authorized, so the failure is recorded as a security incident with a
// unique incident id before being returned or re-raised unchanged.
func (e *Engine) WithSecurityCheck(ctx context.Context, p Principal, cfg CheckConfig, fn func(ctx context.Context) error) error {
	if e == nil {
		return ErrEngineNotReady
	}

	result := e.CheckAccess(ctx, p, cfg)
	if !result.Passed {
		return &AccessError{Result: result}
	}

	defer func() {
		if r := recover(); r != nil {
			e.metricInc(MetricIncident)
			e.emitIncident(ctx, p, cfg, uuid.NewString(), fmt.Sprintf("panic during authorized operation: %v", r))
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		e.metricInc(MetricIncident)
		e.emitIncident(ctx, p, cfg, uuid.NewString(), "error during authorized operation: "+err.Error())
		return err
	}
	return nil
}
