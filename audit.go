package guard

import (
	"context"
	"time"

	internalaudit "github.com/repclub/guard/internal/audit"
)

const (
	auditEventAccessGranted    = "access_granted"
	auditEventAccessDenied     = "access_denied"
	auditEventSecurityIncident = "security_incident"
)

func (e *Engine) emitCheckAudit(ctx context.Context, p Principal, cfg CheckConfig, result SecurityCheckResult) {
	if e == nil || e.audit == nil || !cfg.LogAccess {
		return
	}

	eventType := auditEventAccessGranted
	severity := internalaudit.SeverityInfo
	if !result.Passed {
		eventType = auditEventAccessDenied
		severity = internalaudit.SeverityWarning
	}

	event := AuditEvent{
		Timestamp:      e.now(),
		EventType:      eventType,
		UserID:         p.UserID,
		OrganizationID: p.OrganizationID,
		Outcome:        result.Passed,
		Reason:         result.Reason,
		Severity:       severity,
		Metadata: map[string]string{
			"layer": result.Layer.String(),
		},
	}
	if cfg.Resource != nil {
		event.ResourceType = cfg.Resource.ResourceType
		event.ResourceID = cfg.Resource.ResourceID
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitIncident(ctx context.Context, p Principal, cfg CheckConfig, incidentID, reason string) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp:      e.now(),
		EventType:      auditEventSecurityIncident,
		UserID:         p.UserID,
		OrganizationID: p.OrganizationID,
		Outcome:        false,
		Reason:         reason,
		Severity:       internalaudit.SeverityCritical,
		Metadata: map[string]string{
			"incident_id": incidentID,
		},
	}
	if cfg.Resource != nil {
		event.ResourceType = cfg.Resource.ResourceType
		event.ResourceID = cfg.Resource.ResourceID
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}
