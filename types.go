package guard

import (
	"context"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/repclub/guard/internal/audit"
	"github.com/repclub/guard/permission"
)

// Principal is the authenticated identity evaluated by every check. It is
// an immutable snapshot supplied per call by an external identity
// provider; the engine never mutates it and holds no reference after the
// check returns.
type Principal struct {
	UserID         string
	OrganizationID string
	// LocationID is empty for principals not pinned to a single gym
	// location.
	LocationID string
	Role       string
	// RoleLevel ranks roles 1 (member) through 5 (owner).
	RoleLevel   int
	Permissions permission.Set
	MFAVerified bool
	MFARequired bool
	// SessionValidUntil is the authentication horizon. A zero value means
	// no valid session.
	SessionValidUntil time.Time
}

// Layer identifies where check evaluation stopped.
type Layer uint8

const (
	// LayerNone means every configured layer passed.
	LayerNone Layer = iota
	// LayerAuthentication is the session validity check.
	LayerAuthentication
	// LayerMFA is the second-factor requirement check.
	LayerMFA
	// LayerPermission is the exact-match permission membership check.
	LayerPermission
	// LayerRoleLevel is the minimum role level check.
	LayerRoleLevel
	// LayerOwnership is the tenant/owner resource check.
	LayerOwnership
	// LayerCustom is the caller-supplied predicate.
	LayerCustom
)

func (l Layer) String() string {
	switch l {
	case LayerNone:
		return "none"
	case LayerAuthentication:
		return "authentication"
	case LayerMFA:
		return "mfa"
	case LayerPermission:
		return "permission"
	case LayerRoleLevel:
		return "role_level"
	case LayerOwnership:
		return "ownership"
	case LayerCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// SecurityCheckResult is the structured outcome of CheckAccess. Exactly
// one Layer identifies where evaluation stopped; Err carries the matching
// sentinel on denial and is nil when Passed.
type SecurityCheckResult struct {
	Passed  bool
	Layer   Layer
	Reason  string
	Context map[string]any
	Err     error
}

// ResourceOwnershipOptions describes the resource under an ownership
// check. OrganizationID and ResourceType are required; OwnerID may be
// empty when the record has no owner, which fails any check with
// CheckOwnership set.
type ResourceOwnershipOptions struct {
	ResourceID     string
	ResourceType   string
	OwnerID        string
	OrganizationID string
	CheckOwnership bool
}

// CustomCheck is a caller-supplied predicate evaluated as the final
// layer. It may call external services; ctx bounds that work. A non-nil
// error denies at the custom layer.
type CustomCheck func(ctx context.Context, p Principal) (ok bool, reason string, err error)

// CheckConfig enumerates the layers a single CheckAccess call evaluates.
// Zero-valued fields skip their layer; authentication is always checked.
type CheckConfig struct {
	// Permission, when set, must be an exact member of the principal's
	// permission set. Build it with permission.MustParse at the call site
	// so malformed strings fail at startup.
	Permission permission.Permission
	// MinimumRoleLevel, when > 0, requires RoleLevel >= this value.
	MinimumRoleLevel int
	// RequireMFA forces the MFA layer even for principals whose own
	// MFARequired flag is unset.
	RequireMFA bool
	// Resource, when non-nil, runs the ownership layer against it.
	Resource *ResourceOwnershipOptions
	// Custom, when non-nil, runs last.
	Custom CustomCheck
	// LogAccess emits an audit event for this check, pass or fail.
	LogAccess bool
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSeverity grades an audit event.
type AuditSeverity = internalaudit.Severity

const (
	// SeverityInfo marks routine check outcomes.
	SeverityInfo = internalaudit.SeverityInfo
	// SeverityWarning marks denied access.
	SeverityWarning = internalaudit.SeverityWarning
	// SeverityCritical marks security incidents.
	SeverityCritical = internalaudit.SeverityCritical
)

// AuditSink receives AuditEvent values from the engine's dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an AuditSink that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based AuditSink.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes JSON-encoded events, one per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// RedisSink pushes events onto a capped Redis list.
type RedisSink = internalaudit.RedisSink

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a JSONWriterSink that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewRedisSink creates a RedisSink writing to key on client, trimmed to
// maxLen entries (0 means the package default).
func NewRedisSink(client *redis.Client, key string, maxLen int64) *RedisSink {
	return internalaudit.NewRedisSink(client, key, maxLen)
}
