package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

var (
	// ErrInvalidTimeoutConfig indicates Warning exceeds Timeout or a
	// required duration is missing.
	ErrInvalidTimeoutConfig = errors.New("session: invalid timeout config")
	// ErrUnknownRole indicates no timeout config exists for a role.
	ErrUnknownRole = errors.New("session: unknown role")
)

// TimeoutConfig is the per-role session timeout policy, loaded at session
// start and hot-reloadable through a Watcher.
type TimeoutConfig struct {
	// Timeout is the total inactivity budget before forced logout.
	Timeout time.Duration `json:"timeout_ms"`
	// Warning is the tail portion of Timeout during which the user is
	// warned. Must not exceed Timeout.
	Warning time.Duration `json:"warning_ms"`
	// Enabled gates the whole monitor; disabled roles never leave
	// Inactive.
	Enabled bool `json:"enabled"`
	// ExtendOnActivity resets the idle timers on user activity while
	// Active.
	ExtendOnActivity bool `json:"extend_on_activity"`
	// ShowWarningDialog surfaces a countdown via the OnWarning hook.
	ShowWarningDialog bool `json:"show_warning_dialog"`
	// LogoutOnClose records a pending-logout marker when the session is
	// hidden; hosts persist it so a tab that never returns is signed out
	// on the next launch.
	LogoutOnClose bool `json:"logout_on_close"`
}

// Validate rejects configs whose warning window exceeds the timeout.
func (c TimeoutConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidTimeoutConfig)
	}
	if c.Warning < 0 || c.Warning > c.Timeout {
		return fmt.Errorf("%w: warning %v exceeds timeout %v", ErrInvalidTimeoutConfig, c.Warning, c.Timeout)
	}
	return nil
}

// UnmarshalJSON reads millisecond integers, the form the timeout file
// uses.
func (c *TimeoutConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		TimeoutMs         int64 `json:"timeout_ms"`
		WarningMs         int64 `json:"warning_ms"`
		Enabled           bool  `json:"enabled"`
		ExtendOnActivity  bool  `json:"extend_on_activity"`
		ShowWarningDialog bool  `json:"show_warning_dialog"`
		LogoutOnClose     bool  `json:"logout_on_close"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Timeout = time.Duration(raw.TimeoutMs) * time.Millisecond
	c.Warning = time.Duration(raw.WarningMs) * time.Millisecond
	c.Enabled = raw.Enabled
	c.ExtendOnActivity = raw.ExtendOnActivity
	c.ShowWarningDialog = raw.ShowWarningDialog
	c.LogoutOnClose = raw.LogoutOnClose
	return nil
}

// RoleTimeouts maps a role name to its timeout policy.
type RoleTimeouts map[string]TimeoutConfig

// ForRole looks up the policy for role.
func (r RoleTimeouts) ForRole(role string) (TimeoutConfig, error) {
	cfg, ok := r[role]
	if !ok {
		return TimeoutConfig{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return cfg, nil
}

// Validate checks every role's config.
func (r RoleTimeouts) Validate() error {
	for role, cfg := range r {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("role %q: %w", role, err)
		}
	}
	return nil
}

// DefaultRoleTimeouts is the shipped policy for the gym platform roles.
// Front-desk staff share terminals, so their sessions are short and end
// when the tab is hidden; owners and admins get longer windows on the
// assumption of personal devices.
func DefaultRoleTimeouts() RoleTimeouts {
	return RoleTimeouts{
		"owner": {
			Timeout: 60 * time.Minute, Warning: 2 * time.Minute,
			Enabled: true, ExtendOnActivity: true, ShowWarningDialog: true,
		},
		"admin": {
			Timeout: 30 * time.Minute, Warning: 2 * time.Minute,
			Enabled: true, ExtendOnActivity: true, ShowWarningDialog: true,
		},
		"manager": {
			Timeout: 30 * time.Minute, Warning: time.Minute,
			Enabled: true, ExtendOnActivity: true, ShowWarningDialog: true,
		},
		"staff": {
			Timeout: 10 * time.Minute, Warning: time.Minute,
			Enabled: true, ExtendOnActivity: true, ShowWarningDialog: true,
			LogoutOnClose: true,
		},
		"trainer": {
			Timeout: 15 * time.Minute, Warning: time.Minute,
			Enabled: true, ExtendOnActivity: true, ShowWarningDialog: true,
		},
		"member": {
			Timeout: 20 * time.Minute, Warning: time.Minute,
			Enabled: true, ExtendOnActivity: true, ShowWarningDialog: false,
		},
	}
}

// LoadRoleTimeouts reads a JSON role→policy file and validates it.
func LoadRoleTimeouts(path string) (RoleTimeouts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("session: read timeout config: %w", err)
	}
	var timeouts RoleTimeouts
	if err := json.Unmarshal(data, &timeouts); err != nil {
		return nil, fmt.Errorf("session: parse timeout config: %w", err)
	}
	if err := timeouts.Validate(); err != nil {
		return nil, err
	}
	return timeouts, nil
}
