// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package authz

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/jmercer/concord/internal/config"
	"github.com/jmercer/concord/internal/models"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Objects the policy recognizes.
const (
	ObjectIdea    = "idea"
	ObjectComment = "comment"
)

// Actions the policy recognizes.
const (
	ActionVote    = "vote"
	ActionComment = "comment"
	ActionDelete  = "delete"
)

// EnforcerConfig holds configuration for the Casbin enforcer.
type EnforcerConfig struct {
	// ModelPath is the path to a Casbin model file.
	// If empty, uses the embedded model.
	ModelPath string

	// PolicyPath is the path to a Casbin policy file.
	// If empty, uses the embedded policy.
	PolicyPath string

	// AutoReload enables automatic policy reload for file policies.
	AutoReload bool

	// ReloadInterval is how often to check for policy changes.
	ReloadInterval time.Duration

	// DefaultRole is assumed for tokens carrying no role claim.
	DefaultRole string

	// CacheEnabled enables enforcement decision caching.
	CacheEnabled bool

	// CacheTTL is how long to cache decisions.
	CacheTTL time.Duration
}

// DefaultEnforcerConfig returns default configuration.
func DefaultEnforcerConfig() *EnforcerConfig {
	return &EnforcerConfig{
		AutoReload:     true,
		ReloadInterval: 30 * time.Second,
		DefaultRole:    models.RoleMember,
		CacheEnabled:   true,
		CacheTTL:       5 * time.Minute,
	}
}

// EnforcerConfigFrom builds an EnforcerConfig from the application config.
func EnforcerConfigFrom(cfg config.CasbinConfig) *EnforcerConfig {
	out := DefaultEnforcerConfig()
	if cfg.DefaultRole != "" {
		out.DefaultRole = cfg.DefaultRole
	}
	out.CacheEnabled = cfg.CacheEnabled
	if cfg.CacheTTL > 0 {
		out.CacheTTL = cfg.CacheTTL
	}
	return out
}

// Enforcer wraps the Casbin enforcer with Concord's role semantics.
type Enforcer struct {
	config   *EnforcerConfig
	enforcer *casbin.SyncedEnforcer
	cache    *enforcementCache
}

// NewEnforcer creates a new authorization enforcer.
func NewEnforcer(cfg *EnforcerConfig) (*Enforcer, error) {
	if cfg == nil {
		cfg = DefaultEnforcerConfig()
	}

	var m model.Model
	var err error

	if cfg.ModelPath != "" && fileExists(cfg.ModelPath) {
		m, err = model.NewModelFromFile(cfg.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer

	if cfg.PolicyPath != "" && fileExists(cfg.PolicyPath) {
		adapter := fileadapter.NewAdapter(cfg.PolicyPath)
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	if cfg.AutoReload && cfg.PolicyPath != "" {
		enforcer.StartAutoLoadPolicy(cfg.ReloadInterval)
	}

	e := &Enforcer{
		config:   cfg,
		enforcer: enforcer,
	}

	if cfg.CacheEnabled {
		e.cache = newEnforcementCache(cfg.CacheTTL)
	}

	return e, nil
}

// loadEmbeddedPolicy parses and loads the embedded policy CSV.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	lines := strings.Split(policy, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			continue
		}

		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		ptype := parts[0]
		rule := parts[1:]

		switch ptype {
		case "p":
			if len(rule) >= 3 {
				_, err := enforcer.AddPolicy(rule[0], rule[1], rule[2])
				if err != nil {
					return fmt.Errorf("failed to add policy %v: %w", rule, err)
				}
			}
		case "g":
			if len(rule) >= 2 {
				_, err := enforcer.AddGroupingPolicy(rule[0], rule[1])
				if err != nil {
					return fmt.Errorf("failed to add grouping policy %v: %w", rule, err)
				}
			}
		}
	}
	return nil
}

// Enforce checks if the subject can perform the action on the object.
func (e *Enforcer) Enforce(subject, object, action string) (bool, error) {
	if e.cache != nil {
		if allowed, ok := e.cache.get(subject, object, action); ok {
			return allowed, nil
		}
	}

	allowed, err := e.enforcer.Enforce(subject, object, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}

	if e.cache != nil {
		e.cache.set(subject, object, action, allowed)
	}

	return allowed, nil
}

// EnforceRole checks a role claim against the policy, substituting the
// default role for tokens that carry none.
func (e *Enforcer) EnforceRole(role, object, action string) (bool, error) {
	if role == "" {
		role = e.config.DefaultRole
	}
	return e.Enforce(role, object, action)
}

// Require returns nil when the role may perform the action, or the
// taxonomy's authorization error otherwise.
func (e *Enforcer) Require(role, object, action string) error {
	allowed, err := e.EnforceRole(role, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%s may not %s %s: %w", roleForError(role, e.config.DefaultRole), action, object, models.ErrForbidden)
	}
	return nil
}

// roleForError names the role in denial messages, showing the applied
// default for empty claims.
func roleForError(role, defaultRole string) string {
	if role == "" {
		return defaultRole
	}
	return role
}

// GetPolicy returns all policy rules.
func (e *Enforcer) GetPolicy() [][]string {
	//nolint:errcheck // GetPolicy only fails if enforcer is nil, which is a programming error
	policies, _ := e.enforcer.GetPolicy()
	return policies
}

// ErrNoAdapter is returned when LoadPolicy is called but no file adapter
// is configured.
var ErrNoAdapter = errors.New("no policy adapter configured; using embedded policy")

// LoadPolicy reloads the policy from the configured file.
// Returns ErrNoAdapter when running on the embedded policy.
func (e *Enforcer) LoadPolicy() error {
	if e.config.PolicyPath == "" {
		return ErrNoAdapter
	}
	if err := e.enforcer.LoadPolicy(); err != nil {
		return err
	}
	if e.cache != nil {
		e.cache.clear()
	}
	return nil
}

// Close stops the enforcer and cleans up resources.
func (e *Enforcer) Close() {
	e.enforcer.StopAutoLoadPolicy()
	if e.cache != nil {
		e.cache.stop()
	}
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
