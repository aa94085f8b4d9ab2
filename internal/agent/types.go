package agent

import (
	"strings"
	"time"
)

// Role classifies what an agent key is for. Capabilities, not the role,
// gate individual operations; the role exists for operator bookkeeping.
type Role string

const (
	RoleResearcher Role = "researcher"
	RoleReviewer   Role = "reviewer"
	RoleSEOEditor  Role = "seo_editor"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleResearcher, RoleReviewer, RoleSEOEditor, RoleAdmin:
		return true
	}
	return false
}

// Key is a scoped credential identifying an automated or human actor.
// Keys are never deleted; disabling preserves audit referential integrity.
type Key struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Role               Role       `json:"role"`
	Scopes             []string   `json:"scopes"`
	RateLimitPerMinute int        `json:"rate_limit_per_minute"`
	RateLimitPerDay    int        `json:"rate_limit_per_day"`
	Enabled            bool       `json:"is_enabled"`
	CreatedAt          time.Time  `json:"created_at"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	LastUsedAt         *time.Time `json:"last_used_at,omitempty"`
	TotalRequests      int64      `json:"total_requests"`
}

// HasScope reports whether the key grants the capability, either exactly,
// via the global wildcard "*", or via an action wildcard such as "propose:*".
func (k Key) HasScope(capability string) bool {
	for _, s := range k.Scopes {
		if s == capability || s == "*" {
			return true
		}
		if action, ok := strings.CutSuffix(s, ":*"); ok && strings.HasPrefix(capability, action+":") {
			return true
		}
	}
	return false
}
