package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePermission(t *testing.T) {
	tests := []struct {
		name     string
		roles    []string
		expected Permission
		ok       bool
	}{
		{"none", nil, 0, true},
		{"single", []string{"class"}, PermissionClass, true},
		{"mixed case and spaces", []string{" Manager", "AUDITOR "}, PermissionManager | PermissionAuditor, true},
		{"unknown role", []string{"class", "janitor"}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := ParsePermission(tt.roles)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, p)
		})
	}
}

func TestPermission_String(t *testing.T) {
	assert.Equal(t, "none", Permission(0).String())
	assert.Equal(t, "class, admin", (PermissionClass | PermissionAdmin).String())
}

func TestThoughtStatus_String(t *testing.T) {
	assert.Equal(t, "waiting for signup audit", ThoughtWaitingForSignupAudit.String())
}
