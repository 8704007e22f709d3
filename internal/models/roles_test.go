package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoleCanonicalValues(t *testing.T) {
	for _, raw := range []string{"superadmin", "manager", "technician"} {
		role, err := ParseRole(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, role.String())
	}
}

func TestParseRoleRejectsVariants(t *testing.T) {
	// The legacy bug class: mismatched casing or hyphenation silently
	// failing an authorization check. Here they fail loudly.
	for _, raw := range []string{"super-admin", "Superadmin", "MANAGER", "tech", ""} {
		_, err := ParseRole(raw)
		assert.Error(t, err, "raw=%q", raw)
	}
}

func TestProgressForStatus(t *testing.T) {
	assert.Equal(t, 100, ProgressForStatus(TaskCompleted))
	assert.Equal(t, 0, ProgressForStatus(TaskAssigned))
	assert.Equal(t, -1, ProgressForStatus(TaskInProgress))
	assert.Equal(t, -1, ProgressForStatus(TaskDelayed))
}
