package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasis-community/opsbot/internal/auth"
	"github.com/oasis-community/opsbot/internal/domain"
)

func TestRootCommandWiring(t *testing.T) {
	root := newRootCommand()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["migrate"])
	assert.True(t, names["token"])
}

func TestTokenCommandMintsStaffToken(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "cli-secret")
	var stdout, stderr bytes.Buffer
	root := newRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs([]string{"token", "--user", "s1", "--name", "Sam", "--staff"})
	require.NoError(t, root.Execute())

	claims, err := auth.NewTokenManager("cli-secret", 60).ParseToken(strings.TrimSpace(stdout.String()))
	require.NoError(t, err)
	assert.Equal(t, "s1", claims.SubjectID)
	assert.Equal(t, domain.SubjectTypeStaff, claims.Subject)
	assert.Equal(t, "Sam", claims.Name)
	assert.Contains(t, stderr.String(), "subject=STAFF")
}

func TestTokenCommandRequiresUser(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"token"})
	assert.Error(t, root.Execute())
}
