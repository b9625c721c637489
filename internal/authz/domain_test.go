package authz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConditionsMatch(t *testing.T) {
	cases := []struct {
		name       string
		conditions map[string]any
		check      Context
		want       bool
	}{
		{
			name: "no conditions is a blanket grant",
			want: true,
		},
		{
			name:       "no conditions matches any check",
			check:      Context{"post_id": 7},
			want:       true,
			conditions: nil,
		},
		{
			name:       "conditions with empty check never match",
			conditions: map[string]any{"post_id": 42},
			want:       false,
		},
		{
			name:       "all keys equal",
			conditions: map[string]any{"post_id": 42, "is_owner": true},
			check:      Context{"post_id": 42, "is_owner": true},
			want:       true,
		},
		{
			name:       "one key differs",
			conditions: map[string]any{"post_id": 42, "is_owner": true},
			check:      Context{"post_id": 42, "is_owner": false},
			want:       false,
		},
		{
			name:       "missing key",
			conditions: map[string]any{"post_id": 42},
			check:      Context{"is_owner": true},
			want:       false,
		},
		{
			name:       "extra check keys are ignored",
			conditions: map[string]any{"post_id": 42},
			check:      Context{"post_id": 42, "is_owner": false},
			want:       true,
		},
		{
			name:       "loose equality across representations",
			conditions: map[string]any{"post_id": float64(42)},
			check:      Context{"post_id": "42"},
			want:       true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			grant := TemporaryPermission{Conditions: tc.conditions}
			require.Equal(t, tc.want, grant.ConditionsMatch(tc.check))
		})
	}
}

func TestExpiredIsInclusive(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	grant := TemporaryPermission{ExpiresAt: now}

	require.True(t, grant.Expired(now), "a grant expiring exactly now is inert")
	require.True(t, grant.Expired(now.Add(time.Second)))
	require.False(t, grant.Expired(now.Add(-time.Second)))
}

func TestDisplayLabel(t *testing.T) {
	require.Equal(t, "Manage Posts", Permission{Name: "manage_posts"}.DisplayLabel())
	require.Equal(t, "Editorial", Permission{Name: "manage_posts", DisplayName: "Editorial"}.DisplayLabel())
	// A display name equal to the slug still derives the friendly label.
	require.Equal(t, "Edit Own Posts", Permission{Name: "edit_own_posts", DisplayName: "edit_own_posts"}.DisplayLabel())
}

func TestDecisionString(t *testing.T) {
	require.Equal(t, "deny", DecisionDeny.String())
	require.Equal(t, "unauthenticated", DecisionUnauthenticated.String())
	require.Equal(t, "allow", DecisionAllow.String())
	require.False(t, Decision(0).Allowed(), "zero value must deny")
}
