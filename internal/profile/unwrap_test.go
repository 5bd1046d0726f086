package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-backoffice-console/internal/model"
)

func TestUnwrapProfile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		wantID model.ID
		wantOK bool
	}{
		{name: "profile key", body: `{"profile":{"id":"1","fullName":"Ada"}}`, wantID: "1", wantOK: true},
		{name: "user key", body: `{"user":{"id":2}}`, wantID: "2", wantOK: true},
		{name: "bare object", body: `{"id":"3","email":"ops@example.com"}`, wantID: "3", wantOK: true},
		{name: "enveloped profile", body: `{"success":true,"data":{"profile":{"id":"4"}}}`, wantID: "4", wantOK: true},
		{name: "enveloped user", body: `{"success":true,"data":{"user":{"id":"5"}}}`, wantID: "5", wantOK: true},
		{name: "enveloped bare", body: `{"success":true,"data":{"id":"6"}}`, wantID: "6", wantOK: true},
		{name: "profile wins over user", body: `{"profile":{"id":"7"},"user":{"id":"8"}}`, wantID: "7", wantOK: true},
		{name: "profile without id falls through to user", body: `{"profile":{"fullName":"x"},"user":{"id":"9"}}`, wantID: "9", wantOK: true},
		{name: "no subject", body: `{"profile":{"fullName":"Nobody"}}`},
		{name: "blank id", body: `{"id":"  "}`},
		{name: "array", body: `[{"id":"1"}]`},
		{name: "empty", body: ``},
		{name: "not json", body: `<html>`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			user, ok := UnwrapProfile([]byte(tt.body))
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				assert.Nil(t, user)
				return
			}
			require.NotNil(t, user)
			assert.Equal(t, tt.wantID, user.ID)
		})
	}
}

func TestUnwrapProfileKeepsRoles(t *testing.T) {
	t.Parallel()

	user, ok := UnwrapProfile([]byte(`{"user":{"id":"1","role":{"name":"admin","permissions":[{"name":"users.view"}]}}}`))
	require.True(t, ok)
	require.NotNil(t, user.Role)
	assert.Equal(t, "admin", user.RoleName())
	require.Len(t, user.Role.Permissions, 1)
	assert.Equal(t, "users.view", user.Role.Permissions[0].CanonicalName())
}
