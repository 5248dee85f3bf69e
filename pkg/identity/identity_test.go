package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zfskit/workspaces/pkg/types"
)

func TestAuthorize(t *testing.T) {
	ws := &types.Workspace{Pool: "bulk", Name: "scratch", Owner: "alice"}

	tests := []struct {
		name   string
		caller *Caller
		denied bool
	}{
		{"owner", &Caller{UID: 1000, Username: "alice"}, false},
		{"other user", &Caller{UID: 1001, Username: "bob"}, true},
		{"admin", Admin(), false},
		{"setuid elevated non-owner", &Caller{UID: 1001, Username: "bob", EffectiveUID: 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(OpExtend, ws, tt.caller)
			if tt.denied {
				assert.True(t, types.IsDenied(err), "expected denial, got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAuthorize_DeniedNamesBothParties(t *testing.T) {
	ws := &types.Workspace{Pool: "bulk", Name: "scratch", Owner: "alice"}
	err := Authorize(OpExpire, ws, &Caller{UID: 1001, Username: "bob"})

	var denied *types.DeniedError
	assert.ErrorAs(t, err, &denied)
	assert.Equal(t, "expire", denied.Operation)
	assert.Contains(t, denied.Reason, "alice")
	assert.Contains(t, denied.Reason, "bob")
}

func TestIsAdmin(t *testing.T) {
	assert.True(t, Admin().IsAdmin())
	assert.False(t, (&Caller{UID: 1000, Username: "alice"}).IsAdmin())

	// Effective root via setuid does not make the real user an admin.
	assert.False(t, (&Caller{UID: 1000, Username: "alice", EffectiveUID: 0}).IsAdmin())
}
