package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, claims Claims, secret []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestStaticRoleSource(t *testing.T) {
	roles := map[string]string{"dr-house": "doctor", "nurse-joy": "nurse", "ghost": ""}
	src := NewStaticRoleSource(roles)
	roles["dr-house"] = "patient" // 构造后修改不影响

	role, err := src.RoleOf(context.Background(), "dr-house")
	require.NoError(t, err)
	assert.Equal(t, "doctor", role)

	role, err = src.RoleOf(context.Background(), "nurse-joy")
	require.NoError(t, err)
	assert.Equal(t, "nurse", role)

	_, err = src.RoleOf(context.Background(), "unknown")
	assert.True(t, errors.Is(err, ErrRoleUnavailable))

	_, err = src.RoleOf(context.Background(), "ghost")
	assert.True(t, errors.Is(err, ErrRoleUnavailable))
}

func TestTokenRoleSource_RealmRoles(t *testing.T) {
	token := signToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		PreferredUsername: "dr-house",
		RealmAccess:       RealmAccess{Roles: []string{"offline_access", "doctor"}},
	}, testSecret)

	role, err := NewTokenRoleSource(token, testSecret, "doctor").RoleOf(context.Background(), "dr-house")
	require.NoError(t, err)
	assert.Equal(t, "doctor", role)

	// 不持有 preferred 角色时返回第一个角色
	role, err = NewTokenRoleSource(token, testSecret, "admin").RoleOf(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "offline_access", role)
}

func TestTokenRoleSource_TopLevelRoles(t *testing.T) {
	token := signToken(t, Claims{Roles: []string{"nurse", "nurse"}}, testSecret)

	role, err := NewTokenRoleSource(token, testSecret, "doctor").RoleOf(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "nurse", role)
}

func TestTokenRoleSource_Errors(t *testing.T) {
	valid := Claims{
		PreferredUsername: "dr-house",
		RealmAccess:       RealmAccess{Roles: []string{"doctor"}},
	}

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, valid).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		caller  string
		wantErr error
	}{
		{"empty token", "", "dr-house", ErrInvalidToken},
		{"garbage", "not-a-jwt", "dr-house", ErrInvalidToken},
		{"wrong secret", signToken(t, valid, []byte("other")), "dr-house", ErrInvalidToken},
		{"expired", signToken(t, expired, testSecret), "dr-house", ErrInvalidToken},
		{"alg none", noneToken, "dr-house", ErrInvalidToken},
		{"caller mismatch", signToken(t, valid, testSecret), "someone-else", ErrInvalidToken},
		{"no roles", signToken(t, Claims{PreferredUsername: "dr-house"}, testSecret), "dr-house", ErrRoleUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenRoleSource(tt.token, testSecret, "doctor").RoleOf(context.Background(), tt.caller)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), err.Error())
		})
	}
}

func TestClaims_AllRoles(t *testing.T) {
	c := Claims{
		RealmAccess: RealmAccess{Roles: []string{"doctor", ""}},
		Roles:       []string{"admin", "doctor"},
	}
	assert.Equal(t, []string{"doctor", "admin"}, c.AllRoles())
	assert.Empty(t, (&Claims{}).AllRoles())
}
