package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken 令牌无法解析、签名错误、已过期或与调用者不匹配
	ErrInvalidToken = errors.New("invalid access token")
	// ErrRoleUnavailable 无法确定调用者角色
	ErrRoleUnavailable = errors.New("caller role unavailable")
)

// StaticRoleSource 固定的调用者 -> 角色映射（配置或测试使用）
type StaticRoleSource struct {
	roles map[string]string
}

// NewStaticRoleSource 创建静态角色源
func NewStaticRoleSource(roles map[string]string) *StaticRoleSource {
	copied := make(map[string]string, len(roles))
	for caller, role := range roles {
		copied[caller] = role
	}
	return &StaticRoleSource{roles: copied}
}

// RoleOf 返回调用者角色
func (s *StaticRoleSource) RoleOf(ctx context.Context, caller string) (string, error) {
	role, ok := s.roles[caller]
	if !ok || role == "" {
		return "", fmt.Errorf("%w: %q", ErrRoleUnavailable, caller)
	}
	return role, nil
}

// RealmAccess Keycloak realm 角色
type RealmAccess struct {
	Roles []string `json:"roles"`
}

// Claims Keycloak 访问令牌中使用的声明
type Claims struct {
	jwt.RegisteredClaims
	PreferredUsername string      `json:"preferred_username"`
	RealmAccess       RealmAccess `json:"realm_access"`
	Roles             []string    `json:"roles"`
}

// AllRoles realm_access.roles 与顶层 roles 合并（去重，保持顺序）
func (c *Claims) AllRoles() []string {
	var out []string
	for _, r := range append(append([]string{}, c.RealmAccess.Roles...), c.Roles...) {
		if r != "" && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}

// TokenRoleSource 从 HS256 签名的 Keycloak 访问令牌中解析角色
// 令牌持有 preferred 角色时返回该角色，否则返回第一个 realm 角色
type TokenRoleSource struct {
	token     string
	secret    []byte
	preferred string
}

// NewTokenRoleSource 创建令牌角色源
func NewTokenRoleSource(token string, secret []byte, preferred string) *TokenRoleSource {
	return &TokenRoleSource{
		token:     token,
		secret:    secret,
		preferred: preferred,
	}
}

// RoleOf 校验令牌并返回调用者角色
func (s *TokenRoleSource) RoleOf(ctx context.Context, caller string) (string, error) {
	claims, err := s.parse()
	if err != nil {
		return "", err
	}

	if caller != "" && claims.PreferredUsername != "" && claims.PreferredUsername != caller && claims.Subject != caller {
		return "", fmt.Errorf("%w: token belongs to %q, not %q", ErrInvalidToken, claims.PreferredUsername, caller)
	}

	roles := claims.AllRoles()
	if len(roles) == 0 {
		return "", fmt.Errorf("%w: token carries no roles", ErrRoleUnavailable)
	}
	if s.preferred != "" && slices.Contains(roles, s.preferred) {
		return s.preferred, nil
	}
	return roles[0], nil
}

func (s *TokenRoleSource) parse() (*Claims, error) {
	if s.token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(s.token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
