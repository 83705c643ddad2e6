// Package auth принимает решения о доступе к шаблонам и анкетам.
//
// Движок не знает, кто такой пользователь: он получает Principal
// и спрашивает Authorizer, разрешено ли действие. Отказ - ErrNotAuthorized.
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ErrNotAuthorized - действие запрещено для пользователя.
var ErrNotAuthorized = errors.New("not authorized")

// Role - роль пользователя.
type Role string

// Роли.
const (
	RoleUser        Role = "USER"
	RoleUserOfficer Role = "USER_OFFICER"
	RoleReviewer    Role = "REVIEWER"
)

// Action - проверяемое действие.
type Action string

// Действия.
const (
	ActionReadTemplate      Action = "template.read"
	ActionEditTemplate      Action = "template.edit"
	ActionCreateQuestionary Action = "questionary.create"
	ActionReadQuestionary   Action = "questionary.read"
	ActionAnswerQuestionary Action = "questionary.answer"
)

// Principal - аутентифицированный пользователь.
type Principal struct {
	UserID int64  `json:"user_id"`
	Roles  []Role `json:"roles"`
}

// HasRole проверяет наличие роли.
func (p *Principal) HasRole(role Role) bool {
	return p != nil && slices.Contains(p.Roles, role)
}

// Resource - объект проверки. OwnerID - создатель анкеты (0 - нет владельца).
type Resource struct {
	OwnerID int64
}

// Authorizer решает, разрешено ли действие.
type Authorizer interface {
	Allowed(ctx context.Context, p *Principal, action Action, res Resource) bool
}

// RoleAuthorizer - решения по ролям.
//
// USER_OFFICER может всё. REVIEWER читает шаблоны и любые анкеты.
// USER читает шаблоны, создаёт анкеты, читает и заполняет свои.
type RoleAuthorizer struct{}

// Allowed реализует Authorizer.
func (RoleAuthorizer) Allowed(_ context.Context, p *Principal, action Action, res Resource) bool {
	if p == nil {
		return false
	}
	if p.HasRole(RoleUserOfficer) {
		return true
	}

	switch action {
	case ActionReadTemplate:
		return p.HasRole(RoleUser) || p.HasRole(RoleReviewer)
	case ActionCreateQuestionary:
		return p.HasRole(RoleUser)
	case ActionReadQuestionary:
		if p.HasRole(RoleReviewer) {
			return true
		}
		return p.HasRole(RoleUser) && res.OwnerID == p.UserID
	case ActionAnswerQuestionary:
		return p.HasRole(RoleUser) && res.OwnerID == p.UserID
	default:
		return false
	}
}

// Check возвращает ErrNotAuthorized, если действие запрещено.
func Check(ctx context.Context, a Authorizer, p *Principal, action Action, res Resource) error {
	if a.Allowed(ctx, p, action, res) {
		return nil
	}
	if p == nil {
		return fmt.Errorf("%w: anonymous %s", ErrNotAuthorized, action)
	}
	return fmt.Errorf("%w: user %d %s", ErrNotAuthorized, p.UserID, action)
}

type ctxKey struct{}

// WithPrincipal добавляет пользователя в контекст.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext извлекает пользователя из контекста (nil, если его нет).
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(ctxKey{}).(*Principal)
	return p
}
