package auth

import (
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
)

//go:embed model.conf
var casbinModelContent string

//go:embed policy.csv
var casbinPolicyContent string

// RoleSubject maps a profile role to its Casbin subject.
func RoleSubject(role string) string {
	return "role:" + role
}

// InitEnforcer creates a Casbin enforcer with the embedded RBAC model and
// route policy. Roles live on profiles, so policies are static.
func InitEnforcer() (casbin.IEnforcer, error) {
	m, err := model.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m, stringadapter.NewAdapter(casbinPolicyContent))
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load casbin policies: %w", err)
	}
	return enforcer, nil
}
