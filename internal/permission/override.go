package permission

import "fmt"

// Effect is the direction of a per-user override.
type Effect string

const (
	EffectGrant Effect = "grant"
	EffectDeny  Effect = "deny"
)

// Valid reports whether e is a known effect.
func (e Effect) Valid() bool { return e == EffectGrant || e == EffectDeny }

// ParseEffect validates an effect name.
func ParseEffect(s string) (Effect, error) {
	e := Effect(normalize(s))
	if !e.Valid() {
		return "", fmt.Errorf("%w: effect %q", ErrUnknownValue, s)
	}
	return e, nil
}

// Override is an exception applied on top of a role template for one user.
type Override struct {
	Permission Permission `json:"permission"`
	Effect     Effect     `json:"effect"`
}

// EffectivePermissions applies overrides to the role template. Denies win over
// grants. super_admin ignores overrides.
func EffectivePermissions(role Role, dept Department, overrides []Override) Set {
	base := UserPermissions(role, dept)
	if role == RoleSuperAdmin || len(overrides) == 0 {
		return base
	}
	for _, o := range overrides {
		if o.Effect == EffectGrant {
			base.Add(o.Permission)
		}
	}
	for _, o := range overrides {
		if o.Effect == EffectDeny {
			delete(base, o.Permission)
		}
	}
	return base
}

// HasEffectivePermission checks one triple against EffectivePermissions.
func HasEffectivePermission(role Role, dept Department, overrides []Override, p Permission) bool {
	if role == RoleSuperAdmin {
		return true
	}
	return EffectivePermissions(role, dept, overrides).Has(p)
}
