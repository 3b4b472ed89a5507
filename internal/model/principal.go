package model

import "github.com/google/uuid"

type Role string

const (
	RoleFarmer    Role = "FARMER"
	RoleSupplier  Role = "SUPPLIER"
	RoleOperator  Role = "OPERATOR"
	RoleAuthority Role = "AUTHORITY"
)

// Principal is the authenticated caller extracted from the access token.
type Principal struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
	Role   Role
}

func (p Principal) IsFarmer() bool    { return p.Role == RoleFarmer }
func (p Principal) IsSupplier() bool  { return p.Role == RoleSupplier }
func (p Principal) IsOperator() bool  { return p.Role == RoleOperator }
func (p Principal) IsAuthority() bool { return p.Role == RoleAuthority }
