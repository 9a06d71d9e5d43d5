package domain

// Member represents user's participation meta for a channel on the relay.
// No transport or lifecycle logic here.
type Member struct {
	User  *User
	Role  Role
	Ready bool
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user *User, role Role) *Member {
	return &Member{User: user, Role: role}
}
