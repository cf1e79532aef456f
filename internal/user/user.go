package user

import (
	"errors"
	"time"

	userDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/user"
)

type Role string

const (
	RoleUser    Role = "user"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleManager:
		return true
	}
	return false
}

// User is the outward projection of the aggregate. It carries no password
// material, so nothing built from it can leak the hash.
type User struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	Role        Role         `json:"role"`
	CreatedAt   time.Time    `json:"createdAt"`
	Favorites   []Favorite   `json:"favorites"`
	Permissions *Permissions `json:"permissions"`
}

type Favorite struct {
	ID           int64   `json:"id"`
	ProductName  string  `json:"productName"`
	ProductValue *string `json:"productValue"`
}

type Permissions struct {
	Attendance bool `json:"attendance"`
	Cashbook   bool `json:"cashbook"`
	Supplier   bool `json:"supplier"`
}

func (u *User) HasPermissions() bool {
	return u.Permissions != nil
}

// Store errors. Implementations wrap driver errors with these so the service
// can translate them without knowing the driver.
var (
	ErrRecordNotFound      = errors.New("record not found")
	ErrConstraintViolation = errors.New("constraint violation")
)

func FromDataModel(u *userDatamodel.User) *User {
	out := &User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      Role(u.Role),
		CreatedAt: u.CreatedAt,
		Favorites: make([]Favorite, 0, len(u.Favorites)),
	}
	for _, f := range u.Favorites {
		out.Favorites = append(out.Favorites, FavoriteFromDataModel(&f))
	}
	if u.Permission != nil {
		out.Permissions = PermissionsFromDataModel(u.Permission)
	}
	return out
}

func FavoriteFromDataModel(f *userDatamodel.Favorite) Favorite {
	return Favorite{
		ID:           f.ID,
		ProductName:  f.ProductName,
		ProductValue: f.ProductValue,
	}
}

func PermissionsFromDataModel(p *userDatamodel.Permission) *Permissions {
	return &Permissions{
		Attendance: p.Attendance,
		Cashbook:   p.Cashbook,
		Supplier:   p.Supplier,
	}
}
