package user

import (
	"context"
	"fmt"
)

type seedUser struct {
	create      CreateUserDTO
	favorites   []FavoriteInput
	permissions PermissionsDTO
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func defaultSeedUsers() []seedUser {
	return []seedUser{
		{
			create: CreateUserDTO{Name: "Admin", Email: "admin@example.com", Password: "admin123", Role: string(RoleAdmin)},
			favorites: []FavoriteInput{
				{Name: "Product1", Value: strPtr("new")},
				{Name: "Product2", Value: strPtr("new2")},
			},
			permissions: PermissionsDTO{Attendance: boolPtr(true), Cashbook: boolPtr(true), Supplier: boolPtr(true)},
		},
		{
			create: CreateUserDTO{Name: "User", Email: "user@example.com", Password: "user123", Role: string(RoleUser)},
			favorites: []FavoriteInput{
				{Name: "Product1", Value: strPtr("new3")},
				{Name: "Product2", Value: strPtr("new4")},
			},
		},
	}
}

// SeedDefaults creates the sample accounts when no user exists yet. It
// reports whether anything was created.
func SeedDefaults(ctx context.Context, svc *Service) (bool, error) {
	count, err := svc.CountUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		svc.log(ctx).Info("users already present, skipping seed", "count", count)
		return false, nil
	}

	seeds := defaultSeedUsers()
	for _, seed := range seeds {
		u, err := svc.CreateUser(ctx, seed.create)
		if err != nil {
			return false, fmt.Errorf("seed %s: %w", seed.create.Email, err)
		}
		if len(seed.favorites) > 0 {
			if _, err := svc.ReplaceFavorites(ctx, u.ID, seed.favorites); err != nil {
				return false, fmt.Errorf("seed favorites for %s: %w", seed.create.Email, err)
			}
		}
		if !seed.permissions.IsEmpty() {
			if _, err := svc.UpdatePermissions(ctx, u.ID, seed.permissions); err != nil {
				return false, fmt.Errorf("seed permissions for %s: %w", seed.create.Email, err)
			}
		}
	}

	svc.log(ctx).Info("seeded default users", "count", len(seeds))
	return true, nil
}
