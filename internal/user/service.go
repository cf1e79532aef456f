package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/internal/auth"
	"github.com/frahmantamala/user-management/internal/core/common/validation"
	userDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/user"
	"github.com/frahmantamala/user-management/internal/metrics"
	"github.com/frahmantamala/user-management/pkg/logger"
)

const maxFieldLength = 255

// Store persists users, favorites and permissions. Deletes report the number
// of affected rows and never fail on zero.
type Store interface {
	InsertUser(ctx context.Context, u *userDatamodel.User) error
	InsertPermission(ctx context.Context, p *userDatamodel.Permission) error
	InsertFavorites(ctx context.Context, favorites []*userDatamodel.Favorite) error

	FindUserByID(ctx context.Context, id int64) (*userDatamodel.User, error)
	FindPermissionByUserID(ctx context.Context, userID int64) (*userDatamodel.Permission, error)
	FindAllUsersWithRelations(ctx context.Context) ([]*userDatamodel.User, error)

	UpdateUser(ctx context.Context, id int64, fields map[string]interface{}) error
	UpdatePermission(ctx context.Context, userID int64, fields map[string]interface{}) error

	DeleteFavoritesByUserID(ctx context.Context, userID int64) (int64, error)
	DeletePermissionByUserID(ctx context.Context, userID int64) (int64, error)
	DeleteUser(ctx context.Context, id int64) (int64, error)

	CountUsers(ctx context.Context) (int64, error)

	// Transaction runs fn against a store bound to one transaction. It
	// commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Service keeps the user aggregate consistent: one permission row per user,
// favorites replaced as a set, password hashes never leaving the store.
type Service struct {
	store        Store
	hasher       PasswordHasher
	queryTimeout time.Duration
	logger       *slog.Logger
}

func NewService(store Store, hasher PasswordHasher, queryTimeout time.Duration, lg *slog.Logger) *Service {
	if lg == nil {
		lg = slog.Default()
	}
	return &Service{
		store:        store,
		hasher:       hasher,
		queryTimeout: queryTimeout,
		logger:       lg,
	}
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logger.FromOr(ctx, s.logger)
}

func (s *Service) CreateUser(ctx context.Context, dto CreateUserDTO) (u *User, err error) {
	defer func() { metrics.RecordUserOperation("create", err) }()

	if appErr := validateCreate(dto); appErr != nil {
		return nil, appErr
	}

	role := Role(dto.Role)
	if role == "" {
		role = RoleUser
	}

	hash, err := s.hasher.Hash(dto.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, internal.NewValidationFieldError("password", err.Error(), internal.ErrCodeValidationFailed)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := internal.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	row := &userDatamodel.User{
		Name:         dto.Name,
		Email:        dto.Email,
		PasswordHash: hash,
		Role:         string(role),
	}
	err = s.store.Transaction(ctx, func(tx Store) error {
		if err := tx.InsertUser(ctx, row); err != nil {
			return err
		}
		permission := &userDatamodel.Permission{UserID: row.ID}
		if err := tx.InsertPermission(ctx, permission); err != nil {
			return err
		}
		row.Permission = permission
		return nil
	})
	if err != nil {
		return nil, s.storeError(ctx, "create user", err)
	}

	s.log(ctx).Info("user created", "user_id", row.ID, "role", row.Role)
	return FromDataModel(row), nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (u *User, err error) {
	defer func() { metrics.RecordUserOperation("get", err) }()

	ctx, cancel := internal.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	row, err := s.store.FindUserByID(ctx, id)
	if err != nil {
		return nil, s.storeError(ctx, "get user", err)
	}
	s.checkPermission(ctx, row)
	return FromDataModel(row), nil
}

func (s *Service) ListUsers(ctx context.Context) (users []*User, err error) {
	defer func() { metrics.RecordUserOperation("list", err) }()

	ctx, cancel := internal.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.store.FindAllUsersWithRelations(ctx)
	if err != nil {
		return nil, s.storeError(ctx, "list users", err)
	}

	users = make([]*User, 0, len(rows))
	for _, row := range rows {
		s.checkPermission(ctx, row)
		users = append(users, FromDataModel(row))
	}

	s.log(ctx).Debug("listed users", "count", len(users))
	return users, nil
}

// UpdateUserProfile merges the given profile fields and, when present, the
// permission flags in one transaction.
func (s *Service) UpdateUserProfile(ctx context.Context, id int64, dto UpdateUserDTO) (u *User, err error) {
	defer func() { metrics.RecordUserOperation("update_profile", err) }()

	if appErr := validateUpdate(dto); appErr != nil {
		return nil, appErr
	}

	ctx, cancel := internal.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var updated *userDatamodel.User
	err = s.store.Transaction(ctx, func(tx Store) error {
		if _, err := tx.FindUserByID(ctx, id); err != nil {
			return err
		}
		if fields := dto.Fields(); len(fields) > 0 {
			if err := tx.UpdateUser(ctx, id, fields); err != nil {
				return err
			}
		}
		if dto.Permissions != nil && !dto.Permissions.IsEmpty() {
			if err := s.mergePermissions(ctx, tx, id, *dto.Permissions); err != nil {
				return err
			}
		}
		row, err := tx.FindUserByID(ctx, id)
		if err != nil {
			return err
		}
		updated = row
		return nil
	})
	if err != nil {
		return nil, s.storeError(ctx, "update user", err)
	}

	s.log(ctx).Info("user updated", "user_id", id)
	return FromDataModel(updated), nil
}

// DeleteUser removes the user together with its favorites and permission.
func (s *Service) DeleteUser(ctx context.Context, id int64) (err error) {
	defer func() { metrics.RecordUserOperation("delete", err) }()

	ctx, cancel := internal.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var favorites, permissions int64
	err = s.store.Transaction(ctx, func(tx Store) error {
		if _, err := tx.FindUserByID(ctx, id); err != nil {
			return err
		}
		var err error
		if favorites, err = tx.DeleteFavoritesByUserID(ctx, id); err != nil {
			return err
		}
		if permissions, err = tx.DeletePermissionByUserID(ctx, id); err != nil {
			return err
		}
		deleted, err := tx.DeleteUser(ctx, id)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return s.storeError(ctx, "delete user", err)
	}

	s.log(ctx).Info("user deleted", "user_id", id, "favorites", favorites, "permissions", permissions)
	return nil
}

// ReplaceFavorites swaps the user's whole favorite set for items, keeping
// their order.
func (s *Service) ReplaceFavorites(ctx context.Context, id int64, items []FavoriteInput) (u *User, err error) {
	defer func() { metrics.RecordUserOperation("replace_favorites", err) }()

	if appErr := validateFavorites(items); appErr != nil {
		return nil, appErr
	}

	ctx, cancel := internal.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var updated *userDatamodel.User
	err = s.store.Transaction(ctx, func(tx Store) error {
		if _, err := tx.FindUserByID(ctx, id); err != nil {
			return err
		}
		if _, err := tx.DeleteFavoritesByUserID(ctx, id); err != nil {
			return err
		}
		if len(items) > 0 {
			rows := make([]*userDatamodel.Favorite, 0, len(items))
			for _, item := range items {
				rows = append(rows, &userDatamodel.Favorite{
					UserID:       id,
					ProductName:  strings.TrimSpace(item.Name),
					ProductValue: item.Value,
				})
			}
			if err := tx.InsertFavorites(ctx, rows); err != nil {
				return err
			}
		}
		row, err := tx.FindUserByID(ctx, id)
		if err != nil {
			return err
		}
		updated = row
		return nil
	})
	if err != nil {
		return nil, s.storeError(ctx, "replace favorites", err)
	}

	s.log(ctx).Info("favorites replaced", "user_id", id, "count", len(items))
	return FromDataModel(updated), nil
}

// UpdatePermissions merges the provided flags into the user's permission row.
func (s *Service) UpdatePermissions(ctx context.Context, id int64, dto PermissionsDTO) (u *User, err error) {
	defer func() { metrics.RecordUserOperation("update_permissions", err) }()

	ctx, cancel := internal.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var updated *userDatamodel.User
	err = s.store.Transaction(ctx, func(tx Store) error {
		if _, err := tx.FindUserByID(ctx, id); err != nil {
			return err
		}
		if err := s.mergePermissions(ctx, tx, id, dto); err != nil {
			return err
		}
		row, err := tx.FindUserByID(ctx, id)
		if err != nil {
			return err
		}
		updated = row
		return nil
	})
	if err != nil {
		return nil, s.storeError(ctx, "update permissions", err)
	}

	s.log(ctx).Info("permissions updated", "user_id", id)
	return FromDataModel(updated), nil
}

// CountUsers reports how many users exist. Used by the seeder.
func (s *Service) CountUsers(ctx context.Context) (int64, error) {
	ctx, cancel := internal.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	n, err := s.store.CountUsers(ctx)
	if err != nil {
		return 0, s.storeError(ctx, "count users", err)
	}
	return n, nil
}

// mergePermissions requires the permission row to exist. A missing row is
// reported, never recreated.
func (s *Service) mergePermissions(ctx context.Context, tx Store, userID int64, dto PermissionsDTO) error {
	if _, err := tx.FindPermissionByUserID(ctx, userID); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			s.log(ctx).Error("permission row missing for live user", "user_id", userID, "invariant", "one_permission_per_user")
			return internal.ErrPermissionMissing.WithCause(err)
		}
		return err
	}
	if dto.IsEmpty() {
		return nil
	}
	return tx.UpdatePermission(ctx, userID, dto.Fields())
}

func (s *Service) checkPermission(ctx context.Context, row *userDatamodel.User) {
	if row.Permission == nil {
		s.log(ctx).Error("user has no permission row", "user_id", row.ID, "invariant", "one_permission_per_user")
	}
}

// storeError translates store failures into the application error taxonomy.
func (s *Service) storeError(ctx context.Context, op string, err error) error {
	if appErr, ok := internal.IsAppError(err); ok {
		return appErr
	}
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return internal.ErrUserNotFound.WithCause(err)
	case errors.Is(err, ErrConstraintViolation):
		s.log(ctx).Warn(op+": constraint violated", "error", err)
		return internal.NewConstraintError("request conflicts with existing data", err)
	}
	s.log(ctx).Error(op+": storage failure", "error", err)
	return internal.NewStorageError("storage operation failed", err)
}

func validateCreate(dto CreateUserDTO) *internal.AppError {
	v := validation.NewValidator()
	v.Field("name", dto.Name).Required().MaxLength(maxFieldLength)
	v.Field("email", dto.Email).Required().MaxLength(maxFieldLength)
	v.Field("password", dto.Password).Required()
	v.Field("role", dto.Role).OneOf(internal.ErrCodeInvalidRole, string(RoleUser), string(RoleAdmin), string(RoleManager))
	return v.Validate()
}

func validateUpdate(dto UpdateUserDTO) *internal.AppError {
	v := validation.NewValidator()
	v.Field("name", dto.Name).NotBlank().MaxLength(maxFieldLength)
	v.Field("email", dto.Email).NotBlank().MaxLength(maxFieldLength)
	v.Field("role", dto.Role).Custom(func(value interface{}) *internal.AppError {
		if dto.Role != nil && !Role(*dto.Role).Valid() {
			return internal.NewValidationFieldError("role", "role must be one of: user, admin, manager", internal.ErrCodeInvalidRole)
		}
		return nil
	})
	return v.Validate()
}

func validateFavorites(items []FavoriteInput) *internal.AppError {
	v := validation.NewValidator()
	for i, item := range items {
		v.Field(fmt.Sprintf("favorites[%d].name", i), item.Name).Required().MaxLength(maxFieldLength)
		v.Field(fmt.Sprintf("favorites[%d].value", i), item.Value).MaxLength(maxFieldLength)
	}
	return v.Validate()
}
