package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	userDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/user"
	"github.com/frahmantamala/user-management/internal/user"
)

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// UserRepository implements user.Store using GORM
type UserRepository struct {
	db *gorm.DB
}

var _ user.Store = (*UserRepository)(nil)

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) InsertUser(ctx context.Context, u *userDatamodel.User) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(u).Error
	return translateError(err)
}

func (r *UserRepository) InsertPermission(ctx context.Context, p *userDatamodel.Permission) error {
	if err := r.ensureUsers(ctx, p.UserID); err != nil {
		return err
	}
	return translateError(r.db.WithContext(ctx).Create(p).Error)
}

// InsertFavorites stores the rows in slice order, so ids follow input order.
func (r *UserRepository) InsertFavorites(ctx context.Context, favorites []*userDatamodel.Favorite) error {
	if len(favorites) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(favorites))
	for _, f := range favorites {
		ids = append(ids, f.UserID)
	}
	if err := r.ensureUsers(ctx, ids...); err != nil {
		return err
	}
	return translateError(r.db.WithContext(ctx).Create(&favorites).Error)
}

func (r *UserRepository) FindUserByID(ctx context.Context, id int64) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.withRelations(ctx).Where("users.id = ?", id).First(&u).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &u, nil
}

func (r *UserRepository) FindPermissionByUserID(ctx context.Context, userID int64) (*userDatamodel.Permission, error) {
	var p userDatamodel.Permission
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &p, nil
}

// FindAllUsersWithRelations returns users by id with favorites in insertion
// order. Permission is nil for a user without a permission row.
func (r *UserRepository) FindAllUsersWithRelations(ctx context.Context) ([]*userDatamodel.User, error) {
	var users []*userDatamodel.User
	err := r.withRelations(ctx).Order("users.id ASC").Find(&users).Error
	if err != nil {
		return nil, translateError(err)
	}
	return users, nil
}

func (r *UserRepository) UpdateUser(ctx context.Context, id int64, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %d: %w", id, user.ErrRecordNotFound)
	}
	return nil
}

func (r *UserRepository) UpdatePermission(ctx context.Context, userID int64, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&userDatamodel.Permission{}).Where("user_id = ?", userID).Updates(fields)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("permission for user %d: %w", userID, user.ErrRecordNotFound)
	}
	return nil
}

func (r *UserRepository) DeleteFavoritesByUserID(ctx context.Context, userID int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&userDatamodel.Favorite{})
	return res.RowsAffected, translateError(res.Error)
}

func (r *UserRepository) DeletePermissionByUserID(ctx context.Context, userID int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&userDatamodel.Permission{})
	return res.RowsAffected, translateError(res.Error)
}

func (r *UserRepository) DeleteUser(ctx context.Context, id int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&userDatamodel.User{})
	return res.RowsAffected, translateError(res.Error)
}

func (r *UserRepository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Count(&n).Error
	return n, translateError(err)
}

func (r *UserRepository) Transaction(ctx context.Context, fn func(tx user.Store) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&UserRepository{db: tx})
	})
}

func (r *UserRepository) withRelations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Favorites", func(db *gorm.DB) *gorm.DB {
			return db.Order("favorites.id ASC")
		}).
		Preload("Permission")
}

// ensureUsers fails with ErrConstraintViolation unless every referenced user
// exists. Drivers differ in whether foreign keys are enforced, so this is
// checked explicitly.
func (r *UserRepository) ensureUsers(ctx context.Context, ids ...int64) error {
	seen := make(map[int64]struct{}, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	var n int64
	err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("id IN ?", unique).Count(&n).Error
	if err != nil {
		return translateError(err)
	}
	if n != int64(len(unique)) {
		return fmt.Errorf("referenced user does not exist: %w", user.ErrConstraintViolation)
	}
	return nil
}

// translateError maps gorm and pgx errors onto the store errors the user
// service understands. Anything else is returned unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", user.ErrRecordNotFound, err)
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %w", user.ErrConstraintViolation, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation, pgUniqueViolation:
			return fmt.Errorf("%w: %s", user.ErrConstraintViolation, pgErr.ConstraintName)
		}
	}
	return err
}
