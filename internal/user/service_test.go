package user_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/frahmantamala/user-management/internal"
	userDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/user"
	"github.com/frahmantamala/user-management/internal/user"
	userPostgres "github.com/frahmantamala/user-management/internal/user/postgres"
)

// faultyStore fails selected writes, including those made through the
// transaction-bound store handed to the service.
type faultyStore struct {
	user.Store
	failPermission bool
	failFavorites  bool
	failDeleteUser bool
}

var errInjected = errors.New("injected failure")

func (s *faultyStore) InsertPermission(ctx context.Context, p *userDatamodel.Permission) error {
	if s.failPermission {
		return errInjected
	}
	return s.Store.InsertPermission(ctx, p)
}

func (s *faultyStore) InsertFavorites(ctx context.Context, favorites []*userDatamodel.Favorite) error {
	if s.failFavorites {
		return errInjected
	}
	return s.Store.InsertFavorites(ctx, favorites)
}

func (s *faultyStore) DeleteUser(ctx context.Context, id int64) (int64, error) {
	if s.failDeleteUser {
		return 0, errInjected
	}
	return s.Store.DeleteUser(ctx, id)
}

func (s *faultyStore) Transaction(ctx context.Context, fn func(tx user.Store) error) error {
	return s.Store.Transaction(ctx, func(tx user.Store) error {
		return fn(&faultyStore{
			Store:          tx,
			failPermission: s.failPermission,
			failFavorites:  s.failFavorites,
			failDeleteUser: s.failDeleteUser,
		})
	})
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func favoriteNames(u *user.User) []string {
	names := make([]string, 0, len(u.Favorites))
	for _, f := range u.Favorites {
		names = append(names, f.ProductName)
	}
	return names
}

var _ = Describe("UserService", func() {
	var (
		ctx     context.Context
		service *user.Service
		db      *gorm.DB
	)

	BeforeEach(func() {
		ctx = context.Background()
		service, db = newSQLiteService()
	})

	createUser := func(name string) *user.User {
		u, err := service.CreateUser(ctx, user.CreateUserDTO{
			Name:     name,
			Email:    name + "@example.com",
			Password: "secret",
		})
		Expect(err).NotTo(HaveOccurred())
		return u
	}

	Describe("CreateUser", func() {
		It("returns the user with zeroed permissions and no favorites", func() {
			u, err := service.CreateUser(ctx, user.CreateUserDTO{
				Name:     "Ann",
				Email:    "ann@x.com",
				Password: "p",
				Role:     "admin",
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(u.ID).To(BeNumerically(">", 0))
			Expect(u.Name).To(Equal("Ann"))
			Expect(u.Email).To(Equal("ann@x.com"))
			Expect(u.Role).To(Equal(user.RoleAdmin))
			Expect(u.CreatedAt).NotTo(BeZero())
			Expect(u.Favorites).NotTo(BeNil())
			Expect(u.Favorites).To(BeEmpty())
			Expect(u.Permissions).To(Equal(&user.Permissions{}))
		})

		It("defaults the role to user", func() {
			u := createUser("bob")
			Expect(u.Role).To(Equal(user.RoleUser))
		})

		It("stores a bcrypt hash rather than the password", func() {
			u := createUser("carol")

			var row userDatamodel.User
			Expect(db.First(&row, u.ID).Error).To(Succeed())
			Expect(row.PasswordHash).NotTo(Equal("secret"))
			Expect(row.PasswordHash).To(HavePrefix("$2"))
		})

		It("persists exactly one permission row", func() {
			u := createUser("dave")

			var count int64
			Expect(db.Model(&userDatamodel.Permission{}).Where("user_id = ?", u.ID).Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(1)))
		})

		DescribeTable("rejects invalid input",
			func(dto user.CreateUserDTO, field string) {
				_, err := service.CreateUser(ctx, dto)
				Expect(err).To(HaveOccurred())

				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
				Expect(appErr.Details).To(BeAssignableToTypeOf(internal.ValidationErrors{}))
				Expect(appErr.Details.(internal.ValidationErrors).Errors[0].Field).To(Equal(field))
			},
			Entry("missing name", user.CreateUserDTO{Email: "a@x.com", Password: "p"}, "name"),
			Entry("blank name", user.CreateUserDTO{Name: "   ", Email: "a@x.com", Password: "p"}, "name"),
			Entry("missing email", user.CreateUserDTO{Name: "A", Password: "p"}, "email"),
			Entry("missing password", user.CreateUserDTO{Name: "A", Email: "a@x.com"}, "password"),
			Entry("unknown role", user.CreateUserDTO{Name: "A", Email: "a@x.com", Password: "p", Role: "root"}, "role"),
		)

		It("rolls back the user when the permission insert fails", func() {
			faulty := &faultyStore{Store: userPostgres.NewUserRepository(db), failPermission: true}
			svc := newTestService(faulty)

			_, err := svc.CreateUser(ctx, user.CreateUserDTO{Name: "Eve", Email: "eve@x.com", Password: "p"})
			Expect(err).To(HaveOccurred())

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeStorage))
			Expect(errors.Is(err, errInjected)).To(BeTrue())

			n, err := service.CountUsers(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
		})
	})

	Describe("UpdateUserProfile", func() {
		It("changes only the provided fields", func() {
			u := createUser("frank")

			updated, err := service.UpdateUserProfile(ctx, u.ID, user.UpdateUserDTO{Name: strPtr("Franklin")})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Name).To(Equal("Franklin"))
			Expect(updated.Email).To(Equal(u.Email))
			Expect(updated.Role).To(Equal(u.Role))
			Expect(updated.CreatedAt.Equal(u.CreatedAt)).To(BeTrue())
		})

		It("merges permissions passed alongside the profile", func() {
			u := createUser("gina")

			updated, err := service.UpdateUserProfile(ctx, u.ID, user.UpdateUserDTO{
				Role:        strPtr("manager"),
				Permissions: &user.PermissionsDTO{Supplier: boolPtr(true)},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Role).To(Equal(user.RoleManager))
			Expect(updated.Permissions).To(Equal(&user.Permissions{Supplier: true}))
		})

		It("returns the current favorites", func() {
			u := createUser("hank")
			_, err := service.ReplaceFavorites(ctx, u.ID, []user.FavoriteInput{{Name: "Tea"}})
			Expect(err).NotTo(HaveOccurred())

			updated, err := service.UpdateUserProfile(ctx, u.ID, user.UpdateUserDTO{Email: strPtr("hank@new.com")})
			Expect(err).NotTo(HaveOccurred())
			Expect(favoriteNames(updated)).To(Equal([]string{"Tea"}))
		})

		It("fails with NotFound for an unknown user", func() {
			_, err := service.UpdateUserProfile(ctx, 999, user.UpdateUserDTO{Name: strPtr("x")})
			Expect(errors.Is(err, internal.ErrUserNotFound)).To(BeTrue())
		})

		It("rejects an empty name", func() {
			u := createUser("ivy")
			_, err := service.UpdateUserProfile(ctx, u.ID, user.UpdateUserDTO{Name: strPtr("")})

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("rejects an unknown role", func() {
			u := createUser("jack")
			_, err := service.UpdateUserProfile(ctx, u.ID, user.UpdateUserDTO{Role: strPtr("owner")})

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Details.(internal.ValidationErrors).Errors[0].Code).To(Equal(string(internal.ErrCodeInvalidRole)))
		})
	})

	Describe("DeleteUser", func() {
		It("removes the user, its favorites and its permission", func() {
			u := createUser("kate")
			other := createUser("liam")
			_, err := service.ReplaceFavorites(ctx, u.ID, []user.FavoriteInput{{Name: "A"}, {Name: "B"}})
			Expect(err).NotTo(HaveOccurred())

			Expect(service.DeleteUser(ctx, u.ID)).To(Succeed())

			users, err := service.ListUsers(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(1))
			Expect(users[0].ID).To(Equal(other.ID))

			var favorites, permissions int64
			Expect(db.Model(&userDatamodel.Favorite{}).Where("user_id = ?", u.ID).Count(&favorites).Error).To(Succeed())
			Expect(db.Model(&userDatamodel.Permission{}).Where("user_id = ?", u.ID).Count(&permissions).Error).To(Succeed())
			Expect(favorites).To(BeZero())
			Expect(permissions).To(BeZero())
		})

		It("fails with NotFound for an unknown user", func() {
			err := service.DeleteUser(ctx, 12345)
			Expect(errors.Is(err, internal.ErrUserNotFound)).To(BeTrue())
		})

		It("keeps the whole aggregate when the final delete fails", func() {
			u := createUser("mia")
			_, err := service.ReplaceFavorites(ctx, u.ID, []user.FavoriteInput{{Name: "A"}})
			Expect(err).NotTo(HaveOccurred())

			svc := newTestService(&faultyStore{Store: userPostgres.NewUserRepository(db), failDeleteUser: true})
			Expect(svc.DeleteUser(ctx, u.ID)).NotTo(Succeed())

			got, err := service.GetUser(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(favoriteNames(got)).To(Equal([]string{"A"}))
			Expect(got.Permissions).NotTo(BeNil())
		})
	})

	Describe("ReplaceFavorites", func() {
		It("replaces rather than appends", func() {
			u := createUser("nina")

			_, err := service.ReplaceFavorites(ctx, u.ID, []user.FavoriteInput{})
			Expect(err).NotTo(HaveOccurred())
			got, err := service.ReplaceFavorites(ctx, u.ID, []user.FavoriteInput{{Name: "A"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(favoriteNames(got)).To(Equal([]string{"A"}))

			got, err = service.ReplaceFavorites(ctx, u.ID, []user.FavoriteInput{{Name: "B"}, {Name: "C"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(favoriteNames(got)).To(Equal([]string{"B", "C"}))
		})

		It("keeps input order and values", func() {
			u := createUser("oscar")

			got, err := service.ReplaceFavorites(ctx, u.ID, []user.FavoriteInput{
				{Name: "Shoes", Value: strPtr("42")},
				{Name: "Hat"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Favorites).To(HaveLen(2))
			Expect(got.Favorites[0].ProductName).To(Equal("Shoes"))
			Expect(got.Favorites[0].ProductValue).To(Equal(strPtr("42")))
			Expect(got.Favorites[1].ProductName).To(Equal("Hat"))
			Expect(got.Favorites[1].ProductValue).To(BeNil())
			Expect(got.Permissions).NotTo(BeNil())
		})

		It("is idempotent", func() {
			u := createUser("pia")
			items := []user.FavoriteInput{{Name: "X", Value: strPtr("1")}, {Name: "X"}}

			first, err := service.ReplaceFavorites(ctx, u.ID, items)
			Expect(err).NotTo(HaveOccurred())
			second, err := service.ReplaceFavorites(ctx, u.ID, items)
			Expect(err).NotTo(HaveOccurred())

			strip := func(u *user.User) []user.Favorite {
				out := make([]user.Favorite, 0, len(u.Favorites))
				for _, f := range u.Favorites {
					f.ID = 0
					out = append(out, f)
				}
				return out
			}
			Expect(strip(second)).To(Equal(strip(first)))
		})

		It("clears favorites on empty input", func() {
			u := createUser("quinn")
			_, err := service.ReplaceFavorites(ctx, u.ID, []user.FavoriteInput{{Name: "A"}})
			Expect(err).NotTo(HaveOccurred())

			got, err := service.ReplaceFavorites(ctx, u.ID, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Favorites).To(BeEmpty())
		})

		It("rejects an item without a name", func() {
			u := createUser("ray")
			_, err := service.ReplaceFavorites(ctx, u.ID, []user.FavoriteInput{{Name: "ok"}, {Name: " "}})

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
			Expect(appErr.Details.(internal.ValidationErrors).Errors[0].Field).To(Equal("favorites[1].name"))
		})

		It("fails with NotFound for an unknown user", func() {
			_, err := service.ReplaceFavorites(ctx, 404, []user.FavoriteInput{{Name: "A"}})
			Expect(errors.Is(err, internal.ErrUserNotFound)).To(BeTrue())
		})

		It("leaves the previous set intact when the insert fails", func() {
			u := createUser("sam")
			_, err := service.ReplaceFavorites(ctx, u.ID, []user.FavoriteInput{{Name: "Keep"}})
			Expect(err).NotTo(HaveOccurred())

			svc := newTestService(&faultyStore{Store: userPostgres.NewUserRepository(db), failFavorites: true})
			_, err = svc.ReplaceFavorites(ctx, u.ID, []user.FavoriteInput{{Name: "New"}})
			Expect(err).To(HaveOccurred())

			got, err := service.GetUser(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(favoriteNames(got)).To(Equal([]string{"Keep"}))
		})
	})

	Describe("UpdatePermissions", func() {
		It("merges only the provided flags", func() {
			u := createUser("tina")
			_, err := service.UpdatePermissions(ctx, u.ID, user.PermissionsDTO{Attendance: boolPtr(true)})
			Expect(err).NotTo(HaveOccurred())

			got, err := service.UpdatePermissions(ctx, u.ID, user.PermissionsDTO{Cashbook: boolPtr(true)})
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Permissions).To(Equal(&user.Permissions{Attendance: true, Cashbook: true, Supplier: false}))
		})

		It("can switch a flag back off", func() {
			u := createUser("uma")
			_, err := service.UpdatePermissions(ctx, u.ID, user.PermissionsDTO{Supplier: boolPtr(true)})
			Expect(err).NotTo(HaveOccurred())

			got, err := service.UpdatePermissions(ctx, u.ID, user.PermissionsDTO{Supplier: boolPtr(false)})
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Permissions.Supplier).To(BeFalse())
		})

		It("fails with NotFound for an unknown user", func() {
			_, err := service.UpdatePermissions(ctx, 77, user.PermissionsDTO{Cashbook: boolPtr(true)})
			Expect(errors.Is(err, internal.ErrUserNotFound)).To(BeTrue())
		})

		It("reports a missing permission row as a consistency error", func() {
			u := createUser("vic")
			Expect(db.Exec("DELETE FROM permissions WHERE user_id = ?", u.ID).Error).To(Succeed())

			_, err := service.UpdatePermissions(ctx, u.ID, user.PermissionsDTO{Cashbook: boolPtr(true)})
			Expect(errors.Is(err, internal.ErrPermissionMissing)).To(BeTrue())
			Expect(errors.Is(err, internal.ErrUserNotFound)).To(BeFalse())

			var count int64
			Expect(db.Model(&userDatamodel.Permission{}).Where("user_id = ?", u.ID).Count(&count).Error).To(Succeed())
			Expect(count).To(BeZero())
		})
	})

	Describe("ListUsers", func() {
		It("returns an empty list when there are no users", func() {
			users, err := service.ListUsers(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(users).NotTo(BeNil())
			Expect(users).To(BeEmpty())
		})

		It("joins favorites and permissions for every user", func() {
			a := createUser("wes")
			b := createUser("xena")
			_, err := service.ReplaceFavorites(ctx, b.ID, []user.FavoriteInput{{Name: "B1"}, {Name: "B2"}})
			Expect(err).NotTo(HaveOccurred())

			users, err := service.ListUsers(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(2))
			Expect(users[0].ID).To(Equal(a.ID))
			Expect(users[0].Favorites).To(BeEmpty())
			Expect(favoriteNames(users[1])).To(Equal([]string{"B1", "B2"}))
			for _, u := range users {
				Expect(u.Permissions).NotTo(BeNil())
			}
		})

		It("returns null permissions instead of failing when the row is missing", func() {
			u := createUser("yuri")
			Expect(db.Exec("DELETE FROM permissions WHERE user_id = ?", u.ID).Error).To(Succeed())

			users, err := service.ListUsers(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(users[0].Permissions).To(BeNil())
		})

		It("surfaces an expired deadline as a storage timeout", func() {
			expired, cancel := context.WithDeadline(ctx, time.Now().Add(-time.Second))
			defer cancel()

			_, err := service.ListUsers(expired)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeStorage))
			Expect(appErr.Code).To(Equal(internal.ErrCodeStorageTimeout))
		})
	})

	Describe("GetUser", func() {
		It("fails with NotFound for an unknown user", func() {
			_, err := service.GetUser(ctx, 5)
			Expect(errors.Is(err, internal.ErrUserNotFound)).To(BeTrue())
		})
	})

	Describe("SeedDefaults", func() {
		It("creates the sample accounts once", func() {
			seeded, err := user.SeedDefaults(ctx, service)
			Expect(err).NotTo(HaveOccurred())
			Expect(seeded).To(BeTrue())

			users, err := service.ListUsers(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(2))

			admin := users[0]
			Expect(admin.Email).To(Equal("admin@example.com"))
			Expect(admin.Role).To(Equal(user.RoleAdmin))
			Expect(admin.Permissions).To(Equal(&user.Permissions{Attendance: true, Cashbook: true, Supplier: true}))
			Expect(favoriteNames(admin)).To(Equal([]string{"Product1", "Product2"}))
			Expect(*admin.Favorites[1].ProductValue).To(Equal("new2"))

			regular := users[1]
			Expect(regular.Role).To(Equal(user.RoleUser))
			Expect(regular.Permissions).To(Equal(&user.Permissions{}))
			Expect(*regular.Favorites[0].ProductValue).To(Equal("new3"))

			seeded, err = user.SeedDefaults(ctx, service)
			Expect(err).NotTo(HaveOccurred())
			Expect(seeded).To(BeFalse())
		})
	})
})
