package user

import "time"

type User struct {
	ID           int64       `gorm:"primaryKey"`
	Name         string      `gorm:"column:name;size:255;not null"`
	Email        string      `gorm:"column:email;size:255;not null"`
	PasswordHash string      `gorm:"column:password_hash;size:255;not null"`
	Role         string      `gorm:"column:role;size:16;not null;default:user"`
	CreatedAt    time.Time   `gorm:"column:created_at;autoCreateTime"`
	Favorites    []Favorite  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Permission   *Permission `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (User) TableName() string {
	return "users"
}

type Favorite struct {
	ID           int64     `gorm:"primaryKey"`
	UserID       int64     `gorm:"column:user_id;not null;index"`
	ProductName  string    `gorm:"column:product_name;size:255;not null"`
	ProductValue *string   `gorm:"column:product_value;size:255"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Favorite) TableName() string {
	return "favorites"
}

type Permission struct {
	ID         int64     `gorm:"primaryKey"`
	UserID     int64     `gorm:"column:user_id;not null;uniqueIndex"`
	Attendance bool      `gorm:"column:attendance;not null;default:false"`
	Cashbook   bool      `gorm:"column:cashbook;not null;default:false"`
	Supplier   bool      `gorm:"column:supplier;not null;default:false"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Permission) TableName() string {
	return "permissions"
}

// Models lists every table owned by the user aggregate, parents first.
func Models() []interface{} {
	return []interface{}{&User{}, &Favorite{}, &Permission{}}
}
