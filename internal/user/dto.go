package user

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CreateUserDTO is the request payload for creating a user. Favorites and
// permissions are not accepted here; they have their own endpoints.
type CreateUserDTO struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=user admin manager"`
}

// UpdateUserDTO carries a partial profile update. Nil fields are left as is.
type UpdateUserDTO struct {
	Name        *string         `json:"name,omitempty" validate:"omitempty,max=255"`
	Email       *string         `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Role        *string         `json:"role,omitempty" validate:"omitempty,oneof=user admin manager"`
	Permissions *PermissionsDTO `json:"permissions,omitempty"`
}

func (d UpdateUserDTO) IsEmpty() bool {
	return d.Name == nil && d.Email == nil && d.Role == nil && (d.Permissions == nil || d.Permissions.IsEmpty())
}

// Fields returns the column updates for the users table.
func (d UpdateUserDTO) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if d.Name != nil {
		fields["name"] = *d.Name
	}
	if d.Email != nil {
		fields["email"] = *d.Email
	}
	if d.Role != nil {
		fields["role"] = *d.Role
	}
	return fields
}

// PermissionsDTO is a partial permission patch. Flags left nil keep their
// stored value.
type PermissionsDTO struct {
	Attendance *bool `json:"attendance,omitempty"`
	Cashbook   *bool `json:"cashbook,omitempty"`
	Supplier   *bool `json:"supplier,omitempty"`
}

func (d PermissionsDTO) IsEmpty() bool {
	return d.Attendance == nil && d.Cashbook == nil && d.Supplier == nil
}

func (d PermissionsDTO) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if d.Attendance != nil {
		fields["attendance"] = *d.Attendance
	}
	if d.Cashbook != nil {
		fields["cashbook"] = *d.Cashbook
	}
	if d.Supplier != nil {
		fields["supplier"] = *d.Supplier
	}
	return fields
}

// FavoritesDTO accepts either a single favorite or a list. A present
// "favorites" array wins over "favorite"; neither present clears the set.
type FavoritesDTO struct {
	Favorite  *FavoriteInput  `json:"favorite,omitempty"`
	Favorites []FavoriteInput `json:"favorites,omitempty"`
}

// Items normalizes the payload into the replacement set.
func (d FavoritesDTO) Items() []FavoriteInput {
	if d.Favorites != nil {
		return d.Favorites
	}
	if d.Favorite != nil {
		return []FavoriteInput{*d.Favorite}
	}
	return []FavoriteInput{}
}

// FavoriteInput is one requested favorite. On the wire it is either a bare
// product name or an object using name/value or productName/productValue.
type FavoriteInput struct {
	Name  string  `json:"name"`
	Value *string `json:"value,omitempty"`
}

type favoriteObject struct {
	Name         json.RawMessage `json:"name"`
	ProductName  json.RawMessage `json:"productName"`
	Value        json.RawMessage `json:"value"`
	ProductValue json.RawMessage `json:"productValue"`
}

func (f *FavoriteInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("favorite: empty value")
	}

	switch data[0] {
	case '{':
		var obj favoriteObject
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("favorite: %w", err)
		}
		name, err := firstText(obj.Name, obj.ProductName)
		if err != nil {
			return err
		}
		value, err := firstText(obj.Value, obj.ProductValue)
		if err != nil {
			return err
		}
		f.Name = name
		f.Value = nil
		if value != "" {
			f.Value = &value
		}
		return nil
	case '[':
		return fmt.Errorf("favorite: arrays are not a valid favorite")
	case 'n':
		return fmt.Errorf("favorite: null is not a valid favorite")
	}

	name, err := scalarText(data)
	if err != nil {
		return err
	}
	f.Name = name
	f.Value = nil
	return nil
}

// firstText returns the text of the first candidate holding a non-empty
// scalar.
func firstText(candidates ...json.RawMessage) (string, error) {
	for _, raw := range candidates {
		if len(raw) == 0 {
			continue
		}
		text, err := scalarText(raw)
		if err != nil {
			return "", err
		}
		if text != "" {
			return text, nil
		}
	}
	return "", nil
}

// scalarText renders a JSON string, number or bool as text. null is empty.
func scalarText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("favorite: %w", err)
		}
		return strings.TrimSpace(s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return "", fmt.Errorf("favorite: %w", err)
		}
		return strconv.FormatBool(b), nil
	case '{', '[':
		return "", fmt.Errorf("favorite: nested values are not supported")
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("favorite: %w", err)
	}
	return n.String(), nil
}

type DeleteResponse struct {
	Message string `json:"message"`
}

type UsersResponse []*User
