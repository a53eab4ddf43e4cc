package models

import (
	"context"
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mapletrade/store_backend/config"
	"github.com/mapletrade/store_backend/utils"
	"golang.org/x/crypto/bcrypt"
)

type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleCustomer UserRole = "customer"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      UserRole  `gorm:"size:20;default:'customer'" json:"role"`
	IsActive  *bool     `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// isDuplicateKeyErr reports whether err is a MySQL unique key violation.
// The uniqueness pre-checks race under concurrency; the unique index is the
// authority and its violation maps back to the same validation failure.
func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

type NewUser struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if err := utils.ValidateUnique[User](ctx, "email", input.Email, 0); err != nil {
		return nil, utils.NewValidationError("email is already registered")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, utils.NewInternalError("failed to hash password", err)
	}

	db := config.GetDB()
	user := &User{
		Name:     input.Name,
		Email:    input.Email,
		Password: string(hashed),
		Role:     UserRoleCustomer,
		IsActive: utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, utils.NewValidationError("email is already registered")
		}
		return nil, utils.NewInternalError("failed to create user", err)
	}
	return user, nil
}

// AuthenticateUser checks credentials and returns a signed token.
func AuthenticateUser(ctx context.Context, email, password string) (string, *User, error) {
	db := config.GetDB()
	var user User
	err := db.WithContext(ctx).Where("email = ? AND is_active = true", email).First(&user).Error
	if err != nil {
		return "", nil, utils.NewValidationError("invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, utils.NewValidationError("invalid email or password")
	}

	token, err := utils.JwtGenerate(user.ID, string(user.Role))
	if err != nil {
		return "", nil, utils.NewInternalError("failed to issue token", err)
	}
	return token, &user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	return utils.FetchModel[User](ctx, id)
}
