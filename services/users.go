package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gorm.io/gorm"

	"feedgraph/db"
	"feedgraph/models"
)

type UserService struct{}

func NewUserService() *UserService {
	return &UserService{}
}

func hashPassword(password string, salt []byte) string {
	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(hash)
}

// Register creates a user with an argon2-hashed password.
func (us *UserService) Register(ctx context.Context, nickname, password, firstName, lastName, city string) (*models.User, error) {
	if nickname == "" || password == "" {
		return nil, errors.New("nickname and password are required")
	}

	var existing int64
	err := db.GetReadOnlyDB(ctx).Model(&models.User{}).Where("nickname = ?", nickname).Count(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check nickname: %w", err)
	}
	if existing > 0 {
		return nil, errors.New("user already exists")
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	user := &models.User{
		Nickname:  nickname,
		FirstName: firstName,
		LastName:  lastName,
		Password:  hashPassword(password, salt),
		City:      city,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.GetWriteDB(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login verifies the password and issues a fresh token, dropping old ones.
func (us *UserService) Login(ctx context.Context, nickname, password string) (string, *models.User, error) {
	var user models.User
	err := db.GetReadOnlyDB(ctx).Where("nickname = ?", nickname).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, errors.New("user not found")
	}
	if err != nil {
		return "", nil, err
	}

	parts := strings.Split(user.Password, "$")
	if len(parts) != 2 {
		return "", nil, errors.New("invalid password format")
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", nil, err
	}
	if hashPassword(password, salt) != user.Password {
		return "", nil, errors.New("invalid password")
	}

	_ = us.Logout(ctx, user.ID)

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", nil, err
	}
	token := hex.EncodeToString(tokenBytes)

	err = db.GetWriteDB(ctx).Create(&models.UserTokens{UserID: user.ID, Token: token}).Error
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

// CheckToken resolves a token to its user id.
func (us *UserService) CheckToken(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, errors.New("token is empty")
	}
	var userToken models.UserTokens
	err := db.GetReadOnlyDB(ctx).Where("token = ?", token).First(&userToken).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, errors.New("invalid token")
	}
	if err != nil {
		return 0, err
	}
	return userToken.UserID, nil
}

func (us *UserService) Logout(ctx context.Context, userID int64) error {
	return db.GetWriteDB(ctx).Where("user_id = ?", userID).Delete(&models.UserTokens{}).Error
}
