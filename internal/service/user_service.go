package service

import (
	"errors"

	"github.com/serverestaa/instagram-client/internal/models"
	"github.com/serverestaa/instagram-client/pkg/jwt"

	"gorm.io/gorm"
)

var (
	ErrUserAlreadyExists  = errors.New("user with this username or email already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
)

// UserService handles user-related operations
type UserService struct {
	db  *gorm.DB
	jwt *jwt.Service
}

// NewUserService creates a new user service
func NewUserService(db *gorm.DB, jwtService *jwt.Service) *UserService {
	return &UserService{db: db, jwt: jwtService}
}

// CreateUser creates a new user and returns it with a signed token
func (s *UserService) CreateUser(req *models.SignupRequest) (*models.User, string, error) {
	var existing models.User
	result := s.db.Where("username = ? OR email = ?", req.Username, req.Email).First(&existing)
	if result.RowsAffected > 0 {
		return nil, "", ErrUserAlreadyExists
	}

	user := models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password, // hashed by the BeforeCreate hook
	}
	if err := s.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", ErrUserAlreadyExists
		}
		return nil, "", err
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, "", err
	}

	return &user, token, nil
}

// Login authenticates a user and returns a JWT token
func (s *UserService) Login(req *models.LoginRequest) (*models.User, string, error) {
	var user models.User
	result := s.db.Where("username = ?", req.Username).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", result.Error
	}

	if !models.CheckPasswordHash(req.Password, user.Password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, "", err
	}

	return &user, token, nil
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	result := s.db.First(&user, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}
