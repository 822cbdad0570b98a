package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"lupora-api/internal/apperr"
	"lupora-api/internal/auth"
	"lupora-api/internal/dto"
	"lupora-api/internal/model"
	"lupora-api/internal/repository"
	"lupora-api/internal/validate"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const invalidCredentials = "Invalid email or password"

type UserService interface {
	Register(ctx context.Context, req dto.RegisterRequest) (*dto.AuthResponse, error)
	Login(ctx context.Context, req dto.LoginRequest) (*dto.AuthResponse, error)
	Me(ctx context.Context, userID string) (*dto.PublicUser, error)
	UpdateProfile(ctx context.Context, userID string, req dto.UpdateProfileRequest) (*dto.AuthResponse, error)
	ChangePassword(ctx context.Context, userID string, req dto.ChangePasswordRequest) error
}

type userServiceImpl struct {
	userRepo   repository.UserRepository
	tokens     auth.TokenManager
	bcryptCost int
	log        *zap.Logger

	dummyOnce sync.Once
	dummyHash []byte
}

func NewUserService(
	userRepo repository.UserRepository,
	tokens auth.TokenManager,
	bcryptCost int,
	log *zap.Logger,
) UserService {
	return &userServiceImpl{
		userRepo:   userRepo,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		log:        log.Named("users"),
	}
}

func (s *userServiceImpl) Register(ctx context.Context, req dto.RegisterRequest) (*dto.AuthResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	_, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err == nil {
		return nil, apperr.Conflict("User already exists with this email")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("User already exists with this email")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user registered", zap.String("user_id", user.ID))

	return s.authResponse(user, "User registered successfully")
}

func (s *userServiceImpl) Login(ctx context.Context, req dto.LoginRequest) (*dto.AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// keep the response time independent of whether the email exists
		_ = bcrypt.CompareHashAndPassword(s.dummy(), bcryptInput(req.Password))
		return nil, apperr.Unauthorized(invalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), bcryptInput(req.Password)); err != nil {
		return nil, apperr.Unauthorized(invalidCredentials)
	}

	return s.authResponse(user, "Login successful")
}

func (s *userServiceImpl) Me(ctx context.Context, userID string) (*dto.PublicUser, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	public := toPublicUser(user)
	return &public, nil
}

func (s *userServiceImpl) UpdateProfile(ctx context.Context, userID string, req dto.UpdateProfileRequest) (*dto.AuthResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	if err := s.userRepo.UpdateName(ctx, userID, req.Name); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, fmt.Errorf("update user name: %w", err)
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.authResponse(user, "Profile updated successfully")
}

func (s *userServiceImpl) ChangePassword(ctx context.Context, userID string, req dto.ChangePasswordRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), bcryptInput(req.CurrentPassword)); err != nil {
		return apperr.Unauthorized("Current password is incorrect")
	}

	hash, err := s.hashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("update user password: %w", err)
	}

	s.log.Info("password changed", zap.String("user_id", userID))
	return nil
}

func (s *userServiceImpl) findUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *userServiceImpl) hashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword(bcryptInput(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func (s *userServiceImpl) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("lupora-dummy-password"), s.bcryptCost)
	})
	return s.dummyHash
}

func (s *userServiceImpl) authResponse(user *model.User, message string) (*dto.AuthResponse, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &dto.AuthResponse{
		Message: message,
		Token:   token,
		User:    toPublicUser(user),
	}, nil
}

func toPublicUser(user *model.User) dto.PublicUser {
	return dto.PublicUser{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// bcryptInput digests passwords longer than bcrypt's 72 byte limit.
func bcryptInput(password string) []byte {
	if len(password) <= 72 {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
