package services

import (
	"strings"

	"learnhub_go/models"
	"learnhub_go/utils"

	"gorm.io/gorm"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// UserInput is the writable part of a user account.
type UserInput struct {
	Name     string `json:"name" validate:"required,min=2,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
	LineID   string `json:"line_id" validate:"omitempty,max=100"`
	Role     string `json:"role" validate:"omitempty,oneof=admin teacher student parent"`
}

type UserUpdate struct {
	Name   *string `json:"name" validate:"omitempty,min=2,max=255"`
	Email  *string `json:"email" validate:"omitempty,email"`
	Phone  *string `json:"phone" validate:"omitempty,max=20"`
	LineID *string `json:"line_id" validate:"omitempty,max=100"`
	Role   *string `json:"role" validate:"omitempty,oneof=admin teacher student parent"`
}

type UserFilter struct {
	Role   string
	Active *bool
	Search string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a user with any role. Email must be unique.
func (s *UserService) Create(in UserInput) (*models.User, error) {
	if in.Role == "" {
		in.Role = models.RoleStudent
	}
	if !utils.IsValidRole(in.Role) {
		return nil, utils.BadRequest("Invalid role")
	}
	email := normalizeEmail(in.Email)

	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.Conflict("Email already registered")
	}

	hashed, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := models.User{
		Name:     utils.SanitizeString(in.Name),
		Email:    email,
		Password: hashed,
		Phone:    in.Phone,
		LineID:   in.LineID,
		Role:     in.Role,
		Active:   true,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Register is the public sign-up; only student and parent accounts can be self-created.
func (s *UserService) Register(in UserInput) (*models.User, error) {
	if in.Role == "" {
		in.Role = models.RoleStudent
	}
	if in.Role != models.RoleStudent && in.Role != models.RoleParent {
		return nil, utils.Forbidden("Only student or parent accounts can self-register")
	}
	return s.Create(in)
}

// Authenticate checks credentials. Inactive accounts cannot log in.
func (s *UserService) Authenticate(email, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.Unauthorized("Invalid credentials")
		}
		return nil, err
	}
	if err := utils.CheckPassword(password, user.Password); err != nil {
		return nil, utils.Unauthorized("Invalid credentials")
	}
	if !user.Active {
		return nil, utils.Unauthorized("Account is deactivated")
	}
	return &user, nil
}

func (s *UserService) Get(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.NotFound("User not found")
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserService) List(f UserFilter, p utils.Paging) ([]models.User, int64, error) {
	query := s.db.Model(&models.User{})
	if f.Role != "" {
		query = query.Where("role = ?", f.Role)
	}
	if f.Active != nil {
		query = query.Where("active = ?", *f.Active)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	err := query.Order("id ASC").Offset(p.Offset).Limit(p.PerPage).Find(&users).Error
	return users, total, err
}

func (s *UserService) Update(id uint, in UserUpdate) (*models.User, error) {
	user, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = utils.SanitizeString(*in.Name)
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if email != user.Email {
			var count int64
			if err := s.db.Model(&models.User{}).Where("email = ? AND id <> ?", email, id).Count(&count).Error; err != nil {
				return nil, err
			}
			if count > 0 {
				return nil, utils.Conflict("Email already registered")
			}
		}
		updates["email"] = email
	}
	if in.Phone != nil {
		updates["phone"] = *in.Phone
	}
	if in.LineID != nil {
		updates["line_id"] = *in.LineID
	}
	if in.Role != nil {
		if !utils.IsValidRole(*in.Role) {
			return nil, utils.BadRequest("Invalid role")
		}
		updates["role"] = *in.Role
	}
	if len(updates) == 0 {
		return user, nil
	}
	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(id)
}

// SetActive flips the active flag. Deactivation keeps every related row.
func (s *UserService) SetActive(id uint, active bool) (*models.User, error) {
	user, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(user).Update("active", active).Error; err != nil {
		return nil, err
	}
	user.Active = active
	return user, nil
}

func (s *UserService) ChangePassword(id uint, current, next string) error {
	user, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := utils.CheckPassword(current, user.Password); err != nil {
		return utils.BadRequest("Current password is incorrect")
	}
	if len(next) < 6 {
		return utils.BadRequest("New password must be at least 6 characters")
	}
	hashed, err := utils.HashPassword(next)
	if err != nil {
		return err
	}
	return s.db.Model(user).Update("password", hashed).Error
}
