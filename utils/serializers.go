package utils

import (
	"encoding/json"
	"time"

	"learnhub_go/models"
)

// Compact representations used across APIs
type UserShort struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

type UserDTO struct {
	ID         uint      `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Role       string    `json:"role"`
	Active     bool      `json:"active"`
	Avatar     string    `json:"avatar,omitempty"`
	LineLinked bool      `json:"line_linked"`
	CreatedAt  time.Time `json:"created_at"`
}

type NotificationDTO struct {
	ID        uint        `json:"id"`
	CreatedAt time.Time   `json:"created_at"`
	UserID    uint        `json:"user_id"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	Type      string      `json:"type"`
	Read      bool        `json:"read"`
	ReadAt    *time.Time  `json:"read_at,omitempty"`
	Channels  []string    `json:"channels"`
	Data      interface{} `json:"data,omitempty"`
}

func ToUserShort(u *models.User) *UserShort {
	if u == nil || u.ID == 0 {
		return nil
	}
	return &UserShort{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

func ToUserDTO(u models.User) UserDTO {
	return UserDTO{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Phone:      u.Phone,
		Role:       u.Role,
		Active:     u.Active,
		Avatar:     u.Avatar,
		LineLinked: u.LineID != "",
		CreatedAt:  u.CreatedAt,
	}
}

func ToUserDTOs(users []models.User) []UserDTO {
	out := make([]UserDTO, 0, len(users))
	for _, u := range users {
		out = append(out, ToUserDTO(u))
	}
	return out
}

// ToNotificationDTO maps a models.Notification to the compact DTO.
func ToNotificationDTO(n models.Notification) NotificationDTO {
	dto := NotificationDTO{
		ID:        n.ID,
		CreatedAt: n.CreatedAt,
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		Read:      n.Read,
		ReadAt:    n.ReadAt,
		Channels:  []string{"normal"},
	}
	if !n.Channels.IsNull() {
		var channels []string
		if err := json.Unmarshal(n.Channels, &channels); err == nil && len(channels) > 0 {
			dto.Channels = channels
		}
	}
	if !n.Data.IsNull() {
		var data interface{}
		if err := json.Unmarshal(n.Data, &data); err == nil {
			dto.Data = data
		}
	}
	return dto
}

func ToNotificationDTOs(list []models.Notification) []NotificationDTO {
	out := make([]NotificationDTO, 0, len(list))
	for _, n := range list {
		out = append(out, ToNotificationDTO(n))
	}
	return out
}
