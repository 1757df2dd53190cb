package services

import (
	"learnhub_go/models"
	"learnhub_go/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ContentService struct {
	db     *gorm.DB
	access *AccessService
}

func NewContentService(db *gorm.DB) *ContentService {
	return &ContentService{db: db, access: NewAccessService(db)}
}

type ContentInput struct {
	Title      string `json:"title" form:"title" validate:"required,min=1,max=255"`
	Type       string `json:"type" form:"type" validate:"required,oneof=text video pdf link"`
	Body       string `json:"body" form:"body"`
	URL        string `json:"url" form:"url" validate:"omitempty,url"`
	FileSize   int64  `json:"-" form:"-"`
	OrderIndex *int   `json:"order_index" form:"order_index" validate:"omitempty,gte=0"`
	Published  *bool  `json:"published" form:"published"`
}

type ContentUpdate struct {
	Title      *string `json:"title" validate:"omitempty,min=1,max=255"`
	Body       *string `json:"body"`
	URL        *string `json:"url" validate:"omitempty,url"`
	OrderIndex *int    `json:"order_index" validate:"omitempty,gte=0"`
	Published  *bool   `json:"published"`
}

type ReorderInput struct {
	IDs []uint `json:"ids" validate:"required,min=1"`
}

// List returns a course's contents in order. Only managers see unpublished items.
func (s *ContentService) List(user *models.User, courseID uint) ([]models.Content, error) {
	if _, err := s.access.ViewCourse(user, courseID); err != nil {
		return nil, err
	}
	query := s.db.Where("course_id = ?", courseID)
	if _, err := s.access.ManageCourse(user, courseID); err != nil {
		query = query.Where("published = ?", true)
	}
	var list []models.Content
	err := query.Order("order_index ASC, id ASC").Find(&list).Error
	return list, err
}

func (s *ContentService) validateBody(typ, body, url string) error {
	if !utils.IsValidContentType(typ) {
		return utils.BadRequest("Invalid content type")
	}
	switch typ {
	case models.ContentText:
		if body == "" {
			return utils.BadRequest("Text content needs a body")
		}
	case models.ContentLink, models.ContentVideo, models.ContentPDF:
		if url == "" {
			return utils.BadRequest("%s content needs a url or an uploaded file", typ)
		}
	}
	return nil
}

// Create adds content to a course. Without an explicit order index it is
// appended after the current last item.
func (s *ContentService) Create(actor *models.User, courseID uint, in ContentInput) (*models.Content, error) {
	if _, err := s.access.ManageCourse(actor, courseID); err != nil {
		return nil, err
	}
	if err := s.validateBody(in.Type, in.Body, in.URL); err != nil {
		return nil, err
	}
	published := true
	if in.Published != nil {
		published = *in.Published
	}

	content := models.Content{
		CourseID:  courseID,
		Title:     utils.SanitizeString(in.Title),
		Type:      in.Type,
		Body:      in.Body,
		URL:       in.URL,
		FileSize:  in.FileSize,
		Published: published,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if in.OrderIndex != nil {
			content.OrderIndex = *in.OrderIndex
		} else {
			// lock the course so two appends do not pick the same index
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&models.Course{}, courseID).Error; err != nil {
				return err
			}
			var last int
			if err := tx.Model(&models.Content{}).
				Select("COALESCE(MAX(order_index), -1)").
				Where("course_id = ?", courseID).
				Row().Scan(&last); err != nil {
				return err
			}
			content.OrderIndex = last + 1
		}
		return tx.Create(&content).Error
	})
	if err != nil {
		return nil, err
	}
	return &content, nil
}

func (s *ContentService) load(id uint) (*models.Content, error) {
	var content models.Content
	if err := s.db.First(&content, id).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.NotFound("Content not found")
		}
		return nil, err
	}
	return &content, nil
}

func (s *ContentService) Update(actor *models.User, id uint, in ContentUpdate) (*models.Content, error) {
	content, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.ManageCourse(actor, content.CourseID); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Title != nil {
		updates["title"] = utils.SanitizeString(*in.Title)
	}
	if in.Body != nil {
		updates["body"] = *in.Body
	}
	if in.URL != nil {
		updates["url"] = *in.URL
	}
	if in.OrderIndex != nil {
		updates["order_index"] = *in.OrderIndex
	}
	if in.Published != nil {
		updates["published"] = *in.Published
	}
	if len(updates) > 0 {
		if err := s.db.Model(content).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.load(id)
}

// Delete removes the row and returns it so the caller can clean up any stored file.
func (s *ContentService) Delete(actor *models.User, id uint) (*models.Content, error) {
	content, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.ManageCourse(actor, content.CourseID); err != nil {
		return nil, err
	}
	if err := s.db.Delete(&models.Content{}, id).Error; err != nil {
		return nil, err
	}
	return content, nil
}

// Reorder rewrites order indices to follow ids. ids must name every content
// of the course exactly once.
func (s *ContentService) Reorder(actor *models.User, courseID uint, ids []uint) ([]models.Content, error) {
	if _, err := s.access.ManageCourse(actor, courseID); err != nil {
		return nil, err
	}
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, utils.BadRequest("Content %d listed twice", id)
		}
		seen[id] = true
	}

	var list []models.Content
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing []uint
		if err := tx.Model(&models.Content{}).Where("course_id = ?", courseID).Pluck("id", &existing).Error; err != nil {
			return err
		}
		if len(existing) != len(ids) {
			return utils.BadRequest("Reorder must list all %d contents of the course", len(existing))
		}
		for _, id := range existing {
			if !seen[id] {
				return utils.BadRequest("Content %d is missing from the new order", id)
			}
		}
		for i, id := range ids {
			if err := tx.Model(&models.Content{}).Where("id = ?", id).Update("order_index", i).Error; err != nil {
				return err
			}
		}
		return tx.Where("course_id = ?", courseID).Order("order_index ASC").Find(&list).Error
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}
