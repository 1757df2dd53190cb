package controllers

import (
	"context"
	"mime/multipart"
	"strings"

	"learnhub_go/middleware"
	"learnhub_go/models"
	"learnhub_go/services"
	"learnhub_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// ContentFileStore keeps uploaded pdf and video files.
type ContentFileStore interface {
	CheckContentFile(file *multipart.FileHeader, contentType string) error
	UploadContentFile(ctx context.Context, file *multipart.FileHeader, courseID uint) (string, error)
	DeleteFile(ctx context.Context, fileURL string) error
}

type ContentController struct {
	contents *services.ContentService
	access   *services.AccessService
	files    ContentFileStore
}

// NewContentController builds the controller; files may be nil when S3 is
// not configured, which disables uploads.
func NewContentController(contents *services.ContentService, access *services.AccessService, files ContentFileStore) *ContentController {
	return &ContentController{contents: contents, access: access, files: files}
}

func (cc *ContentController) GetContents(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	courseID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	list, err := cc.contents.List(user, courseID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"contents": list, "total": len(list)})
}

// CreateContent accepts JSON for text and link items, or a multipart form
// with a "file" part for pdf and video uploads.
func (cc *ContentController) CreateContent(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	courseID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req services.ContentInput
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequest("Invalid request body")
	}

	var uploadedURL string
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		file, err := c.FormFile("file")
		if err == nil {
			if uploadedURL, err = cc.upload(c, user, courseID, file, req.Type); err != nil {
				return err
			}
			req.URL = uploadedURL
			req.FileSize = file.Size
		}
	}
	if err := utils.ValidateStruct(&req); err != nil {
		cc.discard(c, uploadedURL)
		return err
	}

	content, err := cc.contents.Create(user, courseID, req)
	if err != nil {
		cc.discard(c, uploadedURL)
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Content created successfully",
		"content": content,
	})
}

func (cc *ContentController) upload(c *fiber.Ctx, user *models.User, courseID uint, file *multipart.FileHeader, contentType string) (string, error) {
	if cc.files == nil {
		return "", utils.Unavailable("File uploads are not configured")
	}
	// check ownership before anything reaches the bucket
	if _, err := cc.access.ManageCourse(user, courseID); err != nil {
		return "", err
	}
	if err := cc.files.CheckContentFile(file, contentType); err != nil {
		return "", err
	}
	return cc.files.UploadContentFile(c.UserContext(), file, courseID)
}

// discard removes an uploaded file whose content row was never created.
func (cc *ContentController) discard(c *fiber.Ctx, url string) {
	if url == "" || cc.files == nil {
		return
	}
	if err := cc.files.DeleteFile(c.UserContext(), url); err != nil {
		logrus.WithError(err).WithField("url", url).Warn("failed to remove orphaned upload")
	}
}

func (cc *ContentController) UpdateContent(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req services.ContentUpdate
	if err := bind(c, &req); err != nil {
		return err
	}
	content, err := cc.contents.Update(user, id, req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Content updated successfully",
		"content": content,
	})
}

func (cc *ContentController) DeleteContent(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	content, err := cc.contents.Delete(user, id)
	if err != nil {
		return err
	}
	if content.FileSize > 0 {
		cc.discard(c, content.URL)
	}
	return c.JSON(fiber.Map{"message": "Content deleted successfully"})
}

func (cc *ContentController) ReorderContents(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	courseID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req services.ReorderInput
	if err := bind(c, &req); err != nil {
		return err
	}
	list, err := cc.contents.Reorder(user, courseID, req.IDs)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"contents": list, "total": len(list)})
}
