package controllers

import (
	"fmt"
	"strconv"
	"time"

	"learnhub_go/services"
	"learnhub_go/utils"

	"github.com/gofiber/fiber/v2"
)

// LogController exposes the activity audit trail to admins.
type LogController struct {
	logs        *services.LogArchiveService
	archiveDays int
}

func NewLogController(logs *services.LogArchiveService, archiveDays int) *LogController {
	return &LogController{logs: logs, archiveDays: archiveDays}
}

// GetLogs retrieves paginated activity logs with filters
func (lc *LogController) GetLogs(c *fiber.Ctx) error {
	userID, err := queryID(c, "user_id")
	if err != nil {
		return err
	}
	p := utils.ResolvePaging(c, 50, maxPerPage)
	logs, total, err := lc.logs.List(services.LogFilter{
		UserID:   userID,
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
	}, p)
	if err != nil {
		return err
	}
	return paginated(c, "logs", logs, total, p)
}

// GetLogStats summarizes the last ?days (default 7) of activity
func (lc *LogController) GetLogStats(c *fiber.Ctx) error {
	days, err := strconv.Atoi(c.Query("days", "7"))
	if err != nil || days < 1 || days > 365 {
		return utils.BadRequest("days must be between 1 and 365")
	}
	stats, err := lc.logs.Stats(time.Now().UTC().AddDate(0, 0, -days))
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

// FlushCachedLogs moves every log cached in Redis into the database now.
func (lc *LogController) FlushCachedLogs(c *fiber.Ctx) error {
	if !lc.logs.CacheEnabled() {
		return utils.Unavailable("Log cache is not available")
	}
	flushed, err := lc.logs.FlushCachedLogsToDatabase(c.UserContext(), time.Now().UTC())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Cached logs flushed",
		"flushed": flushed,
	})
}

func (lc *LogController) GetArchives(c *fiber.Ctx) error {
	archives, err := lc.logs.Archives()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"archives": archives, "total": len(archives)})
}

// ArchiveLogs runs the archive job on demand.
func (lc *LogController) ArchiveLogs(c *fiber.Ctx) error {
	if !lc.logs.ArchivingEnabled() {
		return utils.Unavailable("Log archiving is not configured")
	}
	days, err := strconv.Atoi(c.Query("days", strconv.Itoa(lc.archiveDays)))
	if err != nil || days < services.MinArchiveDays {
		return utils.BadRequest("days must be at least %d", services.MinArchiveDays)
	}
	archive, err := lc.logs.ArchiveOldLogs(c.UserContext(), days)
	if err != nil {
		return err
	}
	if archive == nil {
		return c.JSON(fiber.Map{"message": "No logs old enough to archive"})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Logs archived",
		"archive": archive,
	})
}

func (lc *LogController) DownloadArchive(c *fiber.Ctx) error {
	if !lc.logs.ArchivingEnabled() {
		return utils.Unavailable("Log archiving is not configured")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	body, name, err := lc.logs.Download(c.UserContext(), id)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
	// fiber closes the stream once it has been written
	return c.SendStream(body)
}
