package controllers

import (
	"strconv"
	"strings"
	"time"

	"learnhub_go/utils"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// paramID parses a positive numeric route parameter.
func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, utils.BadRequest("Invalid %s", name)
	}
	return uint(id), nil
}

// queryID parses an optional numeric query value; missing means 0.
func queryID(c *fiber.Ctx, name string) (uint, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, utils.BadRequest("Invalid %s", name)
	}
	return uint(id), nil
}

// queryTime parses an optional RFC3339 or YYYY-MM-DD query value.
func queryTime(c *fiber.Ctx, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, utils.BadRequest("Invalid %s, expected RFC3339 or YYYY-MM-DD", name)
}

// queryBool parses an optional boolean query value.
func queryBool(c *fiber.Ctx, name string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, utils.BadRequest("Invalid %s", name)
	}
	return &v, nil
}

// bind parses the JSON body into dst and runs the struct validator.
func bind(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return utils.BadRequest("Invalid request body")
	}
	return utils.ValidateStruct(dst)
}

func paging(c *fiber.Ctx) utils.Paging {
	return utils.ResolvePaging(c, defaultPerPage, maxPerPage)
}

func paginated(c *fiber.Ctx, key string, items interface{}, total int64, p utils.Paging) error {
	return c.JSON(fiber.Map{
		key:          items,
		"pagination": utils.BuildPagination(total, p),
	})
}
