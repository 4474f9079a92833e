// handlers/admin_routes.go
package handlers

import (
	"errors"
	"net/url"
	"strconv"
	"time"

	"promo-task-bot/middleware"
	"promo-task-bot/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AdminDeps struct {
	Admin         *services.AdminService
	Broadcasts    *services.BroadcastService
	Export        *services.ExportService
	OperatorToken string
	Log           *zap.Logger
}

// SetupAdminRoutes mounts the operator API under /s/admin.
func SetupAdminRoutes(app *fiber.App, deps AdminDeps) {
	// 🔐 gateway token, operator identity and the admin role are all required
	admin := app.Group("/s/admin",
		middleware.GatewayAuthMiddleware(deps.OperatorToken, deps.Log),
		middleware.UserContextMiddleware(deps.Log),
		middleware.RequireRole("admin"),
	)

	admin.Get("/requirements", func(c *fiber.Ctx) error {
		reqs, err := deps.Admin.ListRequirements(c.UserContext())
		if err != nil {
			return serviceError(c, deps.Log, err)
		}
		return c.JSON(fiber.Map{"requirements": reqs})
	})

	admin.Post("/requirements", func(c *fiber.Ctx) error {
		var in services.RequirementInput
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
		}
		req, version, err := deps.Admin.AddRequirement(c.UserContext(), in)
		if err != nil {
			return serviceError(c, deps.Log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"requirement": req, "task_version": version})
	})

	admin.Delete("/requirements/:id", func(c *fiber.Ctx) error {
		id, err := url.PathUnescape(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid requirement id"})
		}
		version, err := deps.Admin.RemoveRequirement(c.UserContext(), id)
		if err != nil {
			return serviceError(c, deps.Log, err)
		}
		return c.JSON(fiber.Map{"removed": id, "task_version": version})
	})

	admin.Post("/version/bump", func(c *fiber.Ctx) error {
		version, err := deps.Admin.BumpVersion(c.UserContext())
		if err != nil {
			return serviceError(c, deps.Log, err)
		}
		return c.JSON(fiber.Map{"task_version": version})
	})

	admin.Put("/settings/reward", func(c *fiber.Ctx) error {
		var body struct {
			Amount *int `json:"amount"`
		}
		if err := c.BodyParser(&body); err != nil || body.Amount == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount is required"})
		}
		if err := deps.Admin.SetRewardAmount(c.UserContext(), *body.Amount); err != nil {
			return serviceError(c, deps.Log, err)
		}
		return c.JSON(fiber.Map{"promo_coins": *body.Amount})
	})

	admin.Get("/stats", func(c *fiber.Ctx) error {
		st, err := deps.Admin.Stats(c.UserContext())
		if err != nil {
			return serviceError(c, deps.Log, err)
		}
		return c.JSON(st)
	})

	admin.Get("/users", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(services.DefaultUsersLimit)))
		users, err := deps.Admin.RecentUsers(c.UserContext(), c.Query("q"), limit)
		if err != nil {
			return serviceError(c, deps.Log, err)
		}
		return c.JSON(fiber.Map{"users": users})
	})

	admin.Get("/users/:uid", func(c *fiber.Ctx) error {
		info, err := deps.Admin.UserInfo(c.UserContext(), c.Params("uid"))
		if err != nil {
			return serviceError(c, deps.Log, err)
		}
		return c.JSON(info)
	})

	admin.Get("/codes", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(services.DefaultCodesLimit)))
		filter := services.ParseCodeFilter(c.Query("filter"))
		codes, err := deps.Admin.ListCodes(c.UserContext(), filter, limit)
		if err != nil {
			return serviceError(c, deps.Log, err)
		}
		return c.JSON(fiber.Map{"filter": filter, "codes": codes})
	})

	admin.Post("/codes/:code/redeem", func(c *fiber.Ctx) error {
		var body struct {
			UsedBy string `json:"used_by"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
			}
		}
		if body.UsedBy == "" {
			body.UsedBy = middleware.UserID(c)
		}
		promo, err := deps.Admin.RedeemCode(c.UserContext(), c.Params("code"), body.UsedBy)
		if err != nil {
			return serviceError(c, deps.Log, err)
		}
		return c.JSON(promo)
	})

	admin.Post("/broadcasts", func(c *fiber.Ctx) error {
		var body struct {
			Text string `json:"text"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
		}
		b, err := deps.Broadcasts.Start(c.UserContext(), body.Text, middleware.UserID(c), nil)
		if err != nil {
			return serviceError(c, deps.Log, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(b)
	})

	admin.Get("/broadcasts/:id", func(c *fiber.Ctx) error {
		b, err := deps.Broadcasts.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return serviceError(c, deps.Log, err)
		}
		return c.JSON(b)
	})

	admin.Get("/exports/codes.csv", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/csv")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="promo_codes.csv"`)
		if _, err := deps.Export.WriteCodesCSV(c.UserContext(), c); err != nil {
			return serviceError(c, deps.Log, err)
		}
		return nil
	})

	admin.Post("/exports/codes", func(c *fiber.Ctx) error {
		if deps.Export.Uploader == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "object storage not configured"})
		}
		link, rows, err := deps.Export.UploadCodesCSV(c.UserContext(), time.Now())
		if err != nil {
			return serviceError(c, deps.Log, err)
		}
		return c.JSON(fiber.Map{"url": link, "rows": rows})
	})
}

// serviceError maps domain errors onto HTTP statuses.
func serviceError(c *fiber.Ctx, log *zap.Logger, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrRequirementNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrCodeNotFound),
		errors.Is(err, services.ErrBroadcastNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrDuplicateRequirement),
		errors.Is(err, services.ErrCodeAlreadyRedeemed):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrInvalidRequirement),
		errors.Is(err, services.ErrInvalidRewardAmount),
		errors.Is(err, services.ErrEmptyBroadcast):
		status = fiber.StatusBadRequest
	}
	if status == fiber.StatusInternalServerError {
		log.Error("[ADMIN_API] request failed", zap.String("route", c.Route().Path), zap.Error(err))
		return c.Status(status).JSON(fiber.Map{"error": "internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
