// handlers/checkin_routes.go
package handlers

import (
	"errors"
	"log"

	"github.com/MdShahriya/LNODE-sub000/services"

	"github.com/gofiber/fiber/v2"
)

func SetupCheckinRoutes(app *fiber.App, checkinService *services.CheckinService) {
	// GET /checkin returns streak stats and today's eligibility.
	app.Get("/checkin", func(c *fiber.Ctx) error {
		status, err := checkinService.GetStatus(c.Query("walletAddress"))
		if err != nil {
			return checkinErrorResponse(c, err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"checkin": status,
		})
	})

	// POST /checkin performs today's check-in.
	app.Post("/checkin", func(c *fiber.Ctx) error {
		var req struct {
			WalletAddress string `json:"walletAddress"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		checkIn, user, err := checkinService.CheckIn(req.WalletAddress)
		if err != nil {
			return checkinErrorResponse(c, err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"checkin": checkIn,
			"user":    user,
		})
	})
}

func checkinErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrWalletNotConnected):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "WalletNotConnected"})
	case errors.Is(err, services.ErrAlreadyCheckedIn):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "AlreadyCheckedIn"})
	default:
		log.Printf("DB Error on %s: %v", c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
}
