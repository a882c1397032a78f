// handlers/node_routes.go
package handlers

import (
	"errors"
	"log"
	"strconv"

	"github.com/MdShahriya/LNODE-sub000/services"

	"github.com/gofiber/fiber/v2"
)

func SetupNodeRoutes(app *fiber.App, nodeService *services.NodeService) {
	// POST /node/status drives the session state machine: isRunning=true
	// starts, false stops. autoStopped lets a client that noticed the 24h
	// cap first record the same outcome the sweeper would.
	app.Post("/node/status", func(c *fiber.Ctx) error {
		var req struct {
			WalletAddress string `json:"walletAddress"`
			IsRunning     bool   `json:"isRunning"`
			AutoStopped   bool   `json:"autoStopped"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		if req.IsRunning {
			session, user, err := nodeService.StartNode(req.WalletAddress)
			if err != nil {
				return nodeErrorResponse(c, err)
			}
			return c.JSON(fiber.Map{
				"success": true,
				"user":    user,
				"session": session,
			})
		}

		session, user, err := nodeService.StopNode(req.WalletAddress, req.AutoStopped)
		if err != nil {
			return nodeErrorResponse(c, err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"user":    user,
			"session": session,
		})
	})

	// POST /node/heartbeat refreshes liveness and metrics for an active session.
	app.Post("/node/heartbeat", func(c *fiber.Ctx) error {
		var req services.HeartbeatRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		session, err := nodeService.Heartbeat(req)
		if err != nil {
			return nodeErrorResponse(c, err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"session": fiber.Map{
				"sessionId":        session.SessionID,
				"status":           session.Status,
				"uptime":           session.Uptime,
				"lastHeartbeat":    session.LastHeartbeat,
				"performanceScore": session.PerformanceScore,
				"nodeQuality":      session.NodeQuality,
				"errorCount":       session.ErrorCount,
				"warningCount":     session.WarningCount,
			},
		})
	})

	// GET /node/session is the authoritative snapshot clients hydrate from;
	// any local counters are overwritten with this response.
	app.Get("/node/session", func(c *fiber.Ctx) error {
		wallet := c.Query("walletAddress")
		user, session, stale, err := nodeService.Snapshot(wallet)
		if err != nil {
			return nodeErrorResponse(c, err)
		}
		resp := fiber.Map{
			"success": true,
			"user":    user,
			"stale":   stale,
		}
		if session != nil {
			resp["session"] = session
		}
		return c.JSON(resp)
	})

	// GET /sessions returns read-only aggregated history.
	app.Get("/sessions", func(c *fiber.Ctx) error {
		wallet := c.Query("walletAddress")
		days, err := strconv.Atoi(c.Query("days", "30"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid days parameter"})
		}

		history, err := nodeService.GetSessionHistory(wallet, days)
		if err != nil {
			return nodeErrorResponse(c, err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"history": history,
		})
	})
}

// nodeErrorResponse maps service sentinel errors onto the wire taxonomy.
func nodeErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrWalletNotConnected):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "WalletNotConnected"})
	case errors.Is(err, services.ErrAlreadyRunning):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "AlreadyRunning"})
	case errors.Is(err, services.ErrActiveSessionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "ActiveSessionNotFound"})
	default:
		log.Printf("DB Error on %s: %v", c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
}
