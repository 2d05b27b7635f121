package api

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/webhost-mcp/internal/services"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var validationErr *services.ValidationError
	var launchErr *services.LaunchError
	var storeErr *services.ContentStoreError
	var submissionErr *services.LedgerSubmissionError
	var protocolErr *services.LedgerProtocolError
	var readErr *services.LedgerReadError

	switch {
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest
	case services.IsNotFound(err):
		return fiber.StatusNotFound
	case errors.As(err, &launchErr) && launchErr.Stage == services.StageJournal:
		return fiber.StatusInternalServerError
	case errors.As(err, &storeErr), errors.As(err, &submissionErr), errors.As(err, &protocolErr), errors.As(err, &readErr):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError sends err as JSON. Launch failures also report how far the run got.
func writeError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Method(), c.Path(), err)
	}

	body := fiber.Map{"error": err.Error()}
	var launchErr *services.LaunchError
	if errors.As(err, &launchErr) {
		body["stage"] = launchErr.Stage
		body["content_published"] = launchErr.ContentPublished()
		body["ledger_state_unknown"] = launchErr.LedgerStateUnknown()
		if launchErr.ContentHash != "" {
			body["content_hash"] = launchErr.ContentHash
		}
		if launchErr.SubmissionID != "" {
			body["submission_id"] = launchErr.SubmissionID
		}
	}
	var submissionErr *services.LedgerSubmissionError
	if errors.As(err, &submissionErr) {
		body["reason"] = submissionErr.Reason
	}
	return c.Status(status).JSON(body)
}
