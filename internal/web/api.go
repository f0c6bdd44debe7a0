package web

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"flagcast/internal/platform"
	logx "flagcast/pkg/logx"
)

type challengeJSON struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Type     string `json:"type"`
	Value    int    `json:"value"`
	State    string `json:"state"`
}

func toJSON(ch platform.Challenge) challengeJSON {
	return challengeJSON{
		ID: ch.ID, Name: ch.Name, Category: ch.Category,
		Type: ch.Type, Value: ch.Value, State: string(ch.State),
	}
}

func paramID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

func (s *Service) listChallenges(c *fiber.Ctx) error {
	list, err := s.platform.ListChallenges(c.Context())
	if err != nil {
		return s.serverError(c, err)
	}
	out := make([]challengeJSON, 0, len(list))
	for _, ch := range list {
		out = append(out, toJSON(ch))
	}
	return c.JSON(out)
}

func (s *Service) createChallenge(c *fiber.Ctx) error {
	var in challengeJSON
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	ch := platform.Challenge{
		Name: in.Name, Category: in.Category, Type: in.Type,
		Value: in.Value, State: platform.State(in.State),
	}
	if err := s.platform.CreateChallenge(c.Context(), &ch); err != nil {
		return badRequest(c, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(toJSON(ch))
}

func (s *Service) getChallenge(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, "invalid challenge id")
	}
	ch, err := s.platform.GetChallenge(c.Context(), id)
	if errors.Is(err, platform.ErrNotFound) {
		return notFound(c)
	}
	if err != nil {
		return s.serverError(c, err)
	}

	solves, err := s.platform.CountSolves(c.Context(), id)
	if err != nil {
		return s.serverError(c, err)
	}
	return c.JSON(fiber.Map{"challenge": toJSON(ch), "solves": solves})
}

func (s *Service) updateChallenge(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, "invalid challenge id")
	}
	var in challengeJSON
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	ch := platform.Challenge{
		ID: id, Name: in.Name, Category: in.Category, Type: in.Type,
		Value: in.Value, State: platform.State(in.State),
	}
	err = s.platform.UpdateChallenge(c.Context(), &ch)
	if errors.Is(err, platform.ErrNotFound) {
		return notFound(c)
	}
	if err != nil {
		return badRequest(c, err.Error())
	}
	return c.JSON(toJSON(ch))
}

func (s *Service) submitSolve(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, "invalid challenge id")
	}
	var in struct {
		User string `json:"user"`
	}
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid body")
	}

	sv, created, err := s.platform.RecordSolve(c.Context(), id, in.User)
	if errors.Is(err, platform.ErrNotFound) {
		return notFound(c)
	}
	if err != nil {
		return badRequest(c, err.Error())
	}

	status := fiber.StatusCreated
	if !created {
		// Repeat submission: recorded-once, no new solve.
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"id":      sv.ID,
		"user":    sv.UserName,
		"created": created,
	})
}

func (s *Service) listDeliveries(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	list, err := s.store.ListDeliveries(c.Context(), limit)
	if err != nil {
		return s.serverError(c, err)
	}
	return c.JSON(list)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func notFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
}

func (s *Service) serverError(c *fiber.Ctx, err error) error {
	// Don't leak driver details to clients; the log has them.
	s.log.Error("request failed", logx.String("path", c.Path()), logx.Err(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}
