// Package handler exposes the story service over HTTP with gin.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"adventure-server/internal/domain"
	"adventure-server/internal/service"
)

// APIError is the standardized error response body.
type APIError struct {
	Message string `json:"message"`
}

// StoryHandler handles the story API routes.
type StoryHandler struct {
	service   *service.StoryService
	logger    *zap.Logger
	jwtSecret string
}

// NewStoryHandler creates a StoryHandler.
func NewStoryHandler(s *service.StoryService, jwtSecret string, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{
		service:   s,
		logger:    logger.Named("StoryHandler"),
		jwtSecret: jwtSecret,
	}
}

// RegisterRoutes mounts all API routes on the router.
func (h *StoryHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")

	// Public routes.
	api.GET("/genres", h.listGenres)
	api.GET("/leaderboard", h.leaderboard)

	// Authenticated routes.
	auth := api.Group("", Auth(h.jwtSecret, h.logger))
	{
		auth.POST("/stories", h.startStory)
		auth.GET("/stories", h.listStories)
		auth.GET("/stories/:id", h.getStory)
		auth.DELETE("/stories/:id", h.deleteStory)
		auth.POST("/stories/:id/choice", h.advanceStory)
		auth.POST("/characters/generate", h.generateCharacter)
		auth.GET("/profile/results", h.profileResults)
	}
}

// respondError maps domain errors onto HTTP statuses.
func (h *StoryHandler) respondError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, domain.ErrStoryNotFound), errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnknownOption),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrTurnInProgress), errors.Is(err, domain.ErrStaleTurn):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrStoryEnded):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrTokenInvalid),
		errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrTokenMalformed):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrGenerationFailed):
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
		h.logger.Error("Unhandled error", zap.Error(err))
		c.JSON(status, APIError{Message: "internal server error"})
		return
	}
	c.JSON(status, APIError{Message: err.Error()})
}

type startStoryRequest struct {
	Genre     string   `json:"genre" binding:"required"`
	Character string   `json:"character" binding:"required"`
	Gender    string   `json:"gender"`
	Traits    []string `json:"traits"`
	Bio       string   `json:"bio"`
	ImageURL  string   `json:"imageUrl"`
}

func (h *StoryHandler) startStory(c *gin.Context) {
	owner, ok := ownerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, APIError{Message: "unauthorized"})
		return
	}

	var req startStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body: " + err.Error()})
		return
	}

	session, err := h.service.StartStory(c.Request.Context(), owner, domain.CharacterSetup{
		Genre:     req.Genre,
		Character: req.Character,
		Gender:    req.Gender,
		Traits:    req.Traits,
		Bio:       req.Bio,
		ImageURL:  req.ImageURL,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

type choiceRequest struct {
	OptionKey string `json:"optionKey" binding:"required"`
}

func (h *StoryHandler) advanceStory(c *gin.Context) {
	owner, ok := ownerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, APIError{Message: "unauthorized"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid story id"})
		return
	}

	var req choiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body: " + err.Error()})
		return
	}

	session, err := h.service.AdvanceStory(c.Request.Context(), owner, id, req.OptionKey)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *StoryHandler) getStory(c *gin.Context) {
	owner, ok := ownerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, APIError{Message: "unauthorized"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid story id"})
		return
	}

	session, err := h.service.GetStory(c.Request.Context(), owner, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *StoryHandler) listStories(c *gin.Context) {
	owner, ok := ownerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, APIError{Message: "unauthorized"})
		return
	}

	sessions, err := h.service.ListStories(c.Request.Context(), owner)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": sessions})
}

func (h *StoryHandler) deleteStory(c *gin.Context) {
	owner, ok := ownerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, APIError{Message: "unauthorized"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid story id"})
		return
	}

	if err := h.service.DeleteStory(c.Request.Context(), owner, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type generateCharacterRequest struct {
	Genre     string `json:"genre" binding:"required"`
	Character string `json:"character" binding:"required"`
}

func (h *StoryHandler) generateCharacter(c *gin.Context) {
	var req generateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body: " + err.Error()})
		return
	}

	setup, err := h.service.GenerateCharacter(c.Request.Context(), req.Genre, req.Character)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, setup)
}

func (h *StoryHandler) listGenres(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"genres": h.service.Genres()})
}

func (h *StoryHandler) leaderboard(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, APIError{Message: "invalid limit"})
			return
		}
		limit = parsed
	}

	results, err := h.service.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *StoryHandler) profileResults(c *gin.Context) {
	owner, ok := ownerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, APIError{Message: "unauthorized"})
		return
	}

	results, err := h.service.ResultsForOwner(c.Request.Context(), owner)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
