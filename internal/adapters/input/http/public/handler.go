package public

import (
    "context"
    "errors"
    "log/slog"
    "net/http"

    "github.com/gin-gonic/gin"
    "github.com/walletera/kanban/internal/domain/cards"
    "github.com/walletera/kanban/internal/domain/cards/activity"
    "github.com/walletera/kanban/internal/eventsourcing"
    "github.com/walletera/kanban/pkg/logattr"
)

type CardCommands interface {
    HandleOpenTask(ctx context.Context, command cards.OpenTask) error
    HandleAssignCard(ctx context.Context, command cards.AssignCard) error
    HandleStartDevelopment(ctx context.Context, command cards.StartDevelopment) error
}

var _ CardCommands = (*cards.Handlers)(nil)

type Handler struct {
    commands   CardCommands
    repository activity.Repository
    logger     *slog.Logger
}

func NewHandler(commands CardCommands, repository activity.Repository, logger *slog.Logger) *Handler {
    return &Handler{commands: commands, repository: repository, logger: logger}
}

type assignCardRequest struct {
    Assignee string `json:"assignee"`
}

// OpenTask handles POST /tasks.
func (h *Handler) OpenTask(c *gin.Context) {
    var command cards.OpenTask
    if err := c.ShouldBindJSON(&command); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }
    err := h.commands.HandleOpenTask(c.Request.Context(), command)
    if err != nil {
        h.writeCommandError(c, command.Id, err)
        return
    }
    c.Status(http.StatusCreated)
}

// AssignCard handles PUT /cards/:cardId/assignee.
func (h *Handler) AssignCard(c *gin.Context) {
    var req assignCardRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }
    cardId := c.Param("cardId")
    err := h.commands.HandleAssignCard(c.Request.Context(), cards.AssignCard{Id: cardId, Assignee: req.Assignee})
    if err != nil {
        h.writeCommandError(c, cardId, err)
        return
    }
    c.Status(http.StatusNoContent)
}

// StartDevelopment handles POST /cards/:cardId/start.
func (h *Handler) StartDevelopment(c *gin.Context) {
    cardId := c.Param("cardId")
    err := h.commands.HandleStartDevelopment(c.Request.Context(), cards.StartDevelopment{Id: cardId})
    if err != nil {
        h.writeCommandError(c, cardId, err)
        return
    }
    c.Status(http.StatusNoContent)
}

// GetActivity handles GET /cards/:cardId/activity.
func (h *Handler) GetActivity(c *gin.Context) {
    cardId := c.Param("cardId")
    entries, found, werr := h.repository.GetEntries(c.Request.Context(), cardId)
    if werr != nil {
        h.logger.Error(
            "failed getting card activity",
            logattr.Error(werr.Error()),
            logattr.CardId(cardId),
        )
        c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected internal error"})
        return
    }
    if !found {
        c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
        return
    }
    c.JSON(http.StatusOK, entries)
}

func (h *Handler) writeCommandError(c *gin.Context, cardId string, err error) {
    var violation *eventsourcing.PreconditionViolationError
    switch {
    case errors.As(err, &violation):
        c.JSON(http.StatusUnprocessableEntity, gin.H{"error": violation.Message, "rule": violation.Rule})
    case errors.Is(err, eventsourcing.ErrVersionConflict):
        c.JSON(http.StatusConflict, gin.H{"error": "card was modified concurrently, retry the request"})
    default:
        h.logger.Error(
            "failed handling card command",
            logattr.Error(err.Error()),
            logattr.CardId(cardId),
        )
        c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected internal error"})
    }
}
