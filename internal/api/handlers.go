package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amirbrooks/tasker-chat/internal/chat"
	"github.com/amirbrooks/tasker-chat/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxBodySize      = 64 << 10
)

const (
	codeInvalidArgument       = "invalid_argument"
	codeNotFound              = "not_found"
	codeTokenExpired          = "token_expired"
	codeTokenUsed             = "token_used"
	codeTranslatorUnavailable = "translator_unavailable"
	codeTranslationInvalid    = "translation_invalid"
	codeServerError           = "server_error"
)

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
}

type patchTaskRequest struct {
	Completed *bool `json:"completed"`
}

type restoreRequest struct {
	Token string `json:"token"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type pageInfo struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

type listResponse struct {
	Items []store.Task `json:"items"`
	Page  pageInfo     `json:"page"`
}

type deleteResponse struct {
	RemovedTask   store.Task `json:"removed_task"`
	UndoToken     string     `json:"undo_token"`
	UndoExpiresAt time.Time  `json:"undo_expires_at"`
}

type deleteAllResponse struct {
	Deleted       int       `json:"deleted"`
	UndoToken     string    `json:"undo_token"`
	UndoExpiresAt time.Time `json:"undo_expires_at"`
}

type restoreResponse struct {
	Restored int          `json:"restored"`
	Items    []store.Task `json:"items"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := s.store.Add(store.NewTask{Title: req.Title, Description: req.Description, Due: req.DueDate})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Location", "/v1/tasks/"+task.ID)
	c.JSON(http.StatusCreated, task)
}

func (s *Server) handleListTasks(c *gin.Context) {
	var filter store.ListFilter
	if raw, ok := c.GetQuery("completed"); ok && !strings.EqualFold(strings.TrimSpace(raw), "any") && strings.TrimSpace(raw) != "" {
		completed, valid := parseBool(raw)
		if !valid {
			writeError(c, http.StatusBadRequest, codeInvalidArgument, "completed must be true, false or any")
			return
		}
		filter.Completed = &completed
	}
	filter.Sort = c.DefaultQuery("sort", store.SortDisplayID)

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil {
		writeError(c, http.StatusBadRequest, codeInvalidArgument, "limit/offset must be integers")
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		writeError(c, http.StatusBadRequest, codeInvalidArgument, "limit/offset must be integers")
		return
	}
	filter.Limit = clamp(limit, 1, maxListLimit)
	filter.Offset = max(offset, 0)

	items, total := s.store.List(filter)
	c.JSON(http.StatusOK, listResponse{
		Items: items,
		Page:  pageInfo{Limit: filter.Limit, Offset: filter.Offset, Total: total},
	})
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.store.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handlePatchTask(c *gin.Context) {
	var req patchTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Completed == nil {
		writeError(c, http.StatusBadRequest, codeInvalidArgument, "body must include 'completed': true|false")
		return
	}
	task, err := s.store.SetCompleted(c.Param("id"), *req.Completed)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	del, err := s.store.Delete(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, deleteResponse{
		RemovedTask:   del.Removed,
		UndoToken:     del.Undo.Token,
		UndoExpiresAt: del.Undo.ExpiresAt,
	})
}

func (s *Server) handleDeleteAll(c *gin.Context) {
	if confirm, ok := parseBool(c.Query("confirm")); !ok || !confirm {
		writeError(c, http.StatusBadRequest, codeInvalidArgument, "missing confirm=true to delete all tasks")
		return
	}
	bulk := s.store.DeleteAll()
	c.JSON(http.StatusOK, deleteAllResponse{
		Deleted:       bulk.Count,
		UndoToken:     bulk.Undo.Token,
		UndoExpiresAt: bulk.Undo.ExpiresAt,
	})
}

func (s *Server) handleRestore(c *gin.Context) {
	var req restoreRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeError(c, http.StatusBadRequest, codeInvalidArgument, "token is required")
		return
	}
	items, err := s.store.Restore(strings.TrimSpace(req.Token))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, restoreResponse{Restored: len(items), Items: items})
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if !bindJSON(c, &req) {
		return
	}
	out, err := s.executor.Handle(c.Request.Context(), req.Message)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func bindJSON(c *gin.Context, dst any) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, http.StatusBadRequest, codeInvalidArgument, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// fail maps a domain error onto the error envelope.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrInvalid), errors.Is(err, chat.ErrEmptyMessage):
		writeError(c, http.StatusBadRequest, codeInvalidArgument, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(c, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, store.ErrExpired):
		writeError(c, http.StatusGone, codeTokenExpired, err.Error())
	case errors.Is(err, store.ErrAlreadyUsed):
		writeError(c, http.StatusConflict, codeTokenUsed, err.Error())
	case errors.Is(err, chat.ErrTranslatorUnavailable):
		writeError(c, http.StatusServiceUnavailable, codeTranslatorUnavailable, err.Error())
	case errors.Is(err, chat.ErrTranslationInvalid):
		writeError(c, http.StatusBadGateway, codeTranslationInvalid, err.Error())
	default:
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
		writeError(c, http.StatusInternalServerError, codeServerError, "internal server error")
	}
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true, true
	case "0", "false", "f", "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
