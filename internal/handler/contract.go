package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"contract-assistant/internal/draft"
	"contract-assistant/internal/export"
	"contract-assistant/internal/model"
	"contract-assistant/internal/retrieval"
	"contract-assistant/internal/service"
	"contract-assistant/internal/storage"
	"contract-assistant/internal/utils"
	"contract-assistant/pkg/logger"

	"github.com/gin-gonic/gin"
)

const noTemplateMessage = "Non è stato trovato nessun template adatto alla richiesta."

type ContractHandler struct {
	contractService   *service.ContractService
	heartbeatInterval time.Duration
}

func NewContractHandler(contractService *service.ContractService) *ContractHandler {
	return &ContractHandler{
		contractService:   contractService,
		heartbeatInterval: 30 * time.Second,
	}
}

func (h *ContractHandler) ListTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"templates": h.contractService.ListTemplates(),
	})
}

func (h *ContractHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	// empty body means default title
	_ = c.ShouldBindJSON(&req)

	session, err := h.contractService.CreateSession(req.Title)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSessionResponse(session))
}

func (h *ContractHandler) GetSession(c *gin.Context) {
	session, err := h.contractService.GetSession(c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSessionResponse(session))
}

func (h *ContractHandler) GetMessages(c *gin.Context) {
	sessionID := c.Param("session_id")

	messages, err := h.contractService.GetSessionMessages(sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"messages":   messages,
	})
}

func (h *ContractHandler) GetSessionList(c *gin.Context) {
	sessions, err := h.contractService.ListSessions()
	if err != nil {
		writeError(c, err)
		return
	}

	result := make([]model.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		result = append(result, model.NewSessionResponse(s))
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": result,
		"total":    len(result),
	})
}

func (h *ContractHandler) UpdateSessionTitle(c *gin.Context) {
	var req model.UpdateTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	session, err := h.contractService.UpdateSessionTitle(c.Param("session_id"), req.Title)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSessionResponse(session))
}

func (h *ContractHandler) DeleteSession(c *gin.Context) {
	if err := h.contractService.DeleteSession(c.Param("session_id")); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session deleted successfully"})
}

func (h *ContractHandler) ClearAllSessions(c *gin.Context) {
	if err := h.contractService.ClearAllSessions(); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "All sessions cleared successfully"})
}

func (h *ContractHandler) SubmitRequest(c *gin.Context) {
	var req model.ContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	resp, err := h.contractService.SubmitRequest(c.Request.Context(), req.SessionID, req.Description, nil)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// StreamRequest runs SubmitRequest and reports each stage as a "progress"
// event, then the turn as "result" or the failure as "error".
func (h *ContractHandler) StreamRequest(c *gin.Context) {
	var req model.ContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	sseWriter := utils.NewSSEWriter(c.Writer)
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	progressChan := make(chan model.ProgressEvent, 16)
	type outcome struct {
		resp *model.TurnResponse
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		defer close(progressChan)
		resp, err := h.contractService.SubmitRequest(ctx, req.SessionID, req.Description, func(e model.ProgressEvent) {
			select {
			case progressChan <- e:
			case <-ctx.Done():
			}
		})
		done <- outcome{resp: resp, err: err}
	}()

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-progressChan:
			if !ok {
				result := <-done
				if result.err != nil {
					status, body := classifyError(result.err)
					logger.Warnf("Streamed request failed with %d: %v", status, result.err)
					sseWriter.WriteJSON("error", body)
				} else {
					sseWriter.WriteJSON("result", result.resp)
				}
				sseWriter.Close()
				return
			}
			if err := sseWriter.WriteJSON("progress", event); err != nil {
				logger.Errorf("Failed to write SSE: %v", err)
				return
			}

		case <-heartbeat.C:
			if err := sseWriter.WriteJSON("heartbeat", gin.H{"timestamp": time.Now().Unix()}); err != nil {
				logger.Warnf("Heartbeat failed: %v", err)
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func (h *ContractHandler) SubmitParams(c *gin.Context) {
	var req model.ParamsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	resp, err := h.contractService.SubmitParams(c.Request.Context(), req.SessionID, req.Values)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ContractHandler) Reset(c *gin.Context) {
	session, err := h.contractService.Reset(c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSessionResponse(session))
}

func (h *ContractHandler) Download(c *gin.Context) {
	doc, err := h.contractService.Download(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s", doc.FileName, url.PathEscape(doc.FileName)))
	c.Data(http.StatusOK, doc.MimeType, doc.Data)
}

func writeBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, model.ErrorResponse{
		Error: err.Error(),
		Type:  "invalid_request",
	})
}

func writeError(c *gin.Context, err error) {
	status, body := classifyError(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, body)
}

func classifyError(err error) (int, model.ErrorResponse) {
	body := model.ErrorResponse{Error: err.Error()}

	switch {
	case errors.Is(err, service.ErrEmptyDescription):
		body.Type = "invalid_request"
		return http.StatusBadRequest, body
	case errors.Is(err, storage.ErrSessionNotFound):
		body.Type = "session_not_found"
		return http.StatusNotFound, body
	case errors.Is(err, service.ErrInvalidPhase):
		body.Type = "invalid_phase"
		return http.StatusConflict, body
	case errors.Is(err, retrieval.ErrNoTemplate):
		body.Type = "no_template"
		body.Message = noTemplateMessage
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, retrieval.ErrSearchUnavailable), errors.Is(err, draft.ErrServiceUnavailable):
		body.Type = "service_unavailable"
		body.Message = service.UnavailableMessage
		return http.StatusServiceUnavailable, body
	case errors.Is(err, export.ErrExport):
		body.Type = "export_failed"
		return http.StatusInternalServerError, body
	default:
		body.Type = "internal_error"
		return http.StatusInternalServerError, body
	}
}
