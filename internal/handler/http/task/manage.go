package task

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"crawlorch/internal/domain/entity"
	"crawlorch/internal/handler/http/pathutil"
	"crawlorch/internal/handler/http/respond"
	taskUC "crawlorch/internal/usecase/task"
)

// UpdateHandler applies a partial patch to a task.
type UpdateHandler struct{ Svc *taskUC.Service }

func (h UpdateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(r.URL.Path, "/tasks/")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	res := h.Svc.UpdateTask(r.Context(), id, patch)
	if !res.Success {
		respond.JSON(w, http.StatusBadRequest, envelope{Message: res.Message})
		return
	}
	respond.JSON(w, http.StatusOK, envelope{Success: true, Message: res.Message, Payload: toDTO(res.Payload)})
}

// DeleteHandler removes a task permanently.
type DeleteHandler struct{ Svc *taskUC.Service }

func (h DeleteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(r.URL.Path, "/tasks/")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	res := h.Svc.DeleteTask(r.Context(), id)
	if !res.Success {
		code := http.StatusInternalServerError
		if isNotFound(res.Message) {
			code = http.StatusNotFound
		}
		respond.JSON(w, code, envelope{Message: res.Message})
		return
	}
	respond.JSON(w, http.StatusOK, envelope{Success: true, Message: res.Message})
}

// UpdateStatusHandler sets a task's status/scrape phase and records (or
// patches) a history entry for the transition.
type UpdateStatusHandler struct{ Svc *taskUC.Service }

func (h UpdateStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(strings.TrimSuffix(r.URL.Path, "/status"), "/tasks/")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		TaskStatus  string `json:"task_status"`
		ScrapePhase string `json:"scrape_phase"`
		HistoryID   *int64 `json:"history_id"`
		HistoryData string `json:"history_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	res := h.Svc.UpdateTaskStatus(r.Context(), id, taskUC.UpdateStatusInput{
		Status:      entity.TaskStatus(req.TaskStatus),
		ScrapePhase: entity.ScrapePhase(req.ScrapePhase),
		HistoryID:   req.HistoryID,
		HistoryData: req.HistoryData,
	})
	if !res.Success {
		respond.JSON(w, http.StatusBadRequest, envelope{Message: res.Message})
		return
	}
	respond.JSON(w, http.StatusOK, envelope{Success: true, Message: res.Message, Payload: toDTO(res.Payload)})
}

// GetStatusHandler returns a task's lifecycle status without its full
// payload.
type GetStatusHandler struct{ Svc *taskUC.Service }

func (h GetStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(strings.TrimSuffix(r.URL.Path, "/status"), "/tasks/")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	res := h.Svc.GetTaskStatus(r.Context(), id)
	if !res.Success {
		code := http.StatusInternalServerError
		if isNotFound(res.Message) {
			code = http.StatusNotFound
		}
		respond.JSON(w, code, envelope{Message: res.Message})
		return
	}
	respond.JSON(w, http.StatusOK, envelope{Success: true, Message: res.Message, Payload: res.Payload})
}

// HistoryHandler lists a task's history rows, paginated by ?limit=&offset=.
type HistoryHandler struct{ Svc *taskUC.Service }

func (h HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(strings.TrimSuffix(r.URL.Path, "/history"), "/tasks/")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	res := h.Svc.FindTaskHistory(r.Context(), id, limit, offset)
	if !res.Success {
		respond.SafeError(w, http.StatusInternalServerError, errString(res.Message))
		return
	}
	respond.JSON(w, http.StatusOK, envelope{Success: true, Message: res.Message, Payload: res.Payload})
}

// ResetRetryHandler zeroes a task's retry counter.
type ResetRetryHandler struct{ Svc *taskUC.Service }

func (h ResetRetryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(strings.TrimSuffix(r.URL.Path, "/reset_retry_count"), "/tasks/")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	res := h.Svc.ResetRetryCount(r.Context(), id)
	if !res.Success {
		respond.JSON(w, http.StatusBadRequest, envelope{Message: res.Message})
		return
	}
	respond.JSON(w, http.StatusOK, envelope{Success: true, Message: res.Message, Payload: toDTO(res.Payload)})
}

// UpdateMaxRetriesHandler replaces a task's max_retries ceiling.
type UpdateMaxRetriesHandler struct{ Svc *taskUC.Service }

func (h UpdateMaxRetriesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(strings.TrimSuffix(r.URL.Path, "/max_retries"), "/tasks/")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		MaxRetries int `json:"max_retries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	res := h.Svc.UpdateMaxRetries(r.Context(), id, req.MaxRetries)
	if !res.Success {
		respond.JSON(w, http.StatusBadRequest, envelope{Message: res.Message})
		return
	}
	respond.JSON(w, http.StatusOK, envelope{Success: true, Message: res.Message, Payload: toDTO(res.Payload)})
}

// ValidateTaskDataHandler dry-runs task_args validation without creating a
// task.
type ValidateTaskDataHandler struct{ Svc *taskUC.Service }

func (h ValidateTaskDataHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	res := h.Svc.ValidateTaskData(data)
	if !res.Success {
		respond.JSON(w, http.StatusOK, envelope{Success: false, Message: res.Message})
		return
	}
	respond.JSON(w, http.StatusOK, envelope{Success: true, Message: res.Message, Payload: res.Payload})
}
