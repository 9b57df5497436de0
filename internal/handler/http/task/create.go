package task

import (
	"encoding/json"
	"net/http"

	"crawlorch/internal/domain/entity"
	"crawlorch/internal/handler/http/respond"
	taskUC "crawlorch/internal/usecase/task"
)

type CreateHandler struct{ Svc *taskUC.Service }

// ServeHTTP creates a new task in INIT state for a crawler.
func (h CreateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CrawlerID  int64          `json:"crawler_id"`
		ScrapeMode string         `json:"scrape_mode"`
		TaskArgs   map[string]any `json:"task_args"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	res := h.Svc.CreateTask(r.Context(), taskUC.CreateInput{
		CrawlerID:  req.CrawlerID,
		ScrapeMode: entity.ScrapeMode(req.ScrapeMode),
		TaskArgs:   req.TaskArgs,
	})
	if !res.Success {
		respond.JSON(w, http.StatusBadRequest, envelope{Message: res.Message})
		return
	}
	respond.JSON(w, http.StatusCreated, envelope{Success: true, Message: res.Message, Payload: toDTO(res.Payload)})
}
