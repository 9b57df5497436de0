package task

import (
	"net/http"

	"crawlorch/internal/common/pagination"
	"crawlorch/internal/domain/entity"
	"crawlorch/internal/handler/http/respond"
	"crawlorch/internal/repository"
	taskUC "crawlorch/internal/usecase/task"
)

// ListHandler returns a paginated, filtered view of tasks.
type ListHandler struct {
	Svc           *taskUC.Service
	PaginationCfg pagination.Config
}

// ServeHTTP handles GET /tasks?page=&limit=&crawler_id=&status=
func (h ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.ParseQueryParams(r, h.PaginationCfg)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	var filters repository.TaskFindFilters
	q := r.URL.Query()
	if v := q.Get("crawler_id"); v != "" {
		if id, perr := parseID(v); perr == nil {
			filters.CrawlerID = &id
		}
	}
	if v := q.Get("status"); v != "" {
		status := entity.TaskStatus(v)
		filters.Status = &status
	}

	res := h.Svc.FindTasksAdvanced(r.Context(), filters, params.Page, params.Limit)
	if !res.Success {
		respond.SafeError(w, http.StatusInternalServerError, errString(res.Message))
		return
	}

	dtos := make([]TaskDTO, 0, len(res.Payload.Items))
	for _, t := range res.Payload.Items {
		dtos = append(dtos, toDTO(t))
	}
	metadata := pagination.Metadata{
		Total:      res.Payload.Total,
		Page:       res.Payload.Page,
		Limit:      res.Payload.PageSize,
		TotalPages: pagination.CalculateTotalPages(res.Payload.Total, res.Payload.PageSize),
	}
	respond.JSON(w, http.StatusOK, pagination.NewResponse(dtos, metadata))
}
