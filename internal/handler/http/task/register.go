package task

import (
	"net/http"

	"crawlorch/internal/common/pagination"
	taskUC "crawlorch/internal/usecase/task"
)

// Register registers the Task Service Facade's admin HTTP surface on mux.
// Unlike the teacher's article/source handlers, no auth middleware wraps
// these routes: the facade is reached only from the worker's internal
// admin listener, not a public-facing API (see SPEC_FULL.md §1 Non-goals).
func Register(mux *http.ServeMux, svc *taskUC.Service, paginationCfg pagination.Config) {
	mux.Handle("POST   /tasks", CreateHandler{svc})
	mux.Handle("GET    /tasks", ListHandler{Svc: svc, PaginationCfg: paginationCfg})
	mux.Handle("GET    /tasks/", GetHandler{svc})
	mux.Handle("PATCH  /tasks/{id}", UpdateHandler{svc})
	mux.Handle("DELETE /tasks/{id}", DeleteHandler{svc})
	mux.Handle("POST   /tasks/{id}/run", RunHandler{svc})
	mux.Handle("POST   /tasks/{id}/cancel", CancelHandler{svc})
	mux.Handle("POST   /tasks/{id}/retry", RetryHandler{svc})
	mux.Handle("PUT    /tasks/{id}/status", UpdateStatusHandler{svc})
	mux.Handle("GET    /tasks/{id}/status", GetStatusHandler{svc})
	mux.Handle("GET    /tasks/{id}/history", HistoryHandler{svc})
	mux.Handle("POST   /tasks/{id}/reset_retry_count", ResetRetryHandler{svc})
	mux.Handle("PUT    /tasks/{id}/max_retries", UpdateMaxRetriesHandler{svc})
	mux.Handle("POST   /tasks/validate", ValidateTaskDataHandler{svc})

	mux.Handle("GET    /articles", ListArticlesHandler{Svc: svc, PaginationCfg: paginationCfg})
	mux.Handle("GET    /articles/search", SearchArticlesHandler{svc})
	mux.Handle("GET    /articles/", GetArticleHandler{svc})
}
