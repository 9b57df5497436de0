package task

import (
	"net/http"
	"strings"

	"crawlorch/internal/handler/http/pathutil"
	"crawlorch/internal/handler/http/respond"
	taskUC "crawlorch/internal/usecase/task"
)

// CancelHandler requests cancellation of a running task.
type CancelHandler struct{ Svc *taskUC.Service }

func (h CancelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(strings.TrimSuffix(r.URL.Path, "/cancel"), "/tasks/")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	res := h.Svc.CancelTask(r.Context(), id)
	if !res.Success {
		respond.JSON(w, http.StatusConflict, envelope{Message: res.Message})
		return
	}
	respond.JSON(w, http.StatusOK, envelope{Success: true, Message: res.Message})
}

// RetryHandler resets a FAILED task back to INIT for another run.
type RetryHandler struct{ Svc *taskUC.Service }

func (h RetryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(strings.TrimSuffix(r.URL.Path, "/retry"), "/tasks/")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	res := h.Svc.RetryTask(r.Context(), id)
	if !res.Success {
		respond.JSON(w, http.StatusConflict, envelope{Message: res.Message})
		return
	}
	respond.JSON(w, http.StatusOK, envelope{Success: true, Message: res.Message, Payload: toDTO(res.Payload)})
}

// RunHandler starts execution of a task synchronously, returning its
// terminal result. Long scrapes are expected to be dispatched by the
// scheduler instead; this endpoint exists for manual/ad-hoc runs.
type RunHandler struct{ Svc *taskUC.Service }

func (h RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(strings.TrimSuffix(r.URL.Path, "/run"), "/tasks/")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	res := h.Svc.RunTask(r.Context(), id)
	if !res.Success {
		respond.JSON(w, http.StatusOK, envelope{Message: res.Message})
		return
	}
	respond.JSON(w, http.StatusOK, envelope{Success: true, Message: res.Message, Payload: toDTO(res.Payload)})
}
