package task

import (
	"net/http"
	"strings"

	"crawlorch/internal/handler/http/pathutil"
	"crawlorch/internal/handler/http/respond"
	taskUC "crawlorch/internal/usecase/task"
)

type GetHandler struct{ Svc *taskUC.Service }

// ServeHTTP fetches a task by ID.
func (h GetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(r.URL.Path, "/tasks/")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	res := h.Svc.GetTask(r.Context(), id)
	if !res.Success {
		code := http.StatusInternalServerError
		if isNotFound(res.Message) {
			code = http.StatusNotFound
		}
		respond.JSON(w, code, envelope{Message: res.Message})
		return
	}
	respond.JSON(w, http.StatusOK, envelope{Success: true, Message: res.Message, Payload: toDTO(res.Payload)})
}

func isNotFound(message string) bool {
	return strings.Contains(message, "not found")
}
