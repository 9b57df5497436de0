package task

import (
	"net/http"
	"strings"

	"crawlorch/internal/common/pagination"
	"crawlorch/internal/handler/http/pathutil"
	"crawlorch/internal/handler/http/respond"
	"crawlorch/internal/repository"
	taskUC "crawlorch/internal/usecase/task"
)

// GetArticleHandler fetches a single saved article by ID.
type GetArticleHandler struct{ Svc *taskUC.Service }

func (h GetArticleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(r.URL.Path, "/articles/")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	res := h.Svc.GetArticle(r.Context(), id)
	if !res.Success {
		code := http.StatusInternalServerError
		if isNotFound(res.Message) {
			code = http.StatusNotFound
		}
		respond.JSON(w, code, envelope{Message: res.Message})
		return
	}
	respond.JSON(w, http.StatusOK, envelope{Success: true, Message: res.Message, Payload: toArticleDTO(res.Payload)})
}

// ListArticlesHandler returns a paginated, filtered view of saved articles.
type ListArticlesHandler struct {
	Svc           *taskUC.Service
	PaginationCfg pagination.Config
}

func (h ListArticlesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.ParseQueryParams(r, h.PaginationCfg)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	var filters repository.ArticleFindFilters
	if v := r.URL.Query().Get("crawler_id"); v != "" {
		if id, perr := parseID(v); perr == nil {
			filters.CrawlerID = &id
		}
	}
	if v := r.URL.Query().Get("task_id"); v != "" {
		if id, perr := parseID(v); perr == nil {
			filters.TaskID = &id
		}
	}
	if v := r.URL.Query().Get("category"); v != "" {
		filters.Category = &v
	}
	if v := r.URL.Query().Get("source"); v != "" {
		filters.Source = &v
	}
	if v := r.URL.Query().Get("tags"); v != "" {
		tags := strings.Split(v, ",")
		for i := range tags {
			tags[i] = strings.TrimSpace(tags[i])
		}
		filters.Tags = tags
	}

	res := h.Svc.FindArticlesAdvanced(r.Context(), filters, params.Page, params.Limit)
	if !res.Success {
		respond.SafeError(w, http.StatusInternalServerError, errString(res.Message))
		return
	}

	dtos := make([]ArticleDTO, 0, len(res.Payload.Items))
	for _, a := range res.Payload.Items {
		dtos = append(dtos, toArticleDTO(a))
	}
	metadata := pagination.Metadata{
		Total:      res.Payload.Total,
		Page:       res.Payload.Page,
		Limit:      res.Payload.PageSize,
		TotalPages: pagination.CalculateTotalPages(res.Payload.Total, res.Payload.PageSize),
	}
	respond.JSON(w, http.StatusOK, pagination.NewResponse(dtos, metadata))
}

// SearchArticlesHandler performs multi-keyword AND-logic search over
// saved articles, supplied as a comma-separated "q" query parameter.
type SearchArticlesHandler struct{ Svc *taskUC.Service }

func (h SearchArticlesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		respond.SafeError(w, http.StatusBadRequest, errString("q query parameter is required"))
		return
	}
	keywords := strings.Split(q, ",")
	for i := range keywords {
		keywords[i] = strings.TrimSpace(keywords[i])
	}

	res := h.Svc.SearchArticles(r.Context(), keywords, repository.ArticleFindFilters{})
	if !res.Success {
		respond.JSON(w, http.StatusBadRequest, envelope{Message: res.Message})
		return
	}

	dtos := make([]ArticleDTO, 0, len(res.Payload))
	for _, a := range res.Payload {
		dtos = append(dtos, toArticleDTO(a))
	}
	respond.JSON(w, http.StatusOK, envelope{Success: true, Message: res.Message, Payload: dtos})
}
