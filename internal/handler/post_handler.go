package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/postboard/internal/metrics"
	"github.com/hitoshi/postboard/internal/model"
	"github.com/hitoshi/postboard/internal/post"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	Pagination() post.Pagination
	List(ctx context.Context, q post.ListQuery) ([]*model.Post, int, error)
	GetByID(ctx context.Context, id string) (*model.Post, error)
	ListOwned(ctx context.Context, identity model.Identity) ([]*model.Post, error)
	Create(ctx context.Context, identity model.Identity, in post.CreateInput) (*model.Post, error)
	Update(ctx context.Context, identity model.Identity, id string, in post.UpdateInput) (*model.Post, error)
	Delete(ctx context.Context, identity model.Identity, id string) error
}

// PostMetrics は投稿ハンドラーが記録するメトリクス。
type PostMetrics interface {
	RecordPostMutation(action, outcome string)
}

// PostHandler は投稿のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
	metrics PostMetrics
}

// NewPostHandler はPostHandlerを生成する。metricsがnilの場合は記録しない。
func NewPostHandler(service PostServiceInterface, m PostMetrics) *PostHandler {
	if m == nil {
		m = nopCollector{}
	}
	return &PostHandler{service: service, metrics: m}
}

type createPostRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	ImageURL string `json:"imageUrl"`
}

// updatePostRequest は部分更新のリクエスト。省略したフィールドは変更しない。
type updatePostRequest struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	ImageURL *string `json:"imageUrl"`
}

// postResponse は投稿のAPIレスポンス。
type postResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"imageUrl"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type postListResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    []postResponse `json:"data"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
}

type ownerPostsResponse struct {
	Success bool           `json:"success"`
	Count   int            `json:"count"`
	Data    []postResponse `json:"data"`
}

type postDetailResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    postResponse `json:"data"`
}

// ListPosts は投稿一覧を検索語とページ指定で返す。
// GET /api/v1/posts?search=&page=&limit=
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit := h.service.Pagination().Parse(q.Get("page"), q.Get("limit"))

	posts, total, err := h.service.List(r.Context(), post.ListQuery{
		Search: q.Get("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, postListResponse{
		Success: true,
		Message: "投稿一覧を取得しました。",
		Data:    toPostResponses(posts),
		Total:   total,
		Page:    page,
		Limit:   limit,
	})
}

// ListOwnerPosts はログインユーザー自身の投稿を返す。
// GET /api/v1/posts/ownerPosts
func (h *PostHandler) ListOwnerPosts(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	posts, err := h.service.ListOwned(r.Context(), identity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ownerPostsResponse{
		Success: true,
		Count:   len(posts),
		Data:    toPostResponses(posts),
	})
}

// GetPost は投稿詳細を返す。
// GET /api/v1/posts/{id}
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, postDetailResponse{
		Success: true,
		Message: "投稿を取得しました。",
		Data:    toPostResponse(p),
	})
}

// CreatePost は投稿を作成する。
// POST /api/v1/posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req createPostRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	p, err := h.service.Create(r.Context(), identity, post.CreateInput{
		Title:    req.Title,
		Content:  req.Content,
		ImageURL: req.ImageURL,
	})
	h.metrics.RecordPostMutation("create", metrics.Outcome(err))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, postDetailResponse{
		Success: true,
		Message: "投稿を作成しました。",
		Data:    toPostResponse(p),
	})
}

// UpdatePost は投稿者本人の投稿を更新する。
// PUT /api/v1/posts/{id}
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req updatePostRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	p, err := h.service.Update(r.Context(), identity, chi.URLParam(r, "id"), post.UpdateInput{
		Title:    req.Title,
		Content:  req.Content,
		ImageURL: req.ImageURL,
	})
	h.metrics.RecordPostMutation("update", metrics.Outcome(err))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, postDetailResponse{
		Success: true,
		Message: "投稿を更新しました。",
		Data:    toPostResponse(p),
	})
}

// DeletePost は投稿者本人の投稿を削除する。
// DELETE /api/v1/posts/{id}
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	err := h.service.Delete(r.Context(), identity, chi.URLParam(r, "id"))
	h.metrics.RecordPostMutation("delete", metrics.Outcome(err))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Success: true,
		Message: "投稿を削除しました。",
	})
}

func toPostResponse(p *model.Post) postResponse {
	return postResponse{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		ImageURL:  p.ImageURL,
		Username:  p.AuthorUsername,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// toPostResponses は空の一覧もJSONの[]として返す。
func toPostResponses(posts []*model.Post) []postResponse {
	out := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostResponse(p))
	}
	return out
}
