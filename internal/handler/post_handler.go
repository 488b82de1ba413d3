package handler

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/marketman/internal/middleware"
	"github.com/hitoshi/marketman/internal/model"
	"github.com/hitoshi/marketman/internal/post"
)

// PostServiceInterface は出品ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	Create(ctx context.Context, creatorID string, input post.CreateInput, imageFilename, imageContentType string, imageSize int64, imageBody io.Reader) (*model.Post, error)
	Get(ctx context.Context, id string) (*model.Post, error)
	List(ctx context.Context, filter model.PostFilter) (*model.PostPage, error)
	ListByCreator(ctx context.Context, creatorID string) ([]*model.Post, error)
	Update(ctx context.Context, postID, callerID string, input post.UpdateInput) (*model.Post, error)
	Delete(ctx context.Context, postID, callerID string, callerRole model.UserRole) error
	Boost(ctx context.Context, postID, callerID string) (*model.Post, error)
}

// PostHandler は出品管理のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

// parsePostFilter はクエリパラメータからPostFilterを組み立てる。
// 不正な数値・日付は条件として無視する。
func parsePostFilter(r *http.Request) model.PostFilter {
	q := r.URL.Query()
	filter := model.PostFilter{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		SortBy:   q.Get("sort_by"),
		Order:    q.Get("order"),
	}

	if v := q.Get("min_price"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.MinPrice = &n
		}
	}
	if v := q.Get("max_price"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.MaxPrice = &n
		}
	}
	if v := q.Get("start_date"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.StartDate = &t
		}
	}
	if v := q.Get("end_date"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.EndDate = &t
		}
	}
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Page = n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	return filter
}

// List は検索条件付きの出品一覧を返す。
// GET /api/posts?search=&category=&min_price=&max_price=&page=&limit=&sort_by=&order=
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.List(r.Context(), parsePostFilter(r))
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostPageResponse(page))
}

// ListByUser は指定ユーザーの全出品を返す。
// GET /api/posts/post/{userId}
func (h *PostHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	creatorID := chi.URLParam(r, "userId")

	posts, err := h.service.ListByCreator(r.Context(), creatorID)
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	resp := make([]postResponse, len(posts))
	for i, p := range posts {
		resp[i] = toPostResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get は出品詳細を返す。
// GET /api/posts/{postId}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postId")

	p, err := h.service.Get(r.Context(), postID)
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostResponse(p))
}

// Create は出品作成を処理する。
// POST /api/posts/create (multipart/form-data)
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("マルチパートフォームの解析に失敗しました"))
		return
	}

	price, err := strconv.ParseInt(r.FormValue("price"), 10, 64)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("価格は整数で指定してください"))
		return
	}
	stock := 0
	if v := r.FormValue("stock"); v != "" {
		stock, err = strconv.Atoi(v)
		if err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError("在庫数は整数で指定してください"))
			return
		}
	}

	input := post.CreateInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		Price:       price,
		Stock:       stock,
		Status:      model.PostStatus(r.FormValue("status")),
	}

	var (
		imageFilename    string
		imageContentType string
		imageSize        int64
		imageBody        io.Reader
	)
	if file, header, err := r.FormFile("image"); err == nil {
		defer func(f multipart.File) { f.Close() }(file)
		imageFilename = header.Filename
		imageContentType = header.Header.Get("Content-Type")
		imageSize = header.Size
		imageBody = file
	}

	created, err := h.service.Create(r.Context(), userID, input,
		imageFilename, imageContentType, imageSize, imageBody)
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPostResponse(created))
}

// updatePostRequest は出品更新リクエストのボディ。
// 省略されたフィールドは変更しない。
type updatePostRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Price       *int64  `json:"price"`
	Stock       *int    `json:"stock"`
	Status      *string `json:"status"`
}

// Update は出品更新を処理する。出品者本人のみ更新できる。
// PUT /api/posts/{postId}
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req updatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	input := post.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Stock:       req.Stock,
	}
	if req.Status != nil {
		status := model.PostStatus(*req.Status)
		input.Status = &status
	}

	updated, err := h.service.Update(r.Context(), chi.URLParam(r, "postId"), userID, input)
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostResponse(updated))
}

// Delete は出品削除を処理する。出品者本人または管理者のみ削除できる。
// DELETE /api/posts/{postId}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	role, _ := middleware.RoleFromContext(r.Context())
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "postId"), userID, model.UserRole(role)); err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Boost は出品のプレミアム昇格を処理する。出品者本人のみ実行できる。
// 出品者の既存プレミアム出品は自動的に解除される。
// POST /api/posts/{postId}/boost
func (h *PostHandler) Boost(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	boosted, err := h.service.Boost(r.Context(), chi.URLParam(r, "postId"), userID)
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostResponse(boosted))
}
