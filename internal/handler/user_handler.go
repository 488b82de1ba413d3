package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/marketman/internal/middleware"
	"github.com/hitoshi/marketman/internal/model"
	"github.com/hitoshi/marketman/internal/user"
)

// maxUploadBytes はプロフィール画像アップロードのボディ上限。
const maxUploadBytes = 10 << 20

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Register(ctx context.Context, input user.RegisterInput) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
	Update(ctx context.Context, id string, input user.UpdateInput) (*model.User, error)
	UploadProfileImage(ctx context.Context, userID, filename, contentType string, size int64, body io.Reader) (string, error)
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	Username       string `json:"username"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	RegistrationID string `json:"registration_id"`
	Password       string `json:"password"`
	PhoneNumber    string `json:"phone_number"`
}

// updateUserRequest はプロフィール更新リクエストのボディ。
// 省略されたフィールドは変更しない。
type updateUserRequest struct {
	Username    *string `json:"username"`
	Name        *string `json:"name"`
	Bio         *string `json:"bio"`
	PhoneNumber *string `json:"phone_number"`
}

// Register はユーザー登録を処理する。
// POST /api/users/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	created, err := h.service.Register(r.Context(), user.RegisterInput{
		Username:       req.Username,
		Name:           req.Name,
		Email:          req.Email,
		RegistrationID: req.RegistrationID,
		Password:       req.Password,
		PhoneNumber:    req.PhoneNumber,
	})
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(created))
}

// Me は認証済みユーザー自身の情報を返す。
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	u, err := h.service.Get(r.Context(), userID)
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// List は全ユーザーの一覧を返す。管理者専用。
// GET /api/users/all
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	resp := make([]userResponse, len(users))
	for i, u := range users {
		resp[i] = toUserResponse(u)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Update はプロフィール更新を処理する。本人のみ更新できる。
// PUT /api/users/update/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	targetID := chi.URLParam(r, "id")
	if targetID != userID {
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	updated, err := h.service.Update(r.Context(), targetID, user.UpdateInput{
		Username:    req.Username,
		Name:        req.Name,
		Bio:         req.Bio,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

// Delete は退会処理を実行する。本人または管理者のみ削除できる。
// DELETE /api/users/delete/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	targetID := chi.URLParam(r, "id")
	role, _ := middleware.RoleFromContext(r.Context())
	if targetID != userID && role != string(model.UserRoleAdmin) {
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
		return
	}

	if err := h.service.Withdraw(r.Context(), targetID); err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadProfile はプロフィール画像のアップロードを処理する。
// POST /api/users/upload-profile (multipart/form-data, フィールド名 "image")
func (h *UserHandler) UploadProfile(w http.ResponseWriter, r *http.Request) {
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

	file, header, err := r.FormFile("image")
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("imageフィールドが必要です"))
		return
	}
	defer file.Close()

	url, err := h.service.UploadProfileImage(r.Context(), userID,
		header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"profile_image": url})
}
