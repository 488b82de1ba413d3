package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/marketman/internal/model"
	"github.com/hitoshi/marketman/internal/post"
)

func newPostRouter(h *PostHandler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/posts", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/post/{userId}", h.ListByUser)
		r.Post("/create", h.Create)
		r.Route("/{postId}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)
			r.Post("/boost", h.Boost)
		})
	})
	return r
}

func TestParsePostFilter(t *testing.T) {
	tests := []struct {
		name  string
		query string
		check func(t *testing.T, f model.PostFilter)
	}{
		{
			name:  "all parameters",
			query: "search=camera&category=electronics&min_price=100&max_price=5000&page=2&limit=10&sort_by=price&order=asc",
			check: func(t *testing.T, f model.PostFilter) {
				if f.Search != "camera" {
					t.Errorf("search = %q, want camera", f.Search)
				}
				if f.MinPrice == nil || *f.MinPrice != 100 {
					t.Errorf("min_price = %v, want 100", f.MinPrice)
				}
				if f.MaxPrice == nil || *f.MaxPrice != 5000 {
					t.Errorf("max_price = %v, want 5000", f.MaxPrice)
				}
				if f.Page != 2 || f.Limit != 10 {
					t.Errorf("page/limit = %d/%d, want 2/10", f.Page, f.Limit)
				}
				if f.SortBy != "price" || f.Order != "asc" {
					t.Errorf("sort = %s/%s, want price/asc", f.SortBy, f.Order)
				}
			},
		},
		{
			name:  "invalid numbers are ignored",
			query: "min_price=abc&page=xyz",
			check: func(t *testing.T, f model.PostFilter) {
				if f.MinPrice != nil {
					t.Errorf("min_price = %v, want nil", f.MinPrice)
				}
				if f.Page != 0 {
					t.Errorf("page = %d, want 0", f.Page)
				}
			},
		},
		{
			name:  "date range",
			query: "start_date=2026-01-01T00:00:00Z&end_date=invalid",
			check: func(t *testing.T, f model.PostFilter) {
				want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
				if f.StartDate == nil || !f.StartDate.Equal(want) {
					t.Errorf("start_date = %v, want %v", f.StartDate, want)
				}
				if f.EndDate != nil {
					t.Errorf("end_date = %v, want nil", f.EndDate)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/posts?"+tt.query, nil)
			tt.check(t, parsePostFilter(req))
		})
	}
}

func TestPostHandlerList(t *testing.T) {
	var gotFilter model.PostFilter
	service := &mockPostService{
		listFunc: func(ctx context.Context, filter model.PostFilter) (*model.PostPage, error) {
			gotFilter = filter
			return &model.PostPage{TotalPosts: 2, TotalPages: 1, CurrentPage: 1,
				Posts: []*model.Post{testPost("post-1", "user-1"), testPost("post-2", "user-2")}}, nil
		},
	}
	router := newPostRouter(NewPostHandler(service))

	req := httptest.NewRequest(http.MethodGet, "/api/posts?category=books&page=1", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotFilter.Category != "books" {
		t.Errorf("category = %q, want books", gotFilter.Category)
	}

	var resp postPageResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.TotalPosts != 2 || len(resp.Posts) != 2 {
		t.Errorf("total/len = %d/%d, want 2/2", resp.TotalPosts, len(resp.Posts))
	}
}

func TestPostHandlerGetNotFound(t *testing.T) {
	service := &mockPostService{
		getFunc: func(ctx context.Context, id string) (*model.Post, error) {
			return nil, model.NewPostNotFoundError(id)
		},
	}
	router := newPostRouter(NewPostHandler(service))

	req := httptest.NewRequest(http.MethodGet, "/api/posts/missing", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if !bodyContains(rec.Body.String(), model.ErrCodePostNotFound) {
		t.Errorf("body = %q, want error code %s", rec.Body.String(), model.ErrCodePostNotFound)
	}
}

func TestPostHandlerCreate(t *testing.T) {
	var gotCreator string
	var gotInput post.CreateInput
	var gotImage string
	service := &mockPostService{
		createFunc: func(ctx context.Context, creatorID string, input post.CreateInput, imageFilename, imageContentType string, imageSize int64, imageBody io.Reader) (*model.Post, error) {
			gotCreator = creatorID
			gotInput = input
			gotImage = imageFilename
			return testPost("post-new", creatorID), nil
		},
	}
	router := newPostRouter(NewPostHandler(service))

	fields := map[string]string{
		"name":        "フィルムカメラ",
		"description": "動作確認済み",
		"category":    "electronics",
		"price":       "15000",
		"stock":       "1",
		"status":      "published",
	}
	buf, contentType := multipartBody(t, "image", "camera.jpg", []byte("jpeg-bytes"), fields)
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/posts/create", buf), "user-1", model.UserRoleUser)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotCreator != "user-1" {
		t.Errorf("creator = %q, want user-1", gotCreator)
	}
	if gotInput.Price != 15000 || gotInput.Stock != 1 {
		t.Errorf("price/stock = %d/%d, want 15000/1", gotInput.Price, gotInput.Stock)
	}
	if gotInput.Status != model.PostStatusPublished {
		t.Errorf("status = %q, want published", gotInput.Status)
	}
	if gotImage != "camera.jpg" {
		t.Errorf("image filename = %q, want camera.jpg", gotImage)
	}
}

func TestPostHandlerCreateInvalidPrice(t *testing.T) {
	router := newPostRouter(NewPostHandler(&mockPostService{}))

	buf, contentType := multipartBody(t, "", "", nil, map[string]string{"name": "出品", "price": "not-a-number"})
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/posts/create", buf), "user-1", model.UserRoleUser)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestPostHandlerUpdate(t *testing.T) {
	var gotPostID, gotCaller string
	var gotInput post.UpdateInput
	service := &mockPostService{
		updateFunc: func(ctx context.Context, postID, callerID string, input post.UpdateInput) (*model.Post, error) {
			gotPostID = postID
			gotCaller = callerID
			gotInput = input
			return testPost(postID, callerID), nil
		},
	}
	router := newPostRouter(NewPostHandler(service))

	body := `{"price":2000,"status":"sold"}`
	req := withUser(httptest.NewRequest(http.MethodPut, "/api/posts/post-1", strings.NewReader(body)),
		"user-1", model.UserRoleUser)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotPostID != "post-1" || gotCaller != "user-1" {
		t.Errorf("postID/caller = %s/%s, want post-1/user-1", gotPostID, gotCaller)
	}
	if gotInput.Price == nil || *gotInput.Price != 2000 {
		t.Errorf("price = %v, want 2000", gotInput.Price)
	}
	if gotInput.Status == nil || *gotInput.Status != model.PostStatusSold {
		t.Errorf("status = %v, want sold", gotInput.Status)
	}
	if gotInput.Name != nil {
		t.Error("name should be nil when omitted")
	}
}

func TestPostHandlerUpdateNotOwner(t *testing.T) {
	service := &mockPostService{
		updateFunc: func(ctx context.Context, postID, callerID string, input post.UpdateInput) (*model.Post, error) {
			return nil, model.NewNotPostOwnerError()
		},
	}
	router := newPostRouter(NewPostHandler(service))

	req := withUser(httptest.NewRequest(http.MethodPut, "/api/posts/post-1", strings.NewReader(`{"price":1}`)),
		"user-2", model.UserRoleUser)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestPostHandlerDeletePassesRole(t *testing.T) {
	var gotRole model.UserRole
	service := &mockPostService{
		deleteFunc: func(ctx context.Context, postID, callerID string, callerRole model.UserRole) error {
			gotRole = callerRole
			return nil
		},
	}
	router := newPostRouter(NewPostHandler(service))

	req := withUser(httptest.NewRequest(http.MethodDelete, "/api/posts/post-1", nil),
		"admin-1", model.UserRoleAdmin)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if gotRole != model.UserRoleAdmin {
		t.Errorf("role = %q, want admin", gotRole)
	}
}

func TestPostHandlerBoost(t *testing.T) {
	var gotPostID, gotCaller string
	service := &mockPostService{
		boostFunc: func(ctx context.Context, postID, callerID string) (*model.Post, error) {
			gotPostID = postID
			gotCaller = callerID
			p := testPost(postID, callerID)
			p.IsPremium = true
			return p, nil
		},
	}
	router := newPostRouter(NewPostHandler(service))

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/posts/post-1/boost", nil),
		"user-1", model.UserRoleUser)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotPostID != "post-1" || gotCaller != "user-1" {
		t.Errorf("postID/caller = %s/%s, want post-1/user-1", gotPostID, gotCaller)
	}

	var resp postResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.IsPremium {
		t.Error("is_premium = false, want true")
	}
}
