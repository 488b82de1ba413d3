// Package post は出品管理のドメインロジックを提供する。
package post

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/marketman/internal/model"
	"github.com/hitoshi/marketman/internal/repository"
	"github.com/hitoshi/marketman/internal/security"
	"github.com/hitoshi/marketman/internal/storage"
)

// CreateInput は出品作成のリクエスト内容。
type CreateInput struct {
	Name        string
	Description string
	Category    string
	Price       int64
	Stock       int
	Status      model.PostStatus
}

// UpdateInput は出品更新のリクエスト内容。
// nilフィールドは変更しない。
type UpdateInput struct {
	Name        *string
	Description *string
	Category    *string
	Price       *int64
	Stock       *int
	Status      *model.PostStatus
}

// Service は出品管理のサービス層。
type Service struct {
	postRepo  repository.PostRepository
	sanitizer security.ContentSanitizerService
	uploader  storage.Uploader
}

// NewService はServiceの新しいインスタンスを生成する。
// uploaderはnil可（画像アップロードが無効化される）。
func NewService(
	postRepo repository.PostRepository,
	sanitizer security.ContentSanitizerService,
	uploader storage.Uploader,
) *Service {
	return &Service{
		postRepo:  postRepo,
		sanitizer: sanitizer,
		uploader:  uploader,
	}
}

// Create は出品を作成する。
// imageBodyがnilでない場合は画像を先にアップロードし、URLを保存する。
func (s *Service) Create(ctx context.Context, creatorID string, input CreateInput, imageFilename, imageContentType string, imageSize int64, imageBody io.Reader) (*model.Post, error) {
	if input.Name == "" {
		return nil, model.NewInvalidRequestError("商品名は必須です")
	}
	if input.Price < 0 {
		return nil, model.NewInvalidRequestError("価格は0以上で指定してください")
	}
	status := input.Status
	if status == "" {
		status = model.PostStatusDraft
	}
	if !model.ValidPostStatus(status) {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("不正な出品状態です: %s", status))
	}

	imageURL := ""
	if imageBody != nil {
		if s.uploader == nil {
			return nil, model.NewInvalidRequestError("画像アップロードは現在利用できません")
		}
		url, err := s.uploader.Upload(ctx, imageFilename, imageContentType, imageSize, imageBody)
		if err != nil {
			return nil, err
		}
		imageURL = url
	}

	now := time.Now()
	post := &model.Post{
		ID:          uuid.New().String(),
		Name:        s.sanitizer.Sanitize(input.Name),
		Image:       imageURL,
		Description: s.sanitizer.Sanitize(input.Description),
		Category:    input.Category,
		Price:       input.Price,
		Stock:       input.Stock,
		Status:      status,
		CreatorID:   creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("出品の作成に失敗しました: %w", err)
	}

	slog.Info("出品を作成しました",
		slog.String("post_id", post.ID),
		slog.String("creator_id", creatorID),
	)
	return post, nil
}

// Get は指定IDの出品を取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Post, error) {
	post, err := s.postRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("出品の取得に失敗しました: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(id)
	}
	return post, nil
}

// List は検索条件に合致する出品をページネーション付きで取得する。
func (s *Service) List(ctx context.Context, filter model.PostFilter) (*model.PostPage, error) {
	page, err := s.postRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("出品一覧の取得に失敗しました: %w", err)
	}
	return page, nil
}

// ListByCreator は出品者の全出品を取得する。
func (s *Service) ListByCreator(ctx context.Context, creatorID string) ([]*model.Post, error) {
	posts, err := s.postRepo.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("出品者の出品一覧の取得に失敗しました: %w", err)
	}
	return posts, nil
}

// Update は出品情報を部分更新する。出品者本人のみ実行できる。
func (s *Service) Update(ctx context.Context, postID, callerID string, input UpdateInput) (*model.Post, error) {
	post, err := s.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.CreatorID != callerID {
		return nil, model.NewNotPostOwnerError()
	}

	if input.Name != nil {
		post.Name = s.sanitizer.Sanitize(*input.Name)
	}
	if input.Description != nil {
		post.Description = s.sanitizer.Sanitize(*input.Description)
	}
	if input.Category != nil {
		post.Category = *input.Category
	}
	if input.Price != nil {
		if *input.Price < 0 {
			return nil, model.NewInvalidRequestError("価格は0以上で指定してください")
		}
		post.Price = *input.Price
	}
	if input.Stock != nil {
		post.Stock = *input.Stock
	}
	if input.Status != nil {
		if !model.ValidPostStatus(*input.Status) {
			return nil, model.NewInvalidRequestError(fmt.Sprintf("不正な出品状態です: %s", *input.Status))
		}
		post.Status = *input.Status
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, fmt.Errorf("出品の更新に失敗しました: %w", err)
	}
	return post, nil
}

// Delete は出品を削除する。出品者本人または管理者のみ実行できる。
func (s *Service) Delete(ctx context.Context, postID, callerID string, callerRole model.UserRole) error {
	post, err := s.Get(ctx, postID)
	if err != nil {
		return err
	}
	if post.CreatorID != callerID && callerRole != model.UserRoleAdmin {
		return model.NewNotPostOwnerError()
	}

	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return fmt.Errorf("出品の削除に失敗しました: %w", err)
	}

	slog.Info("出品を削除しました",
		slog.String("post_id", postID),
		slog.String("caller_id", callerID),
	)
	return nil
}

// Boost は出品をプレミアムに昇格させる。出品者本人のみ実行できる。
// 同一出品者の既存プレミアム出品は同一トランザクション内で降格され、
// 「出品者ごとにプレミアムは最大1件」が維持される。
func (s *Service) Boost(ctx context.Context, postID, callerID string) (*model.Post, error) {
	post, err := s.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.CreatorID != callerID {
		return nil, model.NewNotPostOwnerError()
	}

	if err := s.postRepo.SetPremium(ctx, postID, callerID, true); err != nil {
		return nil, fmt.Errorf("プレミアム昇格に失敗しました: %w", err)
	}

	post.IsPremium = true

	slog.Info("出品をプレミアムに昇格しました",
		slog.String("post_id", postID),
		slog.String("creator_id", callerID),
	)
	return post, nil
}
