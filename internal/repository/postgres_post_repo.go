package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/marketman/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した出品リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

const postColumns = `id, name, image, description, category, price, stock,
	status, is_premium, creator_id, created_at, updated_at`

// sortableColumns はソート対象として許可するカラムの一覧。
// SQLに直接埋め込むため、許可リスト外の指定はcreated_atに落とす。
var sortableColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"price":      true,
	"name":       true,
}

func scanPost(scan func(dest ...interface{}) error) (*model.Post, error) {
	post := &model.Post{}
	err := scan(
		&post.ID, &post.Name, &post.Image, &post.Description, &post.Category,
		&post.Price, &post.Stock, &post.Status, &post.IsPremium,
		&post.CreatorID, &post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return post, nil
}

// FindByID は指定IDの出品を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	post, err := scanPost(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}
	return post, nil
}

// List は検索条件に合致する出品をページネーション付きで取得する。
// totalPagesは総件数とlimitから切り上げで算出する。
func (r *PostgresPostRepo) List(ctx context.Context, filter model.PostFilter) (*model.PostPage, error) {
	where, args := buildPostFilter(filter)

	var total int
	countQuery := `SELECT count(*) FROM posts` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count posts: %w", err)
	}

	limit, page, offset := pageWindow(filter)

	sortBy := filter.SortBy
	if !sortableColumns[sortBy] {
		sortBy = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(filter.Order, "asc") {
		order = "ASC"
	}

	query := fmt.Sprintf(`SELECT %s FROM posts%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		postColumns, where, sortBy, order, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := []*model.Post{}
	for rows.Next() {
		post, err := scanPost(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}

	return &model.PostPage{
		TotalPosts:  total,
		TotalPages:  pageCount(total, limit),
		CurrentPage: page,
		Posts:       posts,
	}, nil
}

const defaultPageLimit = 10

// pageWindow はフィルターのページ指定を正規化し、
// ページサイズ・ページ番号・OFFSETを返す。
func pageWindow(filter model.PostFilter) (limit, page, offset int) {
	limit = filter.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	page = filter.Page
	if page <= 0 {
		page = 1
	}
	return limit, page, (page - 1) * limit
}

// pageCount は総件数をページサイズで割った切り上げ値を返す。
func pageCount(total, limit int) int {
	return (total + limit - 1) / limit
}

// buildPostFilter はPostFilterからWHERE句とプレースホルダー引数を組み立てる。
// ゼロ値のフィールドは条件に含めない。
func buildPostFilter(filter model.PostFilter) (string, []interface{}) {
	conditions := []string{}
	args := []interface{}{}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conditions = append(conditions,
			fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", n, n))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.MinPrice != nil {
		args = append(args, *filter.MinPrice)
		conditions = append(conditions, fmt.Sprintf("price >= $%d", len(args)))
	}
	if filter.MaxPrice != nil {
		args = append(args, *filter.MaxPrice)
		conditions = append(conditions, fmt.Sprintf("price <= $%d", len(args)))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// ListByCreator は出品者の全出品を作成日時降順で取得する。
func (r *PostgresPostRepo) ListByCreator(ctx context.Context, creatorID string) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE creator_id = $1 ORDER BY created_at DESC`,
		creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts by creator: %w", err)
	}
	defer rows.Close()

	posts := []*model.Post{}
	for rows.Next() {
		post, err := scanPost(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

// Create は出品を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, name, image, description, category, price, stock,
			status, is_premium, creator_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		post.ID, post.Name, post.Image, post.Description, post.Category,
		post.Price, post.Stock, post.Status, post.IsPremium,
		post.CreatorID, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// Update は出品情報を更新する。
func (r *PostgresPostRepo) Update(ctx context.Context, post *model.Post) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posts SET name = $1, image = $2, description = $3, category = $4,
			price = $5, stock = $6, status = $7, updated_at = now()
		 WHERE id = $8`,
		post.Name, post.Image, post.Description, post.Category,
		post.Price, post.Stock, post.Status, post.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("post not found: %s", post.ID)
	}
	return nil
}

// SetPremium は出品のプレミアムフラグをトランザクション内で切り替える。
// 有効化時は同一出品者の既存プレミアム出品を先に解除する。
// 部分ユニークインデックスにより並行実行でも「出品者ごとに最大1件」が保証される。
func (r *PostgresPostRepo) SetPremium(ctx context.Context, postID, creatorID string, premium bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if premium {
		// 既存のプレミアム出品を解除してから対象を有効化する
		_, err = tx.ExecContext(ctx,
			`UPDATE posts SET is_premium = FALSE, updated_at = now()
			 WHERE creator_id = $1 AND is_premium AND id <> $2`,
			creatorID, postID,
		)
		if err != nil {
			return fmt.Errorf("failed to clear existing premium post: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE posts SET is_premium = $1, updated_at = now()
		 WHERE id = $2 AND creator_id = $3`,
		premium, postID, creatorID,
	)
	if err != nil {
		return fmt.Errorf("failed to set premium flag: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("post not found: %s", postID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete は指定IDの出品を削除する。
func (r *PostgresPostRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("post not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
