package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sirupsen/logrus"

	"github.com/temcen/folio/pkg/models"
)

// DatabaseQuerier is satisfied by *pgxpool.Pool and pgxmock pools.
type DatabaseQuerier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

const contentColumns = `
		p.id, p.title, p.summary, p.slug, p.cover_image,
		p.category_id, c.name, c.slug,
		p.author_id, u.display_name, u.avatar,
		p.published_at, p.view_count, p.like_count, p.comment_count, p.word_count,
		ARRAY(SELECT t.id FROM post_tags pt JOIN tags t ON t.id = pt.tag_id WHERE pt.post_id = p.id ORDER BY t.id) AS tag_ids,
		ARRAY(SELECT t.name FROM post_tags pt JOIN tags t ON t.id = pt.tag_id WHERE pt.post_id = p.id ORDER BY t.id) AS tag_names,
		ARRAY(SELECT t.slug FROM post_tags pt JOIN tags t ON t.id = pt.tag_id WHERE pt.post_id = p.id ORDER BY t.id) AS tag_slugs`

const contentFrom = `
	FROM posts p
	JOIN users u ON u.id = p.author_id
	LEFT JOIN categories c ON c.id = p.category_id
	WHERE p.status = 'published' AND p.deleted_at IS NULL`

// ContentRepository reads published posts from PostgreSQL.
type ContentRepository struct {
	db     DatabaseQuerier
	logger *logrus.Logger
}

func NewContentRepository(db DatabaseQuerier, logger *logrus.Logger) *ContentRepository {
	return &ContentRepository{
		db:     db,
		logger: logger,
	}
}

func (r *ContentRepository) FindPublished(
	ctx context.Context,
	filter models.ContentFilter,
	excludeIDs []int64,
	limit int,
) ([]models.ContentItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	if excludeIDs == nil {
		excludeIDs = []int64{}
	}

	var sb strings.Builder
	sb.WriteString("SELECT")
	sb.WriteString(contentColumns)
	sb.WriteString(contentFrom)

	args := []interface{}{excludeIDs}
	sb.WriteString("\n\t  AND NOT (p.id = ANY($1))")

	tagIDs, categoryIDs := filter.AnyTagIDs, filter.CategoryIDs
	if len(tagIDs) > 0 || len(categoryIDs) > 0 {
		if tagIDs == nil {
			tagIDs = []int64{}
		}
		if categoryIDs == nil {
			categoryIDs = []int64{}
		}
		args = append(args, tagIDs, categoryIDs)
		fmt.Fprintf(&sb, `
	  AND (EXISTS (SELECT 1 FROM post_tags pt WHERE pt.post_id = p.id AND pt.tag_id = ANY($%d))
	       OR p.category_id = ANY($%d))`, len(args)-1, len(args))
	}

	if filter.PublishedSince != nil {
		args = append(args, *filter.PublishedSince)
		fmt.Fprintf(&sb, "\n\t  AND p.published_at >= $%d", len(args))
	}

	switch filter.OrderBy {
	case models.OrderByEngagement:
		sb.WriteString("\n\tORDER BY p.view_count DESC, p.like_count DESC, p.published_at DESC, p.id ASC")
	default:
		sb.WriteString("\n\tORDER BY p.published_at DESC, p.id ASC")
	}

	args = append(args, limit)
	fmt.Fprintf(&sb, "\n\tLIMIT $%d", len(args))

	items, err := r.query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query published content: %w", err)
	}
	return items, nil
}

func (r *ContentRepository) FindByID(ctx context.Context, id int64) (*models.ContentItem, error) {
	query := "SELECT" + contentColumns + contentFrom + "\n\t  AND p.id = $1"

	items, err := r.query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query content %d: %w", id, err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// FindByIDs silently skips ids that are missing or unpublished.
func (r *ContentRepository) FindByIDs(ctx context.Context, ids []int64) ([]models.ContentItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := "SELECT" + contentColumns + contentFrom + "\n\t  AND p.id = ANY($1)"

	items, err := r.query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query content batch: %w", err)
	}
	return items, nil
}

func (r *ContentRepository) query(ctx context.Context, sql string, args ...interface{}) ([]models.ContentItem, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.ContentItem
	for rows.Next() {
		item, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.logger.WithField("rows", len(items)).Debug("Content query completed")
	return items, nil
}

func scanContent(rows pgx.Rows) (models.ContentItem, error) {
	var (
		item         models.ContentItem
		coverImage   pgtype.Text
		categoryID   pgtype.Int8
		categoryName pgtype.Text
		categorySlug pgtype.Text
		avatar       pgtype.Text
		tagIDs       []int64
		tagNames     []string
		tagSlugs     []string
	)

	err := rows.Scan(
		&item.ID, &item.Title, &item.Summary, &item.Slug, &coverImage,
		&categoryID, &categoryName, &categorySlug,
		&item.Author.ID, &item.Author.DisplayName, &avatar,
		&item.PublishedAt, &item.Views, &item.Likes, &item.Comments, &item.WordCount,
		&tagIDs, &tagNames, &tagSlugs,
	)
	if err != nil {
		return item, fmt.Errorf("failed to scan content row: %w", err)
	}

	if coverImage.Valid {
		item.CoverImage = &coverImage.String
	}
	if avatar.Valid {
		item.Author.Avatar = &avatar.String
	}
	if categoryID.Valid {
		id := categoryID.Int64
		item.CategoryID = &id
		item.Category = &models.Category{ID: id, Name: categoryName.String, Slug: categorySlug.String}
	}

	item.Tags = make([]models.Tag, 0, len(tagIDs))
	for i, id := range tagIDs {
		tag := models.Tag{ID: id}
		if i < len(tagNames) {
			tag.Name = tagNames[i]
		}
		if i < len(tagSlugs) {
			tag.Slug = tagSlugs[i]
		}
		item.Tags = append(item.Tags, tag)
	}

	return item, nil
}
