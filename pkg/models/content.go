package models

import (
	"time"
)

const wordsPerMinute = 200

type Tag struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
}

type Category struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
}

type Author struct {
	ID          int64   `json:"id" db:"author_id"`
	DisplayName string  `json:"display_name" db:"author_name"`
	Avatar      *string `json:"avatar,omitempty" db:"author_avatar"`
}

// ContentItem is the read-only snapshot of a published post as seen by the
// recommendation engine. It is owned by the content-management subsystem.
type ContentItem struct {
	ID          int64     `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Summary     string    `json:"summary" db:"summary"`
	Slug        string    `json:"slug" db:"slug"`
	CoverImage  *string   `json:"cover_image,omitempty" db:"cover_image"`
	Tags        []Tag     `json:"tags"`
	CategoryID  *int64    `json:"category_id,omitempty" db:"category_id"`
	Category    *Category `json:"category,omitempty"`
	Author      Author    `json:"author"`
	PublishedAt time.Time `json:"published_at" db:"published_at"`
	Views       int64     `json:"views" db:"view_count"`
	Likes       int64     `json:"likes" db:"like_count"`
	Comments    int64     `json:"comments" db:"comment_count"`
	WordCount   int       `json:"word_count" db:"word_count"`
}

// TagIDs returns the item's tag set as a slice of ids.
func (c *ContentItem) TagIDs() []int64 {
	ids := make([]int64, 0, len(c.Tags))
	for _, tag := range c.Tags {
		ids = append(ids, tag.ID)
	}
	return ids
}

// TagName looks up the display name of one of the item's tags.
func (c *ContentItem) TagName(id int64) (string, bool) {
	for _, tag := range c.Tags {
		if tag.ID == id {
			return tag.Name, true
		}
	}
	return "", false
}

// HasCategory reports whether the item is filed under the given category.
func (c *ContentItem) HasCategory(id int64) bool {
	return c.CategoryID != nil && *c.CategoryID == id
}

func (c *ContentItem) ReadingTimeMinutes() int {
	if c.WordCount <= 0 {
		return 1
	}
	minutes := (c.WordCount + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// ContentFilter narrows a FindPublished query. Zero values mean "no constraint";
// AnyTagIDs and CategoryIDs are OR-ed together when both are set.
type ContentFilter struct {
	AnyTagIDs      []int64
	CategoryIDs    []int64
	PublishedSince *time.Time
	OrderBy        ContentOrder
}

type ContentOrder int

const (
	OrderByRecency ContentOrder = iota
	OrderByEngagement
)
