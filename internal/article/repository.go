package article

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loykin/dataupgrader/internal/upgrade"
)

// DefaultListLimit caps ListLive when no limit is given.
const DefaultListLimit = 100

var ErrInvalidArticle = errors.New("invalid article")

// Reader is the read side of a store.
type Reader interface {
	Select(ctx context.Context, table string, where map[string]any, limit int) ([]upgrade.Row, error)
}

// Writer is the write side of a store.
type Writer interface {
	Insert(ctx context.Context, table string, fields map[string]any) error
}

// ListLive returns live articles as seen after read-time upgrades.
func ListLive(ctx context.Context, r Reader, limit int, svc Services) ([]DTO, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.Select(ctx, TableName, map[string]any{"status": StatusLive}, limit)
	if err != nil {
		return nil, fmt.Errorf("list live articles: %w", err)
	}
	out := make([]DTO, 0, len(rows))
	for _, row := range rows {
		a, err := Effective(row, svc)
		if err != nil {
			return nil, err
		}
		out = append(out, a.DTO())
	}
	return out, nil
}

// NewArticle is the create request body.
type NewArticle struct {
	Slug            string    `json:"slug" binding:"required"`
	Kind            string    `json:"kind"`
	Heading         string    `json:"heading" binding:"required"`
	Topics          []string  `json:"topics"`
	PublicationDate time.Time `json:"publication_date"`
}

// Create inserts a live article and returns its id.
func Create(ctx context.Context, w Writer, in NewArticle, now time.Time) (string, error) {
	slug := strings.TrimSpace(in.Slug)
	if slug == "" {
		return "", fmt.Errorf("%w: slug is required", ErrInvalidArticle)
	}
	a := Article{
		ID:              uuid.NewString(),
		Slug:            slug,
		Kind:            in.Kind,
		Heading:         in.Heading,
		Topics:          in.Topics,
		PublicationDate: in.PublicationDate,
		Status:          StatusLive,
	}
	if a.Kind == "" {
		a.Kind = Kind
	}
	if a.PublicationDate.IsZero() {
		a.PublicationDate = now
	}
	if err := w.Insert(ctx, TableName, a.Fields()); err != nil {
		return "", fmt.Errorf("create article: %w", err)
	}
	return a.ID, nil
}
