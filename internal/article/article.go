// Package article is the demo domain managed by the data upgrader: a table of
// published articles whose status column predates validation.
package article

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/loykin/dataupgrader/internal/upgrade"
)

const (
	TableName = "article"
	Kind      = "article"

	StatusLive = "live"
	StatusDead = "dead"
)

// Article is the decoded form of an article row.
type Article struct {
	ID              string    `mapstructure:"id"`
	Slug            string    `mapstructure:"slug"`
	Kind            string    `mapstructure:"kind"`
	Heading         string    `mapstructure:"heading"`
	Topics          []string  `mapstructure:"topics"`
	PublicationDate time.Time `mapstructure:"publication_date"`
	Status          string    `mapstructure:"status"`
}

// DTO is the public JSON shape. It omits status.
type DTO struct {
	ID              string    `json:"id"`
	Slug            string    `json:"slug"`
	Kind            string    `json:"kind"`
	Heading         string    `json:"heading"`
	Topics          []string  `json:"topics"`
	PublicationDate time.Time `json:"publication_date"`
}

func (a Article) DTO() DTO {
	topics := a.Topics
	if topics == nil {
		topics = []string{}
	}
	return DTO{
		ID:              a.ID,
		Slug:            a.Slug,
		Kind:            a.Kind,
		Heading:         a.Heading,
		Topics:          topics,
		PublicationDate: a.PublicationDate,
	}
}

// Fields returns the column values for an insert.
func (a Article) Fields() map[string]any {
	topics := a.Topics
	if topics == nil {
		topics = []string{}
	}
	return map[string]any{
		upgrade.IDField:              a.ID,
		"slug":                       a.Slug,
		"kind":                       a.Kind,
		"heading":                    a.Heading,
		"topics":                     topics,
		"publication_date":           a.PublicationDate,
		"status":                     a.Status,
		upgrade.AppliedUpgradesField: []string{},
	}
}

// FromRow decodes a store row. SQLite hands back topics as a JSON string and
// dates as RFC3339 text; Postgres hands back native values.
func FromRow(row upgrade.Row) (Article, error) {
	var a Article
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			jsonListHook,
			timeHook,
		),
		WeaklyTypedInput: true,
		Result:           &a,
	})
	if err != nil {
		return Article{}, err
	}
	if err := dec.Decode(row.Fields); err != nil {
		return Article{}, fmt.Errorf("decode article %s: %w", row.ID, err)
	}
	a.ID = row.ID
	return a, nil
}

func jsonListHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice {
		return data, nil
	}
	s := strings.TrimSpace(reflect.ValueOf(data).String())
	if s == "" {
		return []string{}, nil
	}
	if !strings.HasPrefix(s, "[") {
		return data, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func timeHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	s := strings.TrimSpace(reflect.ValueOf(data).String())
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
