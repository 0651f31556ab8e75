// Package notes provides the notes.append and notes.search tools over the
// notes repository.
package notes

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/steward-ai/steward/internal/tools"
	"github.com/steward-ai/steward/pkg/models"
)

// Store is the slice of the storage layer the notes tools need.
type Store interface {
	AppendNote(ctx context.Context, note models.Note) (models.Note, error)
	ListNotes(ctx context.Context) ([]models.Note, error)
}

const defaultSearchLimit = 20

type appendArgs struct {
	Title   string `json:"title,omitempty" jsonschema:"description=Optional note title"`
	Content string `json:"content" jsonschema:"description=Note text"`
}

type searchArgs struct {
	Query string `json:"query" jsonschema:"description=Case-insensitive substring to match"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Maximum notes to return"`
}

// Register adds notes.append and notes.search against the store.
func Register(reg *tools.Registry, store Store) error {
	if err := reg.Register(models.ToolSpec{
		Name:        "notes.append",
		Description: "Append a note",
		ArgsSchema:  tools.MustSchema(appendArgs{}),
		Risk:        models.RiskSafe,
		TimeoutMs:   2000,
		Caps:        []string{"notes"},
	}, appendHandler(store)); err != nil {
		return err
	}
	return reg.Register(models.ToolSpec{
		Name:        "notes.search",
		Description: "Search notes",
		ArgsSchema:  tools.MustSchema(searchArgs{}),
		Risk:        models.RiskSafe,
		TimeoutMs:   2000,
		Caps:        []string{"notes"},
	}, searchHandler(store))
}

func appendHandler(store Store) tools.Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		content, _ := args["content"].(string)
		if strings.TrimSpace(content) == "" {
			return nil, fmt.Errorf("content is required")
		}
		title, _ := args["title"].(string)
		note, err := store.AppendNote(ctx, models.Note{
			ID:      models.NewNoteID(),
			Title:   title,
			Content: content,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": note.ID, "title": note.Title}, nil
	}
}

func searchHandler(store Store) tools.Handler {
	folder := cases.Fold()
	return func(ctx context.Context, args map[string]any) (any, error) {
		query, _ := args["query"].(string)
		limit := defaultSearchLimit
		if v, ok := args["limit"].(float64); ok && int(v) > 0 {
			limit = int(v)
		}
		notes, err := store.ListNotes(ctx)
		if err != nil {
			return nil, err
		}

		needle := folder.String(strings.TrimSpace(query))
		matches := make([]map[string]any, 0, limit)
		for _, note := range notes {
			if needle != "" {
				haystack := folder.String(note.Title + "\n" + note.Content)
				if !strings.Contains(haystack, needle) {
					continue
				}
			}
			matches = append(matches, map[string]any{
				"id":      note.ID,
				"title":   note.Title,
				"content": note.Content,
			})
			if len(matches) >= limit {
				break
			}
		}
		return matches, nil
	}
}
