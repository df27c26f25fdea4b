package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Default naming templates, used when no row exists for a type.
var defaultNamingTemplates = map[string]NamingTemplate{
	"movie": {
		Type:           "movie",
		FolderTemplate: "{Title} ({Year})",
		FileTemplate:   "{Title} ({Year})",
	},
	"tv": {
		Type:           "tv",
		FolderTemplate: "{Title}/Season {Season:00}",
		FileTemplate:   "{Title} - S{Season:00}E{Episode:00}",
	},
}

// GetNamingTemplate returns the naming template for a media type, falling
// back to the built-in default when none is stored.
func (s *Store) GetNamingTemplate(ctx context.Context, typ string) (*NamingTemplate, error) {
	var t NamingTemplate
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, type, folder_template, file_template FROM naming_templates WHERE type = ?`, typ).
		Scan(&t.ID, &t.Type, &t.FolderTemplate, &t.FileTemplate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if def, ok := defaultNamingTemplates[typ]; ok {
				return &def, nil
			}
			return nil, fmt.Errorf("no naming template for type %q", typ)
		}
		return nil, fmt.Errorf("get naming template: %w", err)
	}
	return &t, nil
}

// UpsertNamingTemplate stores a custom naming template for a media type.
func (s *Store) UpsertNamingTemplate(ctx context.Context, t *NamingTemplate) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO naming_templates (type, folder_template, file_template)
		VALUES (?, ?, ?)
		ON CONFLICT(type) DO UPDATE SET
			folder_template = excluded.folder_template,
			file_template = excluded.file_template`,
		t.Type, t.FolderTemplate, t.FileTemplate)
	if err != nil {
		return fmt.Errorf("upsert naming template: %w", err)
	}
	return nil
}
