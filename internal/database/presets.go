package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/windrose/windrose/internal/quality"
)

var ErrPresetNotFound = errors.New("quality preset not found")

const presetColumns = `id, name, is_default, resolution, min_resolution, sources,
	hdr_formats, codec, audio_formats, audio_channels, preferred_edition, min_seeders,
	cutoff_resolution, cutoff_source, cutoff_met_behavior, auto_upgrade,
	prefer_smaller_size, prefer_dual_audio, allow_fansub`

// CreatePreset inserts a quality preset. Marking it default clears the flag
// on every other preset.
func (s *Store) CreatePreset(ctx context.Context, p *quality.Preset) error {
	if p.IsDefault {
		if err := s.clearDefaultPreset(ctx); err != nil {
			return err
		}
	}

	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO quality_presets (name, is_default, resolution, min_resolution, sources,
			hdr_formats, codec, audio_formats, audio_channels, preferred_edition, min_seeders,
			cutoff_resolution, cutoff_source, cutoff_met_behavior, auto_upgrade,
			prefer_smaller_size, prefer_dual_audio, allow_fansub)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.IsDefault, p.Resolution, p.MinResolution, marshalList(p.Sources),
		marshalList(p.HDRFormats), p.Codec, marshalList(p.AudioFormats),
		marshalList(p.AudioChannels), p.PreferredEdition, p.MinSeeders,
		p.CutoffResolution, p.CutoffSource, string(p.CutoffMetBehavior), p.AutoUpgrade,
		p.PreferSmallerSize, p.PreferDualAudio, p.AllowFansub)
	if err != nil {
		return fmt.Errorf("create preset: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

// GetPreset retrieves a preset by id.
func (s *Store) GetPreset(ctx context.Context, id int64) (*quality.Preset, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+presetColumns+` FROM quality_presets WHERE id = ?`, id)
	return scanPreset(row)
}

// GetDefaultPreset returns the preset flagged as default.
func (s *Store) GetDefaultPreset(ctx context.Context) (*quality.Preset, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+presetColumns+` FROM quality_presets WHERE is_default = 1 LIMIT 1`)
	return scanPreset(row)
}

// ListPresets returns all presets.
func (s *Store) ListPresets(ctx context.Context) ([]*quality.Preset, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+presetColumns+` FROM quality_presets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	defer rows.Close()

	var presets []*quality.Preset
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, err
		}
		presets = append(presets, p)
	}
	return presets, rows.Err()
}

// UpdatePreset rewrites every field of a preset.
func (s *Store) UpdatePreset(ctx context.Context, p *quality.Preset) error {
	if p.IsDefault {
		if err := s.clearDefaultPreset(ctx); err != nil {
			return err
		}
	}

	_, err := s.conn.ExecContext(ctx, `
		UPDATE quality_presets SET name = ?, is_default = ?, resolution = ?, min_resolution = ?,
			sources = ?, hdr_formats = ?, codec = ?, audio_formats = ?, audio_channels = ?,
			preferred_edition = ?, min_seeders = ?, cutoff_resolution = ?, cutoff_source = ?,
			cutoff_met_behavior = ?, auto_upgrade = ?, prefer_smaller_size = ?,
			prefer_dual_audio = ?, allow_fansub = ?
		WHERE id = ?`,
		p.Name, p.IsDefault, p.Resolution, p.MinResolution, marshalList(p.Sources),
		marshalList(p.HDRFormats), p.Codec, marshalList(p.AudioFormats),
		marshalList(p.AudioChannels), p.PreferredEdition, p.MinSeeders,
		p.CutoffResolution, p.CutoffSource, string(p.CutoffMetBehavior), p.AutoUpgrade,
		p.PreferSmallerSize, p.PreferDualAudio, p.AllowFansub, p.ID)
	if err != nil {
		return fmt.Errorf("update preset: %w", err)
	}
	return nil
}

// DeletePreset removes a preset.
func (s *Store) DeletePreset(ctx context.Context, id int64) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM quality_presets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete preset: %w", err)
	}
	return nil
}

// SeedBuiltInPresets inserts the built-in presets into an empty presets
// table. No-op when any preset already exists.
func (s *Store) SeedBuiltInPresets(ctx context.Context) error {
	var count int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM quality_presets`).Scan(&count); err != nil {
		return fmt.Errorf("count presets: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, p := range quality.BuiltInPresets() {
		preset := p
		if err := s.CreatePreset(ctx, &preset); err != nil {
			return err
		}
	}
	s.logger.Info().Msg("seeded built-in quality presets")
	return nil
}

func (s *Store) clearDefaultPreset(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `UPDATE quality_presets SET is_default = 0`); err != nil {
		return fmt.Errorf("clear default preset: %w", err)
	}
	return nil
}

func marshalList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(list)
	return string(b)
}

func unmarshalList(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var list []string
	_ = json.Unmarshal([]byte(raw), &list)
	return list
}

func scanPreset(row rowScanner) (*quality.Preset, error) {
	var p quality.Preset
	var sources, hdrFormats, audioFormats, audioChannels, behavior string
	err := row.Scan(&p.ID, &p.Name, &p.IsDefault, &p.Resolution, &p.MinResolution, &sources,
		&hdrFormats, &p.Codec, &audioFormats, &audioChannels, &p.PreferredEdition, &p.MinSeeders,
		&p.CutoffResolution, &p.CutoffSource, &behavior, &p.AutoUpgrade,
		&p.PreferSmallerSize, &p.PreferDualAudio, &p.AllowFansub)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPresetNotFound
		}
		return nil, fmt.Errorf("scan preset: %w", err)
	}
	p.Sources = unmarshalList(sources)
	p.HDRFormats = unmarshalList(hdrFormats)
	p.AudioFormats = unmarshalList(audioFormats)
	p.AudioChannels = unmarshalList(audioChannels)
	p.CutoffMetBehavior = quality.CutoffMetBehavior(behavior)
	return &p, nil
}
