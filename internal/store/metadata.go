package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"docpipeline/internal/model"
)

// ErrDefaultGroupProtected is returned when a caller attempts to delete the
// default MetadataGroup, which spec §4.10 forbids.
var ErrDefaultGroupProtected = errors.New("default metadata group cannot be deleted")

// CreateConfiguration inserts a new MetadataConfiguration.
func (s *Store) CreateConfiguration(ctx context.Context, c model.MetadataConfiguration) (model.MetadataConfiguration, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	rules, err := json.Marshal(c.ValidationRules)
	if err != nil {
		return model.MetadataConfiguration{}, err
	}
	row := s.pool.QueryRow(ctx, `
INSERT INTO metadata_configurations (id, name, description, data_type, extraction_prompt, extraction_prompt_version, validation_rules, is_active, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, name, description, data_type, extraction_prompt, extraction_prompt_version, validation_rules, is_active, created_by, created_at, updated_at`,
		c.ID, c.Name, c.Description, c.DataType, c.ExtractionPrompt, c.ExtractionPromptVersion, rules, c.IsActive, c.CreatedBy)
	return scanConfiguration(row)
}

// GetConfiguration looks up a MetadataConfiguration by id.
func (s *Store) GetConfiguration(ctx context.Context, id string) (model.MetadataConfiguration, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, name, description, data_type, extraction_prompt, extraction_prompt_version, validation_rules, is_active, created_by, created_at, updated_at
FROM metadata_configurations WHERE id = $1`, id)
	c, err := scanConfiguration(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.MetadataConfiguration{}, ErrNotFound
	}
	return c, err
}

// ListConfigurations returns every MetadataConfiguration.
func (s *Store) ListConfigurations(ctx context.Context) ([]model.MetadataConfiguration, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, name, description, data_type, extraction_prompt, extraction_prompt_version, validation_rules, is_active, created_by, created_at, updated_at
FROM metadata_configurations ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MetadataConfiguration
	for rows.Next() {
		c, err := scanConfigurationRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateConfiguration overwrites a MetadataConfiguration's mutable fields.
// Callers decide extraction_prompt_version (spec §4.10 bumps it iff the
// prompt text changed) since that decision needs the prior row, which the
// manager layer already holds.
func (s *Store) UpdateConfiguration(ctx context.Context, c model.MetadataConfiguration) (model.MetadataConfiguration, error) {
	rules, err := json.Marshal(c.ValidationRules)
	if err != nil {
		return model.MetadataConfiguration{}, err
	}
	row := s.pool.QueryRow(ctx, `
UPDATE metadata_configurations SET
    name = $2, description = $3, data_type = $4, extraction_prompt = $5,
    extraction_prompt_version = $6, validation_rules = $7, is_active = $8, updated_at = NOW()
WHERE id = $1
RETURNING id, name, description, data_type, extraction_prompt, extraction_prompt_version, validation_rules, is_active, created_by, created_at, updated_at`,
		c.ID, c.Name, c.Description, c.DataType, c.ExtractionPrompt, c.ExtractionPromptVersion, rules, c.IsActive)
	out, err := scanConfiguration(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.MetadataConfiguration{}, ErrNotFound
	}
	return out, err
}

// UpdateGroup overwrites a MetadataGroup's mutable fields. is_default is
// never touched here — default status only ever changes at creation.
func (s *Store) UpdateGroup(ctx context.Context, g model.MetadataGroup) (model.MetadataGroup, error) {
	row := s.pool.QueryRow(ctx, `
UPDATE metadata_groups SET name = $2, description = $3, color = $4, tags = $5, updated_at = NOW()
WHERE id = $1
RETURNING id, name, description, color, tags, is_default, created_by, created_at, updated_at`,
		g.ID, g.Name, g.Description, g.Color, g.Tags)
	out, err := scanGroup(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.MetadataGroup{}, ErrNotFound
	}
	return out, err
}

// DeleteConfiguration removes a MetadataConfiguration; GroupConfigLink rows
// cascade via the foreign key, and any ExtractedMetadata previously
// produced under this configuration's name (not FK-linked, since history
// must survive configuration edits/renames elsewhere) is deleted
// explicitly, per spec §4.10.
func (s *Store) DeleteConfiguration(ctx context.Context, id string) error {
	cfg, err := s.GetConfiguration(ctx, id)
	if err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM extracted_metadata WHERE metadata_name = $1`, cfg.Name); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM metadata_configurations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

// GroupIDsForConfig returns every group a configuration is currently linked
// into, used to detect "only link is to this group" during group deletion.
func (s *Store) GroupIDsForConfig(ctx context.Context, configID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT group_id FROM group_config_links WHERE config_id = $1`, configID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// NextDisplayOrder returns the position a newly-added link should take:
// one past the current maximum in the group (0 if the group is empty).
func (s *Store) NextDisplayOrder(ctx context.Context, groupID string) (int, error) {
	var next int
	err := s.pool.QueryRow(ctx, `
SELECT COALESCE(MAX(display_order) + 1, 0) FROM group_config_links WHERE group_id = $1`, groupID).Scan(&next)
	return next, err
}

// CreateGroup inserts a new MetadataGroup. Creating a group with IsDefault
// true fails with ErrConflict if a default group already exists — the
// partial unique index metadata_groups_one_default_idx enforces this at the
// database level too.
func (s *Store) CreateGroup(ctx context.Context, g model.MetadataGroup) (model.MetadataGroup, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	row := s.pool.QueryRow(ctx, `
INSERT INTO metadata_groups (id, name, description, color, tags, is_default, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, name, description, color, tags, is_default, created_by, created_at, updated_at`,
		g.ID, g.Name, g.Description, g.Color, g.Tags, g.IsDefault, g.CreatedBy)
	out, err := scanGroup(row)
	if err != nil && isUniqueViolation(err) {
		return model.MetadataGroup{}, fmt.Errorf("%w: default group already exists", ErrConflict)
	}
	return out, err
}

// GetGroup looks up a MetadataGroup by id.
func (s *Store) GetGroup(ctx context.Context, id string) (model.MetadataGroup, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, name, description, color, tags, is_default, created_by, created_at, updated_at
FROM metadata_groups WHERE id = $1`, id)
	g, err := scanGroup(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.MetadataGroup{}, ErrNotFound
	}
	return g, err
}

// ListGroups returns every MetadataGroup.
func (s *Store) ListGroups(ctx context.Context) ([]model.MetadataGroup, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, name, description, color, tags, is_default, created_by, created_at, updated_at
FROM metadata_groups ORDER BY is_default DESC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MetadataGroup
	for rows.Next() {
		g, err := scanGroupRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GetDefaultGroup returns the single MetadataGroup with is_default=true.
func (s *Store) GetDefaultGroup(ctx context.Context) (model.MetadataGroup, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, name, description, color, tags, is_default, created_by, created_at, updated_at
FROM metadata_groups WHERE is_default = TRUE`)
	g, err := scanGroup(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.MetadataGroup{}, ErrNotFound
	}
	return g, err
}

// DeleteGroup removes a MetadataGroup. The default group can never be
// deleted (spec §4.10); every other group's links are cascade-removed and
// any ExtractedMetadata previously produced under it is left untouched —
// extraction history is keyed by (collection, document, group, name), not
// by a foreign key that would block the delete.
func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	g, err := s.GetGroup(ctx, id)
	if err != nil {
		return err
	}
	if g.IsDefault {
		return ErrDefaultGroupProtected
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM metadata_groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CloneGroup duplicates a group's name/description/color/tags plus every
// GroupConfigLink (at the same display_order) into a new group, per spec
// §4.10's clone-group operation. The clone is never itself a default group.
func (s *Store) CloneGroup(ctx context.Context, sourceID, newName, clonedBy string) (model.MetadataGroup, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.MetadataGroup{}, err
	}
	defer tx.Rollback(ctx)

	src, err := s.GetGroup(ctx, sourceID)
	if err != nil {
		return model.MetadataGroup{}, err
	}

	newID := uuid.NewString()
	if _, err := tx.Exec(ctx, `
INSERT INTO metadata_groups (id, name, description, color, tags, is_default, created_by)
VALUES ($1, $2, $3, $4, $5, FALSE, $6)`,
		newID, newName, src.Description, src.Color, src.Tags, clonedBy); err != nil {
		return model.MetadataGroup{}, err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO group_config_links (group_id, config_id, display_order, added_by)
SELECT $1, config_id, display_order, $2 FROM group_config_links WHERE group_id = $3`,
		newID, clonedBy, sourceID); err != nil {
		return model.MetadataGroup{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.MetadataGroup{}, err
	}
	return s.GetGroup(ctx, newID)
}

// AddConfigToGroup links a configuration into a group at a given display
// order. A configuration may belong to many groups simultaneously (spec
// §3's multi-group membership rule), so no uniqueness constraint exists
// beyond the (group_id, config_id) primary key preventing duplicate links.
func (s *Store) AddConfigToGroup(ctx context.Context, groupID, configID string, displayOrder int, addedBy string) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO group_config_links (group_id, config_id, display_order, added_by)
VALUES ($1, $2, $3, $4)
ON CONFLICT (group_id, config_id) DO UPDATE SET display_order = EXCLUDED.display_order`,
		groupID, configID, displayOrder, addedBy)
	return err
}

// RemoveConfigFromGroup unlinks a configuration from a group.
func (s *Store) RemoveConfigFromGroup(ctx context.Context, groupID, configID string) error {
	_, err := s.pool.Exec(ctx, `
DELETE FROM group_config_links WHERE group_id = $1 AND config_id = $2`, groupID, configID)
	return err
}

// ReorderGroupConfigs rewrites every display_order in a group to a dense
// 0..n-1 permutation matching the given configID order, per spec §4.10's
// dense-permutation reorder rule. Relies on group_config_links'
// UNIQUE(group_id, display_order) being DEFERRABLE INITIALLY DEFERRED: the
// sequential per-row UPDATEs below can transiently collide with each
// other's old values mid-loop, but the constraint is only checked at
// COMMIT, by which point the permutation is consistent.
func (s *Store) ReorderGroupConfigs(ctx context.Context, groupID string, orderedConfigIDs []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i, configID := range orderedConfigIDs {
		if _, err := tx.Exec(ctx, `
UPDATE group_config_links SET display_order = $1 WHERE group_id = $2 AND config_id = $3`,
			i, groupID, configID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ListGroupConfigs returns a group's configurations in display order.
func (s *Store) ListGroupConfigs(ctx context.Context, groupID string) ([]model.MetadataConfiguration, error) {
	rows, err := s.pool.Query(ctx, `
SELECT c.id, c.name, c.description, c.data_type, c.extraction_prompt, c.extraction_prompt_version,
       c.validation_rules, c.is_active, c.created_by, c.created_at, c.updated_at
FROM metadata_configurations c
JOIN group_config_links l ON l.config_id = c.id
WHERE l.group_id = $1
ORDER BY l.display_order ASC`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MetadataConfiguration
	for rows.Next() {
		c, err := scanConfigurationRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanConfiguration(row pgx.Row) (model.MetadataConfiguration, error) {
	var c model.MetadataConfiguration
	var rules []byte
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.DataType, &c.ExtractionPrompt,
		&c.ExtractionPromptVersion, &rules, &c.IsActive, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return model.MetadataConfiguration{}, err
	}
	if len(rules) > 0 {
		c.ValidationRules = &model.ValidationRules{}
		if err := json.Unmarshal(rules, c.ValidationRules); err != nil {
			return model.MetadataConfiguration{}, err
		}
	}
	return c, nil
}

func scanConfigurationRow(rows pgx.Rows) (model.MetadataConfiguration, error) {
	var c model.MetadataConfiguration
	var rules []byte
	err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.DataType, &c.ExtractionPrompt,
		&c.ExtractionPromptVersion, &rules, &c.IsActive, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return model.MetadataConfiguration{}, err
	}
	if len(rules) > 0 {
		c.ValidationRules = &model.ValidationRules{}
		if err := json.Unmarshal(rules, c.ValidationRules); err != nil {
			return model.MetadataConfiguration{}, err
		}
	}
	return c, nil
}

func scanGroup(row pgx.Row) (model.MetadataGroup, error) {
	var g model.MetadataGroup
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.Color, &g.Tags, &g.IsDefault, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

func scanGroupRow(rows pgx.Rows) (model.MetadataGroup, error) {
	var g model.MetadataGroup
	err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.Color, &g.Tags, &g.IsDefault, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
