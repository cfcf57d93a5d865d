// Package metadata implements the Configuration & Group Manager (C10):
// CRUD over MetadataConfigurations and MetadataGroups with the invariants
// spec §3/§4.10 require — multi-group membership, a single protected
// default group, and a dense display_order permutation per group.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docpipeline/internal/model"
	"docpipeline/internal/store"
)

const defaultGroupColor = "#3B82F6"

var (
	// ErrUnknownGroup is returned when a configuration references a group
	// id that does not exist.
	ErrUnknownGroup = errors.New("metadata: unknown group id")
	// ErrNoGroups is returned when creating a configuration with zero group ids.
	ErrNoGroups = errors.New("metadata: configuration must belong to at least one group")
	// ErrDuplicateName is returned for a case-insensitive name collision.
	ErrDuplicateName = errors.New("metadata: name already in use")
	// ErrCannotRenameDefaultGroup is returned when an update tries to
	// change the default group's name.
	ErrCannotRenameDefaultGroup = errors.New("metadata: cannot rename the default group")
)

// managerStore is the narrow store surface the manager needs.
type managerStore interface {
	CreateConfiguration(ctx context.Context, c model.MetadataConfiguration) (model.MetadataConfiguration, error)
	GetConfiguration(ctx context.Context, id string) (model.MetadataConfiguration, error)
	ListConfigurations(ctx context.Context) ([]model.MetadataConfiguration, error)
	UpdateConfiguration(ctx context.Context, c model.MetadataConfiguration) (model.MetadataConfiguration, error)
	DeleteConfiguration(ctx context.Context, id string) error
	GroupIDsForConfig(ctx context.Context, configID string) ([]string, error)
	NextDisplayOrder(ctx context.Context, groupID string) (int, error)

	CreateGroup(ctx context.Context, g model.MetadataGroup) (model.MetadataGroup, error)
	GetGroup(ctx context.Context, id string) (model.MetadataGroup, error)
	ListGroups(ctx context.Context) ([]model.MetadataGroup, error)
	GetDefaultGroup(ctx context.Context) (model.MetadataGroup, error)
	UpdateGroup(ctx context.Context, g model.MetadataGroup) (model.MetadataGroup, error)
	DeleteGroup(ctx context.Context, id string) error
	CloneGroup(ctx context.Context, sourceID, newName, clonedBy string) (model.MetadataGroup, error)

	AddConfigToGroup(ctx context.Context, groupID, configID string, displayOrder int, addedBy string) error
	RemoveConfigFromGroup(ctx context.Context, groupID, configID string) error
	ReorderGroupConfigs(ctx context.Context, groupID string, orderedConfigIDs []string) error
	ListGroupConfigs(ctx context.Context, groupID string) ([]model.MetadataConfiguration, error)
}

// Manager implements the Configuration & Group Manager's CRUD operations.
type Manager struct {
	store managerStore
}

// New constructs a Manager.
func New(st *store.Store) *Manager { return newManager(st) }

func newManager(st managerStore) *Manager { return &Manager{store: st} }

// CreateConfiguration inserts a configuration and links it into every group
// id given. At least one group id is required; any unknown id fails the
// whole call with no partial state left behind.
func (m *Manager) CreateConfiguration(ctx context.Context, c model.MetadataConfiguration, groupIDs []string) (model.MetadataConfiguration, error) {
	if len(groupIDs) == 0 {
		return model.MetadataConfiguration{}, ErrNoGroups
	}
	if err := m.checkUniqueConfigName(ctx, c.Name, ""); err != nil {
		return model.MetadataConfiguration{}, err
	}
	for _, gid := range groupIDs {
		if _, err := m.store.GetGroup(ctx, gid); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return model.MetadataConfiguration{}, fmt.Errorf("%w: %s", ErrUnknownGroup, gid)
			}
			return model.MetadataConfiguration{}, err
		}
	}

	if c.ExtractionPromptVersion == 0 {
		c.ExtractionPromptVersion = 1
	}
	created, err := m.store.CreateConfiguration(ctx, c)
	if err != nil {
		return model.MetadataConfiguration{}, err
	}

	for _, gid := range groupIDs {
		order, err := m.store.NextDisplayOrder(ctx, gid)
		if err != nil {
			return model.MetadataConfiguration{}, err
		}
		if err := m.store.AddConfigToGroup(ctx, gid, created.ID, order, created.CreatedBy); err != nil {
			return model.MetadataConfiguration{}, err
		}
	}
	return created, nil
}

// ConfigurationPatch carries the mutable fields UpdateConfiguration accepts;
// nil fields are left unchanged.
type ConfigurationPatch struct {
	Name             *string
	Description      *string
	ExtractionPrompt *string
	ValidationRules  *model.ValidationRules
	IsActive         *bool
}

// UpdateConfiguration applies patch to an existing configuration, bumping
// extraction_prompt_version iff ExtractionPrompt is set and differs from
// the current value (spec §4.10).
func (m *Manager) UpdateConfiguration(ctx context.Context, id string, patch ConfigurationPatch) (model.MetadataConfiguration, error) {
	current, err := m.store.GetConfiguration(ctx, id)
	if err != nil {
		return model.MetadataConfiguration{}, err
	}

	if patch.Name != nil {
		if err := m.checkUniqueConfigName(ctx, *patch.Name, id); err != nil {
			return model.MetadataConfiguration{}, err
		}
		current.Name = *patch.Name
	}
	if patch.Description != nil {
		current.Description = *patch.Description
	}
	if patch.ValidationRules != nil {
		current.ValidationRules = patch.ValidationRules
	}
	if patch.IsActive != nil {
		current.IsActive = *patch.IsActive
	}
	if patch.ExtractionPrompt != nil && *patch.ExtractionPrompt != current.ExtractionPrompt {
		current.ExtractionPrompt = *patch.ExtractionPrompt
		current.ExtractionPromptVersion++
	}

	return m.store.UpdateConfiguration(ctx, current)
}

// DeleteConfiguration removes a configuration; GroupConfigLink rows and
// historical ExtractedMetadata rows for its name are removed by the store
// layer (spec §4.10).
func (m *Manager) DeleteConfiguration(ctx context.Context, id string) error {
	return m.store.DeleteConfiguration(ctx, id)
}

// CreateGroup inserts a new, never-default group. Name uniqueness is
// case-insensitive (spec §4.10); a default color is applied if unset.
func (m *Manager) CreateGroup(ctx context.Context, g model.MetadataGroup) (model.MetadataGroup, error) {
	if err := m.checkUniqueGroupName(ctx, g.Name, ""); err != nil {
		return model.MetadataGroup{}, err
	}
	g.IsDefault = false
	if strings.TrimSpace(g.Color) == "" {
		g.Color = defaultGroupColor
	}
	return m.store.CreateGroup(ctx, g)
}

// GroupPatch carries the mutable fields UpdateGroup accepts.
type GroupPatch struct {
	Name        *string
	Description *string
	Color       *string
	Tags        []string
}

// UpdateGroup applies patch to a group. Renaming the default group is
// rejected (spec §4.10).
func (m *Manager) UpdateGroup(ctx context.Context, id string, patch GroupPatch) (model.MetadataGroup, error) {
	current, err := m.store.GetGroup(ctx, id)
	if err != nil {
		return model.MetadataGroup{}, err
	}

	if patch.Name != nil && *patch.Name != current.Name {
		if current.IsDefault {
			return model.MetadataGroup{}, ErrCannotRenameDefaultGroup
		}
		if err := m.checkUniqueGroupName(ctx, *patch.Name, id); err != nil {
			return model.MetadataGroup{}, err
		}
		current.Name = *patch.Name
	}
	if patch.Description != nil {
		current.Description = *patch.Description
	}
	if patch.Color != nil {
		current.Color = *patch.Color
	}
	if patch.Tags != nil {
		current.Tags = patch.Tags
	}

	return m.store.UpdateGroup(ctx, current)
}

// DeleteGroup removes a non-default group, first reassigning any
// configuration whose only link is to this group over to the default
// group, so invariant 4 (every configuration belongs to ≥1 group) never
// breaks (spec §4.10, §3 invariant 1).
func (m *Manager) DeleteGroup(ctx context.Context, id string) error {
	group, err := m.store.GetGroup(ctx, id)
	if err != nil {
		return err
	}
	if group.IsDefault {
		return store.ErrDefaultGroupProtected
	}

	defaultGroup, err := m.store.GetDefaultGroup(ctx)
	if err != nil {
		return fmt.Errorf("resolve default group: %w", err)
	}

	configs, err := m.store.ListGroupConfigs(ctx, id)
	if err != nil {
		return err
	}
	for _, cfg := range configs {
		groups, err := m.store.GroupIDsForConfig(ctx, cfg.ID)
		if err != nil {
			return err
		}
		if len(groups) == 1 && groups[0] == id {
			order, err := m.store.NextDisplayOrder(ctx, defaultGroup.ID)
			if err != nil {
				return err
			}
			if err := m.store.AddConfigToGroup(ctx, defaultGroup.ID, cfg.ID, order, cfg.CreatedBy); err != nil {
				return err
			}
		}
	}

	return m.store.DeleteGroup(ctx, id)
}

// ReorderConfigInGroup moves configID to newOrder within groupID, shifting
// every other link by one in the opposite direction to preserve the dense
// 0..n-1 permutation invariant (spec §4.10, §3 invariant 3).
func (m *Manager) ReorderConfigInGroup(ctx context.Context, groupID, configID string, newOrder int) error {
	current, err := m.store.ListGroupConfigs(ctx, groupID)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(current))
	found := false
	for _, c := range current {
		if c.ID == configID {
			found = true
			continue
		}
		ids = append(ids, c.ID)
	}
	if !found {
		return fmt.Errorf("%w: config %s not linked to group %s", store.ErrNotFound, configID, groupID)
	}
	if newOrder < 0 {
		newOrder = 0
	}
	if newOrder > len(ids) {
		newOrder = len(ids)
	}
	reordered := make([]string, 0, len(ids)+1)
	reordered = append(reordered, ids[:newOrder]...)
	reordered = append(reordered, configID)
	reordered = append(reordered, ids[newOrder:]...)

	return m.store.ReorderGroupConfigs(ctx, groupID, reordered)
}

// CloneGroup duplicates a group and its configuration links under a new,
// distinct name.
func (m *Manager) CloneGroup(ctx context.Context, sourceID, newName, clonedBy string) (model.MetadataGroup, error) {
	if err := m.checkUniqueGroupName(ctx, newName, ""); err != nil {
		return model.MetadataGroup{}, err
	}
	return m.store.CloneGroup(ctx, sourceID, newName, clonedBy)
}

func (m *Manager) checkUniqueConfigName(ctx context.Context, name, excludeID string) error {
	configs, err := m.store.ListConfigurations(ctx)
	if err != nil {
		return err
	}
	for _, c := range configs {
		if c.ID == excludeID {
			continue
		}
		if strings.EqualFold(c.Name, name) {
			return ErrDuplicateName
		}
	}
	return nil
}

func (m *Manager) checkUniqueGroupName(ctx context.Context, name, excludeID string) error {
	groups, err := m.store.ListGroups(ctx)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if g.ID == excludeID {
			continue
		}
		if strings.EqualFold(g.Name, name) {
			return ErrDuplicateName
		}
	}
	return nil
}
