package metadata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipeline/internal/model"
	"docpipeline/internal/store"
)

type fakeManagerStore struct {
	configs map[string]model.MetadataConfiguration
	groups  map[string]model.MetadataGroup
	links   map[string][]string // groupID -> ordered configIDs
}

func newFakeManagerStore() *fakeManagerStore {
	return &fakeManagerStore{
		configs: map[string]model.MetadataConfiguration{},
		groups:  map[string]model.MetadataGroup{},
		links:   map[string][]string{},
	}
}

func (f *fakeManagerStore) CreateConfiguration(ctx context.Context, c model.MetadataConfiguration) (model.MetadataConfiguration, error) {
	if c.ID == "" {
		c.ID = "cfg-" + c.Name
	}
	f.configs[c.ID] = c
	return c, nil
}
func (f *fakeManagerStore) GetConfiguration(ctx context.Context, id string) (model.MetadataConfiguration, error) {
	c, ok := f.configs[id]
	if !ok {
		return model.MetadataConfiguration{}, store.ErrNotFound
	}
	return c, nil
}
func (f *fakeManagerStore) ListConfigurations(ctx context.Context) ([]model.MetadataConfiguration, error) {
	var out []model.MetadataConfiguration
	for _, c := range f.configs {
		out = append(out, c)
	}
	return out, nil
}
func (f *fakeManagerStore) UpdateConfiguration(ctx context.Context, c model.MetadataConfiguration) (model.MetadataConfiguration, error) {
	f.configs[c.ID] = c
	return c, nil
}
func (f *fakeManagerStore) DeleteConfiguration(ctx context.Context, id string) error {
	if _, ok := f.configs[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.configs, id)
	return nil
}
func (f *fakeManagerStore) GroupIDsForConfig(ctx context.Context, configID string) ([]string, error) {
	var out []string
	for gid, ids := range f.links {
		for _, id := range ids {
			if id == configID {
				out = append(out, gid)
			}
		}
	}
	return out, nil
}
func (f *fakeManagerStore) NextDisplayOrder(ctx context.Context, groupID string) (int, error) {
	return len(f.links[groupID]), nil
}
func (f *fakeManagerStore) CreateGroup(ctx context.Context, g model.MetadataGroup) (model.MetadataGroup, error) {
	if g.ID == "" {
		g.ID = "grp-" + g.Name
	}
	f.groups[g.ID] = g
	return g, nil
}
func (f *fakeManagerStore) GetGroup(ctx context.Context, id string) (model.MetadataGroup, error) {
	g, ok := f.groups[id]
	if !ok {
		return model.MetadataGroup{}, store.ErrNotFound
	}
	return g, nil
}
func (f *fakeManagerStore) ListGroups(ctx context.Context) ([]model.MetadataGroup, error) {
	var out []model.MetadataGroup
	for _, g := range f.groups {
		out = append(out, g)
	}
	return out, nil
}
func (f *fakeManagerStore) GetDefaultGroup(ctx context.Context) (model.MetadataGroup, error) {
	for _, g := range f.groups {
		if g.IsDefault {
			return g, nil
		}
	}
	return model.MetadataGroup{}, store.ErrNotFound
}
func (f *fakeManagerStore) UpdateGroup(ctx context.Context, g model.MetadataGroup) (model.MetadataGroup, error) {
	f.groups[g.ID] = g
	return g, nil
}
func (f *fakeManagerStore) DeleteGroup(ctx context.Context, id string) error {
	g, ok := f.groups[id]
	if !ok {
		return store.ErrNotFound
	}
	if g.IsDefault {
		return store.ErrDefaultGroupProtected
	}
	delete(f.groups, id)
	delete(f.links, id)
	return nil
}
func (f *fakeManagerStore) CloneGroup(ctx context.Context, sourceID, newName, clonedBy string) (model.MetadataGroup, error) {
	src := f.groups[sourceID]
	clone := model.MetadataGroup{ID: "grp-" + newName, Name: newName, Description: src.Description, Color: src.Color, Tags: src.Tags}
	f.groups[clone.ID] = clone
	f.links[clone.ID] = append([]string(nil), f.links[sourceID]...)
	return clone, nil
}
func (f *fakeManagerStore) AddConfigToGroup(ctx context.Context, groupID, configID string, displayOrder int, addedBy string) error {
	for _, id := range f.links[groupID] {
		if id == configID {
			return nil
		}
	}
	f.links[groupID] = append(f.links[groupID], configID)
	return nil
}
func (f *fakeManagerStore) RemoveConfigFromGroup(ctx context.Context, groupID, configID string) error {
	ids := f.links[groupID]
	for i, id := range ids {
		if id == configID {
			f.links[groupID] = append(ids[:i], ids[i+1:]...)
			return nil
		}
	}
	return nil
}
func (f *fakeManagerStore) ReorderGroupConfigs(ctx context.Context, groupID string, orderedConfigIDs []string) error {
	f.links[groupID] = orderedConfigIDs
	return nil
}
func (f *fakeManagerStore) ListGroupConfigs(ctx context.Context, groupID string) ([]model.MetadataConfiguration, error) {
	var out []model.MetadataConfiguration
	for _, id := range f.links[groupID] {
		out = append(out, f.configs[id])
	}
	return out, nil
}

func TestCreateConfigurationRequiresAtLeastOneGroup(t *testing.T) {
	fs := newFakeManagerStore()
	m := newManager(fs)
	_, err := m.CreateConfiguration(context.Background(), model.MetadataConfiguration{Name: "revenue"}, nil)
	assert.ErrorIs(t, err, ErrNoGroups)
}

func TestCreateConfigurationFailsOnUnknownGroup(t *testing.T) {
	fs := newFakeManagerStore()
	m := newManager(fs)
	_, err := m.CreateConfiguration(context.Background(), model.MetadataConfiguration{Name: "revenue"}, []string{"missing"})
	assert.ErrorIs(t, err, ErrUnknownGroup)
}

func TestCreateConfigurationLinksIntoEveryGroup(t *testing.T) {
	fs := newFakeManagerStore()
	fs.groups["grp-a"] = model.MetadataGroup{ID: "grp-a", Name: "a"}
	fs.groups["grp-b"] = model.MetadataGroup{ID: "grp-b", Name: "b"}
	m := newManager(fs)

	cfg, err := m.CreateConfiguration(context.Background(), model.MetadataConfiguration{Name: "revenue"}, []string{"grp-a", "grp-b"})
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.ExtractionPromptVersion)
	assert.Contains(t, fs.links["grp-a"], cfg.ID)
	assert.Contains(t, fs.links["grp-b"], cfg.ID)
}

func TestCreateConfigurationRejectsDuplicateNameCaseInsensitive(t *testing.T) {
	fs := newFakeManagerStore()
	fs.groups["grp-a"] = model.MetadataGroup{ID: "grp-a", Name: "a"}
	fs.configs["cfg-revenue"] = model.MetadataConfiguration{ID: "cfg-revenue", Name: "Revenue"}
	m := newManager(fs)

	_, err := m.CreateConfiguration(context.Background(), model.MetadataConfiguration{Name: "revenue"}, []string{"grp-a"})
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestUpdateConfigurationBumpsVersionOnlyWhenPromptChanges(t *testing.T) {
	fs := newFakeManagerStore()
	fs.configs["cfg-1"] = model.MetadataConfiguration{ID: "cfg-1", Name: "revenue", ExtractionPrompt: "old", ExtractionPromptVersion: 1}
	m := newManager(fs)

	sameDesc := "unchanged description"
	updated, err := m.UpdateConfiguration(context.Background(), "cfg-1", ConfigurationPatch{Description: &sameDesc})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.ExtractionPromptVersion)

	newPrompt := "new prompt"
	updated, err = m.UpdateConfiguration(context.Background(), "cfg-1", ConfigurationPatch{ExtractionPrompt: &newPrompt})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.ExtractionPromptVersion)
	assert.Equal(t, "new prompt", updated.ExtractionPrompt)
}

func TestCreateGroupAppliesDefaultColor(t *testing.T) {
	fs := newFakeManagerStore()
	m := newManager(fs)

	g, err := m.CreateGroup(context.Background(), model.MetadataGroup{Name: "custom"})
	require.NoError(t, err)
	assert.Equal(t, defaultGroupColor, g.Color)
	assert.False(t, g.IsDefault)
}

func TestUpdateGroupRejectsRenamingDefault(t *testing.T) {
	fs := newFakeManagerStore()
	fs.groups["grp-default"] = model.MetadataGroup{ID: "grp-default", Name: "General", IsDefault: true}
	m := newManager(fs)

	newName := "Renamed"
	_, err := m.UpdateGroup(context.Background(), "grp-default", GroupPatch{Name: &newName})
	assert.ErrorIs(t, err, ErrCannotRenameDefaultGroup)
}

func TestDeleteGroupReassignsOrphanedConfigsToDefault(t *testing.T) {
	fs := newFakeManagerStore()
	fs.groups["grp-default"] = model.MetadataGroup{ID: "grp-default", Name: "General", IsDefault: true}
	fs.groups["grp-custom"] = model.MetadataGroup{ID: "grp-custom", Name: "Custom"}
	fs.configs["cfg-1"] = model.MetadataConfiguration{ID: "cfg-1", Name: "revenue"}
	fs.links["grp-custom"] = []string{"cfg-1"}
	m := newManager(fs)

	err := m.DeleteGroup(context.Background(), "grp-custom")
	require.NoError(t, err)
	assert.Contains(t, fs.links["grp-default"], "cfg-1")
	_, stillExists := fs.groups["grp-custom"]
	assert.False(t, stillExists)
}

func TestDeleteGroupRefusesDefault(t *testing.T) {
	fs := newFakeManagerStore()
	fs.groups["grp-default"] = model.MetadataGroup{ID: "grp-default", Name: "General", IsDefault: true}
	m := newManager(fs)

	err := m.DeleteGroup(context.Background(), "grp-default")
	assert.ErrorIs(t, err, store.ErrDefaultGroupProtected)
}

func TestReorderConfigInGroupProducesDensePermutation(t *testing.T) {
	fs := newFakeManagerStore()
	fs.configs["cfg-a"] = model.MetadataConfiguration{ID: "cfg-a", Name: "a"}
	fs.configs["cfg-b"] = model.MetadataConfiguration{ID: "cfg-b", Name: "b"}
	fs.configs["cfg-c"] = model.MetadataConfiguration{ID: "cfg-c", Name: "c"}
	fs.links["grp-1"] = []string{"cfg-a", "cfg-b", "cfg-c"}
	m := newManager(fs)

	err := m.ReorderConfigInGroup(context.Background(), "grp-1", "cfg-c", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"cfg-c", "cfg-a", "cfg-b"}, fs.links["grp-1"])
}
