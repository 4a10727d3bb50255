package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mosaic/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Channel{},
		&models.StreamProfile{},
		&models.UserAgent{},
		&models.MultiviewLayout{},
	))

	return db
}

func TestChannelRepository_CRUD(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChannelRepository(db)
	ctx := context.Background()

	channel := &models.Channel{
		ChannelName:   "News 24",
		ChannelNumber: 5,
		StreamURL:     "http://example.com/news24",
		GroupTitle:    "News",
	}
	require.NoError(t, repo.Create(ctx, channel))
	require.False(t, channel.ID.IsZero())

	got, err := repo.GetByID(ctx, channel.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "News 24", got.ChannelName)

	got.ChannelName = "News 24 HD"
	require.NoError(t, repo.Update(ctx, got))

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "News 24 HD", all[0].ChannelName)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, repo.Delete(ctx, channel.ID))
	got, err = repo.GetByID(ctx, channel.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestChannelRepository_CreateInvalid(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChannelRepository(db)

	err := repo.Create(context.Background(), &models.Channel{ChannelName: "no url"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrStreamURLRequired)
}

func TestStreamProfileRepository_SetActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStreamProfileRepository(db)
	ctx := context.Background()

	passthrough := &models.StreamProfile{Name: "passthrough", Passthrough: true, IsActive: true}
	transcode := &models.StreamProfile{
		Name:            "ffmpeg",
		CommandTemplate: "ffmpeg -i {streamUrl} -c copy -f mpegts pipe:1",
	}
	require.NoError(t, repo.Create(ctx, passthrough))
	require.NoError(t, repo.Create(ctx, transcode))

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "passthrough", active.Name)

	require.NoError(t, repo.SetActive(ctx, transcode.ID))

	active, err = repo.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "ffmpeg", active.Name)

	// Previous active profile must be deactivated
	prev, err := repo.GetByID(ctx, passthrough.ID)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.False(t, prev.IsActive)
}

func TestStreamProfileRepository_SetActiveNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStreamProfileRepository(db)

	err := repo.SetActive(context.Background(), models.NewULID())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestStreamProfileRepository_GetActiveNone(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStreamProfileRepository(db)

	active, err := repo.GetActive(context.Background())
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestStreamProfileRepository_RecordResult(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStreamProfileRepository(db)
	ctx := context.Background()

	profile := &models.StreamProfile{Name: "passthrough", Passthrough: true}
	require.NoError(t, repo.Create(ctx, profile))

	require.NoError(t, repo.RecordResult(ctx, profile.ID, true))
	require.NoError(t, repo.RecordResult(ctx, profile.ID, true))
	require.NoError(t, repo.RecordResult(ctx, profile.ID, false))

	got, err := repo.GetByID(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.SuccessCount)
	assert.Equal(t, int64(1), got.FailureCount)
}

func TestUserAgentRepository_SetActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserAgentRepository(db)
	ctx := context.Background()

	first := &models.UserAgent{Name: "default", Value: "Mozilla/5.0", IsActive: true}
	second := &models.UserAgent{Name: "vlc", Value: "VLC/3.0.20"}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	require.NoError(t, repo.SetActive(ctx, second.ID))

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "vlc", active.Name)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Active first
	assert.Equal(t, "vlc", all[0].Name)
}

func TestMultiviewLayoutRepository_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMultiviewLayoutRepository(db)
	ctx := context.Background()

	layout := &models.MultiviewLayout{
		Name: "2x2 sports",
		Slots: models.LayoutSlotList{
			{
				Geometry:    models.SlotGeometry{Row: 0, Col: 0},
				ChannelName: "Sports One",
				StreamURL:   "http://example.com/s1",
				Volume:      1.0,
				Active:      true,
			},
			{
				Geometry:    models.SlotGeometry{Row: 0, Col: 1},
				ChannelName: "Sports Two",
				StreamURL:   "http://example.com/s2",
				Muted:       true,
			},
		},
	}
	require.NoError(t, repo.Create(ctx, layout))

	got, err := repo.GetByID(ctx, layout.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Slots, 2)
	assert.Equal(t, layout.Slots, got.Slots)
	assert.True(t, got.Slots[0].Active)
	assert.True(t, got.Slots[1].Muted)

	byName, err := repo.GetByName(ctx, "2x2 sports")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, layout.ID, byName.ID)

	require.NoError(t, repo.Delete(ctx, layout.ID))
	got, err = repo.GetByID(ctx, layout.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMultiviewLayoutRepository_DuplicateName(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMultiviewLayoutRepository(db)
	ctx := context.Background()

	slots := models.LayoutSlotList{{Geometry: models.SlotGeometry{Row: 0, Col: 0}, StreamURL: "http://example.com/a"}}
	require.NoError(t, repo.Create(ctx, &models.MultiviewLayout{Name: "dup", Slots: slots}))
	assert.Error(t, repo.Create(ctx, &models.MultiviewLayout{Name: "dup", Slots: slots}))
}
