package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestULID_RoundTrip(t *testing.T) {
	id := NewULID()
	require.False(t, id.IsZero())

	parsed, err := ParseULID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestULID_ParseInvalid(t *testing.T) {
	_, err := ParseULID("not-a-ulid")
	assert.Error(t, err)
}

func TestULID_ScanAndValue(t *testing.T) {
	id := NewULID()

	v, err := id.Value()
	require.NoError(t, err)
	assert.Equal(t, id.String(), v)

	var scanned ULID
	require.NoError(t, scanned.Scan(id.String()))
	assert.Equal(t, id, scanned)

	var zero ULID
	require.NoError(t, zero.Scan(nil))
	assert.True(t, zero.IsZero())

	zv, err := zero.Value()
	require.NoError(t, err)
	assert.Nil(t, zv)
}

func TestChannel_Validate(t *testing.T) {
	tests := []struct {
		name    string
		channel Channel
		wantErr error
	}{
		{
			name: "valid channel",
			channel: Channel{
				ChannelName: "Test Channel",
				StreamURL:   "http://example.com/stream",
			},
			wantErr: nil,
		},
		{
			name: "missing channel name",
			channel: Channel{
				StreamURL: "http://example.com/stream",
			},
			wantErr: ErrNameRequired,
		},
		{
			name: "missing stream URL",
			channel: Channel{
				ChannelName: "Test Channel",
			},
			wantErr: ErrStreamURLRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.channel.Validate()
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStreamProfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		profile StreamProfile
		wantErr error
	}{
		{
			name: "valid passthrough profile",
			profile: StreamProfile{
				Name:        "direct",
				Passthrough: true,
			},
			wantErr: nil,
		},
		{
			name: "valid transcoding profile",
			profile: StreamProfile{
				Name:            "ffmpeg-ts",
				CommandTemplate: "ffmpeg -user_agent {userAgent} -i {streamUrl} -c copy -f mpegts pipe:1",
			},
			wantErr: nil,
		},
		{
			name:    "missing name",
			profile: StreamProfile{Passthrough: true},
			wantErr: ErrNameRequired,
		},
		{
			name:    "transcoding profile without template",
			profile: StreamProfile{Name: "broken"},
			wantErr: ErrCommandTemplateRequired,
		},
		{
			name: "template without stream URL placeholder",
			profile: StreamProfile{
				Name:            "broken",
				CommandTemplate: "ffmpeg -i input.ts -c copy pipe:1",
			},
			wantErr: ErrCommandTemplateMissingURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStreamProfile_UsesUserAgent(t *testing.T) {
	p := StreamProfile{CommandTemplate: "ffmpeg -user_agent {userAgent} -i {streamUrl} pipe:1"}
	assert.True(t, p.UsesUserAgent())

	p.CommandTemplate = "ffmpeg -i {streamUrl} pipe:1"
	assert.False(t, p.UsesUserAgent())
}

func TestUserAgent_Validate(t *testing.T) {
	ua := UserAgent{Name: "firefox", Value: "Mozilla/5.0"}
	assert.NoError(t, ua.Validate())

	assert.ErrorIs(t, (&UserAgent{Value: "Mozilla/5.0"}).Validate(), ErrNameRequired)
	assert.ErrorIs(t, (&UserAgent{Name: "firefox"}).Validate(), ErrUserAgentValueRequired)
}

func TestMultiviewLayout_Validate(t *testing.T) {
	layout := MultiviewLayout{
		Name: "2x2 sports",
		Slots: LayoutSlotList{
			{Geometry: SlotGeometry{Row: 0, Col: 0}, StreamURL: "http://example.com/a"},
		},
	}
	assert.NoError(t, layout.Validate())

	assert.ErrorIs(t, (&MultiviewLayout{Slots: layout.Slots}).Validate(), ErrNameRequired)
	assert.ErrorIs(t, (&MultiviewLayout{Name: "empty"}).Validate(), ErrLayoutSlotsRequired)
}

func TestLayoutSlotList_ScanAndValue(t *testing.T) {
	slots := LayoutSlotList{
		{
			Geometry:    SlotGeometry{Row: 1, Col: 2},
			ChannelID:   NewULID(),
			ChannelName: "News 24",
			StreamURL:   "http://example.com/news",
			Volume:      0.5,
			Active:      true,
		},
	}

	v, err := slots.Value()
	require.NoError(t, err)

	var scanned LayoutSlotList
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, slots, scanned)

	var empty LayoutSlotList
	require.NoError(t, empty.Scan(nil))
	assert.Nil(t, empty)
}
