package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntry() *Entry {
	created := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	return &Entry{
		ID:         NewID(FamilySandbox),
		Title:      "morning take",
		CreatedAt:  created,
		UpdatedAt:  created.Add(2 * time.Minute),
		Duration:   95 * time.Second,
		Tags:       []string{"daily", "draft"},
		TemplateID: "tpl-3",
		MimeType:   "video/webm",
		Provider:   "sandbox",
		CloudSync: &CloudSyncInfo{
			Provider: "bucket",
			Status:   SyncStatusPending,
		},
		Video: []byte("payload"),
	}
}

func TestNewID_FamilyPrefixes(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewID(FamilyMemory), "mem-"))
	assert.True(t, strings.HasPrefix(NewID(FamilySandbox), "app-"))
	assert.True(t, strings.HasPrefix(NewID(FamilyFolder), "dir-"))
	assert.NotEqual(t, NewID(FamilyMemory), NewID(FamilyMemory))
}

func TestMeta_RoundTripExact(t *testing.T) {
	e := sampleEntry()
	m := ToMeta(e)

	b1, err := m.Serialize()
	require.NoError(t, err)

	m2, err := DeserializeMeta(b1)
	require.NoError(t, err)
	assert.Equal(t, m, m2)

	b2, err := m2.Serialize()
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestMeta_ExcludesPayload(t *testing.T) {
	e := sampleEntry()
	b, err := ToMeta(e).Serialize()
	require.NoError(t, err)
	assert.NotContains(t, string(b), "payload")

	restored := ToMeta(e).ToEntry()
	assert.Nil(t, restored.Video)
	assert.Nil(t, restored.Thumbnail)
	assert.Equal(t, e.ID, restored.ID)
	assert.Equal(t, e.CloudSync, restored.CloudSync)
}

func TestMeta_LegacyCloudStatusSurvives(t *testing.T) {
	legacy := []byte(`{"id":"app-1","title":"old","mimeType":"video/mp4","provider":"sandbox","cloudStatus":"uploaded"}`)
	m, err := DeserializeMeta(legacy)
	require.NoError(t, err)
	assert.Equal(t, "uploaded", m.LegacyCloudStatus)

	out, err := m.Serialize()
	require.NoError(t, err)
	assert.Contains(t, string(out), `"cloudStatus":"uploaded"`)
}

func TestSyncStatus_Lattice(t *testing.T) {
	tests := []struct {
		from, to SyncStatus
		ok       bool
	}{
		{SyncStatusPending, SyncStatusUploading, true},
		{SyncStatusUploading, SyncStatusSynced, true},
		{SyncStatusUploading, SyncStatusFailed, true},
		{SyncStatusFailed, SyncStatusUploading, true},
		{SyncStatusPending, SyncStatusSynced, false},
		{SyncStatusSynced, SyncStatusUploading, false},
		{SyncStatusCloudOnly, SyncStatusUploading, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.ok, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestChangeSummary_String(t *testing.T) {
	assert.True(t, ChangeSummary{}.Empty())
	assert.Equal(t, "2 entries added to folder", ChangeSummary{Added: 2}.String())
	assert.Equal(t, "1 entries removed from folder", ChangeSummary{Removed: 1}.String())
	assert.Equal(t, "1 entries added, 2 removed from folder", ChangeSummary{Added: 1, Removed: 2}.String())
	assert.Equal(t, "entries in folder were modified", ChangeSummary{Modified: 1}.String())
}
