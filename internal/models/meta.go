package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntryMeta is the serializable projection of an Entry: everything except
// the binary payload and transient handles. It must round-trip exactly
// through Serialize → Deserialize → Serialize.
type EntryMeta struct {
	ID                string         `json:"id"`
	Title             string         `json:"title"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
	Duration          time.Duration  `json:"duration"`
	Tags              []string       `json:"tags,omitempty"`
	TemplateID        string         `json:"templateId,omitempty"`
	MimeType          string         `json:"mimeType"`
	Provider          string         `json:"provider"`
	LegacyCloudStatus string         `json:"cloudStatus,omitempty"`
	CloudSync         *CloudSyncInfo `json:"cloudSync,omitempty"`
}

// ToMeta projects an Entry onto its serializable metadata.
func ToMeta(e *Entry) EntryMeta {
	return EntryMeta{
		ID:                e.ID,
		Title:             e.Title,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
		Duration:          e.Duration,
		Tags:              e.Tags,
		TemplateID:        e.TemplateID,
		MimeType:          e.MimeType,
		Provider:          e.Provider,
		LegacyCloudStatus: e.LegacyCloudStatus,
		CloudSync:         e.CloudSync,
	}
}

// ToEntry materializes an Entry from metadata. The payload fields stay
// empty; lazy backends fill them via LoadVideo.
func (m EntryMeta) ToEntry() *Entry {
	return &Entry{
		ID:                m.ID,
		Title:             m.Title,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
		Duration:          m.Duration,
		Tags:              m.Tags,
		TemplateID:        m.TemplateID,
		MimeType:          m.MimeType,
		Provider:          m.Provider,
		LegacyCloudStatus: m.LegacyCloudStatus,
		CloudSync:         m.CloudSync,
	}
}

// Serialize encodes metadata as UTF-8 JSON, the on-disk and remote format.
func (m EntryMeta) Serialize() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize entry meta: %w", err)
	}
	return b, nil
}

// DeserializeMeta decodes a metadata JSON document.
func DeserializeMeta(data []byte) (EntryMeta, error) {
	var m EntryMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return EntryMeta{}, fmt.Errorf("failed to deserialize entry meta: %w", err)
	}
	return m, nil
}
