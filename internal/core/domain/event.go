package domain

import (
	"encoding/json"
	"time"
)

type Collection string

const (
	CollectionVideos Collection = "videos"
	CollectionUsers  Collection = "users"
	CollectionPages  Collection = "pages"
	CollectionTheme  Collection = "theme"
)

// ThemeDocID is the only document in the theme collection.
const ThemeDocID = "current"

func (c Collection) Valid() bool {
	switch c {
	case CollectionVideos, CollectionUsers, CollectionPages, CollectionTheme:
		return true
	}
	return false
}

type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// ChangeEvent describes one write to a document. Document is the new JSON
// state and is empty for removals.
type ChangeEvent struct {
	Collection Collection      `json:"collection"`
	DocID      string          `json:"doc_id"`
	Type       ChangeType      `json:"type"`
	Document   json.RawMessage `json:"document,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewChangeEvent marshals doc into an event. doc may be nil for removals.
func NewChangeEvent(collection Collection, docID string, changeType ChangeType, doc interface{}) (ChangeEvent, error) {
	event := ChangeEvent{
		Collection: collection,
		DocID:      docID,
		Type:       changeType,
		Timestamp:  time.Now().UTC(),
	}
	if doc != nil && changeType != ChangeRemoved {
		data, err := json.Marshal(doc)
		if err != nil {
			return ChangeEvent{}, err
		}
		event.Document = data
	}
	return event, nil
}
