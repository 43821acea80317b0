package fleet

import (
	"path/filepath"
	"time"

	"github.com/antigravity-dev/maestro/internal/jsonstore"
	"github.com/google/uuid"
)

// ConversationMessage is one entry in a project's conversation.json.
type ConversationMessage struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

type conversationDoc struct {
	Messages []ConversationMessage `json:"messages"`
}

// ConversationStore reads and writes per-project Command Center
// conversation transcripts, mirroring HeartbeatStore's one-file-per-project
// layout under .command_center.
type ConversationStore struct {
	fleetRoot string
	now       func() time.Time
}

// NewConversationStore wires a ConversationStore over a fleet root.
func NewConversationStore(fleetRoot string) *ConversationStore {
	return &ConversationStore{fleetRoot: fleetRoot, now: time.Now}
}

func (c *ConversationStore) path(projectSlug string) string {
	return filepath.Join(c.fleetRoot, projectSlug, ".command_center", "conversation.json")
}

// List returns a project's conversation transcript, oldest first.
func (c *ConversationStore) List(projectSlug string) ([]ConversationMessage, error) {
	var doc conversationDoc
	if err := jsonstore.ReadJSON(c.path(projectSlug), &doc); err != nil {
		return nil, err
	}
	if doc.Messages == nil {
		doc.Messages = []ConversationMessage{}
	}
	return doc.Messages, nil
}

// Append records one message against a project's transcript. Callers
// (the conversation/send handler) run the chain-of-command guard before
// calling Append; this store has no opinion on who may write.
func (c *ConversationStore) Append(projectSlug, source, message string) (ConversationMessage, error) {
	path := c.path(projectSlug)
	msg := ConversationMessage{
		ID:        uuid.NewString(),
		Source:    source,
		Message:   message,
		CreatedAt: c.now().UTC().Format(time.RFC3339),
	}
	err := jsonstore.WithLockRetry(path, jsonstore.LockExclusive, jsonstore.DefaultLockDeadline, func() error {
		var doc conversationDoc
		if err := jsonstore.ReadJSON(path, &doc); err != nil {
			return err
		}
		doc.Messages = append(doc.Messages, msg)
		return jsonstore.WriteJSON(path, &doc)
	})
	if err != nil {
		return ConversationMessage{}, err
	}
	return msg, nil
}
