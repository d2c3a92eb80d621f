package store

import (
	"context"
	"sync"

	"pdfchat/pkg/domain"
)

// MemoryStore keeps all records in-process. It backs tests and local
// development; insertion order is tracked so message history reads stay
// stable without a database.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]domain.User
	emails        map[string]string // email -> user ID
	pdfFiles      map[string]domain.PdfFile
	pdfOrder      []string
	conversations map[string]domain.Conversation
	convOrder     []string
	messages      map[string][]domain.Message // conversation ID -> messages
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]domain.User),
		emails:        make(map[string]string),
		pdfFiles:      make(map[string]domain.PdfFile),
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string][]domain.Message),
	}
}

func (m *MemoryStore) CreateUser(_ context.Context, user domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	m.emails[user.Email] = user.ID
	return user, nil
}

func (m *MemoryStore) FindUserByEmail(_ context.Context, email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.emails[email]
	if !ok {
		return domain.User{}, false, nil
	}
	user, ok := m.users[id]
	return user, ok, nil
}

func (m *MemoryStore) FindUserByID(_ context.Context, id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	return user, ok, nil
}

func (m *MemoryStore) FindUsersByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := m.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func (m *MemoryStore) CheckAndCreatePdfFile(_ context.Context, file domain.PdfFile) (domain.PdfFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.pdfOrder {
		existing := m.pdfFiles[id]
		if existing.OwnerID == file.OwnerID && existing.Name == file.Name && existing.SizeInMB == file.SizeInMB {
			return existing, nil
		}
	}
	m.pdfFiles[file.ID] = file
	m.pdfOrder = append(m.pdfOrder, file.ID)
	return file, nil
}

func (m *MemoryStore) FindPdfFileByID(_ context.Context, id string) (domain.PdfFile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	file, ok := m.pdfFiles[id]
	return file, ok, nil
}

func (m *MemoryStore) FindPdfFilesByOwner(_ context.Context, ownerID string) ([]domain.PdfFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var files []domain.PdfFile
	for _, id := range m.pdfOrder {
		if file, ok := m.pdfFiles[id]; ok && file.OwnerID == ownerID {
			files = append(files, file)
		}
	}
	return files, nil
}

func (m *MemoryStore) FindPdfFilesByIDs(_ context.Context, ids []string) ([]domain.PdfFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	files := make([]domain.PdfFile, 0, len(ids))
	for _, id := range ids {
		if file, ok := m.pdfFiles[id]; ok {
			files = append(files, file)
		}
	}
	return files, nil
}

func (m *MemoryStore) DeletePdfFiles(_ context.Context, ids []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := false
	for _, id := range ids {
		if _, ok := m.pdfFiles[id]; ok {
			delete(m.pdfFiles, id)
			deleted = true
		}
	}
	if deleted {
		m.pdfOrder = removeIDs(m.pdfOrder, ids)
	}
	return deleted, nil
}

func (m *MemoryStore) CheckAndCreateConversation(_ context.Context, conv domain.Conversation) (domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.convOrder {
		existing := m.conversations[id]
		if existing.PdfFileID == conv.PdfFileID {
			return existing, nil
		}
	}
	if conv.Participants == nil {
		conv.Participants = []string{}
	}
	m.conversations[conv.ID] = conv
	m.convOrder = append(m.convOrder, conv.ID)
	return conv, nil
}

func (m *MemoryStore) FindConversationByID(_ context.Context, id string) (domain.Conversation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.conversations[id]
	return conv, ok, nil
}

func (m *MemoryStore) FindConversationsByParticipant(_ context.Context, userID string) ([]domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var convs []domain.Conversation
	for _, id := range m.convOrder {
		if conv, ok := m.conversations[id]; ok && conv.HasParticipant(userID) {
			convs = append(convs, conv)
		}
	}
	return convs, nil
}

func (m *MemoryStore) AddParticipant(_ context.Context, conversationID, userID string) (domain.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		return domain.Conversation{}, false, nil
	}
	if !conv.HasParticipant(userID) {
		conv.Participants = append(append([]string{}, conv.Participants...), userID)
		m.conversations[conversationID] = conv
	}
	return conv, true, nil
}

func (m *MemoryStore) RemoveParticipant(_ context.Context, conversationID, userID string) (domain.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		return domain.Conversation{}, false, nil
	}
	participants := make([]string, 0, len(conv.Participants))
	for _, id := range conv.Participants {
		if id != userID {
			participants = append(participants, id)
		}
	}
	conv.Participants = participants
	m.conversations[conversationID] = conv
	return conv, true, nil
}

func (m *MemoryStore) DeleteConversations(_ context.Context, ids []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := false
	for _, id := range ids {
		if _, ok := m.conversations[id]; ok {
			delete(m.conversations, id)
			deleted = true
		}
	}
	if deleted {
		m.convOrder = removeIDs(m.convOrder, ids)
	}
	return deleted, nil
}

func (m *MemoryStore) CreateMessage(_ context.Context, msg domain.Message) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return msg, nil
}

func (m *MemoryStore) FindMessagesByConversation(_ context.Context, conversationID string) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[conversationID]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *MemoryStore) DeleteMessagesByConversation(_ context.Context, conversationID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs, ok := m.messages[conversationID]
	delete(m.messages, conversationID)
	return ok && len(msgs) > 0, nil
}

func removeIDs(order []string, ids []string) []string {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	filtered := order[:0]
	for _, id := range order {
		if _, gone := drop[id]; !gone {
			filtered = append(filtered, id)
		}
	}
	return filtered
}
