package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"pdfchat/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &PdfFileModel{}, &ConversationModel{}, &MessageModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	model := userToModel(user)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return userFromModel(model), nil
}

func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	var model UserModel
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, fmt.Errorf("find user by email: %w", err)
	}
	return userFromModel(model), true, nil
}

func (s *GormStore) FindUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	var model UserModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, fmt.Errorf("find user: %w", err)
	}
	return userFromModel(model), true, nil
}

func (s *GormStore) FindUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []UserModel
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	users := make([]domain.User, 0, len(models))
	for _, model := range models {
		users = append(users, userFromModel(model))
	}
	return users, nil
}

func (s *GormStore) CheckAndCreatePdfFile(ctx context.Context, file domain.PdfFile) (domain.PdfFile, error) {
	var existing PdfFileModel
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND name = ? AND size_in_mb = ?", file.OwnerID, file.Name, file.SizeInMB).
		First(&existing).Error
	if err == nil {
		return pdfFileFromModel(existing), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.PdfFile{}, fmt.Errorf("find pdf file: %w", err)
	}
	model := pdfFileToModel(file)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.PdfFile{}, fmt.Errorf("create pdf file: %w", err)
	}
	return pdfFileFromModel(model), nil
}

func (s *GormStore) FindPdfFileByID(ctx context.Context, id string) (domain.PdfFile, bool, error) {
	var model PdfFileModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.PdfFile{}, false, nil
	}
	if err != nil {
		return domain.PdfFile{}, false, fmt.Errorf("find pdf file: %w", err)
	}
	return pdfFileFromModel(model), true, nil
}

func (s *GormStore) FindPdfFilesByOwner(ctx context.Context, ownerID string) ([]domain.PdfFile, error) {
	var models []PdfFileModel
	if err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("find pdf files by owner: %w", err)
	}
	return pdfFilesFromModels(models), nil
}

func (s *GormStore) FindPdfFilesByIDs(ctx context.Context, ids []string) ([]domain.PdfFile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []PdfFileModel
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("find pdf files: %w", err)
	}
	return pdfFilesFromModels(models), nil
}

func (s *GormStore) DeletePdfFiles(ctx context.Context, ids []string) (bool, error) {
	if len(ids) == 0 {
		return false, nil
	}
	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&PdfFileModel{})
	if res.Error != nil {
		return false, fmt.Errorf("delete pdf files: %w", res.Error)
	}
	return res.RowsAffected >= 1, nil
}

func (s *GormStore) CheckAndCreateConversation(ctx context.Context, conv domain.Conversation) (domain.Conversation, error) {
	var existing ConversationModel
	err := s.db.WithContext(ctx).Where("pdf_file_id = ?", conv.PdfFileID).First(&existing).Error
	if err == nil {
		return conversationFromModel(existing)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Conversation{}, fmt.Errorf("find conversation: %w", err)
	}
	model, err := conversationToModel(conv)
	if err != nil {
		return domain.Conversation{}, err
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return conversationFromModel(model)
}

func (s *GormStore) FindConversationByID(ctx context.Context, id string) (domain.Conversation, bool, error) {
	var model ConversationModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Conversation{}, false, nil
	}
	if err != nil {
		return domain.Conversation{}, false, fmt.Errorf("find conversation: %w", err)
	}
	conv, err := conversationFromModel(model)
	if err != nil {
		return domain.Conversation{}, false, err
	}
	return conv, true, nil
}

func (s *GormStore) FindConversationsByParticipant(ctx context.Context, userID string) ([]domain.Conversation, error) {
	encoded, err := json.Marshal([]string{userID})
	if err != nil {
		return nil, fmt.Errorf("encode participant filter: %w", err)
	}
	var models []ConversationModel
	if err := s.db.WithContext(ctx).
		Where("participants @> ?", datatypes.JSON(encoded)).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("find conversations by participant: %w", err)
	}
	convs := make([]domain.Conversation, 0, len(models))
	for _, model := range models {
		conv, err := conversationFromModel(model)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

func (s *GormStore) AddParticipant(ctx context.Context, conversationID, userID string) (domain.Conversation, bool, error) {
	return s.mutateParticipants(ctx, conversationID, func(participants []string) []string {
		for _, id := range participants {
			if id == userID {
				return participants
			}
		}
		return append(participants, userID)
	})
}

func (s *GormStore) RemoveParticipant(ctx context.Context, conversationID, userID string) (domain.Conversation, bool, error) {
	return s.mutateParticipants(ctx, conversationID, func(participants []string) []string {
		out := participants[:0]
		for _, id := range participants {
			if id != userID {
				out = append(out, id)
			}
		}
		return out
	})
}

func (s *GormStore) mutateParticipants(ctx context.Context, conversationID string, mutate func([]string) []string) (domain.Conversation, bool, error) {
	var result domain.Conversation
	found := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model ConversationModel
		err := tx.Where("id = ?", conversationID).First(&model).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("find conversation: %w", err)
		}
		conv, err := conversationFromModel(model)
		if err != nil {
			return err
		}
		conv.Participants = mutate(conv.Participants)
		encoded, err := json.Marshal(conv.Participants)
		if err != nil {
			return fmt.Errorf("encode participants: %w", err)
		}
		if err := tx.Model(&ConversationModel{}).
			Where("id = ?", conversationID).
			Update("participants", datatypes.JSON(encoded)).Error; err != nil {
			return fmt.Errorf("update participants: %w", err)
		}
		result = conv
		found = true
		return nil
	})
	if err != nil {
		return domain.Conversation{}, false, err
	}
	return result, found, nil
}

func (s *GormStore) DeleteConversations(ctx context.Context, ids []string) (bool, error) {
	if len(ids) == 0 {
		return false, nil
	}
	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&ConversationModel{})
	if res.Error != nil {
		return false, fmt.Errorf("delete conversations: %w", res.Error)
	}
	return res.RowsAffected >= 1, nil
}

func (s *GormStore) CreateMessage(ctx context.Context, msg domain.Message) (domain.Message, error) {
	model := messageToModel(msg)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Message{}, fmt.Errorf("create message: %w", err)
	}
	return messageFromModel(model), nil
}

func (s *GormStore) FindMessagesByConversation(ctx context.Context, conversationID string) ([]domain.Message, error) {
	var models []MessageModel
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, seq ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	msgs := make([]domain.Message, 0, len(models))
	for _, model := range models {
		msgs = append(msgs, messageFromModel(model))
	}
	return msgs, nil
}

func (s *GormStore) DeleteMessagesByConversation(ctx context.Context, conversationID string) (bool, error) {
	res := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Delete(&MessageModel{})
	if res.Error != nil {
		return false, fmt.Errorf("delete messages: %w", res.Error)
	}
	return res.RowsAffected >= 1, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		PhotoURL:  u.PhotoURL,
		Plan:      string(u.Plan),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:        m.ID,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Email:     m.Email,
		PhotoURL:  m.PhotoURL,
		Plan:      domain.Plan(m.Plan),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func pdfFileToModel(f domain.PdfFile) PdfFileModel {
	return PdfFileModel{
		ID:        f.ID,
		Name:      f.Name,
		URL:       f.URL,
		OwnerID:   f.OwnerID,
		SizeInMB:  f.SizeInMB,
		CreatedAt: f.CreatedAt,
	}
}

func pdfFileFromModel(m PdfFileModel) domain.PdfFile {
	return domain.PdfFile{
		ID:        m.ID,
		Name:      m.Name,
		URL:       m.URL,
		OwnerID:   m.OwnerID,
		SizeInMB:  m.SizeInMB,
		CreatedAt: m.CreatedAt,
	}
}

func pdfFilesFromModels(models []PdfFileModel) []domain.PdfFile {
	files := make([]domain.PdfFile, 0, len(models))
	for _, model := range models {
		files = append(files, pdfFileFromModel(model))
	}
	return files
}

func conversationToModel(c domain.Conversation) (ConversationModel, error) {
	participants := c.Participants
	if participants == nil {
		participants = []string{}
	}
	encoded, err := json.Marshal(participants)
	if err != nil {
		return ConversationModel{}, fmt.Errorf("encode participants: %w", err)
	}
	return ConversationModel{
		ID:           c.ID,
		Name:         c.Name,
		OwnerID:      c.OwnerID,
		Participants: datatypes.JSON(encoded),
		PdfFileID:    c.PdfFileID,
		IsPublic:     c.IsPublic,
		IsArchived:   c.IsArchived,
		CreatedAt:    c.CreatedAt,
	}, nil
}

func conversationFromModel(m ConversationModel) (domain.Conversation, error) {
	var participants []string
	if len(m.Participants) > 0 {
		if err := json.Unmarshal(m.Participants, &participants); err != nil {
			return domain.Conversation{}, fmt.Errorf("decode participants: %w", err)
		}
	}
	return domain.Conversation{
		ID:           m.ID,
		Name:         m.Name,
		OwnerID:      m.OwnerID,
		Participants: participants,
		PdfFileID:    m.PdfFileID,
		IsPublic:     m.IsPublic,
		IsArchived:   m.IsArchived,
		CreatedAt:    m.CreatedAt,
	}, nil
}

func messageToModel(msg domain.Message) MessageModel {
	return MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		IsAIResponse:   msg.IsAIResponse,
		CreatedAt:      msg.CreatedAt,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	return domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		IsAIResponse:   m.IsAIResponse,
		CreatedAt:      m.CreatedAt,
	}
}
