package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storyweaver/server/internal/config"
	"storyweaver/server/internal/models"
	"storyweaver/server/internal/session"
)

var ErrStoryNotFound = errors.New("story not found")

const defaultListLimit = 50

// MySQLStore archives finished stories.
type MySQLStore struct {
	db *gorm.DB
}

func NewMySQLStore(cfg config.MySQLConfig) (*MySQLStore, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return NewMySQLStoreWithDB(db)
}

// NewMySQLStoreWithDB wraps an open gorm connection and migrates the
// archive tables.
func NewMySQLStoreWithDB(db *gorm.DB) (*MySQLStore, error) {
	if err := db.AutoMigrate(&models.Story{}, &models.StoryChapter{}); err != nil {
		return nil, fmt.Errorf("failed to migrate archive: %w", err)
	}
	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveStory archives the finished story of st.
func (s *MySQLStore) SaveStory(ctx context.Context, st *session.State) error {
	if !st.FullStoryGenerated {
		return fmt.Errorf("session %s has no finished story", st.ID)
	}

	story := &models.Story{
		ID:          uuid.NewString(),
		SessionID:   st.ID,
		Title:       storyTitle(st),
		Genre:       st.Genre,
		Language:    st.Settings.EffectiveLanguage(),
		NumChapters: len(st.Chapters),
		Outline:     st.ModifiedOutline,
		Content:     st.FullStory,
		Document:    st.Document,
	}
	for _, ch := range st.Chapters {
		story.Chapters = append(story.Chapters, models.StoryChapter{
			Number:  ch.Number,
			Title:   ch.Title,
			Content: ch.Content,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(story).Error
	})
}

// ListStories returns the newest stories first, without their text.
func (s *MySQLStore) ListStories(ctx context.Context, limit int) ([]models.Story, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultListLimit
	}

	var stories []models.Story
	err := s.db.WithContext(ctx).
		Select("id", "session_id", "title", "genre", "language", "num_chapters", "created_at", "updated_at").
		Order("created_at DESC").
		Limit(limit).
		Find(&stories).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	return stories, nil
}

// GetStory loads a story with its chapters and document.
func (s *MySQLStore) GetStory(ctx context.Context, id string) (*models.Story, error) {
	var story models.Story
	err := s.db.WithContext(ctx).
		Preload("Chapters", func(db *gorm.DB) *gorm.DB { return db.Order("number ASC") }).
		First(&story, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load story: %w", err)
	}
	return &story, nil
}

// DeleteStory soft-deletes a story.
func (s *MySQLStore) DeleteStory(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.Story{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete story: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStoryNotFound
	}
	return nil
}

func storyTitle(st *session.State) string {
	if len(st.Chapters) > 0 && !strings.HasPrefix(st.Chapters[0].Title, "Chapter ") {
		return st.Chapters[0].Title
	}
	if st.Genre != "" {
		return st.Genre + " story"
	}
	return "Untitled story"
}
