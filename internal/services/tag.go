package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskhive/taskhive-backend/internal/model"
	"github.com/taskhive/taskhive-backend/internal/store"
)

// TagService exposes per-user label management.
type TagService struct {
	store store.Store
}

func NewTagService(s store.Store) *TagService {
	return &TagService{store: s}
}

const maxTagNameLen = 100

func (s *TagService) Create(ctx context.Context, tag *model.Tag) (*model.Tag, error) {
	tag.Name = strings.TrimSpace(tag.Name)
	if tag.Name == "" {
		return nil, fmt.Errorf("%w: tag name is required", model.ErrValidation)
	}
	if len(tag.Name) > maxTagNameLen {
		return nil, fmt.Errorf("%w: tag name exceeds %d characters", model.ErrValidation, maxTagNameLen)
	}
	return s.store.Tags().Create(ctx, tag)
}

func (s *TagService) List(ctx context.Context, userID int64) ([]*model.Tag, error) {
	return s.store.Tags().List(ctx, userID)
}

func (s *TagService) Delete(ctx context.Context, userID, tagID int64) error {
	return s.store.Tags().Delete(ctx, userID, tagID)
}
