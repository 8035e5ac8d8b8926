package services

import (
	"errors"

	"github.com/taskhive/taskhive-backend/internal/llm"
	"github.com/taskhive/taskhive-backend/internal/model"
)

func isNotFound(err error) bool { return errors.Is(err, model.ErrNotFound) }

func isProtocolError(err error) bool { return errors.Is(err, llm.ErrInvalidReply) }
