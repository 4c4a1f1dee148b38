package domain

import "errors"

var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrStageNotFound    = errors.New("stage not found")
	ErrStageSequence    = errors.New("previous stage is not complete")
	ErrTemplateNotFound = errors.New("template not found")
	ErrConflict         = errors.New("duplicate record")
)
