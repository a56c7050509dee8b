package model

import (
	"strings"

	"github.com/google/uuid"
)

// NewRunID returns an 8-character hex id naming one agent or evaluator run.
func NewRunID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
