package store

import (
	"context"
	"fmt"

	json "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"go.uber.org/zap"
)

// FileActionStore keeps the sequence as a JSON array of
// {type, timestamp, x, y, button} records.
type FileActionStore struct {
	path string
	log  *zap.Logger
}

var _ ActionStore = (*FileActionStore)(nil)

// NewFileActionStore creates a store backed by the file at path. A leading ~
// is expanded to the home directory.
func NewFileActionStore(path string, logger *zap.Logger) (*FileActionStore, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand path %q: %w", path, err)
	}
	return &FileActionStore{path: expanded, log: logger.Named("action_store")}, nil
}

// Path returns the resolved file path.
func (s *FileActionStore) Path() string { return s.path }

func (s *FileActionStore) Save(ctx context.Context, seq schemas.ActionSequence) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := seq.ValidateRecords(); err != nil {
		return fmt.Errorf("refusing to save invalid sequence: %w", err)
	}
	if seq == nil {
		seq = schemas.ActionSequence{}
	}
	data, err := json.MarshalIndent(seq, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode action sequence: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}
	s.log.Info("Action sequence saved", zap.String("path", s.path), zap.Int("actions", len(seq)))
	return nil
}

func (s *FileActionStore) Load(ctx context.Context) (schemas.ActionSequence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := readExisting(s.path)
	if err != nil {
		return nil, err
	}
	var seq schemas.ActionSequence
	if err := json.Unmarshal(data, &seq); err != nil {
		return nil, fmt.Errorf("failed to decode action sequence %q: %w", s.path, err)
	}
	if err := seq.ValidateRecords(); err != nil {
		return nil, fmt.Errorf("action sequence %q is invalid: %w", s.path, err)
	}
	if seq == nil {
		seq = schemas.ActionSequence{}
	}
	s.log.Debug("Action sequence loaded", zap.String("path", s.path), zap.Int("actions", len(seq)))
	return seq, nil
}
