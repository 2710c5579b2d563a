package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	defaultFieldWidth  = 300
	defaultFieldHeight = 50
)

// defaultClickOffset applies to definitions saved without a clickOffset.
var defaultClickOffset = [2]int{10, 10}

// fieldDocument is the persisted field definitions file.
type fieldDocument struct {
	Fields    []fieldRecord `json:"fields" yaml:"fields"`
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
}

type fieldRecord struct {
	Name      string `json:"name" yaml:"name"`
	FieldType string `json:"fieldType" yaml:"fieldType"`
	// ScreenPosition is the top-left corner of the field.
	ScreenPosition [2]int  `json:"screenPosition" yaml:"screenPosition"`
	Size           *[2]int `json:"size,omitempty" yaml:"size,omitempty"`
	// ImageData is a base64 PNG snapshot of the field.
	ImageData   string  `json:"imageData,omitempty" yaml:"imageData,omitempty"`
	ClickOffset *[2]int `json:"clickOffset,omitempty" yaml:"clickOffset,omitempty"`
}

// FieldStore persists field slots. Files ending in .yaml or .yml are YAML,
// anything else is JSON.
type FieldStore struct {
	path string
	log  *zap.Logger
	now  func() time.Time
}

// NewFieldStore creates a store for the definitions file at path.
func NewFieldStore(path string, logger *zap.Logger) (*FieldStore, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand path %q: %w", path, err)
	}
	return &FieldStore{path: expanded, log: logger.Named("field_store"), now: time.Now}, nil
}

// Path returns the resolved file path.
func (s *FieldStore) Path() string { return s.path }

func (s *FieldStore) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(s.path))
	return ext == ".yaml" || ext == ".yml"
}

// Save overwrites the definitions file with slots.
func (s *FieldStore) Save(ctx context.Context, slots []schemas.FieldSlot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := fieldDocument{Fields: make([]fieldRecord, 0, len(slots)), Timestamp: s.now().UTC()}
	for _, slot := range slots {
		if _, err := schemas.ParseSemanticType(string(slot.Type)); err != nil {
			return fmt.Errorf("field %q: %w", slot.Name, err)
		}
		size := [2]int{slot.Region.W, slot.Region.H}
		offset := [2]int{slot.ClickOffset.X, slot.ClickOffset.Y}
		rec := fieldRecord{
			Name:           slot.Name,
			FieldType:      string(slot.Type),
			ScreenPosition: [2]int{slot.Region.X, slot.Region.Y},
			Size:           &size,
			ClickOffset:    &offset,
		}
		if len(slot.ReferenceImage) > 0 {
			rec.ImageData = base64.StdEncoding.EncodeToString(slot.ReferenceImage)
		}
		doc.Fields = append(doc.Fields, rec)
	}

	var (
		data []byte
		err  error
	)
	if s.isYAML() {
		data, err = yaml.Marshal(&doc)
	} else {
		data, err = json.MarshalIndent(&doc, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode field definitions: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}
	s.log.Info("Field definitions saved", zap.String("path", s.path), zap.Int("fields", len(slots)))
	return nil
}

// Load reads the definitions file. Missing sizes and click offsets take their defaults.
func (s *FieldStore) Load(ctx context.Context) ([]schemas.FieldSlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := readExisting(s.path)
	if err != nil {
		return nil, err
	}

	var doc fieldDocument
	if s.isYAML() {
		err = yaml.Unmarshal(data, &doc)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode field definitions %q: %w", s.path, err)
	}

	slots := make([]schemas.FieldSlot, 0, len(doc.Fields))
	for i, rec := range doc.Fields {
		typ, err := schemas.ParseSemanticType(rec.FieldType)
		if err != nil {
			return nil, fmt.Errorf("field %d (%q): %w", i, rec.Name, err)
		}
		size := [2]int{defaultFieldWidth, defaultFieldHeight}
		if rec.Size != nil {
			size = *rec.Size
		}
		offset := defaultClickOffset
		if rec.ClickOffset != nil {
			offset = *rec.ClickOffset
		}
		slot := schemas.FieldSlot{
			Name:        rec.Name,
			Type:        typ,
			Region:      schemas.Region{X: rec.ScreenPosition[0], Y: rec.ScreenPosition[1], W: size[0], H: size[1]},
			ClickOffset: schemas.Point{X: offset[0], Y: offset[1]},
		}
		if rec.ImageData != "" {
			img, err := base64.StdEncoding.DecodeString(rec.ImageData)
			if err != nil {
				return nil, fmt.Errorf("field %q: invalid imageData: %w", rec.Name, err)
			}
			slot.ReferenceImage = img
		}
		slots = append(slots, slot)
	}
	return slots, nil
}
