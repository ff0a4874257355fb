package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gorm.io/datatypes"

	"github.com/izumi-lms/izumi-api/internal/models"
)

const lessonContentSchema = `{
  "type": "object",
  "properties": {
    "body": {"type": "string", "maxLength": 200000},
    "video_url": {"type": "string", "format": "uri"},
    "duration_minutes": {"type": "number", "minimum": 0}
  }
}`

const quizContentSchema = `{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["prompt", "options", "answer"],
        "properties": {
          "prompt": {"type": "string", "minLength": 1},
          "options": {"type": "array", "minItems": 2, "items": {"type": "string"}},
          "answer": {"type": "integer", "minimum": 0}
        }
      }
    },
    "passing_score": {"type": "number", "minimum": 0, "maximum": 100}
  }
}`

// ModuleContentValidator checks module content against the JSON schema of
// its module type and sanitizes lesson bodies.
type ModuleContentValidator struct {
	schemas   map[models.ModuleType]*jsonschema.Schema
	sanitizer *bluemonday.Policy
}

// NewModuleContentValidator compiles the module content schemas.
func NewModuleContentValidator() (*ModuleContentValidator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	sources := map[models.ModuleType]string{
		models.ModuleTypeLesson: lessonContentSchema,
		models.ModuleTypeQuiz:   quizContentSchema,
	}

	schemas := make(map[models.ModuleType]*jsonschema.Schema, len(sources))
	for moduleType, source := range sources {
		url := fmt.Sprintf("mem://izumi/modules/%s.json", moduleType)
		if err := compiler.AddResource(url, strings.NewReader(source)); err != nil {
			return nil, fmt.Errorf("add %s schema: %w", moduleType, err)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", moduleType, err)
		}
		schemas[moduleType] = schema
	}

	return &ModuleContentValidator{schemas: schemas, sanitizer: bluemonday.UGCPolicy()}, nil
}

// Normalize validates raw content for moduleType and returns what should be
// stored. Empty content is allowed for lessons only.
func (v *ModuleContentValidator) Normalize(moduleType models.ModuleType, raw json.RawMessage) (datatypes.JSON, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		if moduleType == models.ModuleTypeQuiz {
			return nil, fmt.Errorf("%w: quiz modules require questions", ErrInvalidModuleContent)
		}
		return nil, nil
	}

	schema, ok := v.schemas[moduleType]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported module type %q", ErrInvalidModuleContent, moduleType)
	}

	var document interface{}
	if err := json.Unmarshal(trimmed, &document); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModuleContent, err)
	}
	if err := schema.Validate(document); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModuleContent, err)
	}

	switch moduleType {
	case models.ModuleTypeQuiz:
		quiz, err := models.ParseQuizContent(datatypes.JSON(trimmed))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidModuleContent, err)
		}
		for i, question := range quiz.Questions {
			if question.Answer == nil || *question.Answer >= len(question.Options) {
				return nil, fmt.Errorf("%w: question %d answer is out of range", ErrInvalidModuleContent, i+1)
			}
		}
		return datatypes.JSON(trimmed), nil
	default:
		fields, isObject := document.(map[string]interface{})
		if !isObject {
			return datatypes.JSON(trimmed), nil
		}
		if body, ok := fields["body"].(string); ok {
			fields["body"] = v.sanitizer.Sanitize(body)
		}
		encoded, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		return datatypes.JSON(encoded), nil
	}
}
