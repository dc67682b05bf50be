package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Paper is the canonical bibliographic record shared by every component.
// Records are immutable once stored; two papers are the same paper when their
// IDs match.
type Paper struct {
	ID       string     `json:"id" validate:"required"`
	Title    string     `json:"title" validate:"required"`
	Authors  string     `json:"authors"`
	Abstract string     `json:"abstract" validate:"required"`
	Source   SourceType `json:"source" validate:"required,source_type"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func paperValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("source_type", func(fl validator.FieldLevel) bool {
			return SourceType(fl.Field().String()).IsValid()
		})
		validate = v
	})
	return validate
}

// NewPaper trims every field and returns a validated Paper. Records missing an
// id, a title or an abstract after trimming are rejected with a
// *ValidationError.
func NewPaper(id, title, authors, abstract string, source SourceType) (Paper, error) {
	p := Paper{
		ID:       strings.TrimSpace(id),
		Title:    strings.TrimSpace(title),
		Authors:  strings.TrimSpace(authors),
		Abstract: strings.TrimSpace(abstract),
		Source:   source,
	}
	if err := p.Validate(); err != nil {
		return Paper{}, err
	}
	return p, nil
}

// Validate checks the record invariants.
func (p Paper) Validate() error {
	err := paperValidator().Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return NewValidationError(fe.Field(), "must not be empty")
		case "source_type":
			return NewValidationError(fe.Field(), fmt.Sprintf("unknown source %q", fe.Value()))
		default:
			return NewValidationError(fe.Field(), "failed "+fe.Tag()+" check")
		}
	}
	return NewValidationError("paper", err.Error())
}

// SameAs reports whether p and other identify the same record.
func (p Paper) SameAs(other Paper) bool {
	return p.ID == other.ID
}

// JoinAuthors renders author display names as a comma-separated string,
// skipping blank names.
func JoinAuthors(names []string) string {
	parts := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, ", ")
}
