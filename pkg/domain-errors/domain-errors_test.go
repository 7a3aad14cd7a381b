package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorInterface() {
	s.Run("returns message when present", func() {
		err := &Error{Code: CodeNotFound, Message: "report not found"}
		s.Equal("report not found", err.Error())
	})

	s.Run("returns code when message is empty", func() {
		err := &Error{Code: CodeInvalidState}
		s.Equal("invalid_state", err.Error())
	})
}

func (s *DomainErrorsSuite) TestIsMatching() {
	s.Run("matches by code only", func() {
		s.True(errors.Is(New(CodeBlocked, "a"), &Error{Code: CodeBlocked}))
	})

	s.Run("does not match different codes", func() {
		s.False(errors.Is(New(CodeBlocked, "a"), &Error{Code: CodeGeoRestricted}))
	})

	s.Run("works through fmt wrapping", func() {
		err := fmt.Errorf("submit: %w", New(CodeAlreadyVerified, "subject already verified"))
		s.True(HasCode(err, CodeAlreadyVerified))
	})
}

func (s *DomainErrorsSuite) TestWrap() {
	s.Run("preserves original domain code and fields", func() {
		inner := NewValidation(FieldError{Field: "email", Reason: "required"})
		err := Wrap(inner, CodeInternal, "submit failed")
		s.True(HasCode(err, CodeValidation))
		s.Equal([]string{"email"}, FieldNames(err))
	})

	s.Run("applies code to plain errors", func() {
		err := Wrap(errors.New("boom"), CodeProcessingFailure, "classifier failed")
		s.True(HasCode(err, CodeProcessingFailure))
		s.Equal("boom", errors.Unwrap(err).Error())
	})
}

func (s *DomainErrorsSuite) TestNewValidation() {
	err := NewValidation(
		FieldError{Field: "reason", Reason: "required"},
		FieldError{Field: "content_id", Reason: "required"},
		FieldError{Field: "description", Reason: "required"},
	)

	s.True(HasCode(err, CodeValidation))
	s.Equal([]string{"content_id", "description", "reason"}, FieldNames(err))
	s.Equal("invalid fields: content_id, description, reason", err.Error())
}
