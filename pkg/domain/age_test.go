package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type AgeSuite struct {
	suite.Suite
}

func TestAgeSuite(t *testing.T) {
	suite.Run(t, new(AgeSuite))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *AgeSuite) TestAgeOn() {
	s.Run("birthday not yet reached this year", func() {
		s.Equal(17, AgeOn(date(2008, 10, 20), date(2026, 10, 19)))
	})

	s.Run("birthday today", func() {
		s.Equal(18, AgeOn(date(2008, 10, 19), date(2026, 10, 19)))
	})

	s.Run("birthday passed earlier in the year", func() {
		s.Equal(18, AgeOn(date(2008, 1, 2), date(2026, 10, 19)))
	})

	s.Run("leap day birthday reached on Mar 1", func() {
		s.Equal(17, AgeOn(date(2000, 2, 29), date(2018, 2, 28)))
		s.Equal(18, AgeOn(date(2000, 2, 29), date(2018, 3, 1)))
	})

	s.Run("future birth date clamps to zero", func() {
		s.Equal(0, AgeOn(date(2030, 1, 1), date(2026, 1, 1)))
	})
}

func (s *AgeSuite) TestIsOver18() {
	s.True(IsOver18(date(2000, 1, 15), date(2018, 1, 15)))
	s.False(IsOver18(date(2000, 1, 15), time.Date(2018, 1, 14, 23, 59, 59, 0, time.UTC)))
}
