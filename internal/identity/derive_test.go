package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"regdesk/internal/apperr"
)

type DeriveSuite struct {
	suite.Suite
}

func TestDeriveSuite(t *testing.T) {
	suite.Run(t, new(DeriveSuite))
}

func (s *DeriveSuite) TestSplitName() {
	s.Run("western order uses last segment as family name", func() {
		last, first := SplitName("John Smith")
		s.Equal("Smith", last)
		s.Equal("John", first)
	})

	s.Run("multiple spaces keep everything before the last as given name", func() {
		last, first := SplitName("Anna Maria Lopez")
		s.Equal("Lopez", last)
		s.Equal("Anna Maria", first)
	})

	s.Run("no space uses initial-surname convention", func() {
		last, first := SplitName("김민준")
		s.Equal("김", last)
		s.Equal("민준", first)
	})

	s.Run("single rune is all family name", func() {
		last, first := SplitName("X")
		s.Equal("X", last)
		s.Equal("", first)
	})

	s.Run("blank yields empty parts", func() {
		last, first := SplitName("   ")
		s.Empty(last)
		s.Empty(first)
	})
}

func (s *DeriveSuite) TestDeriveKeyDeterministic() {
	k1, err := DeriveKey("John Smith", "1990-05-01", "secret")
	s.Require().NoError(err)
	k2, err := DeriveKey("John Smith", "1990-05-01", "secret")
	s.Require().NoError(err)

	s.Equal(k1, k2)
	s.Len(k1, KeyLength)
	s.True(IsKeyShaped(k1))
}

func (s *DeriveSuite) TestDeriveKeyNormalizesInput() {
	k1, err := DeriveKey("  John Smith ", "1990-05-01", "secret")
	s.Require().NoError(err)
	k2, err := DeriveKey("JOHN SMITH", " 1990-05-01 ", "secret")
	s.Require().NoError(err)
	s.Equal(k1, k2)
}

func (s *DeriveSuite) TestDeriveKeyRejectsPartialData() {
	_, err := DeriveKey("", "1990-05-01", "secret")
	s.True(apperr.Is(err, apperr.KindValidation))

	_, err = DeriveKey("John Smith", "", "secret")
	s.True(apperr.Is(err, apperr.KindValidation))
}

func (s *DeriveSuite) TestBirthDatesDoNotCollide() {
	// Same name over 10k distinct birth dates must not produce duplicates.
	seen := make(map[string]string, 10000)
	day := time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10000; i++ {
		date := day.Format("2006-01-02")
		key, err := DeriveKey("John Smith", date, "secret")
		s.Require().NoError(err)
		if prev, dup := seen[key]; dup {
			s.Failf("collision", "key %s for both %s and %s", key, prev, date)
		}
		seen[key] = date
		day = day.AddDate(0, 0, 1)
	}
	s.Len(seen, 10000)
}

func (s *DeriveSuite) TestRandomCodeShape() {
	a, err := RandomCode()
	s.Require().NoError(err)
	b, err := RandomCode()
	s.Require().NoError(err)

	s.True(IsKeyShaped(a))
	s.True(IsKeyShaped(b))
	s.NotEqual(a, b)
}
