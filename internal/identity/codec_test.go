package identity

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type CodecSuite struct {
	suite.Suite
}

func TestCodecSuite(t *testing.T) {
	suite.Run(t, new(CodecSuite))
}

func (s *CodecSuite) TestStructuredPayload() {
	res := DecodeScan(`{"type":"checkin","id":"abc123","v":1}`)
	s.Equal(ScanParticipantID, res.Kind)
	s.Equal("abc123", res.Value)
}

func (s *CodecSuite) TestStructuredPayloadRejectsWrongType() {
	s.Equal(ScanInvalid, DecodeScan(`{"type":"ticket","id":"abc123","v":1}`).Kind)
	s.Equal(ScanInvalid, DecodeScan(`{"type":"checkin","v":1}`).Kind)
	s.Equal(ScanInvalid, DecodeScan(`{"type":"checkin",`).Kind)
}

func (s *CodecSuite) TestIDPrefix() {
	res := DecodeScan("ID:9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d")
	s.Equal(ScanParticipantID, res.Kind)
	s.Equal("9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d", res.Value)

	s.Equal(ScanInvalid, DecodeScan("ID:").Kind)
}

func (s *CodecSuite) TestKeyPrefix() {
	res := DecodeScan("KEY:AB12CD34")
	s.Equal(ScanLookupKey, res.Kind)
	s.Equal("AB12CD34", res.Value)

	s.Run("wrong shape after prefix is invalid", func() {
		s.Equal(ScanInvalid, DecodeScan("KEY:ab12cd34").Kind)
		s.Equal(ScanInvalid, DecodeScan("KEY:AB12CD3").Kind)
		s.Equal(ScanInvalid, DecodeScan("KEY:AB12CD345").Kind)
	})
}

func (s *CodecSuite) TestBareKey() {
	res := DecodeScan("AB12CD34")
	s.Equal(ScanLookupKey, res.Kind)
	s.Equal("AB12CD34", res.Value)

	s.Run("surrounding whitespace is tolerated", func() {
		res := DecodeScan("  AB12CD34\n")
		s.Equal(ScanLookupKey, res.Kind)
		s.Equal("AB12CD34", res.Value)
	})
}

func (s *CodecSuite) TestUnrelatedTextIsInvalid() {
	for _, raw := range []string{
		"hello world",
		"",
		"   ",
		"ab12cd34",
		"AB12CD3!",
		"https://example.com/checkin",
	} {
		s.Equal(ScanInvalid, DecodeScan(raw).Kind, "input %q", raw)
	}
}

func (s *CodecSuite) TestIsKeyShaped() {
	s.True(IsKeyShaped("AAAA0000"))
	s.False(IsKeyShaped("AAAA000"))
	s.False(IsKeyShaped("aaaa0000"))
	s.False(IsKeyShaped("AAAA 000"))
}
