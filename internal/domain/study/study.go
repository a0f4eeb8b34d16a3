package study

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/pingboard/backend/internal/domain/shared"
)

// Signup code alphabet excludes characters that read ambiguously
// in a chat message (l, o, I, O, 0, 1).
const codeAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// SignupCodeLength is the length of the participant-facing study code
const SignupCodeLength = 8

// Study is a research study that participants enroll in
type Study struct {
	shared.BaseEntity
	PublicName     string
	InternalName   string
	Code           string
	ContactMessage string
}

// NewStudy creates a study with a generated signup code
func NewStudy(publicName, internalName, contactMessage string) (*Study, error) {
	publicName = strings.TrimSpace(publicName)
	internalName = strings.TrimSpace(internalName)
	if publicName == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Public name is required")
	}
	if internalName == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Internal name is required")
	}
	if len(publicName) > 255 || len(internalName) > 255 {
		return nil, shared.NewDomainError("INVALID_NAME", "Study names cannot exceed 255 characters")
	}

	code, err := GenerateCode(SignupCodeLength)
	if err != nil {
		return nil, shared.NewDomainError("CODE_GENERATION_ERROR", "Failed to generate signup code")
	}

	return &Study{
		BaseEntity:     shared.NewBaseEntity(),
		PublicName:     publicName,
		InternalName:   internalName,
		Code:           code,
		ContactMessage: strings.TrimSpace(contactMessage),
	}, nil
}

// Update replaces the study's mutable fields
func (s *Study) Update(publicName, internalName, contactMessage string) error {
	publicName = strings.TrimSpace(publicName)
	internalName = strings.TrimSpace(internalName)
	if publicName == "" || internalName == "" {
		return shared.NewDomainError("INVALID_NAME", "Study names are required")
	}
	s.PublicName = publicName
	s.InternalName = internalName
	s.ContactMessage = strings.TrimSpace(contactMessage)
	s.UpdatedAt = time.Now()
	return nil
}

// GenerateCode draws a random code of the given length from the
// non-confusable alphabet using crypto/rand.
func GenerateCode(length int) (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}
