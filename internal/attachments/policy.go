package attachments

import (
	"github.com/harborview-properties/messaging-service/internal/apperr"
	"github.com/harborview-properties/messaging-service/internal/models"
)

// Rule names reported in AttachmentRejected errors.
const (
	RuleEmptyFilename = "empty filename"
	RuleEmptyPath     = "empty storage path"
	RuleMimeType      = "mime type not allowed"
	RuleTooLarge      = "file exceeds size limit"
)

// Policy validates attachment descriptors against the configured
// allow-list and size limit. It never touches the underlying blobs.
type Policy struct {
	maxBytes int64
	allowed  map[string]struct{}
}

func NewPolicy(maxBytes int64, allowedTypes []string) *Policy {
	allowed := make(map[string]struct{}, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[t] = struct{}{}
	}
	return &Policy{maxBytes: maxBytes, allowed: allowed}
}

func (p *Policy) MaxBytes() int64 { return p.maxBytes }

// Check returns nil when the descriptor satisfies every constraint,
// otherwise an *apperr.AttachmentRejected naming the violated rule.
func (p *Policy) Check(a models.Attachment) error {
	switch {
	case a.Filename == "":
		return &apperr.AttachmentRejected{Filename: a.Filename, Rule: RuleEmptyFilename}
	case a.Path == "":
		return &apperr.AttachmentRejected{Filename: a.Filename, Rule: RuleEmptyPath}
	case !p.mimeAllowed(a.MimeType):
		return &apperr.AttachmentRejected{Filename: a.Filename, Rule: RuleMimeType}
	case a.Size > p.maxBytes:
		return &apperr.AttachmentRejected{Filename: a.Filename, Rule: RuleTooLarge}
	}
	return nil
}

// CheckAll splits descriptors into accepted and rejected. With allOrNothing
// the first violation rejects the whole batch.
func (p *Policy) CheckAll(atts []models.Attachment, allOrNothing bool) ([]models.Attachment, []*apperr.AttachmentRejected) {
	var accepted []models.Attachment
	var rejected []*apperr.AttachmentRejected
	for _, a := range atts {
		if err := p.Check(a); err != nil {
			rejected = append(rejected, err.(*apperr.AttachmentRejected))
			continue
		}
		accepted = append(accepted, a)
	}
	if allOrNothing && len(rejected) > 0 {
		return nil, rejected
	}
	return accepted, rejected
}

func (p *Policy) mimeAllowed(mime string) bool {
	_, ok := p.allowed[mime]
	return ok
}
