package attachments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview-properties/messaging-service/internal/apperr"
	"github.com/harborview-properties/messaging-service/internal/models"
)

func testPolicy() *Policy {
	return NewPolicy(5<<20, []string{"image/png", "application/pdf"})
}

func TestCheckValidDescriptor(t *testing.T) {
	p := testPolicy()
	err := p.Check(models.Attachment{
		Filename: "floorplan.pdf",
		Path:     "u1/abc_floorplan.pdf",
		MimeType: "application/pdf",
		Size:     1024,
	})
	assert.NoError(t, err)
}

func TestCheckViolations(t *testing.T) {
	p := testPolicy()
	tests := []struct {
		name string
		att  models.Attachment
		rule string
	}{
		{
			name: "empty filename",
			att:  models.Attachment{Path: "p", MimeType: "image/png", Size: 10},
			rule: RuleEmptyFilename,
		},
		{
			name: "empty path",
			att:  models.Attachment{Filename: "a.png", MimeType: "image/png", Size: 10},
			rule: RuleEmptyPath,
		},
		{
			name: "disallowed mime",
			att:  models.Attachment{Filename: "a.exe", Path: "p", MimeType: "application/x-msdownload", Size: 10},
			rule: RuleMimeType,
		},
		{
			name: "too large",
			att:  models.Attachment{Filename: "big.png", Path: "p", MimeType: "image/png", Size: 10 << 20},
			rule: RuleTooLarge,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := p.Check(tc.att)
			require.Error(t, err)
			rej, ok := err.(*apperr.AttachmentRejected)
			require.True(t, ok)
			assert.Equal(t, tc.rule, rej.Rule)
		})
	}
}

func TestCheckAllPartialAcceptance(t *testing.T) {
	p := testPolicy()
	valid := models.Attachment{Filename: "a.png", Path: "p1", MimeType: "image/png", Size: 10}
	oversize := models.Attachment{Filename: "big.png", Path: "p2", MimeType: "image/png", Size: 10 << 20}

	accepted, rejected := p.CheckAll([]models.Attachment{valid, oversize}, false)
	require.Len(t, accepted, 1)
	assert.Equal(t, "a.png", accepted[0].Filename)
	require.Len(t, rejected, 1)
	assert.Equal(t, RuleTooLarge, rejected[0].Rule)
	assert.Equal(t, "big.png", rejected[0].Filename)
}

func TestCheckAllAllOrNothing(t *testing.T) {
	p := testPolicy()
	valid := models.Attachment{Filename: "a.png", Path: "p1", MimeType: "image/png", Size: 10}
	oversize := models.Attachment{Filename: "big.png", Path: "p2", MimeType: "image/png", Size: 10 << 20}

	accepted, rejected := p.CheckAll([]models.Attachment{valid, oversize}, true)
	assert.Nil(t, accepted)
	require.Len(t, rejected, 1)
}
