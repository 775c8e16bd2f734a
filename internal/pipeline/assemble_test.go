package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edugen/video2pdf-service/internal/domain/entity"
)

func TestAssembleValidDocument(t *testing.T) {
	slides := []entity.Slide{
		{FrameIndex: 0, DedupKey: "key-a", Text: "first"},
		{FrameIndex: 4, DedupKey: "key-b", Text: "second"},
	}

	doc, err := Assemble(slides, SourceMetadata{Duration: 90 * time.Second})
	require.NoError(t, err)
	assert.Len(t, doc.Slides, 2)
	assert.Equal(t, 90*time.Second, doc.SourceDuration)
	assert.False(t, doc.GeneratedAt.IsZero())
}

func TestAssembleEmptyDocumentIsValid(t *testing.T) {
	doc, err := Assemble(nil, SourceMetadata{Duration: 30 * time.Second})
	require.NoError(t, err)
	assert.Empty(t, doc.Slides)
	assert.Equal(t, 30*time.Second, doc.SourceDuration)
}

func TestAssembleRejectsUnorderedFrameIndices(t *testing.T) {
	slides := []entity.Slide{
		{FrameIndex: 5, DedupKey: "key-a"},
		{FrameIndex: 2, DedupKey: "key-b"},
	}

	_, err := Assemble(slides, SourceMetadata{})
	var asmErr *entity.AssemblyError
	require.ErrorAs(t, err, &asmErr)
}

func TestAssembleRejectsDuplicateKeys(t *testing.T) {
	slides := []entity.Slide{
		{FrameIndex: 0, DedupKey: "same"},
		{FrameIndex: 3, DedupKey: "same"},
	}

	_, err := Assemble(slides, SourceMetadata{})
	var asmErr *entity.AssemblyError
	require.ErrorAs(t, err, &asmErr)
}
