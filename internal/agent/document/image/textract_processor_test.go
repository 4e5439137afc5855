package image

import (
	"bytes"
	"context"
	goimage "image"
	"image/color"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/tender-processor/pkg/logger"
)

type fakeTextract struct {
	input  *textract.AnalyzeDocumentInput
	output *textract.AnalyzeDocumentOutput
}

func (f *fakeTextract) AnalyzeDocument(ctx context.Context, in *textract.AnalyzeDocumentInput, _ ...func(*textract.Options)) (*textract.AnalyzeDocumentOutput, error) {
	f.input = in
	return f.output, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.White)
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func line(id, text string, conf float32, page int32) types.Block {
	return types.Block{
		Id:         aws.String(id),
		BlockType:  types.BlockTypeLine,
		Text:       aws.String(text),
		Confidence: aws.Float32(conf),
		Page:       aws.Int32(page),
		Geometry: &types.Geometry{BoundingBox: &types.BoundingBox{
			Left: 0.1, Top: 0.2, Width: 0.5, Height: 0.05,
		}},
	}
}

func word(id, text string) types.Block {
	return types.Block{Id: aws.String(id), BlockType: types.BlockTypeWord, Text: aws.String(text)}
}

func TestTextractProcessor_Process(t *testing.T) {
	blocks := []types.Block{
		line("l1", "Aanbestedende dienst: Gemeente Delft", 99, 1),
		line("l2", "smudge", 20, 1),
		word("w1", "Geschatte"),
		word("w2", "waarde"),
		word("w3", "€"),
		word("w4", "80.000"),
		{
			Id: aws.String("k1"), BlockType: types.BlockTypeKeyValueSet,
			EntityTypes: []types.EntityType{types.EntityTypeKey},
			Confidence:  aws.Float32(90),
			Relationships: []types.Relationship{
				{Type: types.RelationshipTypeChild, Ids: []string{"w1", "w2"}},
				{Type: types.RelationshipTypeValue, Ids: []string{"v1"}},
			},
		},
		{
			Id: aws.String("v1"), BlockType: types.BlockTypeKeyValueSet,
			EntityTypes: []types.EntityType{types.EntityTypeValue},
			Relationships: []types.Relationship{
				{Type: types.RelationshipTypeChild, Ids: []string{"w3", "w4"}},
			},
		},
	}
	fake := &fakeTextract{output: &textract.AnalyzeDocumentOutput{Blocks: blocks}}
	p := NewTextractProcessorWithClient(fake, &TextractConfig{MinConfidence: 80, EnableForm: true}, logger.NewNop())

	spans, err := p.Process(context.Background(), bytes.NewReader(pngBytes(t, 10, 10)))
	require.NoError(t, err)

	require.Len(t, spans, 2)
	assert.Equal(t, "Aanbestedende dienst: Gemeente Delft", spans[0].Text)
	assert.InDelta(t, 0.99, spans[0].Confidence, 1e-6)
	assert.InDelta(t, 0.6, spans[0].BBox[2], 1e-6)
	assert.Equal(t, "Geschatte waarde: € 80.000", spans[1].Text)
	assert.Equal(t, []types.FeatureType{types.FeatureTypeForms}, fake.input.FeatureTypes)
}

func TestTextractProcessor_TableRows(t *testing.T) {
	cell := func(id string, row, col int32, child string) types.Block {
		return types.Block{
			Id: aws.String(id), BlockType: types.BlockTypeCell,
			RowIndex: aws.Int32(row), ColumnIndex: aws.Int32(col),
			Relationships: []types.Relationship{{Type: types.RelationshipTypeChild, Ids: []string{child}}},
		}
	}
	blocks := []types.Block{
		{
			Id: aws.String("t1"), BlockType: types.BlockTypeTable, Confidence: aws.Float32(95),
			Relationships: []types.Relationship{{Type: types.RelationshipTypeChild, Ids: []string{"c1", "c2", "c3", "c4"}}},
		},
		cell("c1", 1, 1, "w1"), cell("c2", 1, 2, "w2"),
		cell("c3", 2, 1, "w3"), cell("c4", 2, 2, "w4"),
		word("w1", "Prijs"), word("w2", "60%"),
		word("w3", "Kwaliteit"), word("w4", "40%"),
	}
	fake := &fakeTextract{output: &textract.AnalyzeDocumentOutput{Blocks: blocks}}
	p := NewTextractProcessorWithClient(fake, &TextractConfig{EnableTable: true}, logger.NewNop())

	spans, err := p.Process(context.Background(), bytes.NewReader(pngBytes(t, 10, 10)))
	require.NoError(t, err)
	require.Len(t, spans, 2)
	assert.Equal(t, "Prijs: 60%", spans[0].Text)
	assert.Equal(t, "Kwaliteit: 40%", spans[1].Text)
}

func TestPipeline_Downscale(t *testing.T) {
	big := pngBytes(t, 400, 200)

	out, err := NewPipeline(NewDownscaleProcessor(100), NewGrayscaleProcessor()).Run(big)
	require.NoError(t, err)
	img, _, err := goimage.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())

	small := pngBytes(t, 50, 50)
	same, err := NewPipeline(NewDownscaleProcessor(100)).Run(small)
	require.NoError(t, err)
	assert.Equal(t, small, same)

	_, err = NewPipeline(NewDownscaleProcessor(100)).Run([]byte("not an image"))
	assert.Error(t, err)
}
