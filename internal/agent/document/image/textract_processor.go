package image

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/feichai0017/tender-processor/internal/models"
	"github.com/feichai0017/tender-processor/pkg/logger"
)

// TextractAPI is the subset of the Textract client used here.
type TextractAPI interface {
	AnalyzeDocument(ctx context.Context, params *textract.AnalyzeDocumentInput, optFns ...func(*textract.Options)) (*textract.AnalyzeDocumentOutput, error)
}

type TextractProcessor struct {
	client     TextractAPI
	logger     logger.Logger
	config     *TextractConfig
	preprocess *Pipeline
}

type TextractConfig struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// MinConfidence is on Textract's 0-100 scale.
	MinConfidence float32
	EnableTable   bool
	EnableForm    bool
	MaxImageSide  int
}

func (c *TextractConfig) featureTypes() []types.FeatureType {
	var ft []types.FeatureType
	if c.EnableTable {
		ft = append(ft, types.FeatureTypeTables)
	}
	if c.EnableForm {
		ft = append(ft, types.FeatureTypeForms)
	}
	return ft
}

// NewTextractProcessor builds an AWS client from cfg.
func NewTextractProcessor(ctx context.Context, cfg *TextractConfig, log logger.Logger) (*TextractProcessor, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	client := textract.NewFromConfig(awsCfg, func(o *textract.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewTextractProcessorWithClient(client, cfg, log), nil
}

// NewTextractProcessorWithClient uses an existing client.
func NewTextractProcessorWithClient(client TextractAPI, cfg *TextractConfig, log logger.Logger) *TextractProcessor {
	return &TextractProcessor{
		client:     client,
		logger:     log,
		config:     cfg,
		preprocess: NewPipeline(NewDownscaleProcessor(cfg.MaxImageSide)),
	}
}

func (p *TextractProcessor) CanProcess(mimeType string) bool {
	supportedTypes := map[string]bool{
		"image/jpeg": true,
		"image/jpg":  true,
		"image/png":  true,
		"image/tiff": true,
	}
	return supportedTypes[strings.ToLower(mimeType)]
}

func (p *TextractProcessor) Process(ctx context.Context, reader io.Reader) ([]models.TextSpan, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	data, err = p.preprocess.Run(data)
	if err != nil {
		return nil, err
	}

	input := &textract.AnalyzeDocumentInput{
		Document:     &types.Document{Bytes: data},
		FeatureTypes: p.config.featureTypes(),
	}
	if len(input.FeatureTypes) == 0 {
		// AnalyzeDocument needs at least one feature
		input.FeatureTypes = []types.FeatureType{types.FeatureTypeForms}
	}

	result, err := p.client.AnalyzeDocument(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze document: %w", err)
	}

	idx := indexBlocks(result.Blocks)
	spans := p.lineSpans(result.Blocks)
	if p.config.EnableForm {
		spans = append(spans, p.formSpans(result.Blocks, idx)...)
	}
	if p.config.EnableTable {
		spans = append(spans, p.tableSpans(result.Blocks, idx)...)
	}

	p.logger.Debug("Textract analysis finished",
		logger.Int("blocks", len(result.Blocks)),
		logger.Int("spans", len(spans)),
	)
	return spans, nil
}

func (p *TextractProcessor) Close() error {
	return nil
}

func (p *TextractProcessor) lineSpans(blocks []types.Block) []models.TextSpan {
	var spans []models.TextSpan
	for _, block := range blocks {
		if block.BlockType != types.BlockTypeLine || block.Text == nil {
			continue
		}
		if block.Confidence == nil || *block.Confidence < p.config.MinConfidence {
			continue
		}
		spans = append(spans, blockSpan(block, *block.Text, "textract_line"))
	}
	return spans
}

// formSpans renders KEY_VALUE_SET pairs as "key: value" lines.
func (p *TextractProcessor) formSpans(blocks []types.Block, idx map[string]types.Block) []models.TextSpan {
	var spans []models.TextSpan
	for _, block := range blocks {
		if block.BlockType != types.BlockTypeKeyValueSet || len(block.EntityTypes) == 0 || block.EntityTypes[0] != types.EntityTypeKey {
			continue
		}
		key := childText(block, idx)
		value := valueText(block, idx)
		if key == "" || value == "" {
			continue
		}
		spans = append(spans, blockSpan(block, strings.TrimSuffix(key, ":")+": "+value, "textract_form"))
	}
	return spans
}

// tableSpans renders each table row as one line; two-column rows become
// "left: right" so they read like labelled values.
func (p *TextractProcessor) tableSpans(blocks []types.Block, idx map[string]types.Block) []models.TextSpan {
	var spans []models.TextSpan
	for _, table := range blocks {
		if table.BlockType != types.BlockTypeTable {
			continue
		}
		rows := map[int32]map[int32]string{}
		var maxRow, maxCol int32
		for _, id := range childIDs(table) {
			cell, ok := idx[id]
			if !ok || cell.BlockType != types.BlockTypeCell || cell.RowIndex == nil || cell.ColumnIndex == nil {
				continue
			}
			r, c := *cell.RowIndex, *cell.ColumnIndex
			if rows[r] == nil {
				rows[r] = map[int32]string{}
			}
			rows[r][c] = childText(cell, idx)
			maxRow = max(maxRow, r)
			maxCol = max(maxCol, c)
		}

		sep := " | "
		if maxCol == 2 {
			sep = ": "
		}
		for r := int32(1); r <= maxRow; r++ {
			cells := make([]string, 0, maxCol)
			for c := int32(1); c <= maxCol; c++ {
				cells = append(cells, rows[r][c])
			}
			line := strings.TrimSpace(strings.Join(cells, sep))
			if strings.Trim(line, " |:") == "" {
				continue
			}
			spans = append(spans, blockSpan(table, line, "textract_table"))
		}
	}
	return spans
}

func blockSpan(block types.Block, text, method string) models.TextSpan {
	span := models.TextSpan{Text: text, Page: 1, Method: method}
	if block.Page != nil && *block.Page > 0 {
		span.Page = int(*block.Page)
	}
	if block.Confidence != nil {
		span.Confidence = float64(*block.Confidence) / 100
	}
	if block.Geometry != nil && block.Geometry.BoundingBox != nil {
		bb := block.Geometry.BoundingBox
		span.BBox = [4]float64{
			float64(bb.Left),
			float64(bb.Top),
			float64(bb.Left + bb.Width),
			float64(bb.Top + bb.Height),
		}
	}
	return span
}

func indexBlocks(blocks []types.Block) map[string]types.Block {
	idx := make(map[string]types.Block, len(blocks))
	for _, b := range blocks {
		if b.Id != nil {
			idx[*b.Id] = b
		}
	}
	return idx
}

func childIDs(block types.Block) []string {
	var ids []string
	for _, rel := range block.Relationships {
		if rel.Type == types.RelationshipTypeChild {
			ids = append(ids, rel.Ids...)
		}
	}
	return ids
}

func childText(block types.Block, idx map[string]types.Block) string {
	var words []string
	for _, id := range childIDs(block) {
		if child, ok := idx[id]; ok && child.Text != nil {
			words = append(words, *child.Text)
		}
	}
	return strings.TrimSpace(strings.Join(words, " "))
}

func valueText(key types.Block, idx map[string]types.Block) string {
	for _, rel := range key.Relationships {
		if rel.Type != types.RelationshipTypeValue {
			continue
		}
		for _, id := range rel.Ids {
			if v, ok := idx[id]; ok {
				return childText(v, idx)
			}
		}
	}
	return ""
}
