/**
 * Textract Client - Geometric document analysis
 *
 * Calls AWS Textract AnalyzeDocument with TABLES and FORMS enabled and
 * converts the returned blocks into the reconstruction block model.
 */

package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/adverant/nexus/waybill-worker/internal/logging"
	"github.com/adverant/nexus/waybill-worker/internal/reconstruct"
)

// TextractAPI is the subset of the Textract client used here
type TextractAPI interface {
	AnalyzeDocument(ctx context.Context, params *textract.AnalyzeDocumentInput, optFns ...func(*textract.Options)) (*textract.AnalyzeDocumentOutput, error)
}

// TextractClient analyzes waybill images with AWS Textract
type TextractClient struct {
	api    TextractAPI
	logger *logging.Logger
}

// TextractConfig holds AWS credentials for Textract
type TextractConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

// NewTextractClient creates a Textract client with static credentials
func NewTextractClient(ctx context.Context, cfg *TextractConfig) (*TextractClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewTextractClientWithAPI(textract.NewFromConfig(awsCfg)), nil
}

// NewTextractClientWithAPI wraps an existing Textract API implementation
func NewTextractClientWithAPI(api TextractAPI) *TextractClient {
	return &TextractClient{
		api:    api,
		logger: logging.NewLogger("TextractClient"),
	}
}

// Name identifies the backend in logs and errors
func (c *TextractClient) Name() string {
	return "textract"
}

// AnalyzeDocument returns every block Textract detected in the image
func (c *TextractClient) AnalyzeDocument(ctx context.Context, imageData []byte) ([]reconstruct.Block, error) {
	c.logger.Info("Requesting document analysis from Textract", "imageSize", len(imageData))

	startTime := time.Now()
	out, err := c.api.AnalyzeDocument(ctx, &textract.AnalyzeDocumentInput{
		Document: &types.Document{Bytes: imageData},
		FeatureTypes: []types.FeatureType{
			types.FeatureTypeTables,
			types.FeatureTypeForms,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("textract AnalyzeDocument failed: %w", err)
	}

	blocks := ConvertTextractBlocks(out.Blocks)

	c.logger.Info("Document analysis complete",
		"blocks", len(blocks),
		"duration", time.Since(startTime))

	return blocks, nil
}

// ConvertTextractBlocks maps Textract blocks onto reconstruct.Block.
// Blocks without an id are dropped since nothing can reference them.
func ConvertTextractBlocks(in []types.Block) []reconstruct.Block {
	out := make([]reconstruct.Block, 0, len(in))
	for _, b := range in {
		id := aws.ToString(b.Id)
		if id == "" {
			continue
		}

		block := reconstruct.Block{
			ID:          id,
			Type:        reconstruct.BlockType(b.BlockType),
			Confidence:  float64(aws.ToFloat32(b.Confidence)),
			RowIndex:    int(aws.ToInt32(b.RowIndex)),
			ColumnIndex: int(aws.ToInt32(b.ColumnIndex)),
		}

		if b.Text != nil {
			block.Text = *b.Text
			block.HasText = true
		}

		if b.Geometry != nil && b.Geometry.BoundingBox != nil {
			bb := b.Geometry.BoundingBox
			block.Box = reconstruct.BoundingBox{
				Left:   float64(bb.Left),
				Top:    float64(bb.Top),
				Width:  float64(bb.Width),
				Height: float64(bb.Height),
			}
		}

		for _, et := range b.EntityTypes {
			block.EntityTypes = append(block.EntityTypes, reconstruct.EntityType(et))
		}

		for _, rel := range b.Relationships {
			block.Relationships = append(block.Relationships, reconstruct.Relationship{
				Type: reconstruct.RelationshipType(rel.Type),
				IDs:  append([]string(nil), rel.Ids...),
			})
		}

		out = append(out, block)
	}
	return out
}
