package vision

import (
	"bytes"
	"context"
	"fmt"
	stdimage "image"
	"image/jpeg"

	visionapi "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"google.golang.org/api/option"

	"github.com/edugen/video2pdf-service/internal/domain/entity"
)

// maxCropDim bounds what we send per OCR call; lecture frames are often
// 4K screen grabs and Vision charges by pixel count past this anyway.
const maxCropDim = 1600

// Client adapts the GCP Vision API to the detector and extractor ports.
// Detection uses document text block geometry; extraction re-OCRs the
// cropped region. Both calls honor the caller's context deadline, which
// the pipeline uses as the per-call inference timeout.
type Client struct {
	annotator     *visionapi.ImageAnnotatorClient
	minConfidence float64
	logger        *zap.Logger
}

type Config struct {
	CredentialsFile string
	MinConfidence   float64
}

func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	annotator, err := visionapi.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &Client{
		annotator:     annotator,
		minConfidence: cfg.MinConfidence,
		logger:        logger,
	}, nil
}

func (c *Client) Close() error {
	return c.annotator.Close()
}

// Detect returns the frame's text blocks as content regions, already
// filtered by the confidence threshold so downstream stages never see
// low-confidence noise.
func (c *Client) Detect(ctx context.Context, frame entity.Frame) ([]entity.Region, error) {
	resp, err := c.annotate(ctx, frame.JPEG, visionpb.Feature_DOCUMENT_TEXT_DETECTION)
	if err != nil {
		return nil, err
	}

	var regions []entity.Region
	if resp.FullTextAnnotation == nil {
		return regions, nil
	}
	for _, page := range resp.FullTextAnnotation.Pages {
		for _, block := range page.Blocks {
			conf := float64(block.Confidence)
			if conf < c.minConfidence {
				continue
			}
			region, ok := regionFromPoly(block.BoundingBox, frame)
			if !ok {
				continue
			}
			region.Confidence = conf
			region.Label = "text"
			regions = append(regions, region)
		}
	}
	return regions, nil
}

// Extract OCRs one region crop. An empty recognition comes back as a
// valid empty TextBlock, never an error.
func (c *Client) Extract(ctx context.Context, frame entity.Frame, region entity.Region) (entity.TextBlock, error) {
	crop, err := cropJPEG(frame.JPEG, region)
	if err != nil {
		return entity.TextBlock{}, fmt.Errorf("crop region: %w", err)
	}

	resp, err := c.annotate(ctx, crop, visionpb.Feature_TEXT_DETECTION)
	if err != nil {
		return entity.TextBlock{}, err
	}

	text := ""
	conf := 0.0
	if fta := resp.FullTextAnnotation; fta != nil {
		text = entity.NormalizeOCRText(fta.Text)
		conf = meanPageConfidence(fta.Pages)
	}
	return entity.TextBlock{Region: region, Text: text, Confidence: conf}, nil
}

func (c *Client) annotate(ctx context.Context, img []byte, feature visionpb.Feature_Type) (*visionpb.AnnotateImageResponse, error) {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: img},
			Features: []*visionpb.Feature{{Type: feature}},
		}},
	}
	resp, err := c.annotator.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return nil, fmt.Errorf("vision returned empty response")
	}
	r := resp.Responses[0]
	if r.Error != nil {
		return nil, fmt.Errorf("vision annotation error: %s", r.Error.Message)
	}
	return r, nil
}

// regionFromPoly converts a bounding polygon to an axis-aligned region
// clamped to the frame; degenerate boxes are dropped.
func regionFromPoly(poly *visionpb.BoundingPoly, frame entity.Frame) (entity.Region, bool) {
	if poly == nil || len(poly.Vertices) == 0 {
		return entity.Region{}, false
	}
	minX, minY := int(poly.Vertices[0].X), int(poly.Vertices[0].Y)
	maxX, maxY := minX, minY
	for _, v := range poly.Vertices[1:] {
		minX = min(minX, int(v.X))
		minY = min(minY, int(v.Y))
		maxX = max(maxX, int(v.X))
		maxY = max(maxY, int(v.Y))
	}
	minX, minY = max(minX, 0), max(minY, 0)
	maxX, maxY = min(maxX, frame.Width), min(maxY, frame.Height)
	if maxX <= minX || maxY <= minY {
		return entity.Region{}, false
	}
	return entity.Region{
		FrameIndex: frame.Index,
		X:          minX,
		Y:          minY,
		Width:      maxX - minX,
		Height:     maxY - minY,
	}, true
}

func meanPageConfidence(pages []*visionpb.Page) float64 {
	if len(pages) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range pages {
		sum += float64(p.Confidence)
	}
	return sum / float64(len(pages))
}

// cropJPEG extracts the region's pixels, downscaling oversized crops
// before they go over the wire.
func cropJPEG(data []byte, region entity.Region) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	rect := stdimage.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height)
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("region outside frame bounds")
	}

	crop := stdimage.NewRGBA(stdimage.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Copy(crop, stdimage.Point{}, img, rect, draw.Src, nil)

	out := stdimage.Image(crop)
	if w, h := rect.Dx(), rect.Dy(); w > maxCropDim || h > maxCropDim {
		scale := float64(maxCropDim) / float64(max(w, h))
		scaled := stdimage.NewRGBA(stdimage.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), crop, crop.Bounds(), draw.Src, nil)
		out = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), nil
}
