package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// multipartThreshold is the payload size above which uploads switch to the
// multipart manager.
const multipartThreshold = 8 * 1024 * 1024

// ImageWriter uploads auction images and returns their public URLs.
type ImageWriter struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewImageWriter creates an ImageWriter backed by the given client.
func NewImageWriter(c *Client) *ImageWriter {
	return &ImageWriter{
		client:    c.S3(),
		bucket:    c.Bucket(),
		publicURL: c.PublicURL(),
	}
}

// UploadAuctionImage stores the image under auctions/{auctionID}/{uuid}.{ext}
// and returns its public URL. The extension is taken from the original
// filename; unrecognised extensions are stored as binary.
func (w *ImageWriter) UploadAuctionImage(ctx context.Context, auctionID, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("s3blob: empty image payload")
	}

	ext := strings.ToLower(path.Ext(filename))
	key := fmt.Sprintf("auctions/%s/%s%s", auctionID, uuid.New().String(), ext)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentTypeFor(ext)),
	}

	if len(data) > multipartThreshold {
		uploader := manager.NewUploader(w.client)
		if _, err := uploader.Upload(ctx, input); err != nil {
			return "", fmt.Errorf("s3blob: multipart upload %s: %w", key, err)
		}
	} else {
		if _, err := w.client.PutObject(ctx, input); err != nil {
			return "", fmt.Errorf("s3blob: put object %s: %w", key, err)
		}
	}

	return strings.TrimRight(w.publicURL, "/") + "/" + key, nil
}

func contentTypeFor(ext string) string {
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
