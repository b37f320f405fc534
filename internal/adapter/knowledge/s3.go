// Package knowledge loads project context snippets from S3 for use in
// review prompts.
package knowledge

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/example/reviewbot/internal/domain"
	"github.com/example/reviewbot/internal/usecase/pipeline"
)

// textExtensions are the object suffixes treated as readable snippets.
var textExtensions = map[string]bool{
	".py":   true,
	".js":   true,
	".ts":   true,
	".go":   true,
	".html": true,
	".css":  true,
	".md":   true,
	".txt":  true,
	".json": true,
	".yaml": true,
	".yml":  true,
}

// S3API is the slice of the S3 client the store uses.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store reads text files under a bucket prefix and materializes them
// as snippets. The prompt builder caps how many reach a prompt, so the
// store only bounds per-object size.
type S3Store struct {
	client        S3API
	bucket        string
	maxObjectSize int64
	logger        pipeline.Logger
}

// NewS3Store constructs a store over the given bucket.
func NewS3Store(client S3API, bucket string, logger pipeline.Logger) *S3Store {
	return &S3Store{
		client:        client,
		bucket:        bucket,
		maxObjectSize: 256 * 1024,
		logger:        logger,
	}
}

// Snippets lists the objects under the query prefix, filters to text
// extensions, and returns their contents. Unreadable objects are skipped
// with a warning; only the listing itself failing is an error.
func (s *S3Store) Snippets(ctx context.Context, q domain.KnowledgeQuery) ([]domain.Snippet, error) {
	var snippets []domain.Snippet
	prefix := q.Prefix

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !readableKey(key) {
				continue
			}
			content, err := s.readObject(ctx, key)
			if err != nil {
				if s.logger != nil {
					s.logger.LogWarning(ctx, "knowledge object skipped", map[string]interface{}{
						"key":   key,
						"error": err.Error(),
					})
				}
				continue
			}
			snippets = append(snippets, domain.Snippet{Path: key, Content: content})
		}
	}

	if s.logger != nil {
		s.logger.LogInfo(ctx, "knowledge base loaded", map[string]interface{}{
			"bucket":   s.bucket,
			"prefix":   prefix,
			"snippets": len(snippets),
		})
	}
	return snippets, nil
}

func (s *S3Store) readObject(ctx context.Context, key string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("get object: %w", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(io.LimitReader(out.Body, s.maxObjectSize))
	if err != nil {
		return "", fmt.Errorf("read object body: %w", err)
	}
	return string(body), nil
}

func readableKey(key string) bool {
	if strings.HasSuffix(key, "/") {
		return false
	}
	return textExtensions[path.Ext(key)]
}
