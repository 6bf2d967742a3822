package storage

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// S3Storage keeps photos in an S3 bucket under complaints/.
type S3Storage struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewS3Storage uses the default AWS credential chain.
func NewS3Storage(ctx context.Context, region, bucket, publicURL string) (*S3Storage, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	log.Infof("Storing photos in S3 bucket %s (%s)", bucket, region)
	return &S3Storage{
		client:    s3.NewFromConfig(cfg),
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

func (s *S3Storage) Save(ctx context.Context, ext, contentType string, data []byte) (*Object, error) {
	key := "complaints/" + uuid.NewString() + strings.ToLower(ext)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload photo to s3: %w", err)
	}
	return &Object{Key: key, URL: s.publicURL + "/" + key}, nil
}

func (s *S3Storage) Tag(ctx context.Context, key string, tags map[string]string) error {
	_, err := s.client.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket:  aws.String(s.bucket),
		Key:     aws.String(key),
		Tagging: &types.Tagging{TagSet: tagSet(tags)},
	})
	if err != nil {
		return fmt.Errorf("failed to tag %s: %w", key, err)
	}
	return nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s from s3: %w", key, err)
	}
	return nil
}

const (
	maxTagKey   = 128
	maxTagValue = 256
)

// tagSet orders tags by key.
func tagSet(tags map[string]string) []types.Tag {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	set := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		set = append(set, types.Tag{
			Key:   aws.String(tagText(k, maxTagKey)),
			Value: aws.String(tagText(tags[k], maxTagValue)),
		})
	}
	return set
}

// tagText keeps the characters S3 accepts in tags, replacing the rest with a
// space, and cuts the result to max characters.
func tagText(s string, max int) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if len(out) == max {
			break
		}
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == ' ':
		case strings.ContainsRune("+-=._:/@", r):
		default:
			r = ' '
		}
		out = append(out, r)
	}
	return strings.TrimSpace(string(out))
}
