package services

import (
	"fmt"
	"io"
	"log"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// newS3Client builds the blob store client. Path-style addressing and an
// explicit endpoint keep it working against Supabase storage and against
// local fakes in tests.
func newS3Client(cfg Config) (*s3.S3, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String(cfg.S3Region),
		Endpoint:         aws.String(cfg.S3Endpoint),
		DisableSSL:       aws.Bool(false),
		Credentials:      credentials.NewStaticCredentials(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return s3.New(sess), nil
}

// fetchContractObject retrieves the raw bytes and content type of a stored
// contract. A missing object or an unreachable store both map to
// ErrStorageUnavailable; the pipeline converts that into a persisted error
// state rather than retrying.
func (s *AnalysisService) fetchContractObject(bucket, path string) ([]byte, string, error) {
	out, err := s.s3Client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		log.Printf("ERROR fetching object %s/%s: %v", bucket, path, err)
		return nil, "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading object body: %v", ErrStorageUnavailable, err)
	}

	log.Printf("Fetched %d bytes from %s/%s", len(data), bucket, path)
	return data, aws.StringValue(out.ContentType), nil
}
