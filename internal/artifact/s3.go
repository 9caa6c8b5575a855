package artifact

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config — параметры S3-приёмника.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // опционально, для MinIO
	PathStyle bool
	// Prefix — префикс ключей (без завершающего "/")
	Prefix string

	// AccessKeyID/SecretAccessKey — статические ключи; пусто — стандартная цепочка AWS
	AccessKeyID     string
	SecretAccessKey string
}

// S3Sink записывает артефакты в бакет S3-совместимого хранилища.
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Sink создаёт S3-приёмник. Учётные данные берутся из стандартной
// цепочки AWS (AWS_ACCESS_KEY_ID, профили, IRSA), если не заданы явно.
func NewS3Sink(ctx context.Context, cfg S3Config, optFns ...func(*s3.Options)) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3: не задан бакет")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("S3: загрузка конфигурации AWS: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		// MinIO и другие S3-совместимые хранилища не принимают aws-chunked с CRC32 в трейлере
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		for _, fn := range optFns {
			fn(o)
		}
	})

	return &S3Sink{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Put записывает объект prefix/name и возвращает s3://bucket/key.
func (s *S3Sink) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	key := path.Join(s.prefix, path.Base(name))

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("S3: запись %s: %w", key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}
