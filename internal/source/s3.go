package source

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config contains S3 authentication configuration
type S3Config struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string // Optional: custom S3-compatible endpoint
}

// s3API is the part of *s3.Client the opener uses.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// ParseS3URL parses s3://bucket/key into bucket and key parts. The key may be
// empty only when allowPrefix is set.
func ParseS3URL(url string, allowPrefix bool) (bucket, key string, err error) {
	if DetectScheme(url) != SchemeS3 {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidS3URL, url)
	}
	path := url[len("s3://"):]
	parts := strings.SplitN(path, "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidS3URL, url)
	}
	if len(parts) < 2 || parts[1] == "" {
		if !allowPrefix {
			return "", "", fmt.Errorf("%w: %s", ErrInvalidS3URL, url)
		}
		return parts[0], "", nil
	}
	return parts[0], parts[1], nil
}

// client creates the S3 client on first use.
func (o *Opener) client(ctx context.Context) (s3API, error) {
	if o.s3Client != nil {
		return o.s3Client, nil
	}

	var opts []func(*config.LoadOptions) error

	// Set region if provided
	if o.S3.Region != "" {
		opts = append(opts, config.WithRegion(o.S3.Region))
	}

	// Set explicit credentials if provided
	if o.S3.AccessKey != "" && o.S3.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(o.S3.AccessKey, o.S3.SecretKey, "")
		opts = append(opts, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if o.S3.Endpoint != "" {
		endpoint := o.S3.Endpoint
		clientOpts = append(clientOpts, func(so *s3.Options) {
			so.BaseEndpoint = aws.String(endpoint)
			so.UsePathStyle = true // For S3-compatible services
		})
	}

	o.s3Client = s3.NewFromConfig(awsCfg, clientOpts...)
	return o.s3Client, nil
}

func (o *Opener) openS3(ctx context.Context, url string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3URL(url, false)
	if err != nil {
		return nil, err
	}
	client, err := o.client(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get S3 object: %w", err)
	}
	return resp.Body, nil
}

func (o *Opener) listS3(ctx context.Context, url string) ([]string, error) {
	bucket, prefix, err := ParseS3URL(url, true)
	if err != nil {
		return nil, err
	}
	client, err := o.client(ctx)
	if err != nil {
		return nil, err
	}

	var locations []string
	p := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list S3 objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if isSQLFile(key) {
				locations = append(locations, "s3://"+bucket+"/"+key)
			}
		}
	}
	sort.Strings(locations)
	return locations, nil
}
