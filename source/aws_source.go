package source

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sardine-ai/go-remote-records/model"
)

// AwsS3Source is a RemoteSource that reads a YAML record document stored
// as an object in an S3 bucket.
type AwsS3Source struct {
	Name       string     // Name of the source
	BucketName string     // Name of the S3 bucket
	ObjectName string     // Key of the YAML document within the bucket
	Region     string     // Optional region override
	Endpoint   string     // Optional endpoint for S3 compatible stores; enables path style
	AccessKey  string     // Optional static credentials
	SecretKey  string     // Optional static credentials
	Client     *s3.Client // S3 client instance; built from the default chain when nil

	clientOnce    sync.Once // Ensures client is initialized only once
	clientInitErr error     // Stores error from client initialization
}

// GetName returns the name of the source.
func (a *AwsS3Source) GetName() string {
	return a.Name
}

func (a *AwsS3Source) client(ctx context.Context) (*s3.Client, error) {
	a.clientOnce.Do(func() {
		if a.Client != nil {
			return
		}
		var opts []func(*config.LoadOptions) error
		if a.Region != "" {
			opts = append(opts, config.WithRegion(a.Region))
		}
		if a.AccessKey != "" {
			opts = append(opts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(a.AccessKey, a.SecretKey, "")))
		}
		cfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			a.clientInitErr = fmt.Errorf("failed to load AWS config: %w", err)
			return
		}
		a.Client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			if a.Endpoint != "" {
				o.BaseEndpoint = aws.String(a.Endpoint)
				o.UsePathStyle = true
			}
		})
	})
	return a.Client, a.clientInitErr
}

// GetData downloads the object and decodes its records.
func (a *AwsS3Source) GetData(ctx context.Context) ([]model.Record, error) {
	client, err := a.client(ctx)
	if err != nil {
		return nil, model.NewFetchError(a.Name, err)
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.BucketName),
		Key:    aws.String(a.ObjectName),
	})
	if err != nil {
		return nil, model.NewFetchError(a.Name, err)
	}
	defer result.Body.Close()

	content, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, model.NewFetchError(a.Name, err)
	}

	records, err := model.Decode(content)
	if err != nil {
		return nil, model.NewFetchError(a.Name, err)
	}
	return records, nil
}
