// Package integration exercises the scraper's S3 output path and Consul
// config overlay against real minio/consul containers, the same
// testcontainers setup the rest of the pack uses for isolation between
// parallel test runs.
package integration

import (
	"context"
	"encoding/json"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	consul "github.com/hashicorp/consul/api"
	"github.com/testcontainers/testcontainers-go"
	tcConsul "github.com/testcontainers/testcontainers-go/modules/consul"
	"github.com/testcontainers/testcontainers-go/modules/minio"
)

func consulSetup(ctx context.Context) (string, func()) {
	consulContainer, err := tcConsul.RunContainer(ctx,
		testcontainers.WithImage("docker.io/hashicorp/consul:1.15"),
	)
	if err != nil {
		log.Fatalf("failed to start container: %s", err)
	}

	consulEndpoint, err := consulContainer.ApiEndpoint(ctx)
	if err != nil {
		log.Fatalf("failed to get consul endpoint: %s", err)
	}

	return consulEndpoint, func() {
		if err := consulContainer.Terminate(ctx); err != nil {
			log.Fatalf("failed to terminate container: %s", err)
		}
	}
}

// uploadOverlay writes a JSON-encoded overlay blob to kvPath, mirroring
// how a deployment would seed default scrape flags for a given log.
func uploadOverlay(consulAddress, kvPath string, overlay any) error {
	b, err := json.Marshal(overlay)
	if err != nil {
		return err
	}

	cfg := consul.DefaultConfig()
	cfg.Address = consulAddress
	client, err := consul.NewClient(cfg)
	if err != nil {
		return err
	}
	_, err = client.KV().Put(&consul.KVPair{Key: kvPath, Value: b}, nil)
	return err
}

func minioSetup(ctx context.Context) (endpoint, username, password, bucket, region string, cleanup func()) {
	minioContainer, err := minio.RunContainer(ctx, testcontainers.WithImage("minio/minio:RELEASE.2024-01-16T16-07-38Z"))
	if err != nil {
		log.Fatalf("failed to start container: %s", err)
	}

	connStr, err := minioContainer.ConnectionString(ctx)
	if err != nil {
		log.Fatalf("failed to get connection string: %s", err)
	}
	endpoint = "http://" + connStr
	username, password = minioContainer.Username, minioContainer.Password

	bucket = "testbucket"
	region = "us-east-1"

	s3Config := aws.Config{
		Credentials:  credentials.NewStaticCredentialsProvider(username, password, ""),
		BaseEndpoint: aws.String(endpoint),
		Region:       region,
	}
	client := s3.NewFromConfig(s3Config, func(o *s3.Options) { o.UsePathStyle = true })
	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
		log.Fatalf("failed to create bucket: %s", err)
	}

	return endpoint, username, password, bucket, region, func() {
		if err := minioContainer.Terminate(ctx); err != nil {
			log.Fatalf("failed to terminate container: %s", err)
		}
	}
}
