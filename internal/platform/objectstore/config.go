// Package objectstore configures the S3-compatible store that holds
// compiled pipeline descriptors.
package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pipecanvas-labs/pipecanvas-go/internal/platform/env"
)

type Config struct {
	Endpoint          string
	AccessKey         string
	SecretKey         string
	Region            string
	UseSSL            bool
	BucketDescriptors string
}

func ConfigFromEnv() (Config, error) {
	useSSL, err := env.Bool("PIPECANVAS_MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Endpoint:          env.String("PIPECANVAS_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey:         env.String("PIPECANVAS_MINIO_ACCESS_KEY", "pipecanvas"),
		SecretKey:         env.String("PIPECANVAS_MINIO_SECRET_KEY", "pipecanvasminio"),
		Region:            env.String("PIPECANVAS_MINIO_REGION", "us-east-1"),
		UseSSL:            useSSL,
		BucketDescriptors: env.String("PIPECANVAS_MINIO_BUCKET_DESCRIPTORS", "descriptors"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.BucketDescriptors) == "" {
		return errors.New("descriptors bucket is required")
	}
	return nil
}
