package main

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/docdb/blobstore"
	"github.com/hupe1980/docdb/blobstore/dynamo"
	"github.com/hupe1980/docdb/blobstore/httpstore"
	"github.com/hupe1980/docdb/blobstore/minio"
	"github.com/hupe1980/docdb/blobstore/s3"
)

// location is a parsed store location.
type location struct {
	scheme string // "", "s3", "minio", "dynamodb", "http", "https"
	host   string // bucket, table or host
	path   string // key prefix or local directory
	raw    string
}

func parseLocation(loc string) (location, error) {
	if loc == "" {
		return location{}, fmt.Errorf("empty location")
	}
	if !strings.Contains(loc, "://") {
		return location{path: loc, raw: loc}, nil
	}

	u, err := url.Parse(loc)
	if err != nil {
		return location{}, fmt.Errorf("invalid location %q: %w", loc, err)
	}
	switch u.Scheme {
	case "s3", "minio", "dynamodb", "http", "https":
	case "file":
		return location{path: u.Path, raw: loc}, nil
	default:
		return location{}, fmt.Errorf("unsupported location scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return location{}, fmt.Errorf("location %q has no bucket or host", loc)
	}
	return location{
		scheme: u.Scheme,
		host:   u.Host,
		path:   strings.TrimPrefix(u.Path, "/"),
		raw:    loc,
	}, nil
}

// splitBlob splits a blob location into the location of its parent and the
// blob name.
func splitBlob(loc string) (string, string, error) {
	l, err := parseLocation(loc)
	if err != nil {
		return "", "", err
	}

	if l.scheme == "" {
		return filepath.Dir(l.path), filepath.Base(l.path), nil
	}

	dir, name := path.Split(l.path)
	if name == "" {
		return "", "", fmt.Errorf("location %q does not name a blob", loc)
	}
	parent := l.scheme + "://" + l.host + "/" + dir
	if l.scheme == "http" || l.scheme == "https" {
		u, _ := url.Parse(loc)
		u.Path = "/" + dir
		u.RawQuery = ""
		parent = u.String()
	}
	return parent, name, nil
}

// openStore opens the store rooted at loc.
func openStore(ctx context.Context, cfg *Config, loc string) (blobstore.Store, error) {
	l, err := parseLocation(loc)
	if err != nil {
		return nil, err
	}

	switch l.scheme {
	case "":
		return blobstore.NewLocalStore(l.path), nil
	case "http", "https":
		return httpstore.New(l.raw)
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return s3.NewStore(awss3.NewFromConfig(awsCfg), l.host, l.path,
			s3.WithParallelDownload(8*1024*1024, 4)), nil
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return dynamo.NewStore(dynamodb.NewFromConfig(awsCfg), l.host), nil
	case "minio":
		client, err := miniogo.New(cfg.MinIO.Endpoint, &miniogo.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create MinIO client: %w", err)
		}
		return minio.NewStore(client, l.host, l.path), nil
	}
	return nil, fmt.Errorf("unsupported location %q", loc)
}

// openBlob opens the store holding the blob at loc and returns the blob name.
func openBlob(ctx context.Context, cfg *Config, loc string) (blobstore.Store, string, error) {
	parent, name, err := splitBlob(loc)
	if err != nil {
		return nil, "", err
	}
	store, err := openStore(ctx, cfg, parent)
	if err != nil {
		return nil, "", err
	}
	return store, name, nil
}

// openWritableBlob is openBlob for stores that accept writes.
func openWritableBlob(ctx context.Context, cfg *Config, loc string) (blobstore.WritableStore, string, error) {
	store, name, err := openBlob(ctx, cfg, loc)
	if err != nil {
		return nil, "", err
	}
	ws, ok := store.(blobstore.WritableStore)
	if !ok {
		return nil, "", fmt.Errorf("location %q is read-only", loc)
	}
	return ws, name, nil
}
