// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Config configures the flat object store backend (MinIO or S3).
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	// Bucket pins every path into a single bucket. When empty the first path
	// segment names the bucket.
	Bucket     string
	UseSSL     bool
	PresignTTL time.Duration
}

// deleteBatch is the DeleteObjects per-request key limit.
const deleteBatch = 1000

// S3Backend maps the result hierarchy onto buckets and key prefixes.
// Directories are prefixes; an empty directory is a zero-byte "dir/" marker.
type S3Backend struct {
	client     s3iface.S3API
	bucket     string
	presignTTL time.Duration
	presign    func(bucket, key string, ttl time.Duration) (string, error)
}

// NewS3Backend opens an SDK session for cfg. The SDK's own retries are off;
// the Retrying decorator owns the retry budget.
func NewS3Backend(cfg S3Config) (*S3Backend, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	endpoint := cfg.Endpoint
	if !strings.Contains(endpoint, "://") {
		scheme := "http://"
		if cfg.UseSSL {
			scheme = "https://"
		}
		endpoint = scheme + endpoint
	}

	sess, err := session.NewSession(&aws.Config{
		Endpoint:         aws.String(endpoint),
		Region:           aws.String(region),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
		DisableSSL:       aws.Bool(!cfg.UseSSL),
		MaxRetries:       aws.Int(0),
	})
	if err != nil {
		return nil, fmt.Errorf("s3: session: %w", err)
	}

	return newS3Backend(s3.New(sess), cfg), nil
}

func newS3Backend(client s3iface.S3API, cfg S3Config) *S3Backend {
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	b := &S3Backend{
		client:     client,
		bucket:     Clean(cfg.Bucket),
		presignTTL: ttl,
	}
	b.presign = func(bucket, key string, ttl time.Duration) (string, error) {
		req, _ := b.client.GetObjectRequest(&s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		return req.Presign(ttl)
	}
	return b
}

// locate splits a store path into bucket and key.
func (b *S3Backend) locate(p string) (bucket, key string) {
	p = Clean(p)
	if b.bucket != "" {
		return b.bucket, p
	}
	bucket, key, _ = strings.Cut(p, "/")
	return bucket, key
}

// storePath is the inverse of locate.
func (b *S3Backend) storePath(bucket, key string) string {
	if b.bucket != "" {
		return Clean(key)
	}
	return Join(bucket, key)
}

func dirPrefix(key string) string {
	key = strings.Trim(key, "/")
	if key == "" {
		return ""
	}
	return key + "/"
}

// classifyS3 maps SDK errors onto ErrNotFound and TransientError.
func classifyS3(op, p string, err error) error {
	if err == nil {
		return nil
	}

	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return fmt.Errorf("%s %q: %w", op, p, ErrNotFound)
		case request.CanceledErrorCode:
			return fmt.Errorf("%s %q: %w", op, p, context.Canceled)
		case request.ErrCodeRequestError, request.ErrCodeResponseTimeout, request.ErrCodeRead:
			return transient(op, err)
		}
	}

	var rf awserr.RequestFailure
	if errors.As(err, &rf) {
		switch status := rf.StatusCode(); {
		case status == http.StatusNotFound:
			return fmt.Errorf("%s %q: %w", op, p, ErrNotFound)
		case status >= 500, status == http.StatusTooManyRequests:
			return transient(op, err)
		}
	}

	if IsTransient(err) {
		return transient(op, err)
	}
	return fmt.Errorf("%s %q: %w", op, p, err)
}

// Exists implements Backend.
func (b *S3Backend) Exists(ctx context.Context, p string) (bool, error) {
	bucket, key := b.locate(p)
	if bucket == "" {
		return true, nil
	}

	if key == "" {
		_, err := b.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
		return found(classifyS3("exists", p, err))
	}

	_, err := b.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	ok, err := found(classifyS3("exists", p, err))
	if ok || err != nil {
		return ok, err
	}

	out, err := b.client.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(dirPrefix(key)),
		MaxKeys: aws.Int64(1),
	})
	if err != nil {
		return found(classifyS3("exists", p, err))
	}
	return len(out.Contents) > 0 || len(out.CommonPrefixes) > 0, nil
}

func found(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// List implements Backend. Recursive listings walk the whole prefix and
// synthesise the intermediate directories; otherwise the "/" delimiter is
// used level by level down to Depth.
func (b *S3Backend) List(ctx context.Context, p string, opts ListOptions) ([]Entry, error) {
	bucket, key := b.locate(p)
	if bucket == "" {
		return b.listBuckets(ctx)
	}

	var entries []Entry
	var err error
	if opts.Recursive {
		entries, err = b.listRecursive(ctx, bucket, key)
	} else {
		depth := opts.Depth
		if depth <= 0 {
			depth = 1
		}
		err = b.listLevel(ctx, bucket, key, depth, &entries)
	}
	if err != nil {
		return nil, classifyS3("list", p, err)
	}

	if len(entries) == 0 && key != "" {
		ok, err := b.Exists(ctx, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("list %q: %w", p, ErrNotFound)
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (b *S3Backend) listBuckets(ctx context.Context) ([]Entry, error) {
	out, err := b.client.ListBucketsWithContext(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, classifyS3("list", "/", err)
	}
	entries := make([]Entry, 0, len(out.Buckets))
	for _, bk := range out.Buckets {
		name := aws.StringValue(bk.Name)
		entries = append(entries, Entry{Path: name, Name: name, Type: EntryDir})
	}
	return entries, nil
}

func (b *S3Backend) listLevel(ctx context.Context, bucket, key string, depth int, out *[]Entry) error {
	prefix := dirPrefix(key)
	var dirs []string

	err := b.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, cp := range page.CommonPrefixes {
			dir := strings.TrimSuffix(aws.StringValue(cp.Prefix), "/")
			dirs = append(dirs, dir)
			*out = append(*out, Entry{Path: b.storePath(bucket, dir), Name: baseName(dir), Type: EntryDir})
		}
		for _, obj := range page.Contents {
			k := aws.StringValue(obj.Key)
			if k == prefix || strings.HasSuffix(k, "/") {
				continue
			}
			*out = append(*out, Entry{Path: b.storePath(bucket, k), Name: baseName(k), Type: EntryFile})
		}
		return true
	})
	if err != nil {
		return err
	}

	if depth == 1 {
		return nil
	}
	for _, dir := range dirs {
		if err := b.listLevel(ctx, bucket, dir, depth-1, out); err != nil {
			return err
		}
	}
	return nil
}

func (b *S3Backend) listRecursive(ctx context.Context, bucket, key string) ([]Entry, error) {
	prefix := dirPrefix(key)
	seen := make(map[string]bool)
	var entries []Entry

	addDirs := func(rel string) {
		parts := strings.Split(rel, "/")
		for i := 1; i < len(parts); i++ {
			dir := prefix + strings.Join(parts[:i], "/")
			if !seen[dir] {
				seen[dir] = true
				entries = append(entries, Entry{Path: b.storePath(bucket, dir), Name: parts[i-1], Type: EntryDir})
			}
		}
	}

	keys, err := b.keys(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		rel := strings.TrimPrefix(k, prefix)
		if rel == "" {
			continue
		}
		addDirs(rel)
		if strings.HasSuffix(rel, "/") {
			continue
		}
		entries = append(entries, Entry{Path: b.storePath(bucket, k), Name: baseName(k), Type: EntryFile})
	}
	return entries, nil
}

// keys returns every key under prefix, markers included.
func (b *S3Backend) keys(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	err := b.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, aws.StringValue(obj.Key))
		}
		return true
	})
	return keys, err
}

// Read implements Backend.
func (b *S3Backend) Read(ctx context.Context, p string) ([]byte, error) {
	bucket, key := b.locate(p)
	out, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyS3("read", p, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, transient("read", err)
	}
	return data, nil
}

// Write implements Backend.
func (b *S3Backend) Write(ctx context.Context, p string, data []byte) error {
	bucket, key := b.locate(p)
	if key == "" {
		return fmt.Errorf("write %q: not an object path", p)
	}
	_, err := b.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	return classifyS3("write", p, err)
}

// Mkdir implements Backend. A bucket-level path creates the bucket.
func (b *S3Backend) Mkdir(ctx context.Context, p string) error {
	bucket, key := b.locate(p)
	if bucket == "" {
		return nil
	}

	if key == "" {
		_, err := b.client.CreateBucketWithContext(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
		var aerr awserr.Error
		if errors.As(err, &aerr) && (aerr.Code() == s3.ErrCodeBucketAlreadyOwnedByYou || aerr.Code() == s3.ErrCodeBucketAlreadyExists) {
			return nil
		}
		return classifyS3("mkdir", p, err)
	}

	_, err := b.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(dirPrefix(key)),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	})
	return classifyS3("mkdir", p, err)
}

func copySource(bucket, key string) string {
	return (&url.URL{Path: bucket + "/" + key}).EscapedPath()
}

// Copy implements Backend. A prefix is copied key by key.
func (b *S3Backend) Copy(ctx context.Context, src, dst string) error {
	srcBucket, srcKey := b.locate(src)
	dstBucket, dstKey := b.locate(dst)

	if srcKey != "" {
		_, err := b.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(srcBucket),
			Key:    aws.String(srcKey),
		})
		isObject, err := found(classifyS3("copy", src, err))
		if err != nil {
			return err
		}
		if isObject {
			return b.copyObject(ctx, src, srcBucket, srcKey, dstBucket, dstKey)
		}
	}

	prefix := dirPrefix(srcKey)
	keys, err := b.keys(ctx, srcBucket, prefix)
	if err != nil {
		return classifyS3("copy", src, err)
	}
	if len(keys) == 0 {
		return fmt.Errorf("copy %q: %w", src, ErrNotFound)
	}

	if dstKey == "" && dstBucket != srcBucket {
		if err := b.Mkdir(ctx, dst); err != nil {
			return err
		}
	}
	for _, k := range keys {
		target := dirPrefix(dstKey) + strings.TrimPrefix(k, prefix)
		if err := b.copyObject(ctx, src, srcBucket, k, dstBucket, target); err != nil {
			return err
		}
	}
	return nil
}

func (b *S3Backend) copyObject(ctx context.Context, p, srcBucket, srcKey, dstBucket, dstKey string) error {
	_, err := b.client.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(copySource(srcBucket, srcKey)),
	})
	return classifyS3("copy", p, err)
}

// Delete implements Backend. Deleting a bucket-level path empties and
// removes the bucket.
func (b *S3Backend) Delete(ctx context.Context, p string) error {
	bucket, key := b.locate(p)
	if bucket == "" || (key == "" && b.bucket != "") {
		return fmt.Errorf("delete %q: refusing to delete the store root", p)
	}

	var keys []string
	if key != "" {
		_, err := b.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		isObject, err := found(classifyS3("delete", p, err))
		if err != nil {
			return err
		}
		if isObject {
			keys = append(keys, key)
		}
	}

	if len(keys) == 0 {
		var err error
		keys, err = b.keys(ctx, bucket, dirPrefix(key))
		if err != nil {
			return classifyS3("delete", p, err)
		}
	}
	if len(keys) == 0 && key != "" {
		return fmt.Errorf("delete %q: %w", p, ErrNotFound)
	}

	for start := 0; start < len(keys); start += deleteBatch {
		end := min(start+deleteBatch, len(keys))
		objects := make([]*s3.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			objects = append(objects, &s3.ObjectIdentifier{Key: aws.String(k)})
		}
		_, err := b.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &s3.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return classifyS3("delete", p, err)
		}
	}

	if key == "" && b.bucket == "" {
		_, err := b.client.DeleteBucketWithContext(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)})
		return classifyS3("delete", p, err)
	}
	return nil
}

// ShareLink implements Backend with a presigned GET URL.
func (b *S3Backend) ShareLink(ctx context.Context, p string) (string, error) {
	bucket, key := b.locate(p)
	_, err := b.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", classifyS3("share", p, err)
	}

	link, err := b.presign(bucket, key, b.presignTTL)
	if err != nil {
		return "", fmt.Errorf("share %q: presign: %w", p, err)
	}
	return link, nil
}

// Close implements Backend.
func (b *S3Backend) Close() error {
	return nil
}
