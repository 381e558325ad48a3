// Package s3 implements the object store against Amazon S3. The logical
// container name used by the deployer maps onto a single configured
// bucket; static-website hosting, CORS, and retention are stored as the
// bucket's website, CORS, and lifecycle configurations.
package s3

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"

	"siteup/pkg/sdk/site"
)

// retentionRuleID names the lifecycle rule the store owns. Other lifecycle
// rules on the bucket are not touched.
const retentionRuleID = "siteup-retention"

// api is the slice of the S3 client the store uses.
type api interface {
	GetBucketWebsiteWithContext(ctx aws.Context, in *awss3.GetBucketWebsiteInput, opts ...request.Option) (*awss3.GetBucketWebsiteOutput, error)
	PutBucketWebsiteWithContext(ctx aws.Context, in *awss3.PutBucketWebsiteInput, opts ...request.Option) (*awss3.PutBucketWebsiteOutput, error)
	DeleteBucketWebsiteWithContext(ctx aws.Context, in *awss3.DeleteBucketWebsiteInput, opts ...request.Option) (*awss3.DeleteBucketWebsiteOutput, error)
	GetBucketCorsWithContext(ctx aws.Context, in *awss3.GetBucketCorsInput, opts ...request.Option) (*awss3.GetBucketCorsOutput, error)
	PutBucketCorsWithContext(ctx aws.Context, in *awss3.PutBucketCorsInput, opts ...request.Option) (*awss3.PutBucketCorsOutput, error)
	GetBucketLifecycleConfigurationWithContext(ctx aws.Context, in *awss3.GetBucketLifecycleConfigurationInput, opts ...request.Option) (*awss3.GetBucketLifecycleConfigurationOutput, error)
	PutBucketLifecycleConfigurationWithContext(ctx aws.Context, in *awss3.PutBucketLifecycleConfigurationInput, opts ...request.Option) (*awss3.PutBucketLifecycleConfigurationOutput, error)
	CreateBucketWithContext(ctx aws.Context, in *awss3.CreateBucketInput, opts ...request.Option) (*awss3.CreateBucketOutput, error)
	PutObjectWithContext(ctx aws.Context, in *awss3.PutObjectInput, opts ...request.Option) (*awss3.PutObjectOutput, error)
}

// Store is a site.ObjectStore backed by one S3 bucket.
type Store struct {
	client api
	bucket string
}

func New(sess *session.Session, bucket string) *Store {
	return &Store{client: awss3.New(sess), bucket: bucket}
}

func (s *Store) ServiceProperties(ctx context.Context) (site.ServiceProperties, error) {
	var props site.ServiceProperties

	web, err := s.client.GetBucketWebsiteWithContext(ctx, &awss3.GetBucketWebsiteInput{
		Bucket: aws.String(s.bucket),
	})
	switch {
	case err == nil:
		props.StaticWebsite.Enabled = true
		if web.IndexDocument != nil {
			props.StaticWebsite.IndexDocument = aws.StringValue(web.IndexDocument.Suffix)
		}
		if web.ErrorDocument != nil {
			props.StaticWebsite.ErrorDocument = aws.StringValue(web.ErrorDocument.Key)
		}
	case isErrCode(err, "NoSuchWebsiteConfiguration"):
		// Hosting disabled.
	default:
		return site.ServiceProperties{}, fmt.Errorf("get bucket website: %w", err)
	}

	cors, err := s.client.GetBucketCorsWithContext(ctx, &awss3.GetBucketCorsInput{
		Bucket: aws.String(s.bucket),
	})
	switch {
	case err == nil:
		for _, rule := range cors.CORSRules {
			props.CORS = append(props.CORS, site.CORSRule{
				AllowedOrigins: aws.StringValueSlice(rule.AllowedOrigins),
				AllowedMethods: aws.StringValueSlice(rule.AllowedMethods),
				AllowedHeaders: aws.StringValueSlice(rule.AllowedHeaders),
				MaxAgeSeconds:  int(aws.Int64Value(rule.MaxAgeSeconds)),
			})
		}
	case isErrCode(err, "NoSuchCORSConfiguration"):
	default:
		return site.ServiceProperties{}, fmt.Errorf("get bucket cors: %w", err)
	}

	lc, err := s.client.GetBucketLifecycleConfigurationWithContext(ctx, &awss3.GetBucketLifecycleConfigurationInput{
		Bucket: aws.String(s.bucket),
	})
	switch {
	case err == nil:
		for _, rule := range lc.Rules {
			if aws.StringValue(rule.ID) != retentionRuleID || rule.Expiration == nil {
				continue
			}
			props.Retention = &site.RetentionPolicy{
				Enabled: aws.StringValue(rule.Status) == awss3.ExpirationStatusEnabled,
				Days:    int(aws.Int64Value(rule.Expiration.Days)),
			}
		}
	case isErrCode(err, "NoSuchLifecycleConfiguration"):
	default:
		return site.ServiceProperties{}, fmt.Errorf("get bucket lifecycle: %w", err)
	}

	return props, nil
}

func (s *Store) SetServiceProperties(ctx context.Context, props site.ServiceProperties) error {
	if err := s.setWebsite(ctx, props.StaticWebsite); err != nil {
		return err
	}
	if err := s.setCORS(ctx, props.CORS); err != nil {
		return err
	}
	return s.setRetention(ctx, props.Retention)
}

func (s *Store) setWebsite(ctx context.Context, web site.StaticWebsite) error {
	if !web.Enabled {
		_, err := s.client.DeleteBucketWebsiteWithContext(ctx, &awss3.DeleteBucketWebsiteInput{
			Bucket: aws.String(s.bucket),
		})
		if err != nil {
			return fmt.Errorf("delete bucket website: %w", err)
		}
		return nil
	}

	cfg := &awss3.WebsiteConfiguration{
		IndexDocument: &awss3.IndexDocument{Suffix: aws.String(web.IndexDocument)},
	}
	if web.ErrorDocument != "" {
		cfg.ErrorDocument = &awss3.ErrorDocument{Key: aws.String(web.ErrorDocument)}
	}
	_, err := s.client.PutBucketWebsiteWithContext(ctx, &awss3.PutBucketWebsiteInput{
		Bucket:               aws.String(s.bucket),
		WebsiteConfiguration: cfg,
	})
	if err != nil {
		return fmt.Errorf("put bucket website: %w", err)
	}
	return nil
}

func (s *Store) setCORS(ctx context.Context, rules []site.CORSRule) error {
	if len(rules) == 0 {
		return nil
	}

	out := make([]*awss3.CORSRule, 0, len(rules))
	for _, rule := range rules {
		out = append(out, &awss3.CORSRule{
			AllowedOrigins: aws.StringSlice(rule.AllowedOrigins),
			AllowedMethods: aws.StringSlice(rule.AllowedMethods),
			AllowedHeaders: aws.StringSlice(rule.AllowedHeaders),
			MaxAgeSeconds:  aws.Int64(int64(rule.MaxAgeSeconds)),
		})
	}
	_, err := s.client.PutBucketCorsWithContext(ctx, &awss3.PutBucketCorsInput{
		Bucket:            aws.String(s.bucket),
		CORSConfiguration: &awss3.CORSConfiguration{CORSRules: out},
	})
	if err != nil {
		return fmt.Errorf("put bucket cors: %w", err)
	}
	return nil
}

func (s *Store) setRetention(ctx context.Context, policy *site.RetentionPolicy) error {
	if policy == nil {
		return nil
	}

	status := awss3.ExpirationStatusDisabled
	if policy.Enabled {
		status = awss3.ExpirationStatusEnabled
	}
	_, err := s.client.PutBucketLifecycleConfigurationWithContext(ctx, &awss3.PutBucketLifecycleConfigurationInput{
		Bucket: aws.String(s.bucket),
		LifecycleConfiguration: &awss3.BucketLifecycleConfiguration{
			Rules: []*awss3.LifecycleRule{{
				ID:         aws.String(retentionRuleID),
				Status:     aws.String(status),
				Filter:     &awss3.LifecycleRuleFilter{Prefix: aws.String("")},
				Expiration: &awss3.LifecycleExpiration{Days: aws.Int64(int64(policy.Days))},
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("put bucket lifecycle: %w", err)
	}
	return nil
}

// EnsureContainer creates the backing bucket. The logical container name
// is not a valid bucket name, so the configured bucket is used instead.
func (s *Store) EnsureContainer(ctx context.Context, name string) error {
	_, err := s.client.CreateBucketWithContext(ctx, &awss3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		if isErrCode(err, awss3.ErrCodeBucketAlreadyOwnedByYou) || isErrCode(err, awss3.ErrCodeBucketAlreadyExists) {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *Store) Upload(ctx context.Context, container, blobName, filePath, contentType string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	_, err = s.client.PutObjectWithContext(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(blobName),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", blobName, err)
	}
	return nil
}

func isErrCode(err error, code string) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == code
}
