package mainconfig

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	"github.com/vatosalfa/agenda-messaging/internal/app/bootstrap"
	appconfig "github.com/vatosalfa/agenda-messaging/internal/config"
)

// LoadDotEnv loads .env when present. Real environment variables win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// LoadAWSConfig centralizes AWS SDK initialization so both binaries share the
// same LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}

	if endpoint := cfg.AWSEndpointOverride; endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
				switch service {
				case sqs.ServiceID, dynamodb.ServiceID, s3.ServiceID, sesv2.ServiceID:
					return aws.Endpoint{
						URL:           endpoint,
						PartitionID:   "aws",
						SigningRegion: cfg.AWSRegion,
					}, nil
				default:
					return aws.Endpoint{}, &aws.EndpointNotFoundError{}
				}
			},
		)
	}

	return awsCfg, nil
}

// NewAWSClients builds only the clients the configuration needs.
func NewAWSClients(awsCfg aws.Config, cfg *appconfig.Config) bootstrap.AWSClients {
	var clients bootstrap.AWSClients
	if cfg.StoreBackend == appconfig.StoreBackendDynamo {
		clients.DynamoDB = dynamodb.NewFromConfig(awsCfg)
	}
	if cfg.DispatchMode == appconfig.DispatchQueue && !cfg.UseMemoryQueue {
		clients.SQS = sqs.NewFromConfig(awsCfg)
	}
	if cfg.MediaArchiveBucket != "" {
		pathStyle := cfg.AWSEndpointOverride != ""
		clients.S3 = s3.NewFromConfig(awsCfg, func(o *s3.Options) { o.UsePathStyle = pathStyle })
	}
	if cfg.EmailProvider == "ses" {
		clients.SES = sesv2.NewFromConfig(awsCfg)
	}
	return clients
}

// NeedsAWS reports whether any configured feature talks to AWS.
func NeedsAWS(cfg *appconfig.Config) bool {
	return cfg.StoreBackend == appconfig.StoreBackendDynamo ||
		(cfg.DispatchMode == appconfig.DispatchQueue && !cfg.UseMemoryQueue) ||
		cfg.MediaArchiveBucket != "" ||
		cfg.EmailProvider == "ses"
}
