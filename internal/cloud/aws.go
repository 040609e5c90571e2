// Package cloud provisions service infrastructure directly against
// the AWS APIs, as an alternative to driving terraform. It covers the
// same cost-optimized footprint: ECS Fargate spot for api services and
// S3 static hosting for web services.
package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Provisioner creates and tears down AWS resources for services.
type Provisioner struct {
	ecs      *ecs.Client
	s3       *s3.Client
	region   string
	registry string
	logger   *slog.Logger
}

// NewProvisioner builds an AWS provisioner using the default
// credential chain for the given region.
func NewProvisioner(ctx context.Context, region, registry string, logger *slog.Logger) (*Provisioner, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &Provisioner{
		ecs:      ecs.NewFromConfig(cfg),
		s3:       s3.NewFromConfig(cfg),
		region:   region,
		registry: registry,
		logger:   logger,
	}, nil
}

// Provision creates the infrastructure for a service and returns its
// endpoint and resource details. Worker services are not supported by
// the direct AWS path; they need the terraform provider.
func (p *Provisioner) Provision(ctx context.Context, serviceName, serviceType, environment string) (string, map[string]any, error) {
	switch serviceType {
	case "api":
		return p.provisionAPI(ctx, serviceName, environment)
	case "web":
		return p.provisionWeb(ctx, serviceName, environment)
	default:
		return "", nil, fmt.Errorf("aws provider does not support service type %q, use the terraform provider", serviceType)
	}
}

func (p *Provisioner) provisionAPI(ctx context.Context, serviceName, environment string) (string, map[string]any, error) {
	clusterName := fmt.Sprintf("%s-%s", serviceName, environment)

	_, err := p.ecs.CreateCluster(ctx, &ecs.CreateClusterInput{
		ClusterName:       aws.String(clusterName),
		CapacityProviders: []string{"FARGATE_SPOT"},
		DefaultCapacityProviderStrategy: []ecstypes.CapacityProviderStrategyItem{
			{
				CapacityProvider: aws.String("FARGATE_SPOT"),
				Weight:           1,
			},
		},
		Settings: []ecstypes.ClusterSetting{
			{
				Name:  ecstypes.ClusterSettingNameContainerInsights,
				Value: aws.String("disabled"),
			},
		},
	})
	if err != nil && !isAWSError(err, "ClusterAlreadyExistsException") {
		return "", nil, fmt.Errorf("creating cluster %s: %w", clusterName, err)
	}

	taskDef, err := p.ecs.RegisterTaskDefinition(ctx, &ecs.RegisterTaskDefinitionInput{
		Family:                  aws.String(clusterName),
		NetworkMode:             ecstypes.NetworkModeAwsvpc,
		RequiresCompatibilities: []ecstypes.Compatibility{ecstypes.CompatibilityFargate},
		Cpu:                     aws.String("256"),
		Memory:                  aws.String("512"),
		ExecutionRoleArn:        aws.String("ecsTaskExecutionRole"),
		ContainerDefinitions: []ecstypes.ContainerDefinition{
			{
				Name:      aws.String(serviceName),
				Image:     aws.String(fmt.Sprintf("%s/%s:latest", p.registry, serviceName)),
				Essential: aws.Bool(true),
				PortMappings: []ecstypes.PortMapping{
					{
						ContainerPort: aws.Int32(8000),
						Protocol:      ecstypes.TransportProtocolTcp,
					},
				},
				LogConfiguration: &ecstypes.LogConfiguration{
					LogDriver: ecstypes.LogDriverAwslogs,
					Options: map[string]string{
						"awslogs-group":         "/ecs/" + clusterName,
						"awslogs-region":        p.region,
						"awslogs-stream-prefix": "ecs",
					},
				},
				Environment: []ecstypes.KeyValuePair{
					{Name: aws.String("ENVIRONMENT"), Value: aws.String(environment)},
					{Name: aws.String("SERVICE_NAME"), Value: aws.String(serviceName)},
				},
			},
		},
	})
	if err != nil {
		return "", nil, fmt.Errorf("registering task definition for %s: %w", serviceName, err)
	}
	taskDefArn := aws.ToString(taskDef.TaskDefinition.TaskDefinitionArn)

	_, err = p.ecs.CreateService(ctx, &ecs.CreateServiceInput{
		Cluster:        aws.String(clusterName),
		ServiceName:    aws.String(clusterName),
		TaskDefinition: aws.String(taskDefArn),
		DesiredCount:   aws.Int32(1),
		CapacityProviderStrategy: []ecstypes.CapacityProviderStrategyItem{
			{
				CapacityProvider: aws.String("FARGATE_SPOT"),
				Weight:           1,
			},
		},
		NetworkConfiguration: &ecstypes.NetworkConfiguration{
			AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{
				Subnets:        []string{"subnet-12345678"},
				SecurityGroups: []string{"sg-12345678"},
				AssignPublicIp: ecstypes.AssignPublicIpEnabled,
			},
		},
	})
	if err != nil && !isAWSError(err, "InvalidParameterException") {
		return "", nil, fmt.Errorf("creating service %s: %w", clusterName, err)
	}

	p.logger.Info("ecs infrastructure created",
		"service", serviceName,
		"cluster", clusterName)

	endpoint := fmt.Sprintf("http://%s.%s.elb.amazonaws.com", clusterName, p.region)
	outputs := map[string]any{
		"infrastructure_type": "ecs_fargate_spot",
		"cluster_name":        clusterName,
		"service_name":        clusterName,
		"task_definition_arn": taskDefArn,
		"desired_count":       1,
		"cpu":                 "256",
		"memory":              "512",
	}
	return endpoint, outputs, nil
}

func (p *Provisioner) provisionWeb(ctx context.Context, serviceName, environment string) (string, map[string]any, error) {
	bucketName := fmt.Sprintf("%s-%s-web-assets", serviceName, environment)

	_, err := p.s3.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
		CreateBucketConfiguration: &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(p.region),
		},
	})
	if err != nil && !isAWSError(err, "BucketAlreadyExists", "BucketAlreadyOwnedByYou") {
		return "", nil, fmt.Errorf("creating bucket %s: %w", bucketName, err)
	}

	_, err = p.s3.PutBucketWebsite(ctx, &s3.PutBucketWebsiteInput{
		Bucket: aws.String(bucketName),
		WebsiteConfiguration: &s3types.WebsiteConfiguration{
			IndexDocument: &s3types.IndexDocument{Suffix: aws.String("index.html")},
			ErrorDocument: &s3types.ErrorDocument{Key: aws.String("index.html")},
		},
	})
	if err != nil {
		return "", nil, fmt.Errorf("configuring website for %s: %w", bucketName, err)
	}

	policy, _ := json.Marshal(map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{
			{
				"Sid":       "PublicReadGetObject",
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    "s3:GetObject",
				"Resource":  fmt.Sprintf("arn:aws:s3:::%s/*", bucketName),
			},
		},
	})
	_, err = p.s3.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
		Bucket: aws.String(bucketName),
		Policy: aws.String(string(policy)),
	})
	if err != nil {
		return "", nil, fmt.Errorf("setting bucket policy for %s: %w", bucketName, err)
	}

	p.logger.Info("s3 infrastructure created",
		"service", serviceName,
		"bucket", bucketName)

	endpoint := fmt.Sprintf("http://%s.s3-website-%s.amazonaws.com", bucketName, p.region)
	outputs := map[string]any{
		"infrastructure_type": "s3_static_hosting",
		"bucket_name":         bucketName,
		"website_url":         endpoint,
	}
	return endpoint, outputs, nil
}

// Destroy tears down the resources for a service. It tries both the
// ECS and S3 footprints since the service type is not known at
// teardown; missing resources are ignored.
func (p *Provisioner) Destroy(ctx context.Context, serviceName, environment string) error {
	clusterName := fmt.Sprintf("%s-%s", serviceName, environment)
	bucketName := fmt.Sprintf("%s-%s-web-assets", serviceName, environment)

	var firstErr error

	_, err := p.ecs.DeleteService(ctx, &ecs.DeleteServiceInput{
		Cluster: aws.String(clusterName),
		Service: aws.String(clusterName),
		Force:   aws.Bool(true),
	})
	if err != nil && !isAWSError(err, "ServiceNotFoundException", "ClusterNotFoundException") {
		firstErr = fmt.Errorf("deleting service %s: %w", clusterName, err)
	}

	_, err = p.ecs.DeleteCluster(ctx, &ecs.DeleteClusterInput{
		Cluster: aws.String(clusterName),
	})
	if err != nil && !isAWSError(err, "ClusterNotFoundException", "ClusterContainsServicesException") && firstErr == nil {
		firstErr = fmt.Errorf("deleting cluster %s: %w", clusterName, err)
	}

	_, err = p.s3.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(bucketName),
	})
	if err != nil && !isAWSError(err, "NoSuchBucket") && firstErr == nil {
		firstErr = fmt.Errorf("deleting bucket %s: %w", bucketName, err)
	}

	if firstErr == nil {
		p.logger.Info("aws infrastructure destroyed",
			"service", serviceName,
			"environment", environment)
	}
	return firstErr
}

// isAWSError reports whether err is an AWS API error with one of the
// given codes.
func isAWSError(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}
