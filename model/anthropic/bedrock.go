package anthropic

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// DefaultBedrockModel is the Bedrock model identifier used when none is set.
const DefaultBedrockModel = "anthropic.claude-3-5-sonnet-20241022-v2:0"

// NewBedrockModel creates an Anthropic model hosted on AWS Bedrock.
// Credentials come from the default AWS config chain; the region from
// Options.Region when set, otherwise from the environment.
func NewBedrockModel(ctx context.Context, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model: DefaultBedrockModel,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	client := anthropic.NewClient(bedrock.WithLoadDefaultConfig(ctx, loadOpts...))

	return &Model{client: &client, opts: opts, provider: "bedrock"}
}
