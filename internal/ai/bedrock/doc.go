// Package bedrock is the AWS Bedrock provider. It is compiled only with the
// "bedrock" build tag; without it the selector falls back to OpenAI.
package bedrock
