package knowledge

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"github.com/example/reviewbot/internal/domain"
	"github.com/example/reviewbot/internal/usecase/pipeline"
)

// AgentRuntimeAPI is the slice of the Bedrock agent runtime client the
// store uses.
type AgentRuntimeAPI interface {
	RetrieveAndGenerate(ctx context.Context, params *bedrockagentruntime.RetrieveAndGenerateInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveAndGenerateOutput, error)
}

// ragQueryLimit bounds how much of the diff goes into the retrieval
// query.
const ragQueryLimit = 1000

// RAGStore queries a Bedrock Knowledge Base with retrieve-and-generate
// and surfaces the generated passage as a single snippet.
type RAGStore struct {
	client          AgentRuntimeAPI
	knowledgeBaseID string
	modelARN        string
	logger          pipeline.Logger
}

// NewRAGStore constructs a store over the given knowledge base.
func NewRAGStore(client AgentRuntimeAPI, knowledgeBaseID, modelARN string, logger pipeline.Logger) *RAGStore {
	return &RAGStore{
		client:          client,
		knowledgeBaseID: knowledgeBaseID,
		modelARN:        modelARN,
		logger:          logger,
	}
}

// DefaultModelARN returns the foundation-model ARN used for generation
// when none is configured.
func DefaultModelARN(region string) string {
	return fmt.Sprintf("arn:aws:bedrock:%s::foundation-model/anthropic.claude-3-sonnet-20240229-v1:0", region)
}

// Snippets asks the knowledge base for context relevant to the diff.
// An empty generated answer yields no snippets.
func (s *RAGStore) Snippets(ctx context.Context, q domain.KnowledgeQuery) ([]domain.Snippet, error) {
	query := q.Diff
	if len(query) > ragQueryLimit {
		query = query[:ragQueryLimit]
	}
	query = "Code review for pull request changes: " + query

	out, err := s.client.RetrieveAndGenerate(ctx, &bedrockagentruntime.RetrieveAndGenerateInput{
		Input: &agenttypes.RetrieveAndGenerateInput{Text: aws.String(query)},
		RetrieveAndGenerateConfiguration: &agenttypes.RetrieveAndGenerateConfiguration{
			Type: agenttypes.RetrieveAndGenerateTypeKnowledgeBase,
			KnowledgeBaseConfiguration: &agenttypes.KnowledgeBaseRetrieveAndGenerateConfiguration{
				KnowledgeBaseId: aws.String(s.knowledgeBaseID),
				ModelArn:        aws.String(s.modelARN),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve and generate against knowledge base %q: %w", s.knowledgeBaseID, err)
	}

	var text string
	if out.Output != nil {
		text = aws.ToString(out.Output.Text)
	}
	if text == "" {
		if s.logger != nil {
			s.logger.LogWarning(ctx, "knowledge base returned no context", map[string]interface{}{
				"knowledgeBase": s.knowledgeBaseID,
			})
		}
		return nil, nil
	}

	if s.logger != nil {
		s.logger.LogInfo(ctx, "knowledge base context retrieved", map[string]interface{}{
			"knowledgeBase": s.knowledgeBaseID,
			"chars":         len(text),
		})
	}
	return []domain.Snippet{{
		Path:    "knowledge-base/" + s.knowledgeBaseID,
		Content: text,
	}}, nil
}
