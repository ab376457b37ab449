package assistant

import (
	"context"

	"github.com/n-khatri/paisa/pkg/adapter"
	"github.com/n-khatri/paisa/pkg/model"
	"github.com/n-khatri/paisa/pkg/utils/logging"
)

// How many nearest items the semantic path asks for.
const semanticSearchLimit = 10

// handleFetch answers a data question. Vector search over item embeddings
// runs first; when it finds nothing close enough, or fails, the structured
// path (classify, execute, summarize) takes over. Semantic failures degrade
// rather than surface, the structured path is the answer of record.
func (u *UseCase) handleFetch(ctx context.Context, userID, utterance string) (string, error) {
	if rows := u.semanticSearch(ctx, userID, utterance); len(rows) > 0 {
		return u.summarizeWithModel(ctx, utterance, &queryResult{
			Descriptor: &model.QueryDescriptor{Intent: model.IntentUnknown},
			Rows:       rows,
		})
	}

	desc, err := u.classifyQuery(ctx, utterance)
	if err != nil {
		return "", err
	}

	result, err := u.executeQuery(ctx, userID, desc)
	if err != nil {
		return "", err
	}

	return u.summarize(ctx, utterance, result)
}

// semanticSearch embeds the utterance as a retrieval query and looks up
// nearby item embeddings. Errors are logged and swallowed; the caller falls
// back to the structured path.
func (u *UseCase) semanticSearch(ctx context.Context, userID, utterance string) []*model.ShapedRow {
	vectors, err := u.gemini.Embedding(ctx, []string{utterance}, adapter.TaskRetrievalQuery)
	if err != nil || len(vectors) == 0 {
		logging.From(ctx).Warn("query embedding failed, skipping semantic search", "error", err)
		return nil
	}

	rows, err := u.repo.SearchSimilarItems(ctx, userID, vectors[0], semanticSearchLimit)
	if err != nil {
		logging.From(ctx).Warn("vector search failed, skipping semantic search", "error", err)
		return nil
	}
	return rows
}
