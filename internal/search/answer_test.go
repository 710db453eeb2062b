package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ca-srg/legalrag/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeRetriever struct {
	results []types.SearchResult
	err     error
	calls   int
	mode    types.SearchMode
}

func (f *fakeRetriever) Search(_ context.Context, _ string, mode types.SearchMode, _ int) ([]types.SearchResult, error) {
	f.calls++
	f.mode = mode
	return f.results, f.err
}

func TestAnswerEmptyQueryNeverCallsModel(t *testing.T) {
	retriever := &fakeRetriever{}
	generator := &mockGenerator{}
	answers := NewAnswerGenerator(retriever, generator, nil, 0, discardLogger())

	answer, err := answers.Generate(context.Background(), "", types.SearchModeSemantic, 5, nil)

	require.NoError(t, err)
	assert.Equal(t, NoInformationAnswer, answer.Text)
	assert.Empty(t, answer.Sources)
	assert.Zero(t, retriever.calls)
	generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestAnswerNoResultsNeverCallsModel(t *testing.T) {
	retriever := &fakeRetriever{results: []types.SearchResult{}}
	generator := &mockGenerator{}
	answers := NewAnswerGenerator(retriever, generator, nil, 0, discardLogger())

	answer, err := answers.Generate(context.Background(), "thuế thu nhập", types.SearchModeKeyword, 5, nil)

	require.NoError(t, err)
	assert.Equal(t, NoInformationAnswer, answer.Text)
	assert.Equal(t, 1, retriever.calls)
	generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestAnswerGroundsPromptInSources(t *testing.T) {
	results := []types.SearchResult{
		{SourceName: "Luật BHXH 2014", Title: "Điều 54", Body: "Điều kiện hưởng lương hưu", Score: 0.9, Origin: types.OriginSemantic},
	}
	retriever := &fakeRetriever{results: results}
	generator := &mockGenerator{}
	generator.On("Generate", mock.Anything, mock.MatchedBy(func(messages []types.ChatMessage) bool {
		return len(messages) == 2 &&
			messages[0].Role == types.RoleSystem &&
			strings.Contains(messages[1].Content, "[1] Điều 54\nVăn bản: Luật BHXH 2014") &&
			strings.Contains(messages[1].Content, "Câu hỏi: Điều kiện hưởng lương hưu?")
	})).Return("Theo Điều 54 Luật BHXH 2014, người lao động...", nil).Once()

	answers := NewAnswerGenerator(retriever, generator, nil, 0, discardLogger())
	answer, err := answers.Generate(context.Background(), "Điều kiện hưởng lương hưu?", types.SearchModeSemantic, 5, nil)

	require.NoError(t, err)
	assert.Equal(t, "Theo Điều 54 Luật BHXH 2014, người lao động...", answer.Text)
	assert.Equal(t, results, answer.Sources)
	assert.Equal(t, types.SearchModeSemantic, answer.Mode)
	assert.Equal(t, "Điều kiện hưởng lương hưu?", answer.Query)
	generator.AssertExpectations(t)
}

func TestAnswerGenerationFailureFallsBack(t *testing.T) {
	retriever := &fakeRetriever{results: []types.SearchResult{{SourceName: "S", Title: "T", Body: "B", Origin: types.OriginLexical}}}
	generator := &mockGenerator{}
	generator.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("model unavailable")).Once()

	answers := NewAnswerGenerator(retriever, generator, nil, 0, discardLogger())
	answer, err := answers.Generate(context.Background(), "q", types.SearchModeKeyword, 5, nil)

	require.NoError(t, err)
	assert.Equal(t, GenerationFailedAnswer, answer.Text)
	assert.Len(t, answer.Sources, 1)
	generator.AssertExpectations(t)
}

func TestAnswerGenerationTimeout(t *testing.T) {
	retriever := &fakeRetriever{results: []types.SearchResult{{SourceName: "S", Title: "T", Body: "B"}}}
	generator := &mockGenerator{}
	generator.On("Generate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", context.DeadlineExceeded).Once()

	answers := NewAnswerGenerator(retriever, generator, nil, 20*time.Millisecond, discardLogger())
	answer, err := answers.Generate(context.Background(), "q", types.SearchModeHybrid, 5, nil)

	require.NoError(t, err)
	assert.Equal(t, GenerationFailedAnswer, answer.Text)
}

func TestAnswerFillsMissingOrigin(t *testing.T) {
	generator := &mockGenerator{}
	generator.On("Generate", mock.Anything, mock.Anything).Return("ok", nil)

	answers := NewAnswerGenerator(&fakeRetriever{}, generator, nil, 0, discardLogger())
	answer, err := answers.Generate(context.Background(), "q", types.SearchModeHybrid, 5, []types.SearchResult{
		{SourceName: "S", Title: "T"},
		{SourceName: "S", Title: "U", Origin: types.OriginLexical},
	})

	require.NoError(t, err)
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, types.OriginHybrid, answer.Sources[0].Origin)
	assert.Equal(t, types.OriginLexical, answer.Sources[1].Origin)
}

func TestAnswerRejectsInvalidMode(t *testing.T) {
	generator := &mockGenerator{}
	answers := NewAnswerGenerator(&fakeRetriever{}, generator, nil, 0, discardLogger())

	_, err := answers.Generate(context.Background(), "q", types.SearchMode("fuzzy"), 5, nil)

	assert.ErrorIs(t, err, types.ErrInvalidMode)
	generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestAnswerPropagatesRetrievalError(t *testing.T) {
	answers := NewAnswerGenerator(&fakeRetriever{err: types.ErrInvalidMode}, &mockGenerator{}, nil, 0, discardLogger())

	_, err := answers.Generate(context.Background(), "q", types.SearchModeKeyword, 5, nil)
	assert.ErrorIs(t, err, types.ErrInvalidMode)
}
