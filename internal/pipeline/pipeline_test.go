package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/paaexplorer/internal/cluster"
	"github.com/hyperjump/paaexplorer/internal/embedding"
	"github.com/hyperjump/paaexplorer/internal/models"
	"github.com/hyperjump/paaexplorer/internal/retriever"
)

// topicEmbedder places texts mentioning coffee near (1,0) and everything else near (0,1).
type topicEmbedder struct {
	err   error
	short int
}

func (e *topicEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil || len(vecs) == 0 {
		return nil, err
	}
	return vecs[0], nil
}

func (e *topicEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, 0, len(texts))
	for i, t := range texts {
		jitter := float32(i%5) * 0.01
		if strings.Contains(strings.ToLower(t), "coffee") {
			out = append(out, []float32{1 - jitter, jitter})
		} else {
			out = append(out, []float32{jitter, 1 - jitter})
		}
	}
	return out[:len(out)-min(e.short, len(out))], nil
}

func (e *topicEmbedder) Dimensions() int { return 2 }
func (e *topicEmbedder) Close() error    { return nil }

var _ embedding.Embedder = (*topicEmbedder)(nil)

func fiveEach() *retriever.StaticRetriever {
	return retriever.NewStaticRetriever(map[string][]string{
		"coffee": {
			"How strong is espresso coffee?",
			"Is coffee bad for your health?",
			"What coffee beans are the best?",
			"How much coffee per day is safe?",
			"Why does coffee make me sleepy?",
		},
		"tea": {
			"Is green tea good for weight loss?",
			"How long should tea steep?",
			"What tea has the most caffeine?",
			"Can tea go bad over time?",
			"Which tea helps you sleep better?",
		},
	})
}

func request(topics ...string) models.JobRequest {
	req := models.JobRequest{Topics: topics, Algorithm: "kmeans", ItemsPerTopic: 5}
	if err := req.Validate(); err != nil {
		panic(err)
	}
	return req
}

type progressLog struct {
	mu     sync.Mutex
	values []float64
}

func (p *progressLog) record(v float64, _ string) {
	p.mu.Lock()
	p.values = append(p.values, v)
	p.mu.Unlock()
}

func TestAnalyze_TwoTopicsTwoClusters(t *testing.T) {
	a := NewAnalyzer(fiveEach(), &topicEmbedder{}, cluster.NewEngine())
	var p progressLog

	res, err := a.Analyze(context.Background(), request("coffee", "tea"), "job-1", p.record)
	require.NoError(t, err)

	require.Len(t, res.Items, 10)
	require.Len(t, res.Clusters, 2)
	assert.Equal(t, res.Clusters[0].Quality, res.Clusters[1].Quality)
	assert.Equal(t, 10, res.Clusters[0].Size+res.Clusters[1].Size)
	for _, c := range res.Clusters {
		for _, m := range c.Members {
			assert.Equal(t, c.Members[0].Topic, m.Topic)
		}
	}

	assert.Equal(t, "job-1", res.JobID)
	assert.Equal(t, []string{"coffee", "tea"}, res.Topics)
	assert.Equal(t, models.DefaultLocale, res.Locale)
	assert.Equal(t, []float64{ProgressRetrieved, ProgressEmbedded, ProgressClustered}, p.values)

	assert.Equal(t, 10, res.Stats[models.StatTotalItems])
	assert.Equal(t, 2, res.Stats[models.StatTotalClusters])
	assert.Equal(t, 5.0, res.Stats[models.StatAverageSize])
	assert.Equal(t, 1.0, res.Stats[models.StatSuccessRate])
	assert.Equal(t, 2, res.Stats[models.StatTopicsProcessed])
	assert.Equal(t, "kmeans", res.Stats[models.StatAlgorithm])
	assert.InDelta(t, res.Clusters[0].Quality, res.Stats[models.StatQuality], 1e-9)
	assert.True(t, strings.HasSuffix(res.Stats[models.StatProcessingTime].(string), "s"))
}

func TestAnalyze_PositionsAreConsecutiveAfterFiltering(t *testing.T) {
	r := retriever.NewStaticRetriever(map[string][]string{
		"coffee": {
			"short",
			"<b>Is   coffee</b>\n good for you?",
			strings.Repeat("x", 250),
			"Does coffee &amp; milk taste better?",
		},
	})
	a := NewAnalyzer(r, &topicEmbedder{}, cluster.NewEngine())

	res, err := a.Analyze(context.Background(), request("coffee"), "job", nil)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "Is coffee good for you?", res.Items[0].Text)
	assert.Equal(t, 1, res.Items[0].Position)
	assert.Equal(t, "Does coffee & milk taste better?", res.Items[1].Text)
	assert.Equal(t, 2, res.Items[1].Position)
	assert.Equal(t, "coffee", res.Items[1].Topic)
}

func TestAnalyze_TopicWithoutItemsIsNotFatal(t *testing.T) {
	a := NewAnalyzer(fiveEach(), &topicEmbedder{}, cluster.NewEngine())
	res, err := a.Analyze(context.Background(), request("coffee", "nothing here"), "job", nil)
	require.NoError(t, err)
	assert.Len(t, res.Items, 5)
	assert.Equal(t, 0.5, res.Stats[models.StatSuccessRate])
}

func TestAnalyze_EmptyResult(t *testing.T) {
	a := NewAnalyzer(fiveEach(), &topicEmbedder{}, cluster.NewEngine())
	_, err := a.Analyze(context.Background(), request("unknown"), "job", nil)
	require.ErrorIs(t, err, ErrEmptyResult)
}

func TestAnalyze_RetrieverErrorOnEveryTopicLeavesNothing(t *testing.T) {
	boom := errors.New("browser crashed")
	a := NewAnalyzer(fiveEach().FailWith(boom), &topicEmbedder{}, cluster.NewEngine())
	_, err := a.Analyze(context.Background(), request("coffee", "tea"), "job", nil)
	require.ErrorIs(t, err, ErrEmptyResult)
}

func TestAnalyze_RetrieverErrorSkipsOnlyThatTopic(t *testing.T) {
	r := fiveEach().FailTopic("coffee", errors.New("navigate: net::ERR_CONNECTION_RESET"))
	a := NewAnalyzer(r, &topicEmbedder{}, cluster.NewEngine())
	res, err := a.Analyze(context.Background(), request("coffee", "tea"), "job", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"coffee", "tea"}, r.Calls())
	require.Len(t, res.Items, 5)
	for i, it := range res.Items {
		assert.Equal(t, "tea", it.Topic)
		assert.Equal(t, i+1, it.Position)
	}
	assert.NotEmpty(t, res.Clusters)
	assert.Equal(t, 0.5, res.Stats[models.StatSuccessRate])
}

func TestAnalyze_RetrieverCancelledIsFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &cancellingRetriever{cancel: cancel}
	a := NewAnalyzer(r, &topicEmbedder{}, cluster.NewEngine())
	_, err := a.Analyze(ctx, request("coffee", "tea"), "job", nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, r.calls)
}

// cancellingRetriever cancels the job's context from inside the first call.
type cancellingRetriever struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancellingRetriever) Retrieve(ctx context.Context, _, _ string, _ int) ([]string, error) {
	c.calls++
	c.cancel()
	return nil, ctx.Err()
}

func TestAnalyze_EmbeddingError(t *testing.T) {
	a := NewAnalyzer(fiveEach(), &topicEmbedder{err: errors.New("401")}, cluster.NewEngine())
	_, err := a.Analyze(context.Background(), request("coffee"), "job", nil)
	require.ErrorIs(t, err, ErrEmbeddingProvider)
}

func TestAnalyze_ShortEmbeddingBatchLeavesItemsUnclustered(t *testing.T) {
	a := NewAnalyzer(fiveEach(), &topicEmbedder{short: 2}, cluster.NewEngine())
	res, err := a.Analyze(context.Background(), request("coffee", "tea"), "job", nil)
	require.NoError(t, err)
	require.Len(t, res.Items, 10)

	clustered := 0
	for _, c := range res.Clusters {
		clustered += c.Size
	}
	assert.Equal(t, 8, clustered)
	for _, it := range res.Items[8:] {
		assert.False(t, it.HasEmbedding())
		assert.False(t, it.Clustered())
		assert.Equal(t, models.UnclusteredLabel, it.DisplayLabel())
	}
}

func TestAnalyze_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := NewAnalyzer(fiveEach(), &topicEmbedder{}, cluster.NewEngine())
	_, err := a.Analyze(ctx, request("coffee"), "job", nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestAnalyze_DensityWithDemoData(t *testing.T) {
	a := NewAnalyzer(retriever.NewDemoRetriever(), embedding.NewMockEmbedder(16), cluster.NewEngine())
	req := request("seo tools", "running shoes")
	req.Algorithm = "dbscan"

	res, err := a.Analyze(context.Background(), req, "job", nil)
	require.NoError(t, err)
	assert.Len(t, res.Items, 10)
	assert.Equal(t, "dbscan", res.Stats[models.StatAlgorithm])
}

func TestStats_NoClusters(t *testing.T) {
	r := &models.AnalysisResult{
		Topics:    []string{"a", "b"},
		Items:     []*models.Item{{Text: "one"}, {Text: "two"}, {Text: "three"}},
		Algorithm: "dbscan",
	}
	s := Stats(r, 1, 1500*time.Millisecond)
	assert.Equal(t, 0.0, s[models.StatAverageSize])
	assert.Equal(t, 0.0, s[models.StatQuality])
	assert.Equal(t, 1.5, s[models.StatSuccessRate])
	assert.Equal(t, "1.5s", s[models.StatProcessingTime])
}

func TestNormalizer(t *testing.T) {
	n := NewNormalizer(0, 0)
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"What is a <em>good</em> espresso?", "What is a good espresso?", true},
		{"  line one\nline two  ", "line one line two", true},
		{"Tom's coffee &amp; tea?", "Tom's coffee & tea?", true},
		{"exactly10c", "exactly10c", false},
		{"11 chars ok", "11 chars ok", true},
		{strings.Repeat("a", 200), strings.Repeat("a", 200), false},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("%.20s", c.in), func(t *testing.T) {
			got, ok := n.Normalize(c.in)
			assert.Equal(t, c.want, got)
			assert.Equal(t, c.ok, ok)
		})
	}
}
