package research

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"deskresearch/notify"
	"deskresearch/pkg/kafka"
	"deskresearch/pkg/memvector"
	"deskresearch/repository"
	"deskresearch/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []kafka.RunCompleted
}

func (p *fakePublisher) PublishRunCompleted(_ context.Context, e kafka.RunCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func newTestDispatcher(fetcher *stubFetcher, mailer notify.Mailer, pub kafka.Publisher) (*Dispatcher, *storage.MemoryRunStore) {
	runs := storage.NewMemoryRunStore()
	engine := newTestEngine(fetcher, &bagEmbedder{}, memvector.New(), &stubSummarizer{report: "Findings [1]."})
	return NewDispatcher(engine, runs, mailer, pub, zap.NewNop()), runs
}

func waitRuns(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
}

func TestDispatcher_SubmitDelivers(t *testing.T) {
	mailer := &fakeMailer{}
	pub := &fakePublisher{}
	d, runs := newTestDispatcher(&stubFetcher{docs: papers()}, mailer, pub)

	ctx, cancel := context.WithCancel(context.Background())
	id, err := d.Submit(ctx, "graph neural networks", "a@example.com")
	require.NoError(t, err)
	// the run must survive the request context
	cancel()
	waitRuns(t, d)

	run, err := runs.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, repository.RunSucceeded, run.Status)
	assert.True(t, run.Delivered)
	assert.Equal(t, "Findings [1].", run.Report)
	assert.NotEmpty(t, run.Sources)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "a@example.com", mailer.sent[0].To)
	assert.Contains(t, mailer.sent[0].Subject, "Research Report: graph neural networks")

	require.Len(t, pub.events, 1)
	assert.Equal(t, id, pub.events[0].RunID)
	assert.Equal(t, "success", pub.events[0].Status)
	assert.True(t, pub.events[0].Delivered)
}

func TestDispatcher_NoEvidenceSkipsDelivery(t *testing.T) {
	mailer := &fakeMailer{}
	pub := &fakePublisher{}
	d, runs := newTestDispatcher(&stubFetcher{}, mailer, pub)

	id, err := d.Submit(context.Background(), "zzqxv nonexistent topic", "a@example.com")
	require.NoError(t, err)
	waitRuns(t, d)

	run, err := runs.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, repository.RunFailed, run.Status)
	assert.False(t, run.Delivered)
	assert.Empty(t, mailer.sent)

	require.Len(t, pub.events, 1)
	assert.Equal(t, string(KindNoEvidence), pub.events[0].ErrorKind)
}

func TestDispatcher_DeliveryFailure(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("resend: 401")}
	d, _ := newTestDispatcher(&stubFetcher{docs: papers()}, mailer, nil)

	run, err := d.Execute(context.Background(), "graph neural networks", "a@example.com")
	require.NoError(t, err)

	assert.Equal(t, repository.RunSucceeded, run.Status)
	assert.False(t, run.Delivered)
	assert.Contains(t, run.Warnings, "delivery failed: resend: 401")
}

func TestDispatcher_ExecuteWithoutEmail(t *testing.T) {
	mailer := &fakeMailer{}
	d, runs := newTestDispatcher(&stubFetcher{docs: papers()}, mailer, nil)

	run, err := d.Execute(context.Background(), "graph neural networks", "")
	require.NoError(t, err)
	assert.Equal(t, repository.RunSucceeded, run.Status)
	assert.Empty(t, mailer.sent)

	stored, err := runs.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.RunSucceeded, stored.Status)
}

func TestDispatcher_WaitHonoursContext(t *testing.T) {
	d, _ := newTestDispatcher(&stubFetcher{}, nil, nil)
	d.wg.Add(1)
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)
}

type panicSummarizer struct{}

func (panicSummarizer) Summarize(context.Context, string, []repository.ScoredDocument) (string, error) {
	panic("nil model")
}

func TestDispatcher_PanicRecordsAndPublishes(t *testing.T) {
	pub := &fakePublisher{}
	runs := storage.NewMemoryRunStore()
	engine := newTestEngine(&stubFetcher{docs: papers()}, &bagEmbedder{}, memvector.New(), panicSummarizer{})
	d := NewDispatcher(engine, runs, &fakeMailer{}, pub, zap.NewNop())

	id, err := d.Submit(context.Background(), "graph neural networks", "a@example.com")
	require.NoError(t, err)
	waitRuns(t, d)

	run, err := runs.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, repository.RunFailed, run.Status)
	assert.Equal(t, "internal error", run.Message)

	require.Len(t, pub.events, 1)
	assert.Equal(t, id, pub.events[0].RunID)
	assert.Equal(t, string(repository.RunFailed), pub.events[0].Status)
	assert.Equal(t, string(KindInternal), pub.events[0].ErrorKind)
	assert.False(t, pub.events[0].Delivered)
}
