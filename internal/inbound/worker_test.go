package inbound

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/vatosalfa/agenda-messaging/pkg/logging"
)

type recordingProcessor struct {
	mu   sync.Mutex
	seen []Message
	err  error
	done chan struct{}
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{done: make(chan struct{}, 16)}
}

func (p *recordingProcessor) Process(_ context.Context, msg Message) (Outcome, error) {
	p.mu.Lock()
	p.seen = append(p.seen, msg)
	p.mu.Unlock()
	p.done <- struct{}{}
	return Outcome{}, p.err
}

type trackingQueue struct {
	*MemoryQueue
	mu      sync.Mutex
	deleted []string
}

func (q *trackingQueue) Delete(_ context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, receiptHandle)
	return nil
}

func (q *trackingQueue) deletedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.deleted)
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job")
	}
}

func TestPublisherEnqueueMessage(t *testing.T) {
	queue := NewMemoryQueue(4)
	publisher := NewPublisher(queue, logging.Default())

	jobID, err := publisher.EnqueueMessage(context.Background(), Message{MessageSID: "SM1", From: sender, Body: "Confirmo"})
	if err != nil {
		t.Fatalf("enqueue returned error: %v", err)
	}
	msgs, err := queue.Receive(context.Background(), 1, 1)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d (err=%v)", len(msgs), err)
	}
	payload, err := decodePayload(msgs[0].Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.ID != jobID || payload.Kind != jobTypeInboundMessage {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Message.Body != "Confirmo" || payload.Message.From != sender {
		t.Fatalf("unexpected message %+v", payload.Message)
	}
}

func TestWorkerProcessesAndDeletesJobs(t *testing.T) {
	queue := &trackingQueue{MemoryQueue: NewMemoryQueue(4)}
	processor := newRecordingProcessor()
	processor.err = errors.New("partial failure")
	worker := NewWorker(processor, queue, nil, WithWorkerCount(1), WithReceiveWaitSeconds(1))

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	dispatcher := NewQueueDispatcher(NewPublisher(queue, nil), nil)
	if err := dispatcher.Dispatch(context.Background(), Message{MessageSID: "SM1", From: sender, Body: "cancelar"}); err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	waitFor(t, processor.done)

	cancel()
	worker.Wait()

	if len(processor.seen) != 1 || processor.seen[0].MessageSID != "SM1" {
		t.Fatalf("unexpected processed messages %+v", processor.seen)
	}
	if queue.deletedCount() != 1 {
		t.Fatalf("expected job deleted after processing, got %d deletes", queue.deletedCount())
	}
}

func TestWorkerDropsUndecodableJobs(t *testing.T) {
	queue := &trackingQueue{MemoryQueue: NewMemoryQueue(4)}
	processor := newRecordingProcessor()
	worker := NewWorker(processor, queue, nil)

	worker.handleMessage(context.Background(), queueMessage{ID: "1", Body: "{not json", ReceiptHandle: "rh-1"})
	worker.handleMessage(context.Background(), queueMessage{ID: "2", Body: `{"id":"j","kind":"other"}`, ReceiptHandle: "rh-2"})

	if len(processor.seen) != 0 {
		t.Fatalf("processor should not run, got %d calls", len(processor.seen))
	}
	if queue.deletedCount() != 2 {
		t.Fatalf("expected both jobs deleted, got %d", queue.deletedCount())
	}
}

func TestSyncDispatcherSwallowsErrors(t *testing.T) {
	processor := newRecordingProcessor()
	processor.err = errors.New("store down")
	if err := NewSyncDispatcher(processor, nil).Dispatch(context.Background(), Message{From: sender}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(processor.seen) != 1 {
		t.Fatal("expected inline processing")
	}
}

type blockingQueue struct{ MemoryQueue }

func (blockingQueue) Send(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestQueueDispatcherTimeout(t *testing.T) {
	d := NewQueueDispatcher(NewPublisher(&blockingQueue{}, nil), nil)
	d.timeout = 10 * time.Millisecond
	if err := d.Dispatch(context.Background(), Message{From: sender}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestMemoryQueueReceiveTimeout(t *testing.T) {
	q := NewMemoryQueue(1)
	msgs, err := q.Receive(context.Background(), 5, 1)
	if err != nil || msgs != nil {
		t.Fatalf("expected empty receive, got %v %v", msgs, err)
	}
	_ = q.Send(context.Background(), "a")
	if q.Len() != 1 {
		t.Fatalf("expected 1 buffered job, got %d", q.Len())
	}
}

type fakeSQS struct {
	sent     []*sqs.SendMessageInput
	deleted  []*sqs.DeleteMessageInput
	received []sqstypes.Message
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{Messages: f.received}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, in)
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSQueueRoundTrip(t *testing.T) {
	fake := &fakeSQS{received: []sqstypes.Message{{
		MessageId:     aws.String("m-1"),
		Body:          aws.String(`{"id":"j"}`),
		ReceiptHandle: aws.String("rh-1"),
	}}}
	q := NewSQSQueue(fake, "https://sqs.us-east-1.amazonaws.com/123/inbound")

	if err := q.Send(context.Background(), "body"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if aws.ToString(fake.sent[0].MessageBody) != "body" {
		t.Fatalf("unexpected body %q", aws.ToString(fake.sent[0].MessageBody))
	}
	msgs, err := q.Receive(context.Background(), 10, 20)
	if err != nil || len(msgs) != 1 || msgs[0].ReceiptHandle != "rh-1" {
		t.Fatalf("unexpected receive %+v err=%v", msgs, err)
	}
	if err := q.Delete(context.Background(), "rh-1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := q.Delete(context.Background(), ""); err != nil || len(fake.deleted) != 1 {
		t.Fatalf("empty receipt handle should be skipped")
	}
}
