package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"resume-optimizer/internal/queue"
)

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	_ = ctx
	_ = params
	_ = optFns
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	_ = ctx
	_ = optFns
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeProcessor struct {
	ids []string
	err error
}

func (f *fakeProcessor) Process(ctx context.Context, optimizationID string) error {
	_ = ctx
	f.ids = append(f.ids, optimizationID)
	return f.err
}

func sqsMessage(id, receipt, body string) sqstypes.Message {
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String(receipt),
		Body:          aws.String(body),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	proc := &fakeProcessor{}
	body, _ := queue.EncodeMessage(queue.Message{OptimizationID: "opt-1", RequestID: "req-1"})

	handleMessage(context.Background(), proc, client, "queue", sqsMessage("m1", "r1", string(body)))

	if len(proc.ids) != 1 || proc.ids[0] != "opt-1" {
		t.Fatalf("expected opt-1 processed, got %v", proc.ids)
	}
	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerLeavesMessageOnProcessFailure(t *testing.T) {
	client := &fakeSQS{}
	proc := &fakeProcessor{err: errors.New("boom")}
	body, _ := queue.EncodeMessage(queue.Message{OptimizationID: "opt-2", RequestID: "req-2"})

	handleMessage(context.Background(), proc, client, "queue", sqsMessage("m2", "r2", string(body)))

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesOnInvalidJSON(t *testing.T) {
	client := &fakeSQS{}
	proc := &fakeProcessor{}

	handleMessage(context.Background(), proc, client, "queue", sqsMessage("m3", "r3", "{bad-json"))

	if len(proc.ids) != 0 {
		t.Fatalf("expected nothing processed, got %v", proc.ids)
	}
	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesOnMissingOptimizationID(t *testing.T) {
	client := &fakeSQS{}
	proc := &fakeProcessor{}
	body, _ := queue.EncodeMessage(queue.Message{RequestID: "req-4"})

	handleMessage(context.Background(), proc, client, "queue", sqsMessage("m4", "r4", string(body)))

	if len(proc.ids) != 0 {
		t.Fatalf("expected nothing processed, got %v", proc.ids)
	}
	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}
