package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"resume-optimizer/internal/bootstrap"
	"resume-optimizer/internal/queue"
	"resume-optimizer/internal/shared/config"
	"resume-optimizer/internal/shared/telemetry"
	"resume-optimizer/internal/workerproc"
)

const (
	// Visibility must outlast a full pipeline run, including generation
	// retries, or SQS redelivers a message that is still being worked.
	visibilitySeconds  = 1200
	shutdownTimeout    = 30 * time.Second
	defaultConcurrency = 4
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildWorker(cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer app.Close()

	processor := app.OptimizationsService

	switch cfg.QueueKind {
	case "sqs":
		runSQS(ctx, cfg, processor)
	case "nats":
		runNATS(ctx, app.Queue, processor)
	default:
		log.Fatalf("worker requires QUEUE=sqs or QUEUE=nats, got %q", cfg.QueueKind)
	}
}

func runSQS(ctx context.Context, cfg config.Config, processor workerproc.Processor) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	var client sqsAPI = sqs.NewFromConfig(awsCfg)

	concurrency := cfg.WorkerMax
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	log.Printf("worker started queue=%s concurrency=%d visibility=%ds", cfg.SQSQueueURL, concurrency, visibilitySeconds)

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(cfg.SQSQueueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   visibilitySeconds,
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			log.Printf("receive message: %v", err)
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				handleMessage(ctx, processor, client, cfg.SQSQueueURL, m)
			}(msg)
		}
	}

	log.Printf("shutdown requested, waiting up to %s for in-flight jobs", shutdownTimeout)
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with in-flight jobs")
	}
}

// runNATS consumes from the shared worker queue group. Deliveries are
// handled one at a time per process; scale out by running more workers.
func runNATS(ctx context.Context, q queue.Client, processor workerproc.Processor) {
	consumer, ok := q.(*queue.NATSClient)
	if !ok {
		log.Fatal("nats consumer unavailable; check QUEUE and NATS_URL")
	}

	log.Printf("worker started subject=%s", queue.DefaultNATSSubject)

	err := consumer.Consume(ctx, func(ctx context.Context, msg queue.Message) error {
		telemetry.Info("worker.job.received", map[string]any{
			"optimization_id": msg.OptimizationID,
			"request_id":      msg.RequestID,
		})
		if err := workerproc.HandleMessage(workerproc.WithParsedMessage(ctx, msg), processor, ""); err != nil {
			return err
		}
		telemetry.Info("worker.job.completed", map[string]any{
			"optimization_id": msg.OptimizationID,
			"request_id":      msg.RequestID,
		})
		return nil
	})
	if err != nil {
		log.Printf("nats consume: %v", err)
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

func handleMessage(ctx context.Context, processor workerproc.Processor, client sqsAPI, queueURL string, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)

	decoded, meta, parseErr := workerproc.ParseMessage(body)
	if parseErr == nil {
		ctx = workerproc.WithParsedMessage(ctx, decoded)
		telemetry.Info("worker.job.received", baseFields(msg, decoded.OptimizationID, decoded.RequestID))
	}

	if err := workerproc.HandleMessage(ctx, processor, body); err != nil {
		if workerproc.Discardable(err) {
			fields := baseFields(msg, decoded.OptimizationID, decoded.RequestID)
			fields["body_len"] = meta.BodyLen
			if meta.BodySHA != "" {
				fields["body_sha256"] = meta.BodySHA
			}
			fields["error"] = err.Error()
			telemetry.Error("worker.job.unprocessable", fields)
			deleteMessage(ctx, client, queueURL, msg, decoded.OptimizationID, decoded.RequestID)
			return
		}

		var procErr workerproc.ErrProcess
		if errors.As(err, &procErr) {
			// Leave the message on the queue; nothing was recorded for the
			// run, so redelivery retries it.
			fields := baseFields(msg, procErr.OptimizationID, procErr.RequestID)
			fields["error"] = procErr.Err.Error()
			telemetry.Error("worker.job.process_failed", fields)
			return
		}

		fields := baseFields(msg, decoded.OptimizationID, decoded.RequestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.job.failed", fields)
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, decoded.OptimizationID, decoded.RequestID) {
		telemetry.Info("worker.job.completed", baseFields(msg, decoded.OptimizationID, decoded.RequestID))
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, optimizationID, requestID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, optimizationID, requestID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.job.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, optimizationID, requestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.job.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, optimizationID, requestID string) map[string]any {
	fields := map[string]any{
		"optimization_id": optimizationID,
		"sqs_message_id":  aws.ToString(msg.MessageId),
		"receive_count":   receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}
