// Package awstranscribe provides a streaming adapter for Amazon
// Transcribe over the SDK's bidirectional event stream.
package awstranscribe

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming/types"

	"stt-comparison-service/internal/service/stt"
)

// Credentials holds static AWS credentials for the Transcribe client.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
}

// Adapter implements stt.Adapter using Amazon Transcribe streaming.
// Audio frames become AudioEvent members on the request stream; results
// arrive as TranscriptEvent members with segmented results arrays.
type Adapter struct {
	client *transcribestreaming.Client
	cfg    stt.AudioConfig

	mu     sync.Mutex
	stream *transcribestreaming.StartStreamTranscriptionEventStream
	closed bool
}

// New creates an Amazon Transcribe adapter with static credentials.
func New(creds Credentials, cfg stt.AudioConfig) *Adapter {
	client := transcribestreaming.New(transcribestreaming.Options{
		Region: creds.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
	})
	return &Adapter{client: client, cfg: cfg}
}

// Vendor returns the provider identifier.
func (a *Adapter) Vendor() string { return "aws" }

// Start opens the bidirectional transcription stream.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	out, err := a.client.StartStreamTranscription(ctx, &transcribestreaming.StartStreamTranscriptionInput{
		LanguageCode:         types.LanguageCode(a.cfg.LanguageCode),
		MediaEncoding:        types.MediaEncodingPcm,
		MediaSampleRateHertz: aws.Int32(int32(a.cfg.SampleRateHz)),
	})
	if err != nil {
		return fmt.Errorf("aws transcribe start: %w", err)
	}

	stream := out.GetStream()

	a.mu.Lock()
	a.stream = stream
	a.mu.Unlock()

	go a.listen(stream, cb)
	return nil
}

func (a *Adapter) listen(stream *transcribestreaming.StartStreamTranscriptionEventStream, cb stt.Callback) {
	for event := range stream.Events() {
		te, ok := event.(*types.TranscriptResultStreamMemberTranscriptEvent)
		if !ok {
			continue
		}
		for _, result := range te.Value.Transcript.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			text := aws.ToString(result.Alternatives[0].Transcript)
			if text == "" {
				continue
			}
			cb.OnTranscript(text, !result.IsPartial, 0)
		}
	}
	if err := stream.Err(); err != nil && !a.isClosed() {
		cb.OnError(fmt.Errorf("aws transcribe stream: %w", err))
	}
}

// SendAudio writes one PCM16 frame as an AudioEvent.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	stream := a.stream
	closed := a.closed
	a.mu.Unlock()
	if closed || stream == nil {
		return nil
	}
	return stream.Send(ctx, &types.AudioStreamMemberAudioEvent{
		Value: types.AudioEvent{AudioChunk: audio},
	})
}

// Close ends the request stream. Idempotent.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.stream == nil {
		return nil
	}
	return a.stream.Close()
}

func (a *Adapter) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}
