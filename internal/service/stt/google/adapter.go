// Package google provides a Google Cloud Speech-to-Text adapter.
package google

import (
	"context"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"stt-comparison-service/internal/service/stt"
)

// Adapter implements stt.Adapter using the Google Cloud Speech
// streaming gRPC API.
type Adapter struct {
	client *speech.Client
	cfg    stt.AudioConfig

	mu     sync.Mutex
	stream speechpb.Speech_StreamingRecognizeClient
	closed bool
}

// New creates a Google STT adapter. Credentials come from the ambient
// environment (GOOGLE_APPLICATION_CREDENTIALS).
func New(ctx context.Context, cfg stt.AudioConfig) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("google speech client: %w", err)
	}
	return &Adapter{client: c, cfg: cfg}, nil
}

// Vendor returns the provider identifier.
func (a *Adapter) Vendor() string { return "google" }

// Start opens the streaming session and sends the recognition config as
// the first message.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	stream, err := a.client.StreamingRecognize(ctx)
	if err != nil {
		return fmt.Errorf("google streaming recognize: %w", err)
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:            int32(a.cfg.SampleRateHz),
					AudioChannelCount:          int32(a.cfg.Channels),
					LanguageCode:               a.cfg.LanguageCode,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: a.cfg.InterimResults,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("google streaming config: %w", err)
	}

	a.mu.Lock()
	a.stream = stream
	a.mu.Unlock()

	go a.listen(stream, cb)
	return nil
}

// listen receives responses and forwards normalized events. Within one
// stream Google delivers results in order; results after the first are
// later utterance alternatives and follow the same shape.
func (a *Adapter) listen(stream speechpb.Speech_StreamingRecognizeClient, cb stt.Callback) {
	for {
		resp, err := stream.Recv()
		if err != nil {
			if err == io.EOF || a.isClosed() {
				return
			}
			if st, ok := status.FromError(err); ok && st.Code() == codes.Canceled {
				return
			}
			cb.OnError(fmt.Errorf("google stream: %w", err))
			return
		}

		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			cb.OnTranscript(alt.Transcript, r.IsFinal, float64(alt.Confidence))
		}
	}
}

// SendAudio sends one PCM16 frame as audio content.
func (a *Adapter) SendAudio(_ context.Context, audio []byte) error {
	a.mu.Lock()
	stream := a.stream
	closed := a.closed
	a.mu.Unlock()
	if closed || stream == nil {
		return nil
	}
	return stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Close half-closes the stream and releases the client. Idempotent.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	var err error
	if a.stream != nil {
		err = a.stream.CloseSend()
	}
	if cerr := a.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func (a *Adapter) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}
