package notify

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/AitomaLab/ugc-engine/config"
)

type fakeSMSClient struct {
	bodies []string
	err    error
}

func (f *fakeSMSClient) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	if params.Body != nil {
		f.bodies = append(f.bodies, *params.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewWithoutCredentialsIsNoop(t *testing.T) {
	n := New(&config.Config{}, testLogger())
	if _, ok := n.(NoopNotifier); !ok {
		t.Fatalf("notifier type = %T, want NoopNotifier", n)
	}
	// Must not panic.
	n.RunCompleted("job-1", "https://example.com/v.mp4")
	n.RunFailed("job-1", "boom")
}

func TestRunCompletedSendsSMS(t *testing.T) {
	client := &fakeSMSClient{}
	n := &SMSNotifier{client: client, fromNumber: "+100", toNumber: "+200", logger: testLogger()}

	n.RunCompleted("job-1", "https://example.com/v.mp4")

	if len(client.bodies) != 1 {
		t.Fatalf("messages sent = %d, want 1", len(client.bodies))
	}
	if !strings.Contains(client.bodies[0], "job-1") || !strings.Contains(client.bodies[0], "https://example.com/v.mp4") {
		t.Errorf("body = %q", client.bodies[0])
	}
}

func TestRunFailedSwallowsClientError(t *testing.T) {
	client := &fakeSMSClient{err: errors.New("twilio down")}
	n := &SMSNotifier{client: client, fromNumber: "+100", toNumber: "+200", logger: testLogger()}

	// Must not panic or propagate.
	n.RunFailed("job-1", "scene generation failed")
}
