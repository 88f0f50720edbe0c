package notification

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/congo-pay/walletconnector/internal/logging"
)

func TestLoggerNotifierLevels(t *testing.T) {
	var buf bytes.Buffer
	n := NewLoggerNotifier(logging.NewWithWriter(&buf, "info", logging.FormatJSON))

	if err := n.Send(context.Background(), Message{Kind: KindBookkeepingFailed, TxHash: "0xabc", Body: "recording failed"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"level":"WARN"`) || !strings.Contains(out, `"tx_hash":"0xabc"`) {
		t.Fatalf("unexpected log line %s", out)
	}
}

func TestNilNotifierIsNoop(t *testing.T) {
	var n *LoggerNotifier
	if err := n.Send(context.Background(), Message{}); err != nil {
		t.Fatalf("send: %v", err)
	}
}
