// Package notification delivers signal and execution alerts to external
// channels (Telegram, webhooks, logs). Alerts carry the pipeline's fields
// (pair, direction, stop reference, confidence) so each backend renders the
// trade context directly instead of an opaque message blob.
package notification

import (
	"context"
	"fmt"
	"log"
	"strings"

	"breakout-systemv1/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Field is one key/value detail of an alert. Backends preserve field order
// when rendering.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Alert is a notification to be sent: a headline plus the structured fields
// of the signal or order it describes.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Fields  []Field    `json:"fields,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// SignalAlert builds the alert for a signal accepted through the pipeline.
func SignalAlert(sig model.Signal, verdict string, confidence float64) Alert {
	return Alert{
		Level:   AlertInfo,
		Title:   fmt.Sprintf("%s signal %s", sig.Direction, sig.Key()),
		Message: sig.Reason,
		Fields: []Field{
			{"pair", sig.Key()},
			{"direction", string(sig.Direction)},
			{"state", sig.CreatedInState},
			{"entry", fmt.Sprintf("%.2f", sig.EntryPriceHint)},
			{"stop", fmt.Sprintf("%.2f (%s)", sig.StopReference.Price, sig.StopReference.Origin)},
			{"verdict", fmt.Sprintf("%s %.2f", verdict, confidence)},
		},
	}
}

// OrderFailureAlert builds the alert for a failed gateway submission.
func OrderFailureAlert(req model.OrderRequest, errMsg string) Alert {
	return Alert{
		Level:   AlertCritical,
		Title:   fmt.Sprintf("order failed: %s %s:%s", req.Direction, req.Exchange, req.Token),
		Message: errMsg,
		Fields: []Field{
			{"signal", req.SignalID},
			{"volume", fmt.Sprintf("%.2f", req.Volume)},
			{"stop_loss", fmt.Sprintf("%.2f", req.StopLoss)},
			{"take_profit", fmt.Sprintf("%.2f", req.TakeProfit)},
		},
	}
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	var b strings.Builder
	for _, f := range alert.Fields {
		fmt.Fprintf(&b, " %s=%s", f.Key, f.Value)
	}
	log.Printf("[notify] [%s] %s: %s%s", alert.Level, alert.Title, alert.Message, b.String())
	return nil
}
