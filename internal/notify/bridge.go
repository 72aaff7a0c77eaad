package notify

import (
	"fmt"
	"strings"

	"github.com/SCPrime/ai-Trader-sub001/internal/events"
)

// AttachBus subscribes the dispatcher to the event types operators care
// about. Breaker trips go out as critical and flush immediately.
func (d *Dispatcher) AttachBus(bus *events.Bus) {
	bus.Subscribe(events.EventTradePending, func(e events.Event) {
		d.Enqueue(tradeMessage(e, "Trade awaiting approval", SeverityWarning))
	})
	bus.Subscribe(events.EventTradeApproved, func(e events.Event) {
		d.Enqueue(tradeMessage(e, "Trade approved", SeverityInfo))
	})
	bus.Subscribe(events.EventTradeRejected, func(e events.Event) {
		d.Enqueue(tradeMessage(e, "Trade rejected", SeverityInfo))
	})
	bus.Subscribe(events.EventTradeExpired, func(e events.Event) {
		d.Enqueue(tradeMessage(e, "Pending trade expired", SeverityWarning))
	})
	bus.Subscribe(events.EventTradeExecuted, func(e events.Event) {
		d.Enqueue(tradeMessage(e, "Trade executed", SeverityInfo))
	})
	bus.Subscribe(events.EventRiskBlocked, func(e events.Event) {
		d.Enqueue(tradeMessage(e, "Trade blocked by risk gates", SeverityWarning))
	})
	bus.Subscribe(events.EventBreakerTripped, func(e events.Event) {
		d.Enqueue(Message{
			Title:     "Circuit breaker tripped",
			Body:      stringField(e, "reason"),
			Severity:  SeverityCritical,
			Timestamp: e.Timestamp,
		})
	})
	bus.Subscribe(events.EventBreakerReset, func(e events.Event) {
		d.Enqueue(Message{
			Title:     "Circuit breaker reset",
			Body:      stringField(e, "reason"),
			Severity:  SeverityInfo,
			Timestamp: e.Timestamp,
		})
	})
	bus.Subscribe(events.EventModeChanged, func(e events.Event) {
		d.Enqueue(Message{
			Title: "Supervision mode changed",
			Body: fmt.Sprintf("%s -> %s (by %s)",
				stringField(e, "old_mode"), stringField(e, "new_mode"), stringField(e, "operator")),
			Severity:  SeverityWarning,
			Timestamp: e.Timestamp,
		})
	})
	bus.Subscribe(events.EventNewsStory, func(e events.Event) {
		d.Enqueue(Message{
			Symbol:    stringField(e, "symbol"),
			Title:     "News: " + stringField(e, "headline"),
			Body:      "via " + stringField(e, "provider"),
			Severity:  SeverityInfo,
			Timestamp: e.Timestamp,
		})
	})
}

func tradeMessage(e events.Event, title string, severity Severity) Message {
	symbol := stringField(e, "symbol")
	body := fmt.Sprintf("%s %s qty=%v notional=%v",
		symbol, stringField(e, "side"), e.Data["quantity"], e.Data["notional"])
	if reasons := stringsField(e, "reasons"); len(reasons) > 0 {
		body += " reasons: " + strings.Join(reasons, "; ")
	}
	return Message{
		Symbol:    symbol,
		Title:     title,
		Body:      body,
		Severity:  severity,
		Timestamp: e.Timestamp,
	}
}

func stringField(e events.Event, key string) string {
	if v, ok := e.Data[key].(string); ok {
		return v
	}
	return ""
}

func stringsField(e events.Event, key string) []string {
	if v, ok := e.Data[key].([]string); ok {
		return v
	}
	return nil
}
