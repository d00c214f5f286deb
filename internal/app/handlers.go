package app

import (
	"github.com/nerrad567/gray-logic-device/internal/resource"
	"github.com/nerrad567/gray-logic-device/internal/storage"
)

// onPatternWrite logs the new pattern. It is read on the next blink.
func (a *App) onPatternWrite(res *resource.Resource) {
	a.logger.Info("blink pattern updated", "pattern", res.Text())
}

// onBlinkExecute starts the current pattern and defers the response until
// it has finished. A rejected start is logged and acknowledged immediately.
func (a *App) onBlinkExecute(req *resource.ExecuteRequest) *resource.Pending {
	pattern := a.pattern.Text()

	var pending *resource.Pending
	err := a.blinker.Start(pattern, a.cfg.Application.RestartInFlight, func() {
		a.events.post(func() {
			a.onBlinkComplete(pending)
		})
	})
	if err != nil {
		a.logger.Warn("blink start rejected", "pattern", pattern, "error", err)
		return nil
	}

	pending = req.Defer()
	a.logger.Info("blink started", "pattern", pattern, "request_id", req.ID)
	return pending
}

// onBlinkComplete sends the deferred response for the blink request.
func (a *App) onBlinkComplete(pending *resource.Pending) {
	a.logger.Info("blink sequence complete")
	if pending == nil {
		return
	}
	if err := pending.Resolve(""); err != nil {
		a.logger.Debug("blink response already sent", "request_id", pending.RequestID())
	}
}

// onUnregister closes the connection after the response has gone out.
func (a *App) onUnregister(req *resource.ExecuteRequest) *resource.Pending {
	a.logger.Info("unregister requested", "request_id", req.ID)
	a.events.post(func() {
		a.closeClient()
	})
	return nil
}

// onFactoryReset closes the connection and erases secure storage. A
// storage failure is logged with its status code; the process carries on
// with the connection closed.
func (a *App) onFactoryReset(req *resource.ExecuteRequest) *resource.Pending {
	a.logger.Info("factory reset requested", "request_id", req.ID)
	a.events.post(func() {
		a.closeClient()

		if err := a.store.FactoryReset(a.ctx); err != nil {
			code := storage.Code(err)
			a.logger.Error("factory reset failed",
				"status", code.String(),
				"code", int(code),
				"error", err,
			)
			return
		}
		a.logger.Info("factory reset complete, restart the device")
	})
	return nil
}

func (a *App) closeClient() {
	if err := a.client.Close(); err != nil {
		a.logger.Error("closing device management", "error", err)
	}
}

// onDeliveryStatus logs a delivery outcome and appends it to the delivery log.
func (a *App) onDeliveryStatus(res *resource.Resource, status resource.DeliveryStatus, kind resource.MessageKind) {
	a.logger.Info("delivery status",
		"path", res.Path().String(),
		"name", res.Name(),
		"status", status.String(),
		"kind", kind.String(),
	)

	if err := a.deliveries.Append(a.ctx, &storage.DeliveryRecord{
		Path:   res.Path().String(),
		Status: status.String(),
		Kind:   kind.String(),
	}); err != nil {
		a.logger.Warn("recording delivery status", "error", err)
	}

	if a.recorder != nil {
		a.recorder.RecordDelivery(res, status, kind)
	}
}
