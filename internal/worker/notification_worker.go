package worker

import (
	"github.com/spec-kit/staffchat/internal/events"
	"github.com/spec-kit/staffchat/internal/service"
)

// StartNotificationWorker registers notification handlers on the dispatcher.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartAutoJoinWorker registers the auto-join reactor on the dispatcher.
func StartAutoJoinWorker(reactor *service.AutoJoinReactor, dispatcher events.Dispatcher) {
	if reactor == nil {
		return
	}
	reactor.RegisterHandlers(dispatcher)
}
