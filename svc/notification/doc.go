// Package notification is the notification dispatch engine.
//
// Service.Create validates a request, resolves the owner's configuration
// through a ConfigResolver, stores a PENDING Notification in a Repository
// and queues a DispatchItem. The Dispatcher, registered as a pkg/queue
// handler, delivers the notification over each configured channel in
// order and records SENT or FAILED. Failed attempts are retried by the
// queue with exponential backoff until the attempt budget is spent.
//
// Channels are Deliverer implementations. EmailChannel sends through
// pkg/email; TelegramChannel sends through pkg/telegram and skips owners
// that have no telegram credentials at all.
//
// Example wiring:
//
//	repo := notification.NewMemoryRepository()
//	resolver := notification.NewConfigResolver(notification.NewMemoryConfigStore(configs...))
//	storage := queue.NewMemoryStorage()
//	enqueuer, _ := queue.NewEnqueuer(storage)
//	svc := notification.NewService(repo, resolver, notification.NewTaskQueue(enqueuer, ""))
//
//	dispatcher, _ := notification.NewDispatcher(repo, resolver, []notification.Deliverer{
//		notification.NewEmailChannel(email.NewSenderFactory(emailCfg)),
//		notification.NewTelegramChannel(telegram.NewClient(tgCfg)),
//	})
//	worker, _ := queue.NewWorker(storage)
//	_ = worker.RegisterHandler(dispatcher.Handler())
package notification
