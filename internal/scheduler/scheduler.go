package scheduler

import "context"

//go:generate go run go.uber.org/mock/mockgen -source=scheduler.go -destination=mocks/mock.go
type Client interface {
	// SchedulePublishDueDrafts starts the recurring job that publishes
	// scheduled drafts whose time has come.
	SchedulePublishDueDrafts(ctx context.Context) error

	// ScheduleDatabaseCleanup starts the daily purge of old terminal drafts.
	ScheduleDatabaseCleanup(ctx context.Context) error
}
