package rest

import (
	"github.com/asaskevich/EventBus"

	"github.com/mediafetch/mediafetch/server/internal/dispatcher"
	"github.com/mediafetch/mediafetch/server/internal/metadata"
	"github.com/mediafetch/mediafetch/server/internal/queue"
	"github.com/mediafetch/mediafetch/server/internal/session"
)

type ContainerArgs struct {
	MDB *session.Store
	MQ  *queue.MessageQueue
	D   *dispatcher.Dispatcher
	MF  metadata.Fetcher
	Bus EventBus.Bus
}
