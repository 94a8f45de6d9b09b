package rest

import (
	"sync"
)

var (
	service *Service
	handler *Handler

	serviceOnce sync.Once
	handlerOnce sync.Once
)

func ProvideService(args *ContainerArgs) *Service {
	serviceOnce.Do(func() {
		service = NewService(args.MDB, args.MQ, args.D, args.MF)
	})
	return service
}

func ProvideHandler(args *ContainerArgs) *Handler {
	handlerOnce.Do(func() {
		handler = &Handler{
			service: ProvideService(args),
			bus:     args.Bus,
		}
	})
	return handler
}
