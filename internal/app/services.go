package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/terakael/flowrs/internal/config"
	"github.com/terakael/flowrs/internal/tui/controller"
	"github.com/terakael/flowrs/internal/tui/model"
	"github.com/terakael/flowrs/internal/worker"
	"github.com/terakael/flowrs/pkg/logging"
)

// Screen is the terminal side of the application.
type Screen interface {
	controller.InputSource
	controller.Renderer
	Run() error
	Quit()
	Wake()
}

// ServerStore is what the running application needs from the config.
type ServerStore interface {
	worker.Servers
	Servers() []config.Server
	ActiveServer() string
}

// Services holds all the wired components of one run
type Services struct {
	State  *model.State
	Queue  *worker.Queue
	Worker *worker.Worker
	Loop   *controller.Loop
	Screen Screen
	store  ServerStore
}

// InitializeServices wires state, queue, worker and loop around screen.
func InitializeServices(settings config.Settings, store ServerStore, screen Screen, newClient worker.ClientFactory, opts ...worker.Option) *Services {
	state := model.NewState(model.NewData(serverEntries(store), store.ActiveServer()))
	queue := worker.NewQueue(settings.QueueCapacity)

	opts = append([]worker.Option{
		worker.WithTimeout(settings.RequestTimeout),
		worker.WithNotify(screen.Wake),
	}, opts...)
	w := worker.New(state, queue, store, newClient, opts...)
	loop := controller.NewLoop(state, queue, screen, screen, controller.WithTick(settings.TickInterval))

	return &Services{State: state, Queue: queue, Worker: w, Loop: loop, Screen: screen, store: store}
}

// Run runs loop, worker and screen until the user quits or one of them
// fails. The worker is stopped once the loop returns.
func (s *Services) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	workerCtx, stopWorker := context.WithCancel(gctx)
	defer stopWorker()

	g.Go(func() error {
		return s.Worker.Run(workerCtx)
	})
	g.Go(func() error {
		if err := s.Screen.Run(); err != nil {
			return fmt.Errorf("terminal: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer stopWorker()
		defer s.Queue.Close()
		defer s.Screen.Quit()
		if err := s.Loop.Bootstrap(gctx, s.store.ActiveServer()); err != nil {
			return err
		}
		return s.Loop.Run(gctx)
	})

	err := g.Wait()
	if errors.Is(err, model.ErrStatePoisoned) {
		logging.Error("App", err, "state poisoned, exiting")
	}
	return err
}

func serverEntries(store ServerStore) []model.ServerEntry {
	active := store.ActiveServer()
	servers := store.Servers()
	entries := make([]model.ServerEntry, 0, len(servers))
	for _, srv := range servers {
		entries = append(entries, model.ServerEntry{
			Name:     srv.Name,
			Endpoint: srv.Endpoint,
			Version:  srv.Version,
			Managed:  srv.Managed,
			Active:   srv.Name == active,
		})
	}
	return entries
}
