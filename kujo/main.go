// Package kujo serves the HTTP control API and event streams.
package kujo

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/r3labs/sse/v2"
	"github.com/rs/cors"
	"go.uber.org/zap"
	. "nyiyui.ca/hato/routeman"
	"nyiyui.ca/hato/routeman/auto"
	"nyiyui.ca/hato/routeman/notify"
	"nyiyui.ca/hato/routeman/world"
)

const (
	StreamRouteMode = "route-mode"
	StreamAdvisory  = "advisory"
	StreamChanges   = "changes"
)

type Catalog interface {
	auto.Catalog
	Suggest(stop StopID) (StopID, bool)
}

type Conf struct {
	Auto    *auto.Context
	Catalog Catalog
	// Changes, if set, is forwarded on the changes stream.
	Changes        *notify.Multiplexer[world.Change]
	AllowedOrigins []string
}

type Server struct {
	conf   Conf
	s      *sse.Server
	h      http.Handler
	cancel context.CancelFunc
	done   chan struct{}
}

func NewServer(conf Conf) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		conf:   conf,
		s:      sse.New(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.s.AutoReplay = false
	s.h = s.routes()

	// subscribe before returning so no event published after NewServer is lost
	modeCh := make(chan auto.RouteModeChanged, 16)
	conf.Auto.OnRouteModeChanged("kujo", modeCh)
	advisoryCh := make(chan auto.Advisory, 16)
	conf.Auto.OnAdvisory("kujo", advisoryCh)
	var changesCh chan world.Change
	if conf.Changes != nil {
		changesCh = make(chan world.Change, 64)
		conf.Changes.Subscribe("kujo", changesCh)
	}
	for _, id := range []string{StreamRouteMode, StreamAdvisory, StreamChanges} {
		s.s.CreateStream(id)
	}
	go func() {
		defer close(s.done)
		defer conf.Auto.OffRouteModeChanged(modeCh)
		defer conf.Auto.OffAdvisory(advisoryCh)
		if changesCh != nil {
			defer conf.Changes.Unsubscribe(changesCh)
		}
		s.forward(ctx, modeCh, advisoryCh, changesCh)
	}()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logRequests)
	origins := s.conf.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
	}).Handler)

	r.Get("/stops", s.getStops)
	r.Route("/locos/{loco}", func(r chi.Router) {
		r.Get("/", s.getLoco)
		r.Post("/selection", s.initSelection)
		r.Put("/stops/{stop}", s.putStop)
		r.Put("/route-mode", s.putRouteMode)
		r.Post("/propagate", s.propagate)
		r.Post("/signal/{pattern}", s.signal)
		r.Put("/bell", s.putBell)
	})
	r.Get("/events", s.s.ServeHTTP)
	return r
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.S().Debugw("kujo: request", "method", r.Method, "path", r.URL.Path, "status", ww.Status())
	})
}

type changeEvent struct {
	Type   string       `json:"type"`
	Change world.Change `json:"change"`
}

func changeType(c world.Change) string {
	switch c.(type) {
	case world.PropertyChange:
		return "property"
	case world.SetPassengerDestinations:
		return "destinations"
	default:
		return "other"
	}
}

func (s *Server) forward(ctx context.Context, modeCh chan auto.RouteModeChanged, advisoryCh chan auto.Advisory, changesCh chan world.Change) {
	for {
		var stream string
		var v interface{}
		select {
		case <-ctx.Done():
			return
		case e := <-modeCh:
			stream = StreamRouteMode
			v = e
		case e := <-advisoryCh:
			stream = StreamAdvisory
			v = e
		case c := <-changesCh:
			stream = StreamChanges
			v = changeEvent{Type: changeType(c), Change: c}
		}
		data, err := json.Marshal(v)
		if err != nil {
			zap.S().Errorw("kujo: marshal event", "stream", stream, "err", err)
			continue
		}
		s.s.TryPublish(stream, &sse.Event{Data: data})
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.h.ServeHTTP(w, r)
}

// Close stops forwarding events and disconnects stream subscribers.
func (s *Server) Close() {
	s.cancel()
	<-s.done
	s.s.Close()
}
