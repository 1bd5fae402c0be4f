package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"moiport/entity"
	"moiport/internal/config"
	"moiport/internal/http-server/handlers/chat"
	"moiport/internal/http-server/handlers/crm"
	"moiport/internal/http-server/handlers/errors"
	"moiport/internal/http-server/handlers/webhook"
	"moiport/internal/http-server/middleware/authenticate"
	"moiport/internal/lib/sl"
	"moiport/internal/ws"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	chat.Core
	crm.Core
}

func New(conf *config.Config, log *slog.Logger, auth authenticate.Authenticate, handler Handler, receiver webhook.Receiver, hub *ws.Hub) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	// Provider callbacks and the socket endpoint authenticate on their own
	// terms, outside the bearer-token middleware.
	router.Route("/webhooks", func(r chi.Router) {
		r.Get("/instagram", webhook.Verify(log, conf.Instagram.VerifyToken))
		r.Post("/instagram", webhook.Receive(log, conf.Instagram.AppSecret, entity.SourceInstagram, receiver))
		r.Get("/facebook", webhook.Verify(log, conf.Facebook.VerifyToken))
		r.Post("/facebook", webhook.Receive(log, conf.Facebook.AppSecret, entity.SourceFacebook, receiver))
		r.Get("/whatsapp", webhook.Verify(log, conf.WhatsApp.VerifyToken))
		r.Post("/whatsapp", webhook.Receive(log, conf.WhatsApp.AppSecret, entity.SourceWhatsAppCloud, receiver))
		r.Post("/bridge", webhook.Receive(log, "", entity.SourceWhatsAppBridge, receiver))
	})

	router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, auth, log, w, r)
	})

	router.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(middleware.Timeout(30 * time.Second))
		v1.Use(authenticate.New(log, auth))

		v1.Route("/chat", func(r chi.Router) {
			r.Get("/rooms", chat.ListRooms(log, handler))
			r.Get("/rooms/{roomID}/messages", chat.ListMessages(log, handler))
			r.Post("/rooms/{roomID}/messages", chat.SendMessage(log, handler))
			r.Delete("/rooms/{roomID}/messages/{messageID}", chat.DeleteMessage(log, handler))
		})

		v1.Route("/crm", func(r chi.Router) {
			r.Get("/leads", crm.ListLeads(log, handler))
			r.Get("/leads/{leadID}", crm.GetLead(log, handler))
			r.Post("/leads/{leadID}/move", crm.MoveLead(log, handler))
			r.Post("/leads/{leadID}/convert", crm.ConvertLead(log, handler))
			r.Delete("/leads/{leadID}", crm.DeleteLead(log, handler))
			r.Post("/leads/{leadID}/activities", crm.AddActivity(log, handler))
			r.Get("/pipelines", crm.ListPipelines(log, handler))
			r.Get("/members", crm.ListMembers(log, handler))
		})
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:  router,
		ErrorLog: httpLog,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIP, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
