package bot

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/Brawl345/remindbot/model"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
)

const maxBodySize = 1 << 20

type Server struct {
	processor *Processor
	router    chi.Router
}

func NewServer(processor *Processor) *Server {
	s := &Server{
		processor: processor,
	}

	router := chi.NewRouter()
	router.Use(RequestLogger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	router.Get("/health", s.onHealth)

	router.Get("/events", s.onHealth)
	router.Post("/events", s.onEvent)
	router.Post("/commands", s.onCommand)

	// Paths used by older app manifests
	router.Get("/slack/webhook", s.onHealth)
	router.Post("/slack/webhook", s.onEvent)
	router.Post("/slack/commands", s.onCommand)

	s.router = router
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) onHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Bot running."))
}

func (s *Server) onEvent(w http.ResponseWriter, r *http.Request) {
	var env Envelope
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&env); err != nil {
		log.Warn().Err(err).Msg("Malformed event body")
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}

	switch env.Type {
	case "url_verification":
		writeJSON(w, map[string]string{"challenge": env.Challenge})
		return
	case "event_callback":
		s.processor.ProcessEvent(r.Context(), &env)
	default:
		log.Debug().Str("type", env.Type).Msg("Ignoring envelope")
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) onCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := readCommand(r)
	if err != nil {
		log.Warn().Err(err).Msg("Malformed command body")
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}

	reply := s.processor.ProcessCommand(r.Context(), cmd)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(reply))
}

// readCommand accepts the form encoding slash commands are posted with as
// well as a JSON body with the same field names.
func readCommand(r *http.Request) (model.SlashCommand, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body struct {
			Text      string `json:"text"`
			UserID    string `json:"user_id"`
			ChannelID string `json:"channel_id"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&body); err != nil {
			return model.SlashCommand{}, err
		}
		return model.SlashCommand{Text: body.Text, User: body.UserID, Channel: body.ChannelID}, nil
	}

	if err := r.ParseForm(); err != nil {
		return model.SlashCommand{}, err
	}
	return model.SlashCommand{
		Text:    r.PostForm.Get("text"),
		User:    r.PostForm.Get("user_id"),
		Channel: r.PostForm.Get("channel_id"),
	}, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("Failed to write JSON response")
	}
}
