package handler

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/sakif/fluxgate/internal/auth"
	"github.com/sakif/fluxgate/internal/route"
	"github.com/sakif/fluxgate/internal/static"
)

// Dispatch keys, as built by route.Descriptor.Command.
const (
	cmdLogin         = "POST login/index.html"
	cmdCreateAccount = "POST create/index.html"
	cmdAddCredits    = "POST addcredits/index.html"
	cmdGenerate      = "POST data/index.html"
	cmdPublicIndex   = "GET public/index.html"

	// protectedRoute is the area that requires a session.
	protectedRoute = "app"
)

// Dispatcher is the single entry point for site traffic. It must sit behind
// auth.OptionalSession, which it relies on to know whether the caller is
// signed in.
//
// Per request, in order:
//  1. classify the path
//  2. JSON body + known command → run the API handler
//  3. signed in and asking for the public landing page → redirect to /app
//  4. no such file → redirect to /404.html
//  5. protected area without a session → redirect to /expired.html
//  6. serve the file
type Dispatcher struct {
	classifier *route.Classifier
	files      static.Server
	commands   map[string]http.HandlerFunc
	logger     *slog.Logger
}

// NewDispatcher wires api's handlers to their dispatch keys.
func NewDispatcher(
	classifier *route.Classifier,
	files static.Server,
	api *APIHandler,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		classifier: classifier,
		files:      files,
		commands: map[string]http.HandlerFunc{
			cmdLogin:         api.Login,
			cmdCreateAccount: api.CreateAccount,
			cmdAddCredits:    api.AddCredits,
			cmdGenerate:      api.GenerateImage,
		},
		logger: logger,
	}
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	desc := d.classifier.Classify(r.URL.Path)
	command := desc.Command(r.Method)

	if isJSON(r) {
		if h, ok := d.commands[command]; ok {
			h(w, r)
			return
		}
	}

	_, signedIn := auth.UserFromContext(r.Context())

	if command == cmdPublicIndex && signedIn {
		http.Redirect(w, r, AppPath, http.StatusFound)
		return
	}

	file, err := d.files.Open(desc.Path)
	if err != nil {
		if errors.Is(err, static.ErrNotFound) {
			http.Redirect(w, r, NotFoundPath, http.StatusFound)
			return
		}
		d.logger.Error("opening static file",
			slog.String("path", desc.Path),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if desc.Route == protectedRoute {
		if !signedIn {
			http.Redirect(w, r, ExpiredPath, http.StatusFound)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Body)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		if _, err := w.Write(file.Body); err != nil {
			d.logger.Debug("writing static file", slog.String("error", err.Error()))
		}
	}
}

// isJSON reports whether the request declares a JSON body. Parameters such
// as charset are allowed.
func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}
