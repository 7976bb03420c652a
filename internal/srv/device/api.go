package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jypelle/vekidj/apimodel"
	"github.com/jypelle/vekidj/internal/srv/config"
	"github.com/jypelle/vekidj/internal/srv/player"
	"github.com/jypelle/vekidj/internal/tool"
	"github.com/sirupsen/logrus"
)

const apiRequestTimeout = 60 * time.Second

// Api exposes the player controller over https, authenticated by the x-api-key header.
type Api struct {
	controller Controller
	locator    ChannelLocator

	router    *mux.Router
	apiRouter *mux.Router
	server    *http.Server

	config *config.ServerConfig
}

func NewApi(config *config.ServerConfig, controller Controller, locator ChannelLocator) *Api {
	api := &Api{
		config:     config,
		controller: controller,
		locator:    locator,
	}

	api.router = mux.NewRouter().StrictSlash(false)

	api.apiRouter = api.router.PathPrefix("/api").Subrouter()
	api.apiRouter.NotFoundHandler = http.HandlerFunc(ErrorNotFoundAction)
	api.apiRouter.MethodNotAllowedHandler = http.HandlerFunc(ErrorMethodNotAllowedAction)

	// Auth middleware
	api.apiRouter.Use(
		func(handler http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer func() {
					if rec := recover(); rec != nil {
						logrus.Warningf("recovered from panic : [%v] - stack trace : \n [%s]", rec, debug.Stack())
						GlobalErrorAction(w, fmt.Sprintf("%v", rec), http.StatusInternalServerError)
					}
				}()

				apiKey := r.Header.Get("x-api-key")
				if apiKey == "" || apiKey != config.ServerParam.ApiParam.ApiKey {
					ErrorStatusAction(w, r, http.StatusForbidden)
					return
				}

				logrus.Debugf("PATH: %s %s %s", r.Method, r.Host, r.URL.Path)

				handler.ServeHTTP(w, r)
			})
		})

	api.apiRouter.HandleFunc("/is_alive",
		func(w http.ResponseWriter, r *http.Request) {
			ErrorStatusAction(w, r, http.StatusOK)
		}).Methods("GET")

	api.apiRouter.HandleFunc("/session",
		func(w http.ResponseWriter, r *http.Request) {
			guildIds, err := api.controller.Sessions(r.Context())
			if err != nil {
				ControllerErrorAction(w, err)
				return
			}
			if guildIds == nil {
				guildIds = []string{}
			}
			JsonAction(w, apimodel.SessionList{GuildIds: guildIds})
		}).Methods("GET")

	session := api.apiRouter.PathPrefix("/session/{guild_id}").Subrouter()

	session.HandleFunc("",
		func(w http.ResponseWriter, r *http.Request) {
			status, err := api.controller.Status(r.Context(), mux.Vars(r)["guild_id"])
			if err != nil {
				ControllerErrorAction(w, err)
				return
			}
			JsonAction(w, statusToApi(status))
		}).Methods("GET")

	session.HandleFunc("/join",
		func(w http.ResponseWriter, r *http.Request) {
			guildId := mux.Vars(r)["guild_id"]
			var req apimodel.JoinRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChannelId == "" {
				apimodel.WrongParametersErrorMessage.SendError(w)
				return
			}
			destination, err := api.locator.Channel(guildId, req.ChannelId)
			if err != nil {
				GlobalErrorAction(w, err.Error(), http.StatusNotFound)
				return
			}
			result, err := api.controller.Join(r.Context(), guildId, destination, nil)
			resultAction(w, result, err)
		}).Methods("POST")

	session.HandleFunc("/leave",
		func(w http.ResponseWriter, r *http.Request) {
			result, err := api.controller.Leave(r.Context(), mux.Vars(r)["guild_id"])
			resultAction(w, result, err)
		}).Methods("POST")

	session.HandleFunc("/queue",
		func(w http.ResponseWriter, r *http.Request) {
			tracks, err := api.controller.ListQueue(r.Context(), mux.Vars(r)["guild_id"])
			if err != nil {
				ControllerErrorAction(w, err)
				return
			}
			queue := apimodel.Queue{Tracks: make([]apimodel.Track, 0, len(tracks))}
			for _, track := range tracks {
				queue.Tracks = append(queue.Tracks, trackToApi(track))
			}
			JsonAction(w, queue)
		}).Methods("GET")

	session.HandleFunc("/queue",
		func(w http.ResponseWriter, r *http.Request) {
			guildId := mux.Vars(r)["guild_id"]
			var req apimodel.EnqueueRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				apimodel.WrongParametersErrorMessage.SendError(w)
				return
			}
			enqueueRequest := player.EnqueueRequest{
				GuildId:     guildId,
				Query:       req.Query,
				RequestedBy: req.RequestedBy,
			}
			if req.ChannelId != "" {
				destination, err := api.locator.Channel(guildId, req.ChannelId)
				if err != nil {
					GlobalErrorAction(w, err.Error(), http.StatusNotFound)
					return
				}
				enqueueRequest.Destination = destination
			}

			ctx, cancel := context.WithTimeout(r.Context(), apiRequestTimeout)
			defer cancel()
			result, err := api.controller.Enqueue(ctx, enqueueRequest)
			if err != nil {
				ControllerErrorAction(w, err)
				return
			}
			JsonAction(w, apimodel.EnqueueResponse{
				Position: result.Position,
				Track:    trackToApi(result.Track),
				Message:  result.Message(),
			})
		}).Methods("POST")

	session.HandleFunc("/queue",
		func(w http.ResponseWriter, r *http.Request) {
			result, err := api.controller.ClearQueue(r.Context(), mux.Vars(r)["guild_id"])
			resultAction(w, result, err)
		}).Methods("DELETE")

	session.HandleFunc("/queue/shuffle",
		func(w http.ResponseWriter, r *http.Request) {
			result, err := api.controller.Shuffle(r.Context(), mux.Vars(r)["guild_id"])
			resultAction(w, result, err)
		}).Methods("POST")

	session.HandleFunc("/queue/{position}",
		func(w http.ResponseWriter, r *http.Request) {
			vars := mux.Vars(r)
			position, err := strconv.Atoi(vars["position"])
			if err != nil {
				ErrorStatusAction(w, r, http.StatusBadRequest)
				return
			}
			result, err := api.controller.RemoveAt(r.Context(), vars["guild_id"], position)
			resultAction(w, result, err)
		}).Methods("DELETE")

	session.HandleFunc("/skip",
		func(w http.ResponseWriter, r *http.Request) {
			result, err := api.controller.Skip(r.Context(), mux.Vars(r)["guild_id"])
			resultAction(w, result, err)
		}).Methods("POST")

	session.HandleFunc("/stop",
		func(w http.ResponseWriter, r *http.Request) {
			result, err := api.controller.Stop(r.Context(), mux.Vars(r)["guild_id"])
			resultAction(w, result, err)
		}).Methods("POST")

	session.HandleFunc("/pause",
		func(w http.ResponseWriter, r *http.Request) {
			result, err := api.controller.Pause(r.Context(), mux.Vars(r)["guild_id"])
			resultAction(w, result, err)
		}).Methods("POST")

	session.HandleFunc("/resume",
		func(w http.ResponseWriter, r *http.Request) {
			result, err := api.controller.Resume(r.Context(), mux.Vars(r)["guild_id"])
			resultAction(w, result, err)
		}).Methods("POST")

	session.HandleFunc("/loop/{mode}",
		func(w http.ResponseWriter, r *http.Request) {
			vars := mux.Vars(r)
			mode, err := player.ParseLoopMode(vars["mode"])
			if err != nil {
				ControllerErrorAction(w, err)
				return
			}
			result, err := api.controller.SetLoop(r.Context(), vars["guild_id"], mode)
			resultAction(w, result, err)
		}).Methods("PUT")

	session.HandleFunc("/volume/{volume}",
		func(w http.ResponseWriter, r *http.Request) {
			vars := mux.Vars(r)
			volume, err := strconv.ParseInt(vars["volume"], 10, 0)
			if err != nil {
				ErrorStatusAction(w, r, http.StatusBadRequest)
				return
			}
			result, err := api.controller.SetVolume(r.Context(), vars["guild_id"], volume)
			resultAction(w, result, err)
		}).Methods("PUT")

	// Tell the browser that it's OK for JS to communicate with the server
	headersOk := handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "x-api-key"})
	originsOk := handlers.AllowedOrigins([]string{"*"})
	methodsOk := handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})

	api.server = &http.Server{
		Addr:         ":" + strconv.FormatInt(config.ServerParam.ApiParam.SslPort, 10),
		Handler:      api.Handler(headersOk, originsOk, methodsOk),
		ReadTimeout:  time.Second * 240,
		WriteTimeout: time.Second * 240,
		IdleTimeout:  time.Second * 240,
	}

	return api
}

// Handler returns the router wrapped with compression and CORS.
func (d *Api) Handler(corsOptions ...handlers.CORSOption) http.Handler {
	return handlers.CompressHandler(handlers.CORS(corsOptions...)(d.router))
}

func (d *Api) Start() {
	logrus.Infof("Start api device")

	existServerCert, err := tool.IsFileExists(d.config.GetCompleteCertFilename())
	if err != nil {
		logrus.Fatalf("Unable to access %s: %v\n", d.config.GetCompleteCertFilename(), err)
	}

	existServerKey, err := tool.IsFileExists(d.config.GetCompleteKeyFilename())
	if err != nil {
		logrus.Fatalf("Unable to access %s: %v\n", d.config.GetCompleteKeyFilename(), err)
	}

	if !existServerCert || !existServerKey {
		logrus.Info("Missing cert and key files, trying to generate them...")
		err = tool.GenerateTlsCertificate(
			"jypelle",
			"Vekidj Server",
			d.config.GetCompleteKeyFilename(),
			d.config.GetCompleteCertFilename(),
			[]string{})
		if err != nil {
			logrus.Fatalf("Unable to generate cert and key files : %v\n", err)
		}
		logrus.Info("Self-signed cert and key files generated")
	}

	go func() {
		err := d.server.ListenAndServeTLS(d.config.GetCompleteCertFilename(), d.config.GetCompleteKeyFilename())
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Error(err)
		}
	}()
}

func (d *Api) Stop() {
	logrus.Infof("Stop api device")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.server.Shutdown(ctx); err != nil {
		logrus.Warnf("Api shutdown: %v", err)
	}
}

// StatusCode maps controller errors to http statuses.
func StatusCode(err error) int {
	var connErr *player.ConnectionError
	var resErr *player.ResolutionError
	var stateErr *player.StateError
	var validErr *player.ValidationError
	switch {
	case errors.As(err, &validErr):
		return http.StatusBadRequest
	case errors.As(err, &stateErr), errors.As(err, &connErr):
		return http.StatusConflict
	case errors.As(err, &resErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, player.ErrSchedulerStopped), errors.Is(err, player.ErrPoolClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func trackToApi(track player.Track) apimodel.Track {
	return apimodel.Track{
		Title:       track.Title,
		Url:         track.WebpageURL,
		Duration:    int64(track.Duration / time.Second),
		RequestedBy: track.RequestedBy,
		Source:      track.Source,
		PreviewOnly: track.PreviewOnly,
	}
}

func statusToApi(status player.Status) apimodel.SessionStatus {
	apiStatus := apimodel.SessionStatus{
		GuildId:   status.GuildId,
		Channel:   status.Channel,
		Connected: status.Connected,
		Paused:    status.Paused,
		Upcoming:  make([]apimodel.Track, 0, len(status.Upcoming)),
		QueueSize: status.QueueSize(),
		LoopMode:  status.LoopMode.String(),
		Volume:    status.Volume,
		Message:   status.Message(),
	}
	if status.Current != nil {
		current := trackToApi(*status.Current)
		apiStatus.Current = &current
	}
	for _, track := range status.Upcoming {
		apiStatus.Upcoming = append(apiStatus.Upcoming, trackToApi(track))
	}
	return apiStatus
}

type messager interface {
	Message() string
}

func resultAction(w http.ResponseWriter, result messager, err error) {
	if err != nil {
		ControllerErrorAction(w, err)
		return
	}
	JsonAction(w, apimodel.Result{Message: result.Message()})
}

func JsonAction(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("Unable to encode response: %v", err)
	}
}

func ControllerErrorAction(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	if status == http.StatusInternalServerError {
		logrus.Errorf("Api: %v", err)
	}
	GlobalErrorAction(w, player.Message(err), status)
}

func ErrorNotFoundAction(w http.ResponseWriter, r *http.Request) {
	ErrorStatusAction(w, r, http.StatusNotFound)
}

func ErrorMethodNotAllowedAction(w http.ResponseWriter, r *http.Request) {
	ErrorStatusAction(w, r, http.StatusMethodNotAllowed)
}

func ErrorStatusAction(w http.ResponseWriter, r *http.Request, status int) {
	GlobalErrorAction(w, "", status)
}

func GlobalErrorAction(w http.ResponseWriter, message string, status int) {
	apimodel.ErrorMessage{ErrStatusCode: status, ErrMessage: message}.SendError(w)
}
