package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/angelospk/osdfxp/pkg/core/publish"
	"github.com/angelospk/osdfxp/pkg/core/session"
	"github.com/angelospk/osdfxp/pkg/processor"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveAddr     string
	serveResync   string
	serveEncoding string
)

var serveCmd = &cobra.Command{
	Use:   "serve <file.srt>",
	Short: "Serve a converted subtitle over HTTP with live resync",
	Long: `Converts an SRT file and serves the DFXP document until interrupted.

Routes:
  GET  /current                 redirects to the live document
  GET  /subtitles/<id>.dfxp     a published document
  GET  /status                  JSON with the live handle and offset
  POST /resync?offset=<value>   rebuilds the document with a new offset
                                (seconds like -0.3 or a duration like 1500ms)

Every resync publishes a new document and revokes the previous one.`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	RootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from serve.addr)")
	serveCmd.Flags().StringVar(&serveResync, "resync", "", "Initial resync offset")
	serveCmd.Flags().StringVar(&serveEncoding, "encoding", "", "Character set of the input, detected when empty")
}

func runServe(cmd *cobra.Command, args []string) error {
	offset, err := parseOffset(serveResync)
	if err != nil {
		return err
	}
	addr := serveAddr
	if addr == "" {
		addr = viper.GetString(CfgKeyServeAddr)
	}

	result, err := processor.NewProcessor(nil, logger).LoadLocalFile(args[0], serveEncoding)
	if err != nil {
		return err
	}

	registry := publish.NewRegistry(logger)
	sess := session.New(result.Cues, result.Filename, registry, logger)
	defer sess.Close()
	if offset != 0 {
		if _, err := sess.ApplyResyncOffset(offset); err != nil {
			return err
		}
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              addr,
		Handler:           newServeMux(sess, registry),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at http://%s/current (Ctrl+C to stop)\n", result.Filename, addr)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("Shutting down")
	return server.Shutdown(shutdownCtx)
}

type serveStatus struct {
	Filename string `json:"filename"`
	Handle   string `json:"handle"`
	URL      string `json:"url"`
	OffsetMS int64  `json:"offsetMs"`
}

func statusOf(sess *session.Session) serveStatus {
	h := sess.Handle()
	return serveStatus{
		Filename: sess.Filename(),
		Handle:   h.ID,
		URL:      h.URLPath(),
		OffsetMS: sess.Offset().Milliseconds(),
	}
}

func writeStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newServeMux routes the serve command's endpoints.
func newServeMux(sess *session.Session, registry *publish.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(publish.PathPrefix, registry)

	mux.HandleFunc("/current", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, sess.Handle().URLPath(), http.StatusFound)
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, statusOf(sess))
	})

	mux.HandleFunc("/resync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		offset, err := parseOffset(r.URL.Query().Get("offset"))
		if err != nil {
			writeStatus(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if _, err := sess.ApplyResyncOffset(offset); err != nil {
			writeStatus(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		logger.WithFields(log.Fields{"offset": offset, "remote": r.RemoteAddr}).Debug("Resync requested")
		writeStatus(w, http.StatusOK, statusOf(sess))
	})
	return mux
}
