package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/fundval/internal/domain"
	"github.com/aristath/fundval/internal/modules/valuation"
	valuationhandlers "github.com/aristath/fundval/internal/modules/valuation/handlers"
)

const (
	defaultStreamInterval = 60 * time.Second
	streamWriteTimeout    = 10 * time.Second
	maxStreamCodes        = 50
)

// BatchValuer values many funds in one round.
type BatchValuer interface {
	GetBatchValuation(ctx context.Context, fundCodes []string, summaryOnly bool) ([]domain.ValuationResult, error)
}

// StreamMessage is one push on the valuation stream.
type StreamMessage struct {
	Type       string                   `json:"type"`
	Valuations []domain.ValuationResult `json:"valuations,omitempty"`
	Error      string                   `json:"error,omitempty"`
	Timestamp  time.Time                `json:"timestamp"`
}

// ValuationStream pushes summary valuations of a fixed code set over a
// websocket until the client goes away.
type ValuationStream struct {
	valuer         BatchValuer
	originPatterns []string
	interval       time.Duration
	log            zerolog.Logger
}

// NewValuationStream creates the stream handler. origins restricts the
// websocket handshake; "*" or empty accepts any origin.
func NewValuationStream(valuer BatchValuer, origins []string, log zerolog.Logger) *ValuationStream {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		if o != "" {
			patterns = append(patterns, o)
		}
	}
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}
	return &ValuationStream{
		valuer:         valuer,
		originPatterns: patterns,
		interval:       defaultStreamInterval,
		log:            log.With().Str("component", "valuation_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/stream/valuations?codes=
func (s *ValuationStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	codes := valuationhandlers.ParseCodes(r.URL.Query().Get("codes"))
	if len(codes) == 0 || len(codes) > maxStreamCodes {
		http.Error(w, "codes must list between 1 and 50 fund codes", http.StatusBadRequest)
		return
	}
	for _, code := range codes {
		if !valuation.ValidFundCode(code) {
			http.Error(w, "invalid fund code: "+code, http.StatusBadRequest)
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns})
	if err != nil {
		s.log.Warn().Err(err).Msg("Websocket handshake failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	// Client messages are ignored; CloseRead cancels ctx when the peer leaves.
	ctx := conn.CloseRead(r.Context())

	s.log.Info().Int("codes", len(codes)).Msg("Client connected to valuation stream")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.push(ctx, conn, codes); err != nil {
			if !errors.Is(err, context.Canceled) && websocket.CloseStatus(err) == -1 {
				s.log.Debug().Err(err).Msg("Valuation stream write failed")
			}
			return
		}

		select {
		case <-ctx.Done():
			s.log.Info().Msg("Client disconnected from valuation stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
		}
	}
}

func (s *ValuationStream) push(ctx context.Context, conn *websocket.Conn, codes []string) error {
	msg := StreamMessage{Type: "valuations", Timestamp: time.Now()}

	results, err := s.valuer.GetBatchValuation(ctx, codes, true)
	if err != nil {
		msg.Type = "error"
		msg.Error = err.Error()
	} else {
		msg.Valuations = results
	}

	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, msg)
}
