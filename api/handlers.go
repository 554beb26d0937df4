package api

import (
	"net/http"
	"strings"

	"predictor/models"
	"predictor/service"

	"github.com/gorilla/mux"
)

func (s *Server) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	views, err := s.services.Predictions.List(r.Context(), filter, actorFrom(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	id, err := predictionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	view, err := s.services.Predictions.Get(r.Context(), id, actorFrom(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCreatePrediction(w http.ResponseWriter, r *http.Request) {
	var req createPredictionRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	prediction, err := s.services.Predictions.Create(r.Context(), actorFrom(r), req.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, prediction)
}

func (s *Server) handleUpdatePrediction(w http.ResponseWriter, r *http.Request) {
	id, err := predictionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req updatePredictionRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	prediction, err := s.services.Predictions.Update(r.Context(), actorFrom(r), id, req.toPatch())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prediction)
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := predictionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req setStatusRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	prediction, err := s.services.Predictions.SetStatus(r.Context(), actorFrom(r), id, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prediction)
}

func (s *Server) handleDeletePrediction(w http.ResponseWriter, r *http.Request) {
	id, err := predictionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.services.Predictions.Delete(r.Context(), actorFrom(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetBet(w http.ResponseWriter, r *http.Request) {
	id, err := predictionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	actor := actorFrom(r)
	if actor.UserID == "" {
		writeError(w, r, service.ErrUnauthenticated)
		return
	}

	bet, err := s.services.Bets.GetBet(r.Context(), id, actor.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if bet == nil {
		writeError(w, r, service.ErrBetNotFound)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

func (s *Server) handlePlaceBet(w http.ResponseWriter, r *http.Request) {
	id, err := predictionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req placeBetRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	bet, err := s.services.Bets.PlaceOrUpdateBet(r.Context(), actorFrom(r), id, strings.TrimSpace(req.OptionID), req.Points)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

func (s *Server) handleWithdrawBet(w http.ResponseWriter, r *http.Request) {
	id, err := predictionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.services.Bets.WithdrawBet(r.Context(), actorFrom(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	id, err := predictionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req revealRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	outcome, err := s.services.Settlement.Reveal(r.Context(), actorFrom(r), id, strings.TrimSpace(req.CorrectOptionID))
	if err != nil {
		writeError(w, r, err)
		return
	}

	orphaned := outcome.Orphaned
	if orphaned == nil {
		orphaned = []*models.Bet{}
	}
	writeJSON(w, http.StatusOK, revealResponse{
		Prediction:       outcome.Prediction,
		Result:           outcome.Result,
		Correction:       outcome.Correction,
		PreviousOptionID: outcome.PreviousOptionID,
		SettledUsers:     len(outcome.Statistics),
		OrphanedBets:     orphaned,
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := s.services.Leaderboard.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleUserStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.services.Settlement.GetUserStatistics(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRecomputeAll(w http.ResponseWriter, r *http.Request) {
	changed, err := s.services.Settlement.RecomputeAll(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recomputeResponse{Changed: changed})
}

func (s *Server) handleRecomputeUser(w http.ResponseWriter, r *http.Request) {
	stats, err := s.services.Settlement.RecomputeUser(r.Context(), actorFrom(r), mux.Vars(r)["userID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
