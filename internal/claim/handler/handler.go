// Package handler exposes the claim pipeline over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"canopy/internal/claim/models"
	"canopy/internal/claim/service"
	creditmodels "canopy/internal/credit/models"
	"canopy/internal/platform/middleware"
	id "canopy/pkg/domain"
	dErrors "canopy/pkg/domain-errors"
	"canopy/pkg/platform/httputil"
)

// Service defines the claim operations the transport needs.
type Service interface {
	Submit(ctx context.Context, actor models.Actor, cmd service.SubmitCommand) (*models.Claim, error)
	RequestVerification(ctx context.Context, claimID id.ClaimID, actor models.Actor) (*service.VerificationOutcome, error)
	Approve(ctx context.Context, claimID id.ClaimID, actor models.Actor, credits int64, notes string, listing *service.ListingOptions) (*service.ApprovalOutcome, error)
	Reject(ctx context.Context, claimID id.ClaimID, actor models.Actor, reason string) (*models.Claim, error)
	Get(ctx context.Context, claimID id.ClaimID) (*models.Claim, error)
	VerifyIntegrity(ctx context.Context, claimID id.ClaimID) (*service.IntegrityReport, error)
	GetCredit(ctx context.Context, creditID id.CreditID) (*creditmodels.CreditRecord, error)
	GetListing(ctx context.Context, listingID id.ListingID) (*creditmodels.MarketplaceListing, error)
}

// Handler handles claim, credit, and listing endpoints.
type Handler struct {
	claims Service
	logger *slog.Logger
}

// New creates a claim Handler.
func New(claims Service, logger *slog.Logger) *Handler {
	return &Handler{claims: claims, logger: logger}
}

// Register mounts the claim routes on the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/claims", h.handleSubmit)
	r.Get("/claims/{claimID}", h.handleGet)
	r.Get("/claims/{claimID}/integrity", h.handleIntegrity)
	r.Post("/claims/{claimID}/verify", h.handleVerify)
	r.Post("/claims/{claimID}/approve", h.handleApprove)
	r.Post("/claims/{claimID}/reject", h.handleReject)
	r.Get("/credits/{creditID}", h.handleGetCredit)
	r.Get("/listings/{listingID}", h.handleGetListing)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req submitRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	claim, err := h.claims.Submit(ctx, middleware.GetActor(ctx), req.toCommand())
	if err != nil {
		h.logError(ctx, "submit claim", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, claim)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	claim, err := h.claims.Get(r.Context(), claimID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, claim)
}

func (h *Handler) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	report, err := h.claims.VerifyIntegrity(r.Context(), claimID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, integrityResponse{
		ClaimID:     claimID.String(),
		Fingerprint: report.Fingerprint,
		Valid:       report.Valid,
	})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out, err := h.claims.RequestVerification(ctx, claimID, middleware.GetActor(ctx))
	if err != nil {
		h.logError(ctx, "request verification", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, verificationResponse{
		Claim:   out.Claim,
		Verdict: out.Verdict,
		Outcome: string(out.Outcome),
		Warning: out.Warning,
	})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req approveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	out, err := h.claims.Approve(ctx, claimID, middleware.GetActor(ctx), req.Credits, req.Notes, req.listingOptions())
	if err != nil {
		h.logError(ctx, "approve claim", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, approvalResponse{
		Claim:   out.Claim,
		Credit:  out.Credit,
		Listing: out.Listing,
		Warning: out.Warning,
	})
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req rejectRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	claim, err := h.claims.Reject(ctx, claimID, middleware.GetActor(ctx), req.Reason)
	if err != nil {
		h.logError(ctx, "reject claim", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, claim)
}

func (h *Handler) handleGetCredit(w http.ResponseWriter, r *http.Request) {
	creditID, err := id.ParseCreditID(chi.URLParam(r, "creditID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.claims.GetCredit(r.Context(), creditID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleGetListing(w http.ResponseWriter, r *http.Request) {
	listingID, err := id.ParseListingID(chi.URLParam(r, "listingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	listing, err := h.claims.GetListing(r.Context(), listingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, listing)
}

func (h *Handler) logError(ctx context.Context, op string, err error) {
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, op+" failed",
			"error", err,
			"request_id", middleware.GetRequestID(ctx))
		return
	}
	h.logger.WarnContext(ctx, op+" refused",
		"error", err,
		"request_id", middleware.GetRequestID(ctx))
}
