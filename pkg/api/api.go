// Package api exposes the indexed transfer data over a paginated read-only
// HTTP API.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/sygma-indexer/pkg/app/errors"
	apphttp "github.com/chainsafe/sygma-indexer/pkg/app/http"
	"github.com/chainsafe/sygma-indexer/pkg/db"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Store is the read surface of the transfer database the API serves from.
type Store interface {
	GetTransferDetailed(ctx context.Context, id string) (*db.Transfer, error)
	ListTransfers(ctx context.Context, limit, offset int) ([]*db.Transfer, error)
	ListTransfersBySender(ctx context.Context, sender string, limit, offset int) ([]*db.Transfer, error)
	CountTransfers(ctx context.Context) (int, error)
	ListDomains(ctx context.Context) ([]*db.Domain, error)
	ListResources(ctx context.Context) ([]*db.Resource, error)
	ListRoutes(ctx context.Context, from, to uint8) ([]*db.Route, error)
}

// Handler serves the read API endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// RegisterRoutes registers the read API endpoints on the given chi router.
func RegisterRoutes(r chi.Router, store Store, logger *zap.Logger) {
	h := &Handler{store: store, logger: logger}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/transfers", apphttp.HandleError(h.listTransfers))
		r.Get("/transfers/{id}", apphttp.HandleError(h.getTransfer))
		r.Get("/transfers/sender/{address}", apphttp.HandleError(h.listTransfersBySender))
		r.Get("/domains", apphttp.HandleError(h.listDomains))
		r.Get("/resources", apphttp.HandleError(h.listResources))
		r.Get("/routes/from/{from}/to/{to}", apphttp.HandleError(h.listRoutes))
	})
}

// page holds the paginated response envelope.
type page struct {
	Data  any `json:"data"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total,omitempty"`
}

func pagination(r *http.Request) (pageNum, limit, offset int, err error) {
	pageNum, limit = 1, defaultPageLimit

	if raw := r.URL.Query().Get("page"); raw != "" {
		pageNum, err = strconv.Atoi(raw)
		if err != nil || pageNum < 1 {
			return 0, 0, 0, apperrors.BadRequestError(err, "invalid page parameter")
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, 0, apperrors.BadRequestError(err, "invalid limit parameter")
		}
		if limit > maxPageLimit {
			limit = maxPageLimit
		}
	}
	return pageNum, limit, (pageNum - 1) * limit, nil
}

func (h *Handler) listTransfers(w http.ResponseWriter, r *http.Request) error {
	pageNum, limit, offset, err := pagination(r)
	if err != nil {
		return err
	}

	transfers, err := h.store.ListTransfers(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list transfers", zap.Error(err))
		return apperrors.DependencyFailureError(err, "storage query failed")
	}
	total, err := h.store.CountTransfers(r.Context())
	if err != nil {
		h.logger.Error("Failed to count transfers", zap.Error(err))
		return apperrors.DependencyFailureError(err, "storage query failed")
	}

	if transfers == nil {
		transfers = []*db.Transfer{}
	}
	apphttp.WriteJSON(w, http.StatusOK, &page{Data: transfers, Page: pageNum, Limit: limit, Total: total})
	return nil
}

func (h *Handler) getTransfer(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")

	transfer, err := h.store.GetTransferDetailed(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get transfer", zap.String("id", id), zap.Error(err))
		return apperrors.DependencyFailureError(err, "storage query failed")
	}
	if transfer == nil {
		return apperrors.ResourceNotFoundError(nil, "transfer not found")
	}

	apphttp.WriteJSON(w, http.StatusOK, transfer)
	return nil
}

func (h *Handler) listTransfersBySender(w http.ResponseWriter, r *http.Request) error {
	pageNum, limit, offset, err := pagination(r)
	if err != nil {
		return err
	}
	address := chi.URLParam(r, "address")

	transfers, err := h.store.ListTransfersBySender(r.Context(), address, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list transfers by sender", zap.String("sender", address), zap.Error(err))
		return apperrors.DependencyFailureError(err, "storage query failed")
	}

	// An unknown sender is an empty page, not an error.
	if transfers == nil {
		transfers = []*db.Transfer{}
	}
	apphttp.WriteJSON(w, http.StatusOK, &page{Data: transfers, Page: pageNum, Limit: limit})
	return nil
}

func (h *Handler) listDomains(w http.ResponseWriter, r *http.Request) error {
	domains, err := h.store.ListDomains(r.Context())
	if err != nil {
		h.logger.Error("Failed to list domains", zap.Error(err))
		return apperrors.DependencyFailureError(err, "storage query failed")
	}
	if domains == nil {
		domains = []*db.Domain{}
	}
	apphttp.WriteJSON(w, http.StatusOK, domains)
	return nil
}

func (h *Handler) listResources(w http.ResponseWriter, r *http.Request) error {
	resources, err := h.store.ListResources(r.Context())
	if err != nil {
		h.logger.Error("Failed to list resources", zap.Error(err))
		return apperrors.DependencyFailureError(err, "storage query failed")
	}
	if resources == nil {
		resources = []*db.Resource{}
	}
	apphttp.WriteJSON(w, http.StatusOK, resources)
	return nil
}

func (h *Handler) listRoutes(w http.ResponseWriter, r *http.Request) error {
	from, err := parseDomainID(chi.URLParam(r, "from"))
	if err != nil {
		return apperrors.BadRequestError(err, "invalid from domain id")
	}
	to, err := parseDomainID(chi.URLParam(r, "to"))
	if err != nil {
		return apperrors.BadRequestError(err, "invalid to domain id")
	}

	routes, err := h.store.ListRoutes(r.Context(), from, to)
	if err != nil {
		h.logger.Error("Failed to list routes", zap.Error(err))
		return apperrors.DependencyFailureError(err, "storage query failed")
	}
	if routes == nil {
		routes = []*db.Route{}
	}
	apphttp.WriteJSON(w, http.StatusOK, routes)
	return nil
}

func parseDomainID(raw string) (uint8, error) {
	id, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return 0, err
	}
	return uint8(id), nil
}
