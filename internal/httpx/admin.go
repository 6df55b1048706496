package httpx

import (
	"context"
	"fmt"
	"github.com/ariefcatur/stars-storefront/internal/orders"
	"golang.org/x/crypto/bcrypt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// AdminAuth guards operator routes with HTTP basic auth. Only a bcrypt hash
// of the password is kept in memory.
type AdminAuth struct {
	hash []byte
}

// NewAdminAuth hashes password. An empty password yields a guard that
// rejects everyone.
func NewAdminAuth(password string, cost int) (*AdminAuth, error) {
	if password == "" {
		return &AdminAuth{}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return &AdminAuth{hash: hash}, nil
}

func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, pass, ok := r.BasicAuth()
		if a == nil || len(a.hash) == 0 || !ok || bcrypt.CompareHashAndPassword(a.hash, []byte(pass)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="stars-admin"`)
			writeJSON(w, http.StatusUnauthorized, errorBody{Code: "unauthorized", Error: "admin credentials required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) completeOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID string `json:"orderId"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log(), err)
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		writeError(w, h.log(), fmt.Errorf("%w: orderId required", errBadRequest))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.MarkFulfilled(ctx, req.OrderID)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, OrderResp{Success: true, OrderID: o.ID, Status: o.Status})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	var status orders.Status
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := orders.ParseStatus(s)
		if err != nil {
			writeError(w, h.log(), fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		status = st
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, h.log(), fmt.Errorf("%w: limit must be a number", errBadRequest))
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Orders.ListOrders(ctx, status, limit)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "orders": list})
}
