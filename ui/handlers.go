package ui

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/openmarket/marketplace/cart"
	"github.com/openmarket/marketplace/catalog"
	"github.com/openmarket/marketplace/core"
	"github.com/openmarket/marketplace/session"
	"github.com/openmarket/marketplace/storefront"
)

// saveView exposes a storefront.SaveResult with its error as text.
type saveView struct {
	Slots   []string `json:"slots,omitempty"`
	Skipped bool     `json:"skipped,omitempty"`
	Erased  bool     `json:"erased,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func toSaveView(r storefront.SaveResult) saveView {
	v := saveView{Slots: r.Slots, Skipped: r.Skipped, Erased: r.Erased}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	return v
}

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, tooLarge.Limit)
		}
		return fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":          core.HealthHealthy,
		"service":         s.name,
		"storage_circuit": s.ctrl.CircuitState(),
	}
	if err := s.ctrl.Health(r.Context()); err != nil {
		status["status"] = core.HealthUnhealthy
		status["error"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	if slots, err := s.ctrl.StoredSlots(r.Context()); err == nil {
		status["stored_slots"] = slots
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Session())
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds session.LoginCredentials
	if err := decode(w, r, &creds); err != nil {
		s.writeError(w, r, err)
		return
	}
	view, res, err := s.ctrl.Login(r.Context(), creds)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": view, "save": toSaveView(res)})
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var creds session.SignupCredentials
	if err := decode(w, r, &creds); err != nil {
		s.writeError(w, r, err)
		return
	}
	view, res, err := s.ctrl.Signup(r.Context(), creds)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"session": view, "save": toSaveView(res)})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	res := s.ctrl.Logout(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": s.ctrl.Session(), "save": toSaveView(res)})
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.ctrl.Products(catalog.Category(r.URL.Query().Get("category")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.ctrl.Product(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) addProduct(w http.ResponseWriter, r *http.Request) {
	draft := catalog.NewDraft()
	if err := decode(w, r, &draft); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, res, err := s.ctrl.AddProduct(r.Context(), draft)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"product": p, "save": toSaveView(res)})
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	var draft catalog.ProductDraft
	if err := decode(w, r, &draft); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, res, err := s.ctrl.UpdateProduct(r.Context(), r.PathValue("id"), draft)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"product": p, "save": toSaveView(res)})
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	removed, res, err := s.ctrl.DeleteProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !removed {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "product not found", Code: ErrorKindNotFound})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": true, "save": toSaveView(res)})
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Cart())
}

func (s *Server) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"product_id"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	item, res, err := s.ctrl.AddToCart(r.Context(), req.ProductID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"item": item, "cart": s.ctrl.Cart(), "save": toSaveView(res)})
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity *int `json:"quantity"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Quantity == nil {
		s.writeError(w, r, fmt.Errorf("%w: quantity is required", ErrInvalidBody))
		return
	}
	found, res, err := s.ctrl.SetQuantity(r.Context(), r.PathValue("id"), *req.Quantity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "cart item not found", Code: ErrorKindNotFound})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cart": s.ctrl.Cart(), "save": toSaveView(res)})
}

func (s *Server) deleteCartItem(w http.ResponseWriter, r *http.Request) {
	removed, res, err := s.ctrl.RemoveFromCart(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !removed {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "cart item not found", Code: ErrorKindNotFound})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cart": s.ctrl.Cart(), "save": toSaveView(res)})
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentMethod string `json:"payment_method"`
	}
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	receipt, res, err := s.ctrl.Checkout(r.Context(), cart.PaymentMethod(req.PaymentMethod))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"receipt": receipt, "save": toSaveView(res)})
}

func (s *Server) getNotification(w http.ResponseWriter, r *http.Request) {
	n, ok := s.ctrl.Notification()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

type option struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Icon  string `json:"icon,omitempty"`
}

func (s *Server) catalogOptions(w http.ResponseWriter, r *http.Request) {
	categories := []option{{Value: string(catalog.CategoryAll), Label: catalog.CategoryAll.Label()}}
	for _, c := range catalog.Categories {
		categories = append(categories, option{Value: string(c), Label: c.Label()})
	}
	payments := make([]option, 0, len(cart.PaymentMethods))
	for _, m := range cart.PaymentMethods {
		payments = append(payments, option{Value: string(m), Label: m.Label(), Icon: m.Icon()})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories":       categories,
		"emojis":           catalog.Emojis,
		"payment_methods":  payments,
		"default_emoji":    catalog.DefaultEmoji,
		"default_category": catalog.DefaultCategory,
		"default_payment":  cart.DefaultPaymentMethod,
	})
}
