package httpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"flip-earn/internal/auth"
	"flip-earn/internal/imagestore"
	"flip-earn/internal/market"
	"flip-earn/internal/repo"
)

// maxUploadBytes bounds the multipart body held in memory per request.
const maxUploadBytes = 32 << 20

func (s *Server) handlePublicListings(w http.ResponseWriter, r *http.Request) {
	listings, err := s.service.PublicListings(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "listings": listings})
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	var input market.ListingInput
	files, err := parseListingForm(r, &input)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	listing, err := s.service.CreateListing(r.Context(), identity, input, files)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]any{"success": true, "listing": listing})
}

func (s *Server) handleUpdateListing(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	var update market.ListingUpdate
	files, err := parseListingForm(r, &update)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	listing, err := s.service.UpdateListing(r.Context(), identity, update, files)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "listing": listing})
}

func (s *Server) handleUserListings(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	listings, balance, err := s.service.UserListings(r.Context(), identity)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "listings": listings, "balance": balance})
}

func (s *Server) handleToggleStatus(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	listing, err := s.service.ToggleStatus(r.Context(), identity, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "listing": listing})
}

func (s *Server) handleDeleteListing(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	if err := s.service.DeleteListing(r.Context(), identity, r.PathValue("listingId")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "message": "listing deleted"})
}

func (s *Server) handleMarkFeatured(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	featured, err := s.service.MarkFeatured(r.Context(), identity, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "is_featured": featured})
}

func (s *Server) handleBanListing(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	if err := s.service.BanListing(r.Context(), identity, r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "message": "listing banned"})
}

func (s *Server) handleApproveListing(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	if err := s.service.ApproveListing(r.Context(), identity, r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "message": "listing approved"})
}

type credentialRequest struct {
	ListingID  string                 `json:"listing_id"`
	Credential []repo.CredentialField `json:"credential"`
}

func (s *Server) handleAddCredential(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	var req credentialRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, market.E(market.CodeValidation, "invalid request body"))
		return
	}

	cred, err := s.service.AddCredential(r.Context(), identity, req.ListingID, req.Credential)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]any{"success": true, "credential_id": cred.ID})
}

func (s *Server) handleVerifyCredential(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	if err := s.service.VerifyCredential(r.Context(), identity, r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "message": "credential verified"})
}

func (s *Server) handleRotateCredential(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	var req credentialRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, market.E(market.CodeValidation, "invalid request body"))
		return
	}

	if err := s.service.RotateCredential(r.Context(), identity, req.ListingID, req.Credential); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "message": "credential updated"})
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	order, err := s.service.PurchaseAccount(r.Context(), identity, r.PathValue("listingId"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]any{"success": true, "order": order})
}

func (s *Server) handleUserOrders(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	orders, err := s.service.UserOrders(r.Context(), identity)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "orders": orders})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, market.E(market.CodeValidation, "invalid request body"))
		return
	}

	balance, err := s.service.Withdraw(r.Context(), identity, req.Amount)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "balance": balance})
}

func (s *Server) handleGetOrCreateChat(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	var req struct {
		ChatID    string `json:"chat_id"`
		ListingID string `json:"listing_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, market.E(market.CodeValidation, "invalid request body"))
		return
	}

	chat, err := s.service.GetOrCreateChat(r.Context(), identity, req.ChatID, req.ListingID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "chat": chat})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	var req struct {
		ChatID string `json:"chat_id"`
		Text   string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, market.E(market.CodeValidation, "invalid request body"))
		return
	}

	msg, err := s.service.SendMessage(r.Context(), identity, req.ChatID, req.Text)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]any{"success": true, "message": msg})
}

func (s *Server) handleUserChats(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	chats, err := s.service.UserChats(r.Context(), identity)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "chats": chats})
}

// parseListingForm reads the multipart body: the accountDetails field holds
// the JSON payload, images holds zero or more files.
func parseListingForm(r *http.Request, details any) ([]imagestore.File, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, market.E(market.CodeValidation, "invalid multipart form")
	}

	raw := r.FormValue("accountDetails")
	if raw == "" {
		return nil, market.E(market.CodeValidation, "accountDetails is required")
	}
	if err := json.Unmarshal([]byte(raw), details); err != nil {
		return nil, market.E(market.CodeValidation, "accountDetails is not valid json")
	}

	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File["images"]
	files := make([]imagestore.File, 0, len(headers))
	for _, header := range headers {
		file, err := readUpload(header)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

func readUpload(header *multipart.FileHeader) (imagestore.File, error) {
	src, err := header.Open()
	if err != nil {
		return imagestore.File{}, market.Wrap(market.CodeValidation, "failed reading upload", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		return imagestore.File{}, market.Wrap(market.CodeValidation, "failed reading upload", err)
	}
	if len(data) > maxUploadBytes {
		return imagestore.File{}, market.E(market.CodeLimitExceeded, fmt.Sprintf("image exceeds %d bytes", maxUploadBytes))
	}
	return imagestore.File{Name: header.Filename, Data: data}, nil
}
