package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/fusionbridge/fusion-bridge-core/internal/auth"
	"github.com/fusionbridge/fusion-bridge-core/internal/org"
)

// Auth constants.
const (
	// ticketTTL is how long a WebSocket ticket is valid.
	ticketTTL = 60 * time.Second

	// ticketCleanupInterval is how often expired tickets are purged.
	ticketCleanupInterval = time.Minute

	// defaultAccessTokenTTL is the fallback token lifetime in minutes.
	defaultAccessTokenTTL = 15
)

// loginRequest is the request body for POST /api/auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /api/auth/login.
type loginResponse struct {
	AccessToken    string   `json:"accessToken"`
	TokenType      string   `json:"tokenType"`
	ExpiresIn      int      `json:"expiresIn"`
	OrganizationID string   `json:"organizationId"`
	Role           org.Role `json:"role"`
}

// ticketStore holds pending WebSocket authentication tickets.
// Tickets are single-use and expire after ticketTTL.
type ticketStore struct {
	tickets map[string]ticketEntry
	mu      sync.Mutex
}

type ticketEntry struct {
	userID    string
	orgID     string
	role      org.Role
	expiresAt time.Time
}

var wsTickets = &ticketStore{
	tickets: make(map[string]ticketEntry),
}

// handleLogin authenticates a user against the user store and returns a
// JWT access token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondBadRequest(w, "email and password are required")
		return
	}

	user, err := s.orgs.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		// Identical response for unknown user and wrong password.
		respondUnauthorized(w, "invalid credentials")
		return
	}

	match, err := auth.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !match {
		respondUnauthorized(w, "invalid credentials")
		return
	}

	ttl := s.secCfg.JWT.AccessTokenTTL
	if ttl == 0 {
		ttl = defaultAccessTokenTTL
	}

	signed, err := auth.GenerateAccessToken(user, s.secCfg.JWT.Secret, ttl)
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		respondInternalError(w, "failed to generate token")
		return
	}

	respond(w, http.StatusOK, loginResponse{
		AccessToken:    signed,
		TokenType:      "Bearer",
		ExpiresIn:      ttl * 60,
		OrganizationID: user.OrganizationID,
		Role:           user.Role,
	})
}

// handleWSTicket generates a single-use WebSocket authentication ticket.
// The client uses the ticket to authenticate the WebSocket connection
// without exposing the JWT in the URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	claims := callerClaims(r)
	if claims == nil {
		respondUnauthorized(w, "authentication required")
		return
	}

	ticket := generateTicket()

	wsTickets.mu.Lock()
	wsTickets.tickets[ticket] = ticketEntry{
		userID:    claims.Subject,
		orgID:     claims.OrganizationID,
		role:      claims.Role,
		expiresAt: time.Now().Add(ticketTTL),
	}
	wsTickets.mu.Unlock()

	respond(w, http.StatusOK, map[string]any{
		"ticket":    ticket,
		"expiresIn": int(ticketTTL.Seconds()),
	})
}

// validateTicket checks if a ticket is valid and consumes it (single-use).
func validateTicket(ticket string) (ticketEntry, bool) {
	wsTickets.mu.Lock()
	defer wsTickets.mu.Unlock()

	entry, ok := wsTickets.tickets[ticket]
	if !ok {
		return ticketEntry{}, false
	}

	delete(wsTickets.tickets, ticket)

	if time.Now().After(entry.expiresAt) {
		return ticketEntry{}, false
	}
	return entry, true
}

// cleanTicketsLoop periodically removes expired tickets that were never
// redeemed.
func (s *Server) cleanTicketsLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			wsTickets.mu.Lock()
			for ticket, entry := range wsTickets.tickets {
				if now.After(entry.expiresAt) {
					delete(wsTickets.tickets, ticket)
				}
			}
			wsTickets.mu.Unlock()
		}
	}
}

// ticketBytes is the number of random bytes in a WebSocket ticket.
const ticketBytes = 16

// generateTicket creates a random hex WebSocket ticket.
func generateTicket() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}
