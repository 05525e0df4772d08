package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/server"
	"github.com/npezzotti/go-messenger/internal/types"
)

type CreateUserRequest struct {
	Username     string `json:"username"`
	EmailAddress string `json:"email_address"`
}

type CreateConversationRequest struct {
	ParticipantIds []int `json:"participant_ids"`
}

type CreateMessageRequest struct {
	ConversationId string `json:"conversation_id"`
	SenderId       int    `json:"sender_id"`
	Body           string `json:"body"`
}

type EditMessageRequest struct {
	Body string `json:"body"`
}

type MarkReadRequest struct {
	UserId int `json:"user_id"`
}

type AddReactionRequest struct {
	UserId int    `json:"user_id"`
	Emoji  string `json:"emoji"`
}

func (s *MessengerApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

// storeError maps an error from the core or the Store onto the HTTP
// taxonomy: missing records are client errors, membership violations are
// forbidden, everything else is a transient store failure the caller may
// retry.
func (s *MessengerApp) storeError(err error) *ApiError {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return NewNotFoundError()
	case errors.Is(err, server.ErrNotParticipant):
		return NewForbiddenError()
	default:
		return NewInternalServerError(err)
	}
}

func (s *MessengerApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Println("health check:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *MessengerApp) listUsers(w http.ResponseWriter, _ *http.Request) {
	dbUsers, err := s.db.ListAccounts()
	if err != nil {
		s.log.Println("list accounts:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	users := make([]types.User, 0, len(dbUsers))
	for _, u := range dbUsers {
		users = append(users, types.User{
			Id:           u.Id,
			Username:     u.Username,
			EmailAddress: u.EmailAddress,
			CreatedAt:    u.CreatedAt,
			UpdatedAt:    u.UpdatedAt,
		})
	}

	s.writeJson(w, http.StatusOK, users)
}

func (s *MessengerApp) createUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.EmailAddress == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.CreateAccount(database.CreateAccountParams{
		Username:     req.Username,
		EmailAddress: req.EmailAddress,
	})
	if err != nil {
		s.log.Println("create account:", err)
		errResp := s.storeError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, types.User{
		Id:           user.Id,
		Username:     user.Username,
		EmailAddress: user.EmailAddress,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	})
}

func (s *MessengerApp) createConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	participants := slices.Compact(slices.Sorted(slices.Values(req.ParticipantIds)))
	if len(participants) < 2 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conv, err := s.cs.CreateConversation(participants)
	if err != nil {
		s.log.Println("create conversation:", err)
		errResp := s.storeError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, conv)
}

func (s *MessengerApp) listConversations(w http.ResponseWriter, r *http.Request) {
	userId, err := strconv.Atoi(r.URL.Query().Get("user_id"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbConvs, err := s.db.ListConversationsForAccount(userId)
	if err != nil {
		s.log.Println("list conversations:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conversations := make([]types.Conversation, 0, len(dbConvs))
	for _, c := range dbConvs {
		conversations = append(conversations, server.ConversationFromDB(c))
	}

	s.writeJson(w, http.StatusOK, conversations)
}

func (s *MessengerApp) getMessages(w http.ResponseWriter, r *http.Request) {
	conv, err := s.db.GetConversationByExternalId(r.PathValue("id"))
	if err != nil {
		errResp := s.storeError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var since, before, limit int

	for _, param := range []struct {
		name string
		dst  *int
	}{
		{"since", &since},
		{"before", &before},
		{"limit", &limit},
	} {
		value := r.URL.Query().Get(param.name)
		if value == "" {
			continue
		}

		*param.dst, err = strconv.Atoi(value)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	dbMessages, err := s.db.GetMessages(conv.Id, since, before, limit)
	if err != nil {
		s.log.Println("get messages:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages := make([]types.Message, 0, len(dbMessages))
	for _, m := range dbMessages {
		messages = append(messages, server.MessageFromDB(m))
	}

	s.writeJson(w, http.StatusOK, messages)
}

func (s *MessengerApp) markRead(w http.ResponseWriter, r *http.Request) {
	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserId == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if _, err := s.db.GetAccountById(req.UserId); err != nil {
		errResp := s.storeError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.cs.MarkRead(r.PathValue("id"), req.UserId); err != nil {
		errResp := s.storeError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]string{"message": "messages marked as read"})
}

func (s *MessengerApp) createMessage(w http.ResponseWriter, r *http.Request) {
	var req CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.ConversationId == "" || req.SenderId == 0 || req.Body == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.cs.SendMessage(req.ConversationId, req.SenderId, req.Body)
	if err != nil {
		s.log.Println("send message:", err)
		errResp := s.storeError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, msg)
}

func (s *MessengerApp) editMessage(w http.ResponseWriter, r *http.Request) {
	var req EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Body == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.cs.EditMessage(r.PathValue("id"), req.Body)
	if err != nil {
		s.log.Println("edit message:", err)
		errResp := s.storeError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, msg)
}

func (s *MessengerApp) deleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := s.cs.DeleteMessage(r.PathValue("id")); err != nil {
		s.log.Println("delete message:", err)
		errResp := s.storeError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *MessengerApp) addReaction(w http.ResponseWriter, r *http.Request) {
	var req AddReactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.UserId == 0 || req.Emoji == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.cs.AddReaction(r.PathValue("id"), req.UserId, req.Emoji)
	if err != nil {
		s.log.Println("add reaction:", err)
		errResp := s.storeError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, msg)
}

// serveWs attaches a websocket session for the user named in the query
// string. There is no authentication in this system: identity is the
// selected user id.
func (s *MessengerApp) serveWs(w http.ResponseWriter, r *http.Request) {
	userId, err := strconv.Atoi(r.URL.Query().Get("user_id"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		errResp := s.storeError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(types.User{
		Id:           user.Id,
		Username:     user.Username,
		EmailAddress: user.EmailAddress,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}, conn, s.cs, s.log)

	s.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}
